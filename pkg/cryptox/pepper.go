package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	pepperMu sync.RWMutex
	pepper   string
)

// LoadPepper reads the server-wide pepper from path, creating the file with a
// fresh random value on first start. The pepper is appended to every password
// before hashing, so losing the file invalidates all stored hashes.
func LoadPepper(path string) error {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create pepper dir: %w", err)
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		SetPepper(strings.TrimSpace(string(raw)))
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("read pepper: %w", err)
	}

	buf := make([]byte, keyLength)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generate pepper: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(buf)
	if err := os.WriteFile(path, []byte(value), 0o600); err != nil {
		return fmt.Errorf("write pepper: %w", err)
	}

	SetPepper(value)
	return nil
}

// SetPepper overrides the pepper in memory.
func SetPepper(value string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	pepper = value
}

func currentPepper() string {
	pepperMu.RLock()
	defer pepperMu.RUnlock()
	return pepper
}
