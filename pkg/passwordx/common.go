package passwordx

import (
	"bufio"
	_ "embed"
	"strings"
	"sync"
)

//go:embed common_passwords.txt
var commonPasswordsFile string

var (
	commonOnce sync.Once
	common     map[string]struct{}
)

// IsCommon reports whether password (case-insensitive, trimmed) appears in
// the embedded list of frequently used passwords.
func IsCommon(password string) bool {
	commonOnce.Do(loadCommon)
	_, ok := common[normalize(password)]
	return ok
}

func loadCommon() {
	common = make(map[string]struct{}, 512)
	sc := bufio.NewScanner(strings.NewReader(commonPasswordsFile))
	for sc.Scan() {
		line := normalize(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		common[line] = struct{}{}
	}
}
