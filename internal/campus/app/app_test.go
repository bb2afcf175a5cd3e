package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewWiresSQLiteApplication(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Env:                  "dev",
		LogLevel:             "error",
		LogFormat:            "text",
		DatabaseDriver:       DriverSQLite,
		DatabaseFile:         filepath.Join(dir, "campus.db"),
		PepperFile:           filepath.Join(dir, "pepper"),
		SessionTTL:           time.Hour,
		Port:                 8080,
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Hour,
	}

	application, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	require.FileExists(t, cfg.PepperFile)

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profile/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Guest")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Env: "prod", DatabaseDriver: DriverSQLite, DatabaseFile: "x.db", SessionTTL: time.Hour, Port: 8080})
	require.ErrorContains(t, err, "SECRET_KEY")
}
