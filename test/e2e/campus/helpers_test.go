//go:build e2e

package campus_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/campus/internal/campus/app"
	"github.com/aussiebroadwan/campus/pkg/httpx"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * End-to-end tests run the campus application in-process against a
 * PostgreSQL container. Each test gets its own database on that server.
 */

const (
	postgresImage    = "postgres:16-alpine"
	postgresUser     = "campus"
	postgresPassword = "campus"

	bootstrapToken = "test-bootstrap-token-12345"
)

var (
	adminDSN   string
	databaseID atomic.Int64

	csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)
)

// TestMain starts one PostgreSQL container for the whole suite.
func TestMain(m *testing.M) {
	ctx := context.Background()

	// Tests make many rapid requests from one address.
	relaxed := httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
	httpx.StrictLimit, httpx.ModerateLimit, httpx.LenientLimit = relaxed, relaxed, relaxed

	fmt.Fprintf(os.Stdout, "Starting PostgreSQL container...")
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     postgresUser,
				"POSTGRES_PASSWORD": postgresPassword,
				"POSTGRES_DB":       "postgres",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to start PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	host, err := container.Host(ctx)
	if err == nil {
		var port string
		if mapped, perr := container.MappedPort(ctx, "5432/tcp"); perr == nil {
			port = mapped.Port()
		} else {
			err = perr
		}
		adminDSN = fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=disable", postgresUser, postgresPassword, host, port)
	}

	exitCode := 1
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve PostgreSQL address: %v\n", err)
	} else {
		exitCode = m.Run()
	}

	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate container: %v\n", err)
	}
	os.Exit(exitCode)
}

// createDatabase provisions an empty database and returns its DSN.
func createDatabase(t *testing.T) string {
	t.Helper()

	db, err := sql.Open("pgx", adminDSN)
	require.NoError(t, err)
	defer db.Close()

	name := fmt.Sprintf("campus_%d", databaseID.Add(1))
	_, err = db.ExecContext(context.Background(), "CREATE DATABASE "+name)
	require.NoError(t, err)

	return strings.Replace(adminDSN, "/postgres?", "/"+name+"?", 1)
}

type campusApp struct {
	baseURL string
}

// setupCampus boots the application on a fresh database and serves it.
func setupCampus(t *testing.T) *campusApp {
	t.Helper()
	dir := t.TempDir()

	application, err := app.New(app.Config{
		BootstrapToken:       bootstrapToken,
		DatabaseDriver:       app.DriverPostgres,
		DatabaseURL:          createDatabase(t),
		PepperFile:           filepath.Join(dir, "pepper"),
		SecretKey:            "e2e-secret-key",
		SessionTTL:           time.Hour,
		Env:                  "test",
		LogLevel:             "error",
		LogFormat:            "json",
		Port:                 8080,
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	return &campusApp{baseURL: srv.URL}
}

// newBrowser returns a cookie-keeping client that does not follow redirects.
func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *campusApp) get(t *testing.T, c *http.Client, path string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(a.baseURL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

// submit fetches path for its CSRF token and posts values back to it.
func (a *campusApp) submit(t *testing.T, c *http.Client, path string, values url.Values) (*http.Response, string) {
	t.Helper()
	_, page := a.get(t, c, path)
	m := csrfPattern.FindStringSubmatch(page)
	require.Len(t, m, 2, "no csrf token on %s", path)
	values.Set("csrf_token", m[1])

	resp, err := c.PostForm(a.baseURL+path, values)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func signupForm(username, email, role string) url.Values {
	return url.Values{
		"username":         {username},
		"email":            {email},
		"password":         {"Str0ngPass!23"},
		"confirm_password": {"Str0ngPass!23"},
		"user_type":        {role},
	}
}

func assertRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, location, resp.Header.Get("Location"))
}
