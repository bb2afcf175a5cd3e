package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/campus/internal/campus/domain"
	campushttp "github.com/aussiebroadwan/campus/internal/campus/http"
	"github.com/aussiebroadwan/campus/internal/campus/service"
	"github.com/aussiebroadwan/campus/internal/campus/store/drivers/sqlite"
	"github.com/aussiebroadwan/campus/pkg/cryptox"
	"github.com/aussiebroadwan/campus/pkg/csrfx"
	"github.com/aussiebroadwan/campus/pkg/httpx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	cryptox.SetPepper("test-pepper")
	os.Exit(m.Run())
}

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

type testEnv struct {
	server *httptest.Server
	client *http.Client
	store  *sqlite.Store
}

type envOption func(*campushttp.Router)

func withLimits(l campushttp.Limits) envOption {
	return func(r *campushttp.Router) { r.Limits = l }
}

func withBootstrapToken(token string) envOption {
	return func(r *campushttp.Router) { r.BootstrapService.Token = token }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "campus.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	sessions := &service.SessionService{Store: st, TTL: time.Hour}
	registration := &service.RegistrationService{Store: st, Sessions: sessions}

	router := campushttp.NewRouter("test", st, csrfx.New([]byte("test-secret"), time.Hour), false, slogx.Discard())
	unlimited := httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}
	router.Limits = campushttp.Limits{Strict: unlimited, Moderate: unlimited, Lenient: unlimited}
	router.SessionService = sessions
	router.RegistrationService = registration
	router.UserService = &service.UserService{Store: st}
	router.BootstrapService = &service.BootstrapService{Store: st, Registration: registration}
	for _, opt := range opts {
		opt(router)
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, client: newClient(t), store: st}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *testEnv) get(t *testing.T, c *http.Client, path string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(e.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

// postForm loads formPath to obtain a CSRF token, then submits values to
// path.
func (e *testEnv) postForm(t *testing.T, c *http.Client, formPath, path string, values url.Values) (*http.Response, string) {
	t.Helper()
	_, page := e.get(t, c, formPath)
	m := csrfPattern.FindStringSubmatch(page)
	require.Len(t, m, 2, "no csrf token on %s", formPath)
	values.Set("csrf_token", m[1])

	resp, err := c.PostForm(e.server.URL+path, values)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func aliceForm() url.Values {
	return url.Values{
		"username":         {"alice_01"},
		"email":            {"alice@example.com"},
		"password":         {"Str0ngPass!23"},
		"confirm_password": {"Str0ngPass!23"},
		"user_type":        {"STUDENT"},
	}
}

func (e *testEnv) signup(t *testing.T, c *http.Client, form url.Values) (*http.Response, string) {
	t.Helper()
	return e.postForm(t, c, "/signup/", "/signup/", form)
}

func (e *testEnv) login(t *testing.T, c *http.Client, email, password string) (*http.Response, string) {
	t.Helper()
	return e.postForm(t, c, "/login/", "/login/", url.Values{"email": {email}, "password": {password}})
}

func TestSignupLoginLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	c := env.client

	resp, _ := env.signup(t, c, aliceForm())
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	_, body := env.get(t, c, "/profile/")
	require.Contains(t, body, "<h1>alice@example.com</h1>")
	require.NotContains(t, body, "Guest")

	resp, _ = env.postForm(t, c, "/", "/logout/", url.Values{})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/login/", resp.Header.Get("Location"))

	_, body = env.get(t, c, "/profile/")
	require.Contains(t, body, "<h1>Guest</h1>")

	resp, _ = env.login(t, c, "alice@example.com", "Str0ngPass!23")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	_, body = env.get(t, c, "/profile/")
	require.Contains(t, body, "alice_01")

	resp, _ = env.get(t, c, "/logout/")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	_, body = env.get(t, c, "/profile/")
	require.Contains(t, body, "<h1>Guest</h1>")
}

func TestLoginWrongPasswordGivesGenericError(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, newClient(t), aliceForm())

	c := env.client
	resp, body := env.login(t, c, "alice@example.com", "nope-nope")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Please enter a correct email and password.")

	u, err := url.Parse(env.server.URL)
	require.NoError(t, err)
	for _, ck := range c.Jar.Cookies(u) {
		require.NotEqual(t, "campus_session", ck.Name)
	}

	_, body = env.get(t, c, "/profile/")
	require.Contains(t, body, "<h1>Guest</h1>")

	_, unknown := env.login(t, newClient(t), "ghost@example.com", "nope-nope")
	require.Contains(t, unknown, "Please enter a correct email and password.")
}

func TestLoginRequiredFields(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.login(t, env.client, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, strings.Count(body, service.MsgRequired))
}

func TestLoginRedirectsToSafeNext(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, newClient(t), aliceForm())

	for next, want := range map[string]string{
		"/mentors/":          "/mentors/",
		"//evil.example/":    "/",
		"https://evil.test/": "/",
	} {
		resp, _ := env.postForm(t, newClient(t), "/login/", "/login/", url.Values{
			"email":    {"alice@example.com"},
			"password": {"Str0ngPass!23"},
			"next":     {next},
		})
		require.Equal(t, http.StatusFound, resp.StatusCode)
		require.Equal(t, want, resp.Header.Get("Location"), "next=%s", next)
	}
}

func TestSignupValidationRerendersForm(t *testing.T) {
	env := newTestEnv(t)

	form := aliceForm()
	form.Set("username", "al")
	form.Set("confirm_password", "Different!23")
	resp, body := env.signup(t, env.client, form)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, service.MsgUsernameTooShort)
	require.Contains(t, body, service.MsgPasswordMismatch)
	require.Contains(t, body, `value="alice@example.com"`)
	require.NotContains(t, body, "Str0ngPass!23")

	empty, err := env.store.Users().IsEmpty(context.Background())
	require.NoError(t, err)
	require.True(t, empty)
}

func TestSignupDuplicateRejected(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, newClient(t), aliceForm())

	form := aliceForm()
	form.Set("username", "alice_02")
	_, body := env.signup(t, env.client, form)
	require.Contains(t, body, service.MsgEmailTaken)

	form = aliceForm()
	form.Set("email", "other@example.com")
	_, body = env.signup(t, env.client, form)
	require.Contains(t, body, service.MsgUsernameTaken)
}

func TestPostWithoutCSRFTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.client.PostForm(env.server.URL+"/signup/", aliceForm())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	empty, err := env.store.Users().IsEmpty(context.Background())
	require.NoError(t, err)
	require.True(t, empty)
}

func TestPagesRender(t *testing.T) {
	env := newTestEnv(t)

	mentor := aliceForm()
	mentor.Set("username", "mentor_1")
	mentor.Set("email", "mentor@example.com")
	mentor.Set("user_type", "MENTOR")
	env.signup(t, newClient(t), mentor)

	for path, want := range map[string]string{
		"/":               "Welcome to Campus Connect",
		"/about/":         "About Campus Connect",
		"/contact/":       "Contact",
		"/notifications/": "all caught up",
		"/mentors/":       "mentor@example.com",
		"/profile/":       "Guest",
	} {
		resp, body := env.get(t, env.client, path)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		require.Contains(t, body, want, path)
		require.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	}

	resp, _ := env.get(t, env.client, "/missing")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStaleSessionCookieIsCleared(t *testing.T) {
	env := newTestEnv(t)
	u, err := url.Parse(env.server.URL)
	require.NoError(t, err)
	env.client.Jar.SetCookies(u, []*http.Cookie{{Name: "campus_session", Value: "bogus", Path: "/"}})

	resp, body := env.get(t, env.client, "/profile/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "<h1>Guest</h1>")
	for _, ck := range env.client.Jar.Cookies(u) {
		require.NotEqual(t, "campus_session", ck.Name)
	}
}

func TestRateLimitOnLogin(t *testing.T) {
	env := newTestEnv(t, withLimits(campushttp.Limits{
		Strict:   httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Hour, Burst: 1},
		Moderate: campushttp.DefaultLimits().Moderate,
		Lenient:  httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000},
	}))

	resp, _ := env.login(t, env.client, "alice@example.com", "x")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.login(t, env.client, "alice@example.com", "x")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func postJSON(t *testing.T, target, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(string(raw)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Bootstrap-Token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestBootstrapEndpoint(t *testing.T) {
	admin := service.BootstrapInput{
		Email: "admin@school.edu", Username: "admin", Password: "Campus!Life42",
		FirstName: "Ada", LastName: "Admin",
	}

	disabled := newTestEnv(t)
	resp, _ := postJSON(t, disabled.server.URL+"/v1/bootstrap", "x", admin)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	env := newTestEnv(t, withBootstrapToken("boot"))
	endpoint := env.server.URL + "/v1/bootstrap"

	resp, _ = postJSON(t, endpoint, "", admin)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = postJSON(t, endpoint, "wrong", admin)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	weak := admin
	weak.Password = "123"
	resp, body := postJSON(t, endpoint, "boot", weak)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation_error", body["error"])
	require.Contains(t, body["fields"], domain.FieldPassword)

	resp, body = postJSON(t, endpoint, "boot", admin)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "admin@school.edu", body["email"])

	resp, _ = postJSON(t, endpoint, "boot", admin)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	loginResp, _ := env.login(t, env.client, "admin@school.edu", "Campus!Life42")
	require.Equal(t, http.StatusFound, loginResp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, env.client, "/livez")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `"status":"ok"`)

	resp, body = env.get(t, env.client, "/readyz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `"database":"ok"`)

	require.NoError(t, env.store.Close())
	resp, body = env.get(t, env.client, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Contains(t, body, `"status":"degraded"`)
}
