package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/campus/internal/campus/domain"
	"github.com/aussiebroadwan/campus/internal/campus/service"
	"github.com/aussiebroadwan/campus/internal/campus/store"
	"github.com/aussiebroadwan/campus/pkg/csrfx"
	"github.com/aussiebroadwan/campus/pkg/httpx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

// Limits are the rate limit profiles applied per route class.
type Limits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Lenient  httpx.RateLimitConfig
}

// DefaultLimits reads the httpx profiles, including env overrides.
func DefaultLimits() Limits {
	return Limits{
		Strict:   httpx.StrictLimit,
		Moderate: httpx.ModerateLimit,
		Lenient:  httpx.LenientLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	Limits Limits

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	csrf         *csrfx.Protector
	cookies      sessionCookies
	views        *views

	RegistrationService *service.RegistrationService
	SessionService      *service.SessionService
	UserService         *service.UserService
	BootstrapService    *service.BootstrapService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	csrf *csrfx.Protector,
	secureCookies bool,
	logger *slog.Logger,
) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		Limits:       DefaultLimits(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		csrf:         csrf,
		cookies:      sessionCookies{Secure: secureCookies},
		views:        mustLoadViews(),
	}
}

// ApplyRoutes registers every route. Services must be set beforehand.
func (r *Router) ApplyRoutes() {
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		authenticate(r.SessionService, r.cookies),
	}

	r.registerAuth()
	r.registerPages()
	r.registerSystem()
	r.registerBootstrap()
}

// ServeHTTP applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// form wraps an HTML form handler with CSRF protection and a rate limit.
func (r *Router) form(h http.HandlerFunc, limit httpx.Middleware) http.Handler {
	return httpx.Chain(h, r.csrf.Middleware, limit)
}

func (r *Router) registerAuth() {
	signup := &SignupHandler{
		Registration: r.RegistrationService,
		Sessions:     r.SessionService,
		cookies:      r.cookies,
		views:        r.views,
	}
	login := &LoginHandler{Sessions: r.SessionService, cookies: r.cookies, views: r.views}
	logout := &LogoutHandler{Sessions: r.SessionService, cookies: r.cookies}

	r.Mux.Handle("GET /signup/", r.form(signup.HandleGet, httpx.RateLimitByIP(r.Limits.Lenient)))
	r.Mux.Handle("POST /signup/", r.form(signup.HandlePost, httpx.RateLimitByIP(r.Limits.Strict)))

	r.Mux.Handle("GET /login/", r.form(login.HandleGet, httpx.RateLimitByIP(r.Limits.Lenient)))
	// keyed by IP and the email being tried
	r.Mux.Handle("POST /login/", r.form(login.HandlePost, httpx.RateLimitByIPAndFormField(r.Limits.Strict, domain.FieldEmail)))

	r.Mux.Handle("GET /logout/", httpx.Chain(logout, httpx.RateLimitByUser(r.Limits.Moderate)))
	r.Mux.Handle("POST /logout/", r.form(logout.ServeHTTP, httpx.RateLimitByUser(r.Limits.Moderate)))
}

func (r *Router) registerPages() {
	h := &PagesHandler{Users: r.UserService, views: r.views}

	page := func(handler http.HandlerFunc) http.Handler {
		return r.form(handler, httpx.RateLimitByIP(r.Limits.Lenient))
	}

	r.Mux.Handle("GET /{$}", page(h.static("home")))
	r.Mux.Handle("GET /profile/", page(h.static("profile")))
	r.Mux.Handle("GET /mentors/", page(h.Mentors))
	r.Mux.Handle("GET /about/", page(h.static("about")))
	r.Mux.Handle("GET /contact/", page(h.static("contact")))
	r.Mux.Handle("GET /notifications/", page(h.static("notifications")))
}

func (r *Router) registerBootstrap() {
	h := &BootstrapHandler{BootstrapService: r.BootstrapService}
	r.Mux.Handle("POST /v1/bootstrap", httpx.Chain(h, httpx.RateLimitByIP(r.Limits.Strict)))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion), httpx.RateLimitByIP(r.Limits.Lenient)),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store), httpx.RateLimitByIP(r.Limits.Lenient)),
	)
}
