package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/campus/internal/campus/domain"
	"github.com/aussiebroadwan/campus/internal/campus/service"
	"github.com/aussiebroadwan/campus/pkg/httpx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

const sessionCookieName = "campus_session"

type userCtxKey struct{}

func withUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

func userFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(domain.User)
	return u, ok
}

// sessionCookies writes and clears the browser half of a session.
type sessionCookies struct {
	Secure bool
}

func (c sessionCookies) set(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   max(int(time.Until(expires).Seconds()), 1),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c sessionCookies) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// authenticate resolves the session cookie into a user on the request
// context. Requests without a valid session continue anonymously and a stale
// cookie is cleared.
func authenticate(sessions *service.SessionService, cookies sessionCookies) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, sess, err := sessions.Resolve(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrNoSession) {
					cookies.clear(w)
				} else {
					slogx.FromContext(r.Context()).Error("failed to resolve session", slog.Any("error", err))
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := withUser(r.Context(), user)
			ctx = httpx.WithUserID(ctx, user.ID)
			ctx = slogx.With(ctx, slog.String("user_id", user.ID), slog.String("session_id", sess.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
