package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/campus/internal/campus/domain"
	"github.com/aussiebroadwan/campus/internal/campus/service"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

const msgInvalidLogin = "Please enter a correct email and password. Note that both fields may be case-sensitive."

type LoginHandler struct {
	Sessions *service.SessionService
	cookies  sessionCookies
	views    *views
}

func (h *LoginHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r)
	data.Next = safeNext(r.URL.Query().Get("next"))
	h.views.render(w, r, "login", http.StatusOK, data)
}

func (h *LoginHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())

	email := strings.TrimSpace(r.PostFormValue(domain.FieldEmail))
	password := r.PostFormValue(domain.FieldPassword)
	next := safeNext(r.PostFormValue("next"))

	data := newPageData(r)
	data.Next = next
	data.Form.Email = email

	fe := domain.FieldErrors{}
	if email == "" {
		fe.Add(domain.FieldEmail, service.MsgRequired)
	}
	if password == "" {
		fe.Add(domain.FieldPassword, service.MsgRequired)
	}
	if !fe.Empty() {
		data.Errors = fe
		h.views.render(w, r, "login", http.StatusOK, data)
		return
	}

	_, issued, err := h.Sessions.Login(r.Context(), email, password, sessionToken(r))
	if err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) {
			l.Error("login failed", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		data.NonFieldErrors = []string{msgInvalidLogin}
		h.views.render(w, r, "login", http.StatusOK, data)
		return
	}

	h.cookies.set(w, issued.Token, issued.Session.ExpiresAt)
	if next == "" {
		next = "/"
	}
	http.Redirect(w, r, next, http.StatusFound)
}

// safeNext keeps only same-site relative paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return next
}

type LogoutHandler struct {
	Sessions *service.SessionService
	cookies  sessionCookies
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Logout(r.Context(), sessionToken(r)); err != nil {
		slogx.FromContext(r.Context()).Error("logout failed", slog.Any("error", err))
	}
	h.cookies.clear(w)
	http.Redirect(w, r, "/login/", http.StatusFound)
}
