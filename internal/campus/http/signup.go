package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/campus/internal/campus/domain"
	"github.com/aussiebroadwan/campus/internal/campus/service"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

type SignupHandler struct {
	Registration *service.RegistrationService
	Sessions     *service.SessionService
	cookies      sessionCookies
	views        *views
}

func (h *SignupHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r)
	data.Roles = domain.Roles
	data.Form.Role = string(domain.RoleStudent)
	h.views.render(w, r, "signup", http.StatusOK, data)
}

func (h *SignupHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())

	in := service.SignupInput{
		Username:        r.PostFormValue(domain.FieldUsername),
		Email:           r.PostFormValue(domain.FieldEmail),
		Password:        r.PostFormValue(domain.FieldPassword),
		ConfirmPassword: r.PostFormValue(domain.FieldConfirmPassword),
		Role:            r.PostFormValue(domain.FieldRole),
	}

	user, issued, err := h.Registration.Register(r.Context(), in)
	if err != nil {
		var fe domain.FieldErrors
		if !errors.As(err, &fe) {
			l.Error("signup failed", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		l.Info("signup rejected", slog.Any("fields", fe))
		data := newPageData(r)
		data.Roles = domain.Roles
		data.Errors = fe
		data.Form = formValues{Username: in.Username, Email: in.Email, Role: in.Role}
		h.views.render(w, r, "signup", http.StatusOK, data)
		return
	}

	// the new session replaces whatever the browser held before
	if prev := sessionToken(r); prev != "" {
		if err := h.Sessions.Logout(r.Context(), prev); err != nil {
			l.Warn("failed to drop previous session", slog.Any("error", err))
		}
	}

	h.cookies.set(w, issued.Token, issued.Session.ExpiresAt)
	l.Info("signup complete", slog.String("user_id", user.ID))
	http.Redirect(w, r, "/", http.StatusFound)
}
