package http

import (
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/campus/internal/campus/service"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

type PagesHandler struct {
	Users *service.UserService
	views *views
}

// static renders a page that needs nothing beyond the common data.
func (h *PagesHandler) static(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.views.render(w, r, name, http.StatusOK, newPageData(r))
	}
}

func (h *PagesHandler) Mentors(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r)
	mentors, err := h.Users.ListMentors(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to list mentors", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	data.Mentors = mentors
	h.views.render(w, r, "mentors", http.StatusOK, data)
}
