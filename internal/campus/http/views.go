package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/campus/internal/campus/domain"
	"github.com/aussiebroadwan/campus/pkg/csrfx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

//go:embed templates/*.html
var templateFS embed.FS

const guestName = "Guest"

var pageNames = []string{
	"home", "profile", "mentors", "about", "contact", "notifications", "signup", "login",
}

// formValues echoes submitted fields back into a re-rendered form. Passwords
// are never echoed.
type formValues struct {
	Username string
	Email    string
	Role     string
}

type pageData struct {
	User           *domain.User
	DisplayName    string
	CSRFToken      string
	Form           formValues
	Errors         domain.FieldErrors
	NonFieldErrors []string
	Roles          []domain.Role
	Mentors        []domain.User
	Next           string
}

type views struct {
	pages map[string]*template.Template
}

func loadViews() (*views, error) {
	v := &views{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

func mustLoadViews() *views {
	v, err := loadViews()
	if err != nil {
		panic(err)
	}
	return v
}

// newPageData fills the fields every page needs from the request context.
func newPageData(r *http.Request) pageData {
	d := pageData{
		DisplayName: guestName,
		CSRFToken:   csrfx.Token(r.Context()),
	}
	if u, ok := userFromContext(r.Context()); ok {
		d.User = &u
		d.DisplayName = u.FullName()
	}
	return d
}

func (v *views) render(w http.ResponseWriter, r *http.Request, name string, status int, data pageData) {
	t, ok := v.pages[name]
	if !ok {
		slogx.FromContext(r.Context()).Error("unknown template", slog.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		slogx.FromContext(r.Context()).Error("failed to render template", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
