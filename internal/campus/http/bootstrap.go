package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/campus/internal/campus/domain"
	"github.com/aussiebroadwan/campus/internal/campus/service"
	"github.com/aussiebroadwan/campus/pkg/httpx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

type BootstrapResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type ValidationErrorResponse struct {
	Error            string              `json:"error"`
	ErrorDescription string              `json:"error_description"`
	Fields           map[string][]string `json:"fields"`
}

type BootstrapHandler struct {
	BootstrapService *service.BootstrapService
}

func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())

	if !h.BootstrapService.Enabled() {
		httpx.WriteJSON(w, http.StatusNotFound, httpx.ErrorResponse{
			Error:            "not_found",
			ErrorDescription: "Bootstrap endpoint is not enabled",
		})
		return
	}

	token := r.Header.Get("X-Bootstrap-Token")
	if token == "" {
		httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorResponse{
			Error:            "unauthorized",
			ErrorDescription: "Bootstrap token is required in X-Bootstrap-Token header",
		})
		return
	}

	var req service.BootstrapInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Request body must be valid JSON",
		})
		return
	}

	admin, err := h.BootstrapService.Bootstrap(r.Context(), token, req)
	if err != nil {
		var fe domain.FieldErrors
		switch {
		case errors.As(err, &fe):
			httpx.WriteJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:            "validation_error",
				ErrorDescription: "validation failed for some fields",
				Fields:           fe,
			})
		case errors.Is(err, service.ErrBootstrapUnauthorized):
			httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorResponse{
				Error:            "unauthorized",
				ErrorDescription: "Invalid bootstrap token",
			})
		case errors.Is(err, service.ErrBootstrapAlready):
			httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorResponse{
				Error:            "unauthorized",
				ErrorDescription: "System has already been bootstrapped",
			})
		default:
			l.Error("bootstrap failed", "error", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, httpx.ErrorResponse{
				Error:            "server_error",
				ErrorDescription: "An internal error occurred",
			})
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, BootstrapResponse{
		UserID:   admin.ID,
		Email:    admin.Email,
		Username: admin.Username,
	})
}
