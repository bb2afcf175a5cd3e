//go:build e2e

package campus_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func postBootstrap(t *testing.T, campus *campusApp, token string, body map[string]string) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, campus.baseURL+"/v1/bootstrap", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Bootstrap-Token", token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestBootstrapOnce(t *testing.T) {
	campus := setupCampus(t)
	admin := map[string]string{
		"email":    "admin@school.edu",
		"username": "admin",
		"password": "Campus!Life42",
	}

	resp := postBootstrap(t, campus, "wrong", admin)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postBootstrap(t, campus, bootstrapToken, admin)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.UserID)
	require.Equal(t, "admin@school.edu", created.Email)

	resp = postBootstrap(t, campus, bootstrapToken, admin)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	campus := setupCampus(t)

	for _, path := range []string{"/livez", "/readyz"} {
		resp, err := http.Get(campus.baseURL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
