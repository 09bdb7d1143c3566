package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/helixhealth/helix-portal/internal/session"
	"github.com/helixhealth/helix-portal/internal/shared"
)

func TestRequireSession(t *testing.T) {
	issuer, err := session.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	var seenUser string
	handler := RequireSession(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = shared.UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token", func(t *testing.T) {
		credential, err := issuer.Issue("user-42")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/users/user-42", nil)
		req.Header.Set("Authorization", "Bearer "+credential)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusNoContent, rr.Code)
		require.Equal(t, "user-42", seenUser)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/user-42", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/user-42", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/user-42", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestValidateBaseURL(t *testing.T) {
	require.NoError(t, validateBaseURL("https://portal.helixhealth.example"))
	require.Error(t, validateBaseURL("http://portal.helixhealth.example"), "plain http rejected")
	require.Error(t, validateBaseURL("https://portal.helixhealth.example/"), "trailing slash rejected")
	require.Error(t, validateBaseURL("portal.helixhealth.example"), "missing scheme rejected")
}
