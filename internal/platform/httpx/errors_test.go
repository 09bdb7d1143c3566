package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helixhealth/helix-portal/internal/shared"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{shared.ErrValidation, http.StatusBadRequest},
		{shared.ErrAuth, http.StatusUnauthorized},
		{shared.ErrAccessDenied, http.StatusForbidden},
		{shared.ErrNotFound, http.StatusNotFound},
		{shared.ErrConflict, http.StatusConflict},
		{shared.ErrToken, http.StatusUnprocessableEntity},
		{shared.ErrRateLimited, http.StatusTooManyRequests},
		{shared.ErrPayment, http.StatusBadGateway},
		{errors.New("pg: connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, fmt.Errorf("handler: %w", tc.err))
		require.Equal(t, tc.code, rr.Code, "error %v", tc.err)
		require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("open /var/data/invoices/../secret: permission denied"))

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.NotContains(t, problem.Title, "/var/data")
	require.NotContains(t, problem.Detail, "/var/data")
}
