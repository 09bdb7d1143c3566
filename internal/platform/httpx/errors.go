// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/helixhealth/helix-portal/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Messages come from the shared sentinels only; wrapped detail (file
// paths, upstream bodies, driver errors) stays in the server logs.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", shared.ErrValidation.Error())
	case errors.Is(err, shared.ErrAuth):
		Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrAuth.Error())
	case errors.Is(err, shared.ErrAccessDenied):
		Problem(w, http.StatusForbidden, "Forbidden", shared.ErrAccessDenied.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.ErrNotFound.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", shared.ErrConflict.Error())
	case errors.Is(err, shared.ErrToken):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Token", shared.ErrToken.Error())
	case errors.Is(err, shared.ErrRateLimited):
		Problem(w, http.StatusTooManyRequests, "Too Many Requests", shared.ErrRateLimited.Error())
	case errors.Is(err, shared.ErrPayment):
		Problem(w, http.StatusBadGateway, "Payment Failed", shared.ErrPayment.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
