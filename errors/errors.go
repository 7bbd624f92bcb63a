package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated    = fmt.Errorf("unauthenticated")
	ErrUnauthorized       = fmt.Errorf("unauthorized")
	ErrInvalidTransition  = fmt.Errorf("invalid workflow transition")
	ErrStaleState         = fmt.Errorf("stale post state, refetch and retry")
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrNotFound           = fmt.Errorf("not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrHubClosed          = fmt.Errorf("hub is shutting down")
	ErrDeliveryDegraded   = fmt.Errorf("delivery degraded")
)

// MapToStatusCode translates a domain error into an HTTP status code.
// Unknown errors are treated as internal failures so that storage or
// infrastructure details never leak to the client.
func MapToStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, ErrStaleState),
		errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrHubClosed),
		errors.Is(err, ErrDeliveryDegraded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
