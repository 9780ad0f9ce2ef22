package sessionauth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/sessionauth/identity"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is the single error for an unknown email, a wrong
	// password, or (by default) an account that may not log in.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated means the request carries no live session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrUnauthorized is a generic 401.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrAccountInactive is returned instead of ErrInvalidCredentials when
	// Security.DiscloseInactiveAccounts is set.
	ErrAccountInactive = fmt.Errorf("%w: account is not active", ErrUnauthorized)
	ErrForbidden       = errors.New("insufficient permissions")
	ErrNotFound        = errors.New("resource not found")
	ErrConflict        = errors.New("a user with this email already exists")
	// ErrLoginRateLimited is returned while the login throttle budget is spent.
	ErrLoginRateLimited = errors.New("too many login attempts")
	// ErrUnavailable wraps failures of the user provider or session store.
	ErrUnavailable = errors.New("backend unavailable")
	ErrInternal    = errors.New("internal error")
	// ErrEngineNotReady is returned by a zero or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ValidationError reports one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Field == "" {
		return ErrValidation.Error()
	}
	return e.Field + " is invalid"
}

// Is makes errors.Is(err, ErrValidation) true for any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// HTTPStatus maps err to a response status and the message safe to show a
// client. Unknown errors are 500 with a generic message.
func HTTPStatus(err error) (int, string) {
	var verr *ValidationError

	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrInvalidCredentials.Error()
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, ErrUnauthenticated.Error()
	case errors.Is(err, ErrAccountInactive):
		return http.StatusUnauthorized, "account is not active"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, ErrUnauthorized.Error()
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, ErrForbidden.Error()
	case errors.Is(err, ErrNotFound), errors.Is(err, identity.ErrNotFound):
		return http.StatusNotFound, ErrNotFound.Error()
	case errors.Is(err, ErrConflict), errors.Is(err, identity.ErrDuplicateEmail):
		return http.StatusConflict, ErrConflict.Error()
	case errors.Is(err, ErrLoginRateLimited):
		return http.StatusTooManyRequests, ErrLoginRateLimited.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
