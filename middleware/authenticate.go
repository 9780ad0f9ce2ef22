package middleware

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/identity"
	"github.com/MrEthical07/sessionauth/internal/respond"
	"github.com/MrEthical07/sessionauth/session"
)

// ErrorWriter renders a rejection. err is one of the sessionauth sentinels,
// possibly joined with a backend cause that must not reach the client.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// WriteError is the default ErrorWriter: a JSON envelope with the status and
// message from sessionauth.HTTPStatus.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	status, msg := sessionauth.HTTPStatus(err)
	respond.Error(w, status, msg)
}

// Authenticate admits requests that carry a live session and stores the
// session's identity view in the request context. Requests without one get
// 401; a session store failure gets 500.
//
// Reading the session slides its idle timeout; the middleware itself never
// writes to the session.
func Authenticate(store *session.Store, manager *session.Manager, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = WriteError
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || manager == nil {
				onError(w, r, sessionauth.ErrEngineNotReady)
				return
			}

			h := store.Load(w, r)
			v, ok, err := manager.CurrentUser(r.Context(), h)
			if err != nil {
				onError(w, r, errors.Join(sessionauth.ErrUnavailable, err))
				return
			}
			if !ok {
				onError(w, r, sessionauth.ErrUnauthenticated)
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.NewContext(r.Context(), v)))
		})
	}
}
