package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/identity"
	"github.com/MrEthical07/sessionauth/permission"
)

// Policy resolves the roles admitted for a request. ok=false means the route
// has no policy, which is a rejection.
type Policy func(r *http.Request) (set permission.RoleSet, ok bool)

// RoutePolicy maps gorilla/mux route names to the roles they admit.
type RoutePolicy map[string]permission.RoleSet

// Resolve looks up the matched route's name. Unnamed or unmatched routes
// have no policy.
func (p RoutePolicy) Resolve(r *http.Request) (permission.RoleSet, bool) {
	route := mux.CurrentRoute(r)
	if route == nil {
		return permission.RoleSet{}, false
	}
	name := route.GetName()
	if name == "" {
		return permission.RoleSet{}, false
	}
	set, ok := p[name]
	return set, ok
}

// StaticPolicy applies one role set to every request.
func StaticPolicy(set permission.RoleSet) Policy {
	return func(*http.Request) (permission.RoleSet, bool) {
		return set, true
	}
}

// Authorize admits requests whose identity role is in the resolved set. It
// fails closed with 403 when there is no identity in the context, no policy
// for the route, or the role is outside the set. Mount it after Authenticate.
func Authorize(policy Policy, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = WriteError
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, ok := identity.FromContext(r.Context())
			if !ok {
				onError(w, r, sessionauth.ErrForbidden)
				return
			}
			if policy == nil {
				onError(w, r, sessionauth.ErrForbidden)
				return
			}
			set, ok := policy(r)
			if !ok || !set.Admits(v.Role) {
				onError(w, r, sessionauth.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
