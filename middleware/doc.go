// Package middleware exposes the HTTP authentication and authorization
// middleware for session-backed routes.
//
// # Middleware
//
//   - [Authenticate] loads the session cookie, resolves the current user, and
//     places the identity view in the request context.
//   - [Authorize] checks the identity's role against the route's [Policy].
//     [RoutePolicy] keys policies by gorilla/mux route name.
//
// Mount Authenticate before Authorize. Both render rejections through an
// [ErrorWriter]; nil selects [WriteError].
//
// # What this package must NOT do
//
//   - Mutate sessions. Idle-timeout sliding belongs to the session store.
//   - Admit a request when the route has no policy.
//   - Leak backend error detail to the client.
package middleware
