// Package sessionauth provides session-backed authentication for a user
// service: Argon2id credential checks, registration, and opaque session
// tokens kept in Redis and carried in an HttpOnly cookie.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// sessionauth is the public surface. It exposes [Engine], [Builder], [Config],
// the [UserProvider] seam, and the error taxonomy with [HTTPStatus]. Flow
// orchestration, rate limiting, and audit dispatch live under internal/.
// Session storage is in the session package; role checks are in permission
// and middleware.
//
// # What this package must NOT do
//
//   - Log or return password hashes, plaintext passwords, or session tokens.
//   - Distinguish an unknown email from a wrong password in any error or
//     response.
//   - Import any sub-package that re-imports sessionauth (no import cycles).
package sessionauth
