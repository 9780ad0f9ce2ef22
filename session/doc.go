// Package session provides the Redis-backed session store, the cookie-bound
// request [Handle], and the [Manager] that binds identity views to sessions.
//
// # Storage layout
//
// Each session is a Redis hash at "<prefix>:<token>" with two fields: "user"
// holds the encoded [identity.View] and "created" the login time in unix
// seconds. The key TTL implements the idle timeout; "created" enforces the
// absolute max age on every read.
//
// # Binary encoding
//
// The user payload is a compact versioned binary format (see [Encode]).
// Decoding failures are reported as [ErrCorruptPayload] and the Manager treats
// them as "no session".
//
// # Tokens
//
// Tokens are 32 random bytes, base64url encoded. They are issued only by the
// store and rotated on every login.
//
// # What this package must NOT do
//
//   - Import sessionauth or middleware (no upward imports).
//   - Make authorization decisions.
//   - Store password hashes or other secrets in session state.
package session
