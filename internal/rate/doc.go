// Package rate provides the Redis-backed failed-login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - al:  failed logins per email (lower-cased)
//   - ali: failed logins per client IP
//
// A budget of N allows N failed attempts; the (N+1)th check is refused until
// the window expires.
//
// # What this package must NOT do
//
//   - Decide what counts as a failed attempt (the login flow does).
//   - Be imported outside the sessionauth module.
package rate
