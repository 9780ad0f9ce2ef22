// Package flows contains pure-function orchestrators for the Engine's login
// and registration operations.
//
// Each flow function (RunLogin, RunRegister) accepts a typed dependency struct
// of function fields and returns results without side-effects beyond those
// dependencies. Tests drive the flows with plain closures.
//
// # Architecture boundaries
//
// Flow functions coordinate the user provider, password hasher, login
// throttle, audit dispatcher, and metrics. They do NOT own any of these
// resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import sessionauth (to avoid import cycles).
//   - Touch sessions or cookies. Establishing a session is the caller's job.
package flows
