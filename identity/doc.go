// Package identity holds the user identity shapes shared by the session layer,
// the middleware, and the user store: the stored [Record], the credential-free
// [View], and the request-scoped context helpers.
//
// A View never carries a password hash. Records convert to views with
// [Record.View]; nothing converts the other way.
package identity
