// Package permission defines the closed role enum and the role sets used by
// route authorization.
//
// # Roles
//
// [Role] is a closed enum of the eight user roles. Wire names are the upper
// snake case strings (ROOT, GENERAL_MANAGER, ...); [ParseRole] is the only way
// a string becomes a Role.
//
// # Role sets
//
// [RoleSet] is a [Mask64] with one bit per role. The highest bit is reserved as
// the any-role sentinel returned by [AnyRole]; a mask with that bit set admits
// every valid role.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import sessionauth, session, or middleware.
package permission
