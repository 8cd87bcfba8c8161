// Package registry holds the tenant and registry data model shared by the
// collaboration, permission, and API layers.
//
// A Shop is the tenant boundary; every query is scoped by shop ID so a
// registry outside the caller's shop behaves exactly like a missing one.
// PermissionLevel is a closed, totally ordered enum; unknown wire values
// parse to None rather than failing open.
package registry
