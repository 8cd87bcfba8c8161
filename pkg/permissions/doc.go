// Package permissions decides what an actor may do to a registry.
//
// The only authorization inputs are the registry's owner identity and the
// server-stored permission level of an active collaborator record. Role
// labels, session claims, and anything else the client asserts are ignored;
// unknown or missing records resolve to None.
package permissions
