// Package activity is the append-only audit log of collaboration actions.
//
// Every state-changing operation in the collaboration manager writes a
// Record as part of the same logical operation; if the append fails, the
// operation fails. Records are never mutated or deleted here; retention is
// owned by an external process.
package activity
