// Package collaboration orchestrates shared access to gift registries:
// enabling and disabling collaboration, inviting collaborators, accepting or
// declining invitations, removal, and expiry cleanup.
//
// Invariants the package enforces:
//
//   - The combined active and pending collaborator count never exceeds the
//     registry's configured maximum. The count check and insert run inside a
//     transaction that locks the registry row, so concurrent invites
//     serialize.
//   - Collaborator emails are stored encrypted; lookups use a digest column.
//     Email comparison is normalized to lower case at both invite and accept.
//   - Active collaborators are never hard-deleted by removal; they become
//     revoked. Pending invitations are deleted on withdrawal and marked
//     expired by cleanup.
//   - Every state change appends an activity record in the same logical
//     operation. Notifications are dispatched fire-and-forget and never fail
//     the operation.
package collaboration
