package collaboration

import "errors"

var (
	// ErrCollaborationDisabled is returned when inviting to a registry that
	// has not enabled collaboration.
	ErrCollaborationDisabled = errors.New("collaboration is not enabled for this registry")

	// ErrLimitReached is returned when an invite would push the combined
	// active and pending collaborator count past the registry's maximum.
	ErrLimitReached = errors.New("collaborator limit reached")

	// ErrAlreadyCollaborator is returned when the email already has a pending
	// or active record on the registry.
	ErrAlreadyCollaborator = errors.New("email is already a collaborator")

	// ErrInvitationNotFound is returned when no pending invitation matches
	// the given collaborator ID.
	ErrInvitationNotFound = errors.New("invitation not found")

	// ErrEmailMismatch is returned when the acceptor's email does not match
	// the invited email.
	ErrEmailMismatch = errors.New("invitation was issued to a different email")

	// ErrInvitationExpired is returned when accepting past the expiry
	// timestamp.
	ErrInvitationExpired = errors.New("invitation has expired")

	// ErrCollaboratorNotFound is returned when removing or reading a
	// collaborator that does not exist on the registry.
	ErrCollaboratorNotFound = errors.New("collaborator not found")

	// ErrNotPermitted is returned when the acting user's resolved permission
	// does not cover the operation.
	ErrNotPermitted = errors.New("operation not permitted")

	// ErrInvalidSettings is returned for out-of-range collaboration settings.
	ErrInvalidSettings = errors.New("invalid collaboration settings")
)
