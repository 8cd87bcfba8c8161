package collaboration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/narissarah/wishcraft-sub004/pkg/activity"
	"github.com/narissarah/wishcraft-sub004/pkg/async"
	"github.com/narissarah/wishcraft-sub004/pkg/permissions"
	"github.com/narissarah/wishcraft-sub004/pkg/registry"
	"github.com/narissarah/wishcraft-sub004/pkg/webhooks"
)

const (
	minCollaborators = 1
	maxCollaborators = 50
	minExpiryDays    = 1
	maxExpiryDays    = 30

	notifyTimeout = 10 * time.Second
)

// Notifier dispatches a collaboration notification to the configured
// delivery sink. Implemented by webhooks.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, notification *webhooks.Notification) error
}

// CollaboratorStore is the collaborator persistence surface the manager
// drives. Implemented by Store.
type CollaboratorStore interface {
	CreateInvite(ctx context.Context, collab *registry.Collaborator) error
	Accept(ctx context.Context, collaboratorID, acceptorEmail string) (*registry.Collaborator, error)
	Decline(ctx context.Context, collaboratorID, declinerEmail string) (*registry.Collaborator, error)
	Remove(ctx context.Context, registryID int64, collaboratorID string) (*registry.Collaborator, error)
	ListByRegistry(ctx context.Context, registryID int64) ([]*registry.Collaborator, error)
	DeleteAllForRegistry(ctx context.Context, registryID int64) (int64, error)
	ExpirePending(ctx context.Context) (int64, error)
}

// RegistryStore is the registry lookup surface the manager drives.
// Implemented by registry.Store.
type RegistryStore interface {
	GetRegistry(ctx context.Context, shopID, id int64) (*registry.Registry, error)
	GetRegistryByID(ctx context.Context, id int64) (*registry.Registry, error)
	UpdateCollaboration(ctx context.Context, shopID, id int64, enabled bool, settings registry.CollaborationSettings) error
}

// InviteRequest carries the caller-supplied fields of an invitation.
type InviteRequest struct {
	Email      string                   `json:"email"`
	Role       registry.Role            `json:"role"`
	Permission registry.PermissionLevel `json:"permission"`
	Message    string                   `json:"message,omitempty"`
}

// Manager orchestrates the collaboration lifecycle: enable/disable,
// invite/accept/decline/remove, and expiry cleanup. Every state change writes
// an activity record as part of the operation (a failed audit write fails
// the operation) and dispatches a notification without awaiting delivery.
type Manager struct {
	registries RegistryStore
	store      CollaboratorStore
	resolver   *permissions.Resolver
	activities activity.Logger
	notifier   Notifier
}

// NewManager creates a collaboration manager. notifier may be nil when no
// delivery sink is configured.
func NewManager(registries RegistryStore, store CollaboratorStore, resolver *permissions.Resolver, activities activity.Logger, notifier Notifier) *Manager {
	return &Manager{
		registries: registries,
		store:      store,
		resolver:   resolver,
		activities: activities,
		notifier:   notifier,
	}
}

// ValidateSettings checks collaboration settings against their allowed
// ranges.
func ValidateSettings(settings registry.CollaborationSettings) error {
	if settings.MaxCollaborators < minCollaborators || settings.MaxCollaborators > maxCollaborators {
		return fmt.Errorf("%w: max_collaborators must be between %d and %d",
			ErrInvalidSettings, minCollaborators, maxCollaborators)
	}
	if settings.ExpireInvitesAfterDays < minExpiryDays || settings.ExpireInvitesAfterDays > maxExpiryDays {
		return fmt.Errorf("%w: expire_invites_after_days must be between %d and %d",
			ErrInvalidSettings, minExpiryDays, maxExpiryDays)
	}
	return nil
}

// EnableCollaboration turns collaboration on for a registry with the given
// settings.
func (m *Manager) EnableCollaboration(ctx context.Context, shopID, registryID int64, actorEmail string, settings registry.CollaborationSettings) error {
	reg, err := m.requireAdmin(ctx, shopID, registryID, actorEmail)
	if err != nil {
		return err
	}
	if err := ValidateSettings(settings); err != nil {
		return err
	}

	if err := m.registries.UpdateCollaboration(ctx, shopID, registryID, true, settings); err != nil {
		return err
	}

	return m.activities.Record(ctx, &activity.Record{
		ShopID:      shopID,
		RegistryID:  registryID,
		Actor:       permissions.NormalizeEmail(actorEmail),
		Action:      activity.ActionCollaborationEnabled,
		Description: fmt.Sprintf("enabled collaboration on %q", reg.Title),
		Metadata: map[string]any{
			"max_collaborators":         settings.MaxCollaborators,
			"expire_invites_after_days": settings.ExpireInvitesAfterDays,
		},
	})
}

// DisableCollaboration turns collaboration off and clears every collaborator
// record, active ones included.
func (m *Manager) DisableCollaboration(ctx context.Context, shopID, registryID int64, actorEmail string) error {
	reg, err := m.requireAdmin(ctx, shopID, registryID, actorEmail)
	if err != nil {
		return err
	}

	removed, err := m.store.DeleteAllForRegistry(ctx, registryID)
	if err != nil {
		return err
	}
	if err := m.registries.UpdateCollaboration(ctx, shopID, registryID, false, reg.Settings); err != nil {
		return err
	}
	m.resolver.InvalidateRegistry(registryID)

	if err := m.activities.Record(ctx, &activity.Record{
		ShopID:      shopID,
		RegistryID:  registryID,
		Actor:       permissions.NormalizeEmail(actorEmail),
		Action:      activity.ActionCollaborationDisabled,
		Description: fmt.Sprintf("disabled collaboration on %q", reg.Title),
		Metadata:    map[string]any{"collaborators_removed": removed},
	}); err != nil {
		return err
	}

	m.notify(ctx, &webhooks.Notification{
		Type:           webhooks.NotificationCollaborationDisabled,
		RecipientEmail: permissions.NormalizeEmail(reg.OwnerEmail),
		RegistryID:     registryID,
	})
	return nil
}

// InviteCollaborator creates a pending invitation. The count check and the
// insert run under a per-registry lock in the store, so concurrent invites
// cannot jointly exceed the configured maximum.
func (m *Manager) InviteCollaborator(ctx context.Context, shopID, registryID int64, actorEmail string, req InviteRequest) (*registry.Collaborator, error) {
	reg, err := m.requireAdmin(ctx, shopID, registryID, actorEmail)
	if err != nil {
		return nil, err
	}

	email := permissions.NormalizeEmail(req.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidSettings)
	}
	role := req.Role
	if role == "" {
		role = registry.RoleCollaborator
	}

	collab := &registry.Collaborator{
		ID:         uuid.NewString(),
		RegistryID: registryID,
		Email:      email,
		Role:       role,
		Permission: req.Permission,
		InvitedBy:  permissions.NormalizeEmail(actorEmail),
		Message:    req.Message,
	}
	if err := m.store.CreateInvite(ctx, collab); err != nil {
		return nil, err
	}
	m.resolver.Invalidate(registryID, email)

	if err := m.activities.Record(ctx, &activity.Record{
		ShopID:      shopID,
		RegistryID:  registryID,
		Actor:       permissions.NormalizeEmail(actorEmail),
		Action:      activity.ActionCollaboratorInvited,
		Description: fmt.Sprintf("invited %s to %q", email, reg.Title),
		Metadata: map[string]any{
			"collaborator_id": collab.ID,
			"permission":      collab.Permission.String(),
		},
	}); err != nil {
		return nil, err
	}

	m.notify(ctx, &webhooks.Notification{
		Type:           webhooks.NotificationCollaborationInvited,
		RecipientEmail: email,
		RegistryID:     registryID,
		CollaboratorID: collab.ID,
		Payload: map[string]string{
			"registry_title": reg.Title,
			"invited_by":     collab.InvitedBy,
			"message":        collab.Message,
			"accept_path":    fmt.Sprintf("/collaborate/accept/%s", collab.ID),
			"expires_at":     collab.ExpiresAt.Format(time.RFC3339),
		},
	})
	return collab, nil
}

// AcceptInvitation transitions a pending invitation to active. The acceptor
// email must match the invited email under the normalized comparison used at
// invite time.
func (m *Manager) AcceptInvitation(ctx context.Context, collaboratorID, acceptorEmail string) (*registry.Collaborator, error) {
	collab, err := m.store.Accept(ctx, collaboratorID, acceptorEmail)
	if err != nil {
		return nil, err
	}

	reg, err := m.registries.GetRegistryByID(ctx, collab.RegistryID)
	if err != nil {
		return nil, err
	}
	m.resolver.Invalidate(collab.RegistryID, collab.Email)

	if err := m.activities.Record(ctx, &activity.Record{
		ShopID:      reg.ShopID,
		RegistryID:  collab.RegistryID,
		Actor:       collab.Email,
		Action:      activity.ActionCollaboratorAccepted,
		Description: fmt.Sprintf("accepted invitation to %q", reg.Title),
		Metadata:    map[string]any{"collaborator_id": collab.ID},
	}); err != nil {
		return nil, err
	}

	m.notify(ctx, &webhooks.Notification{
		Type:           webhooks.NotificationCollaborationAccepted,
		RecipientEmail: permissions.NormalizeEmail(reg.OwnerEmail),
		RegistryID:     collab.RegistryID,
		CollaboratorID: collab.ID,
		Payload:        map[string]string{"collaborator_email": collab.Email},
	})
	return collab, nil
}

// DeclineInvitation transitions a pending invitation to declined.
func (m *Manager) DeclineInvitation(ctx context.Context, collaboratorID, declinerEmail string) error {
	collab, err := m.store.Decline(ctx, collaboratorID, declinerEmail)
	if err != nil {
		return err
	}

	reg, err := m.registries.GetRegistryByID(ctx, collab.RegistryID)
	if err != nil {
		return err
	}

	if err := m.activities.Record(ctx, &activity.Record{
		ShopID:      reg.ShopID,
		RegistryID:  collab.RegistryID,
		Actor:       collab.Email,
		Action:      activity.ActionCollaboratorDeclined,
		Description: fmt.Sprintf("declined invitation to %q", reg.Title),
		Metadata:    map[string]any{"collaborator_id": collab.ID},
	}); err != nil {
		return err
	}

	m.notify(ctx, &webhooks.Notification{
		Type:           webhooks.NotificationCollaborationDeclined,
		RecipientEmail: permissions.NormalizeEmail(reg.OwnerEmail),
		RegistryID:     collab.RegistryID,
		CollaboratorID: collab.ID,
	})
	return nil
}

// RemoveCollaborator revokes an active collaborator or withdraws a pending
// invitation. The actor's Admin permission is re-resolved here rather than
// trusted from the transport layer.
func (m *Manager) RemoveCollaborator(ctx context.Context, shopID, registryID int64, actorEmail, collaboratorID string) error {
	reg, err := m.requireAdmin(ctx, shopID, registryID, actorEmail)
	if err != nil {
		return err
	}

	collab, err := m.store.Remove(ctx, registryID, collaboratorID)
	if err != nil {
		return err
	}
	m.resolver.Invalidate(registryID, collab.Email)

	if err := m.activities.Record(ctx, &activity.Record{
		ShopID:      shopID,
		RegistryID:  registryID,
		Actor:       permissions.NormalizeEmail(actorEmail),
		Action:      activity.ActionCollaboratorRemoved,
		Description: fmt.Sprintf("removed %s from %q", collab.Email, reg.Title),
		Metadata: map[string]any{
			"collaborator_id": collab.ID,
			"was_status":      string(collab.Status),
		},
	}); err != nil {
		return err
	}

	m.notify(ctx, &webhooks.Notification{
		Type:           webhooks.NotificationCollaborationRemoved,
		RecipientEmail: collab.Email,
		RegistryID:     registryID,
		CollaboratorID: collab.ID,
	})
	return nil
}

// ListCollaborators returns a registry's collaborator records. Requires
// read access.
func (m *Manager) ListCollaborators(ctx context.Context, shopID, registryID int64, actorEmail string) ([]*registry.Collaborator, error) {
	reg, err := m.registries.GetRegistry(ctx, shopID, registryID)
	if err != nil {
		return nil, err
	}
	ok, err := m.resolver.HasPermission(ctx, actorEmail, reg, registry.PermissionReadOnly)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotPermitted
	}
	return m.store.ListByRegistry(ctx, registryID)
}

// CleanupExpiredInvitations marks pending invitations past expiry as expired
// and records a system activity entry when anything changed. Safe to run
// repeatedly.
func (m *Manager) CleanupExpiredInvitations(ctx context.Context) (int64, error) {
	expired, err := m.store.ExpirePending(ctx)
	if err != nil {
		return 0, err
	}
	if expired == 0 {
		return 0, nil
	}

	err = m.activities.Record(ctx, &activity.Record{
		Actor:       "system",
		Action:      activity.ActionInvitationsExpired,
		Description: fmt.Sprintf("expired %d pending invitations", expired),
		Metadata:    map[string]any{"count": expired},
		IsSystem:    true,
	})
	if err != nil {
		return expired, err
	}
	return expired, nil
}

// ListActivity returns the audit trail for a registry. Requires read access.
func (m *Manager) ListActivity(ctx context.Context, shopID, registryID int64, actorEmail string, limit int) ([]*activity.Record, error) {
	reg, err := m.registries.GetRegistry(ctx, shopID, registryID)
	if err != nil {
		return nil, err
	}
	ok, err := m.resolver.HasPermission(ctx, actorEmail, reg, registry.PermissionReadOnly)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotPermitted
	}
	return m.activities.List(ctx, shopID, activity.Filter{RegistryID: registryID, Limit: limit})
}

func (m *Manager) requireAdmin(ctx context.Context, shopID, registryID int64, actorEmail string) (*registry.Registry, error) {
	reg, err := m.registries.GetRegistry(ctx, shopID, registryID)
	if err != nil {
		return nil, err
	}
	ok, err := m.resolver.HasPermission(ctx, actorEmail, reg, registry.PermissionAdmin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotPermitted
	}
	return reg, nil
}

// notify dispatches fire-and-forget: delivery failures are retried by the
// dispatcher and never fail the originating operation.
func (m *Manager) notify(ctx context.Context, notification *webhooks.Notification) {
	if m.notifier == nil {
		return
	}
	async.SafeGo(context.WithoutCancel(ctx), notifyTimeout, "collaboration notification",
		func(ctx context.Context) error {
			return m.notifier.Dispatch(ctx, notification)
		})
}
