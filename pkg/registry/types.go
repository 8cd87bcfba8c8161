package registry

import (
	"encoding/json"
	"fmt"
	"time"
)

// PermissionLevel is the authority an actor holds over a registry. Levels
// form a total order: None < ReadOnly < ReadWrite < Admin.
type PermissionLevel int

const (
	PermissionNone PermissionLevel = iota
	PermissionReadOnly
	PermissionReadWrite
	PermissionAdmin
)

var permissionNames = map[PermissionLevel]string{
	PermissionNone:      "none",
	PermissionReadOnly:  "read_only",
	PermissionReadWrite: "read_write",
	PermissionAdmin:     "admin",
}

// String returns the wire name of the level.
func (l PermissionLevel) String() string {
	if name, ok := permissionNames[l]; ok {
		return name
	}
	return "none"
}

// ParsePermissionLevel maps a wire name to a level. Unknown names map to
// PermissionNone so a malformed or hostile value never grants access.
func ParsePermissionLevel(s string) PermissionLevel {
	for level, name := range permissionNames {
		if name == s {
			return level
		}
	}
	return PermissionNone
}

// AtLeast reports whether l satisfies required under the total order.
func (l PermissionLevel) AtLeast(required PermissionLevel) bool {
	return l >= required
}

// MarshalJSON encodes the level as its wire name.
func (l PermissionLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a wire name, defaulting unknown values to None.
func (l *PermissionLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("registry: invalid permission level: %w", err)
	}
	*l = ParsePermissionLevel(s)
	return nil
}

// Role is the descriptive label attached to a collaborator record. Roles are
// presentation only: authorization always comes from the stored
// PermissionLevel, never from a role claim.
type Role string

const (
	RoleOwner        Role = "owner"
	RoleCollaborator Role = "collaborator"
	RoleViewer       Role = "viewer"
)

// CollaboratorStatus tracks a collaborator through its lifecycle.
type CollaboratorStatus string

const (
	StatusPending  CollaboratorStatus = "pending"
	StatusActive   CollaboratorStatus = "active"
	StatusDeclined CollaboratorStatus = "declined"
	StatusExpired  CollaboratorStatus = "expired"
	StatusRevoked  CollaboratorStatus = "revoked"
)

// Shop is the tenant boundary. Every registry, collaborator, and activity
// record is scoped to exactly one shop; cross-shop access is always denied.
type Shop struct {
	ID          int64     `json:"id"`
	Domain      string    `json:"domain"`
	Installed   bool      `json:"installed"`
	InstalledAt time.Time `json:"installed_at"`
}

// CollaborationSettings governs invitations for one registry.
type CollaborationSettings struct {
	MaxCollaborators       int  `json:"max_collaborators"`
	RequireApproval        bool `json:"require_approval"`
	ExpireInvitesAfterDays int  `json:"expire_invites_after_days"`
}

// DefaultCollaborationSettings returns the settings applied when a registry
// enables collaboration without overrides.
func DefaultCollaborationSettings() CollaborationSettings {
	return CollaborationSettings{
		MaxCollaborators:       10,
		RequireApproval:        false,
		ExpireInvitesAfterDays: 7,
	}
}

// Registry is an owned resource with a bounded set of collaborators.
type Registry struct {
	ID                   int64                 `json:"id"`
	ShopID               int64                 `json:"shop_id"`
	Title                string                `json:"title"`
	OwnerEmail           string                `json:"owner_email"`
	CollaborationEnabled bool                  `json:"collaboration_enabled"`
	Settings             CollaborationSettings `json:"settings"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// Collaborator relates an actor (by email) to a registry. Email is held in
// cleartext only in memory; at rest the store keeps it encrypted alongside a
// digest column used for lookups.
type Collaborator struct {
	ID         string             `json:"id"`
	RegistryID int64              `json:"registry_id"`
	Email      string             `json:"email"`
	Role       Role               `json:"role"`
	Permission PermissionLevel    `json:"permission"`
	Status     CollaboratorStatus `json:"status"`
	InvitedBy  string             `json:"invited_by"`
	Message    string             `json:"message,omitempty"`
	InvitedAt  time.Time          `json:"invited_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
	AcceptedAt *time.Time         `json:"accepted_at,omitempty"`
}
