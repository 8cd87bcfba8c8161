package activity

import (
	"context"
	"time"
)

// Action identifies the kind of state change a record describes.
type Action string

const (
	ActionCollaborationEnabled  Action = "collaboration.enabled"
	ActionCollaborationDisabled Action = "collaboration.disabled"
	ActionCollaboratorInvited   Action = "collaborator.invited"
	ActionCollaboratorAccepted  Action = "collaborator.accepted"
	ActionCollaboratorDeclined  Action = "collaborator.declined"
	ActionCollaboratorRemoved   Action = "collaborator.removed"
	ActionInvitationsExpired    Action = "invitations.expired"
)

// Record is one immutable audit entry. Records are appended by state-changing
// collaboration operations and never mutated afterwards.
type Record struct {
	ID          int64          `json:"id"`
	ShopID      int64          `json:"shop_id"`
	RegistryID  int64          `json:"registry_id"`
	Actor       string         `json:"actor"`
	Action      Action         `json:"action"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	IsSystem    bool           `json:"is_system"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Filter narrows a List query.
type Filter struct {
	RegistryID int64
	Actions    []Action
	Limit      int
	Offset     int
}

// Logger appends and reads activity records. A failed append must propagate
// to the caller: a collaboration operation whose audit write fails is a
// failed operation.
type Logger interface {
	Record(ctx context.Context, record *Record) error
	List(ctx context.Context, shopID int64, filter Filter) ([]*Record, error)
}
