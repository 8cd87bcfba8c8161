package api

import (
	"time"

	"github.com/narissarah/wishcraft-sub004/pkg/registry"
)

// EnableCollaborationRequest is the body of the collaboration enable endpoint.
// Zero settings fall back to the registry defaults.
type EnableCollaborationRequest struct {
	Settings *registry.CollaborationSettings `json:"settings,omitempty"`
}

// SessionResponse describes the caller's session without exposing token
// material.
type SessionResponse struct {
	Shop       string    `json:"shop"`
	ActorEmail string    `json:"actor_email,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// AuthCompleteResponse is returned by the auth callback alongside the session
// cookie.
type AuthCompleteResponse struct {
	Shop      string    `json:"shop"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegistriesResponse wraps a shop's registry listing.
type RegistriesResponse struct {
	Registries []*registry.Registry `json:"registries"`
	Count      int                  `json:"count"`
}

// CollaboratorsResponse wraps a collaborator listing.
type CollaboratorsResponse struct {
	Collaborators []*registry.Collaborator `json:"collaborators"`
	Count         int                      `json:"count"`
}
