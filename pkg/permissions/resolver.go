package permissions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/narissarah/wishcraft-sub004/pkg/registry"
)

// CollaboratorFinder looks up the active collaborator record for an email on
// a registry. It returns (nil, nil) when no active record exists; absence is
// an answer, not an error.
type CollaboratorFinder interface {
	FindActiveCollaborator(ctx context.Context, registryID int64, email string) (*registry.Collaborator, error)
}

type cacheKey struct {
	registryID int64
	email      string
}

// Resolver computes the effective permission of an actor against a registry.
//
// Resolution order: the registry owner is Admin unconditionally; otherwise an
// active collaborator's stored permission applies; otherwise None. The
// collaborator's role label is never consulted: a session claiming an
// elevated role changes nothing here.
type Resolver struct {
	finder CollaboratorFinder
	cache  *expirable.LRU[cacheKey, registry.PermissionLevel]
}

// NewResolver creates a resolver with a TTL-bounded lookup cache. cacheSize
// <= 0 disables caching.
func NewResolver(finder CollaboratorFinder, cacheSize int, cacheTTL time.Duration) *Resolver {
	r := &Resolver{finder: finder}
	if cacheSize > 0 {
		r.cache = expirable.NewLRU[cacheKey, registry.PermissionLevel](cacheSize, nil, cacheTTL)
	}
	return r
}

// Resolve returns the actor's effective permission level on reg.
func (r *Resolver) Resolve(ctx context.Context, actorEmail string, reg *registry.Registry) (registry.PermissionLevel, error) {
	if reg == nil {
		return registry.PermissionNone, nil
	}
	email := NormalizeEmail(actorEmail)
	if email == "" {
		return registry.PermissionNone, nil
	}

	// Ownership always wins, before any cached or stored collaborator record
	// is considered.
	if email == NormalizeEmail(reg.OwnerEmail) {
		return registry.PermissionAdmin, nil
	}

	key := cacheKey{registryID: reg.ID, email: email}
	if r.cache != nil {
		if level, ok := r.cache.Get(key); ok {
			return level, nil
		}
	}

	collaborator, err := r.finder.FindActiveCollaborator(ctx, reg.ID, email)
	if err != nil {
		// Fail closed: an unreadable store must not grant access.
		return registry.PermissionNone, fmt.Errorf("permissions: collaborator lookup failed: %w", err)
	}

	level := registry.PermissionNone
	if collaborator != nil && collaborator.Status == registry.StatusActive {
		level = collaborator.Permission
	}

	if r.cache != nil {
		r.cache.Add(key, level)
	}
	return level, nil
}

// HasPermission reports whether the actor's resolved level satisfies required
// under the total order None < ReadOnly < ReadWrite < Admin.
func (r *Resolver) HasPermission(ctx context.Context, actorEmail string, reg *registry.Registry, required registry.PermissionLevel) (bool, error) {
	level, err := r.Resolve(ctx, actorEmail, reg)
	if err != nil {
		return false, err
	}
	return level.AtLeast(required), nil
}

// Invalidate evicts the cached level for one actor on one registry. Callers
// invoke this after any collaborator state change.
func (r *Resolver) Invalidate(registryID int64, actorEmail string) {
	if r.cache == nil {
		return
	}
	r.cache.Remove(cacheKey{registryID: registryID, email: NormalizeEmail(actorEmail)})
}

// InvalidateRegistry evicts every cached level for a registry.
func (r *Resolver) InvalidateRegistry(registryID int64) {
	if r.cache == nil {
		return
	}
	for _, key := range r.cache.Keys() {
		if key.registryID == registryID {
			r.cache.Remove(key)
		}
	}
}

// NormalizeEmail lower-cases and trims an email address. Every email
// comparison in the collaboration flow goes through this so invite and accept
// agree on case policy.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
