package permissions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narissarah/wishcraft-sub004/pkg/registry"
)

type fakeFinder struct {
	records map[string]*registry.Collaborator
	calls   int
	err     error
}

func (f *fakeFinder) FindActiveCollaborator(ctx context.Context, registryID int64, email string) (*registry.Collaborator, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records[email], nil
}

func testRegistry() *registry.Registry {
	return &registry.Registry{
		ID:         42,
		ShopID:     1,
		OwnerEmail: "Owner@Example.com",
	}
}

func TestResolver_OwnerIsAlwaysAdmin(t *testing.T) {
	// Even a collaborator record that demotes the owner's email must not win
	// over ownership.
	finder := &fakeFinder{records: map[string]*registry.Collaborator{
		"owner@example.com": {
			Email:      "owner@example.com",
			Status:     registry.StatusActive,
			Permission: registry.PermissionReadOnly,
		},
	}}
	r := NewResolver(finder, 0, 0)

	level, err := r.Resolve(context.Background(), "owner@example.com", testRegistry())
	require.NoError(t, err)
	assert.Equal(t, registry.PermissionAdmin, level)
	assert.Zero(t, finder.calls, "ownership resolves without a store lookup")

	level, err = r.Resolve(context.Background(), "  OWNER@example.COM ", testRegistry())
	require.NoError(t, err)
	assert.Equal(t, registry.PermissionAdmin, level, "owner match is case-insensitive")
}

func TestResolver_ActiveCollaboratorGetsStoredPermission(t *testing.T) {
	finder := &fakeFinder{records: map[string]*registry.Collaborator{
		"friend@example.com": {
			Email:      "friend@example.com",
			Status:     registry.StatusActive,
			Permission: registry.PermissionReadWrite,
		},
	}}
	r := NewResolver(finder, 0, 0)

	level, err := r.Resolve(context.Background(), "friend@example.com", testRegistry())
	require.NoError(t, err)
	assert.Equal(t, registry.PermissionReadWrite, level)
}

func TestResolver_RoleClaimNeverTrusted(t *testing.T) {
	// A record carrying an "owner" role label but a read-only stored
	// permission must resolve to read-only.
	finder := &fakeFinder{records: map[string]*registry.Collaborator{
		"sneaky@example.com": {
			Email:      "sneaky@example.com",
			Role:       registry.RoleOwner,
			Status:     registry.StatusActive,
			Permission: registry.PermissionReadOnly,
		},
	}}
	r := NewResolver(finder, 0, 0)
	reg := testRegistry()

	level, err := r.Resolve(context.Background(), "sneaky@example.com", reg)
	require.NoError(t, err)
	assert.Equal(t, registry.PermissionReadOnly, level)

	ok, err := r.HasPermission(context.Background(), "sneaky@example.com", reg, registry.PermissionAdmin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolver_NonActiveStatusesResolveToNone(t *testing.T) {
	for _, status := range []registry.CollaboratorStatus{
		registry.StatusPending,
		registry.StatusRevoked,
		registry.StatusExpired,
		registry.StatusDeclined,
	} {
		// The finder contract only returns active records, but a resolver
		// must not trust that either.
		finder := &fakeFinder{records: map[string]*registry.Collaborator{
			"friend@example.com": {
				Email:      "friend@example.com",
				Status:     status,
				Permission: registry.PermissionAdmin,
			},
		}}
		r := NewResolver(finder, 0, 0)

		level, err := r.Resolve(context.Background(), "friend@example.com", testRegistry())
		require.NoError(t, err)
		assert.Equal(t, registry.PermissionNone, level, "status %s", status)
	}
}

func TestResolver_StrangerResolvesToNone(t *testing.T) {
	r := NewResolver(&fakeFinder{}, 0, 0)

	level, err := r.Resolve(context.Background(), "stranger@example.com", testRegistry())
	require.NoError(t, err)
	assert.Equal(t, registry.PermissionNone, level)

	level, err = r.Resolve(context.Background(), "", testRegistry())
	require.NoError(t, err)
	assert.Equal(t, registry.PermissionNone, level, "empty actor never matches")
}

func TestResolver_LookupFailureFailsClosed(t *testing.T) {
	finder := &fakeFinder{err: errors.New("connection refused")}
	r := NewResolver(finder, 0, 0)

	level, err := r.Resolve(context.Background(), "friend@example.com", testRegistry())
	assert.Error(t, err)
	assert.Equal(t, registry.PermissionNone, level)

	ok, err := r.HasPermission(context.Background(), "friend@example.com", testRegistry(), registry.PermissionReadOnly)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestResolver_CachesLookups(t *testing.T) {
	finder := &fakeFinder{records: map[string]*registry.Collaborator{
		"friend@example.com": {
			Email:      "friend@example.com",
			Status:     registry.StatusActive,
			Permission: registry.PermissionReadOnly,
		},
	}}
	r := NewResolver(finder, 16, time.Minute)
	reg := testRegistry()

	for i := 0; i < 5; i++ {
		level, err := r.Resolve(context.Background(), "friend@example.com", reg)
		require.NoError(t, err)
		assert.Equal(t, registry.PermissionReadOnly, level)
	}
	assert.Equal(t, 1, finder.calls, "repeat lookups served from cache")

	r.Invalidate(reg.ID, "friend@example.com")
	_, err := r.Resolve(context.Background(), "friend@example.com", reg)
	require.NoError(t, err)
	assert.Equal(t, 2, finder.calls, "invalidation forces a fresh lookup")
}

func TestResolver_InvalidateRegistry(t *testing.T) {
	finder := &fakeFinder{records: map[string]*registry.Collaborator{
		"a@example.com": {Email: "a@example.com", Status: registry.StatusActive, Permission: registry.PermissionReadOnly},
		"b@example.com": {Email: "b@example.com", Status: registry.StatusActive, Permission: registry.PermissionReadWrite},
	}}
	r := NewResolver(finder, 16, time.Minute)
	reg := testRegistry()

	r.Resolve(context.Background(), "a@example.com", reg)
	r.Resolve(context.Background(), "b@example.com", reg)
	require.Equal(t, 2, finder.calls)

	r.InvalidateRegistry(reg.ID)

	r.Resolve(context.Background(), "a@example.com", reg)
	r.Resolve(context.Background(), "b@example.com", reg)
	assert.Equal(t, 4, finder.calls)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@example.com", NormalizeEmail("  A@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}
