package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrRegistryNotFound is returned when a registry does not exist in the
// caller's shop. A registry in a different shop is indistinguishable from one
// that does not exist.
var ErrRegistryNotFound = errors.New("registry not found")

// ErrShopNotFound is returned for an unknown shop domain.
var ErrShopNotFound = errors.New("shop not found")

// Store persists shops and registries in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a registry store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the shop and registry tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS shops (
			id BIGSERIAL PRIMARY KEY,
			domain TEXT NOT NULL UNIQUE,
			installed BOOLEAN NOT NULL DEFAULT true,
			installed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS registries (
			id BIGSERIAL PRIMARY KEY,
			shop_id BIGINT NOT NULL REFERENCES shops(id),
			title TEXT NOT NULL,
			owner_email TEXT NOT NULL,
			collaboration_enabled BOOLEAN NOT NULL DEFAULT false,
			settings JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_registries_shop ON registries(shop_id);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("registry: failed to ensure schema: %w", err)
	}
	return nil
}

// CreateShop inserts a shop, filling in its generated ID and install time.
func (s *Store) CreateShop(ctx context.Context, shop *Shop) error {
	query := `
		INSERT INTO shops (domain, installed)
		VALUES ($1, $2)
		RETURNING id, installed_at
	`
	err := s.db.QueryRowContext(ctx, query, shop.Domain, shop.Installed).
		Scan(&shop.ID, &shop.InstalledAt)
	if err != nil {
		return fmt.Errorf("registry: failed to create shop: %w", err)
	}
	return nil
}

// GetShopByDomain looks a shop up by its domain.
func (s *Store) GetShopByDomain(ctx context.Context, domain string) (*Shop, error) {
	query := `
		SELECT id, domain, installed, installed_at
		FROM shops
		WHERE domain = $1
	`
	shop := &Shop{}
	err := s.db.QueryRowContext(ctx, query, domain).
		Scan(&shop.ID, &shop.Domain, &shop.Installed, &shop.InstalledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShopNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: failed to get shop: %w", err)
	}
	return shop, nil
}

// SetShopInstalled flips a shop's installation status.
func (s *Store) SetShopInstalled(ctx context.Context, domain string, installed bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE shops SET installed = $2 WHERE domain = $1`, domain, installed)
	if err != nil {
		return fmt.Errorf("registry: failed to update shop: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrShopNotFound
	}
	return nil
}

// CreateRegistry inserts a registry, filling in its generated ID and
// timestamps.
func (s *Store) CreateRegistry(ctx context.Context, reg *Registry) error {
	settingsJSON, err := json.Marshal(reg.Settings)
	if err != nil {
		return fmt.Errorf("registry: failed to marshal settings: %w", err)
	}

	query := `
		INSERT INTO registries (shop_id, title, owner_email, collaboration_enabled, settings)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		reg.ShopID, reg.Title, reg.OwnerEmail, reg.CollaborationEnabled, settingsJSON).
		Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("registry: failed to create registry: %w", err)
	}
	return nil
}

// GetRegistry fetches a registry scoped to a shop.
func (s *Store) GetRegistry(ctx context.Context, shopID, id int64) (*Registry, error) {
	query := `
		SELECT id, shop_id, title, owner_email, collaboration_enabled, settings,
		       created_at, updated_at
		FROM registries
		WHERE id = $1 AND shop_id = $2
	`
	return scanRegistry(s.db.QueryRowContext(ctx, query, id, shopID))
}

// GetRegistryByID fetches a registry without shop scoping. Reserved for
// flows that start from an opaque collaborator ID, where the shop is not yet
// known; request handlers always go through GetRegistry.
func (s *Store) GetRegistryByID(ctx context.Context, id int64) (*Registry, error) {
	query := `
		SELECT id, shop_id, title, owner_email, collaboration_enabled, settings,
		       created_at, updated_at
		FROM registries
		WHERE id = $1
	`
	return scanRegistry(s.db.QueryRowContext(ctx, query, id))
}

// ListByShop returns all registries in a shop, newest first.
func (s *Store) ListByShop(ctx context.Context, shopID int64) ([]*Registry, error) {
	query := `
		SELECT id, shop_id, title, owner_email, collaboration_enabled, settings,
		       created_at, updated_at
		FROM registries
		WHERE shop_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, shopID)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to list registries: %w", err)
	}
	defer rows.Close()

	var registries []*Registry
	for rows.Next() {
		reg, err := scanRegistry(rows)
		if err != nil {
			return nil, err
		}
		registries = append(registries, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: failed to iterate registries: %w", err)
	}
	return registries, nil
}

// UpdateCollaboration persists the collaboration flag and settings.
func (s *Store) UpdateCollaboration(ctx context.Context, shopID, id int64, enabled bool, settings CollaborationSettings) error {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("registry: failed to marshal settings: %w", err)
	}

	query := `
		UPDATE registries
		SET collaboration_enabled = $3, settings = $4, updated_at = NOW()
		WHERE id = $1 AND shop_id = $2
	`
	result, err := s.db.ExecContext(ctx, query, id, shopID, enabled, settingsJSON)
	if err != nil {
		return fmt.Errorf("registry: failed to update collaboration: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrRegistryNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistry(row rowScanner) (*Registry, error) {
	reg := &Registry{}
	var settingsJSON []byte
	err := row.Scan(
		&reg.ID, &reg.ShopID, &reg.Title, &reg.OwnerEmail,
		&reg.CollaborationEnabled, &settingsJSON,
		&reg.CreatedAt, &reg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRegistryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registry: failed to scan registry: %w", err)
	}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &reg.Settings); err != nil {
			return nil, fmt.Errorf("registry: failed to unmarshal settings: %w", err)
		}
	}
	return reg, nil
}
