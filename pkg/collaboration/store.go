package collaboration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/narissarah/wishcraft-sub004/pkg/crypto"
	"github.com/narissarah/wishcraft-sub004/pkg/permissions"
	"github.com/narissarah/wishcraft-sub004/pkg/registry"
)

// Store persists collaborator records in PostgreSQL. Emails are encrypted at
// rest; a digest column carries lookups so the cleartext never appears in a
// WHERE clause.
type Store struct {
	db     *sql.DB
	cipher *crypto.Cipher
}

// NewStore creates a collaborator store. cipher encrypts email addresses and
// must be derived for the "pii" context.
func NewStore(db *sql.DB, cipher *crypto.Cipher) *Store {
	return &Store{db: db, cipher: cipher}
}

// EnsureSchema creates the collaborators table if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS collaborators (
			id TEXT PRIMARY KEY,
			registry_id BIGINT NOT NULL REFERENCES registries(id),
			email_encrypted TEXT NOT NULL,
			email_hash TEXT NOT NULL,
			role VARCHAR(20) NOT NULL,
			permission VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL,
			invited_by VARCHAR(255) NOT NULL,
			message TEXT,
			invited_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ NOT NULL,
			accepted_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_collaborators_registry ON collaborators(registry_id, status);
		CREATE INDEX IF NOT EXISTS idx_collaborators_email ON collaborators(registry_id, email_hash);
		CREATE INDEX IF NOT EXISTS idx_collaborators_expiry ON collaborators(status, expires_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("collaboration: failed to ensure schema: %w", err)
	}
	return nil
}

func (s *Store) emailHash(email string) string {
	return crypto.HashIdentifier(permissions.NormalizeEmail(email))
}

// CreateInvite inserts a pending collaborator. The registry row is locked for
// the duration of the transaction so two concurrent invites cannot both pass
// the count check and together exceed the limit.
func (s *Store) CreateInvite(ctx context.Context, collab *registry.Collaborator) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("collaboration: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var enabled bool
	var settingsJSON []byte
	err = tx.QueryRowContext(ctx, `
		SELECT collaboration_enabled, settings
		FROM registries
		WHERE id = $1
		FOR UPDATE
	`, collab.RegistryID).Scan(&enabled, &settingsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.ErrRegistryNotFound
	}
	if err != nil {
		return fmt.Errorf("collaboration: failed to lock registry: %w", err)
	}
	if !enabled {
		return ErrCollaborationDisabled
	}

	settings := registry.DefaultCollaborationSettings()
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &settings); err != nil {
			return fmt.Errorf("collaboration: failed to unmarshal settings: %w", err)
		}
	}

	hash := s.emailHash(collab.Email)

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM collaborators
		WHERE registry_id = $1 AND email_hash = $2 AND status IN ('pending', 'active')
	`, collab.RegistryID, hash).Scan(&existing)
	if err != nil {
		return fmt.Errorf("collaboration: failed to check existing collaborator: %w", err)
	}
	if existing > 0 {
		return ErrAlreadyCollaborator
	}

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM collaborators
		WHERE registry_id = $1 AND status IN ('pending', 'active')
	`, collab.RegistryID).Scan(&count)
	if err != nil {
		return fmt.Errorf("collaboration: failed to count collaborators: %w", err)
	}
	if count >= settings.MaxCollaborators {
		return ErrLimitReached
	}

	encrypted, err := s.cipher.Encrypt(permissions.NormalizeEmail(collab.Email))
	if err != nil {
		return fmt.Errorf("collaboration: failed to encrypt email: %w", err)
	}

	collab.Status = registry.StatusPending
	collab.InvitedAt = time.Now().UTC()
	collab.ExpiresAt = collab.InvitedAt.AddDate(0, 0, settings.ExpireInvitesAfterDays)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO collaborators (id, registry_id, email_encrypted, email_hash, role, permission, status, invited_by, message, invited_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, collab.ID, collab.RegistryID, encrypted, hash,
		string(collab.Role), collab.Permission.String(), string(collab.Status),
		collab.InvitedBy, collab.Message, collab.InvitedAt, collab.ExpiresAt)
	if err != nil {
		return fmt.Errorf("collaboration: failed to insert collaborator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("collaboration: failed to commit invite: %w", err)
	}
	return nil
}

const collaboratorColumns = `id, registry_id, email_encrypted, role, permission, status, invited_by, message, invited_at, expires_at, accepted_at`

// Accept transitions a pending invitation to active. The row is locked so a
// concurrent accept or removal observes the final state.
func (s *Store) Accept(ctx context.Context, collaboratorID, acceptorEmail string) (*registry.Collaborator, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("collaboration: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	collab, err := s.lockCollaborator(ctx, tx, collaboratorID)
	if err != nil {
		return nil, err
	}
	if collab.Status != registry.StatusPending {
		return nil, ErrInvitationNotFound
	}
	if s.emailHash(acceptorEmail) != s.emailHash(collab.Email) {
		return nil, ErrEmailMismatch
	}

	now := time.Now().UTC()
	if now.After(collab.ExpiresAt) {
		// Mark the record so cleanup does not have to revisit it, then
		// report expiry.
		if _, err := tx.ExecContext(ctx,
			`UPDATE collaborators SET status = 'expired' WHERE id = $1`, collaboratorID); err != nil {
			return nil, fmt.Errorf("collaboration: failed to expire invitation: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("collaboration: failed to commit expiry: %w", err)
		}
		return nil, ErrInvitationExpired
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE collaborators SET status = 'active', accepted_at = $2 WHERE id = $1`,
		collaboratorID, now)
	if err != nil {
		return nil, fmt.Errorf("collaboration: failed to accept invitation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("collaboration: failed to commit acceptance: %w", err)
	}

	collab.Status = registry.StatusActive
	collab.AcceptedAt = &now
	return collab, nil
}

// Decline transitions a pending invitation to declined.
func (s *Store) Decline(ctx context.Context, collaboratorID, declinerEmail string) (*registry.Collaborator, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("collaboration: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	collab, err := s.lockCollaborator(ctx, tx, collaboratorID)
	if err != nil {
		return nil, err
	}
	if collab.Status != registry.StatusPending {
		return nil, ErrInvitationNotFound
	}
	if s.emailHash(declinerEmail) != s.emailHash(collab.Email) {
		return nil, ErrEmailMismatch
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE collaborators SET status = 'declined' WHERE id = $1`, collaboratorID)
	if err != nil {
		return nil, fmt.Errorf("collaboration: failed to decline invitation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("collaboration: failed to commit decline: %w", err)
	}

	collab.Status = registry.StatusDeclined
	return collab, nil
}

// Remove revokes an active collaborator or deletes a pending invitation.
// Active records are never hard-deleted; they transition to revoked so the
// history stays reconstructible.
func (s *Store) Remove(ctx context.Context, registryID int64, collaboratorID string) (*registry.Collaborator, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("collaboration: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	collab, err := s.lockCollaborator(ctx, tx, collaboratorID)
	if errors.Is(err, ErrInvitationNotFound) {
		return nil, ErrCollaboratorNotFound
	}
	if err != nil {
		return nil, err
	}
	if collab.RegistryID != registryID {
		return nil, ErrCollaboratorNotFound
	}

	switch collab.Status {
	case registry.StatusActive:
		_, err = tx.ExecContext(ctx,
			`UPDATE collaborators SET status = 'revoked' WHERE id = $1`, collaboratorID)
		if err != nil {
			return nil, fmt.Errorf("collaboration: failed to revoke collaborator: %w", err)
		}
		collab.Status = registry.StatusRevoked
	case registry.StatusPending:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM collaborators WHERE id = $1`, collaboratorID)
		if err != nil {
			return nil, fmt.Errorf("collaboration: failed to delete invitation: %w", err)
		}
	default:
		return nil, ErrCollaboratorNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("collaboration: failed to commit removal: %w", err)
	}
	return collab, nil
}

// ListByRegistry returns every collaborator record on a registry.
func (s *Store) ListByRegistry(ctx context.Context, registryID int64) ([]*registry.Collaborator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+collaboratorColumns+`
		FROM collaborators
		WHERE registry_id = $1
		ORDER BY invited_at DESC
	`, registryID)
	if err != nil {
		return nil, fmt.Errorf("collaboration: failed to list collaborators: %w", err)
	}
	defer rows.Close()

	collaborators := make([]*registry.Collaborator, 0)
	for rows.Next() {
		collab, err := s.scanCollaborator(rows)
		if err != nil {
			return nil, err
		}
		collaborators = append(collaborators, collab)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collaboration: failed to iterate collaborators: %w", err)
	}
	return collaborators, nil
}

// FindActiveCollaborator returns the active record for an email on a
// registry, or (nil, nil) when none exists. Satisfies the permission
// resolver's finder contract.
func (s *Store) FindActiveCollaborator(ctx context.Context, registryID int64, email string) (*registry.Collaborator, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+collaboratorColumns+`
		FROM collaborators
		WHERE registry_id = $1 AND email_hash = $2 AND status = 'active'
	`, registryID, s.emailHash(email))

	collab, err := s.scanCollaborator(row)
	if errors.Is(err, ErrInvitationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return collab, nil
}

// DeleteAllForRegistry removes every collaborator record for a registry.
// Used when collaboration is disabled.
func (s *Store) DeleteAllForRegistry(ctx context.Context, registryID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM collaborators WHERE registry_id = $1`, registryID)
	if err != nil {
		return 0, fmt.Errorf("collaboration: failed to clear collaborators: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("collaboration: failed to count cleared collaborators: %w", err)
	}
	return n, nil
}

// ExpirePending marks pending invitations past their expiry as expired.
// Running it twice is a no-op for already-expired rows.
func (s *Store) ExpirePending(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE collaborators
		SET status = 'expired'
		WHERE status = 'pending' AND expires_at < NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("collaboration: failed to expire invitations: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("collaboration: failed to count expired invitations: %w", err)
	}
	return n, nil
}

func (s *Store) lockCollaborator(ctx context.Context, tx *sql.Tx, collaboratorID string) (*registry.Collaborator, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+collaboratorColumns+`
		FROM collaborators
		WHERE id = $1
		FOR UPDATE
	`, collaboratorID)
	return s.scanCollaborator(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanCollaborator(row rowScanner) (*registry.Collaborator, error) {
	collab := &registry.Collaborator{}
	var encrypted, role, permission, status string
	var message sql.NullString
	var acceptedAt sql.NullTime

	err := row.Scan(
		&collab.ID, &collab.RegistryID, &encrypted, &role, &permission, &status,
		&collab.InvitedBy, &message, &collab.InvitedAt, &collab.ExpiresAt, &acceptedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("collaboration: failed to scan collaborator: %w", err)
	}

	email, err := s.cipher.Decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("collaboration: failed to decrypt collaborator email: %w", err)
	}

	collab.Email = email
	collab.Role = registry.Role(role)
	collab.Permission = registry.ParsePermissionLevel(permission)
	collab.Status = registry.CollaboratorStatus(status)
	collab.Message = message.String
	if acceptedAt.Valid {
		collab.AcceptedAt = &acceptedAt.Time
	}
	return collab, nil
}
