package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DBLogger persists activity records in PostgreSQL.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database-backed activity logger and ensures its
// table exists.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("activity: database connection is required")
	}

	logger := &DBLogger{db: db}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("activity: failed to ensure activity_records table: %w", err)
	}
	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS activity_records (
		id BIGSERIAL PRIMARY KEY,
		shop_id BIGINT NOT NULL,
		registry_id BIGINT NOT NULL,
		actor VARCHAR(255) NOT NULL,
		action VARCHAR(100) NOT NULL,
		description TEXT,
		metadata JSONB,
		is_system BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_activity_records_registry ON activity_records(registry_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_activity_records_shop ON activity_records(shop_id);
	CREATE INDEX IF NOT EXISTS idx_activity_records_action ON activity_records(action);
	`
	_, err := l.db.Exec(query)
	return err
}

// Record appends one activity record, filling in its generated ID and
// timestamp.
func (l *DBLogger) Record(ctx context.Context, record *Record) error {
	var metadataJSON []byte
	var err error
	if record.Metadata != nil {
		metadataJSON, err = json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("activity: failed to marshal metadata: %w", err)
		}
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO activity_records (shop_id, registry_id, actor, action, description, metadata, is_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = l.db.QueryRowContext(ctx, query,
		record.ShopID, record.RegistryID, record.Actor, record.Action,
		record.Description, metadataJSON, record.IsSystem, record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("activity: failed to insert record: %w", err)
	}
	return nil
}

// List returns records for a shop, newest first.
func (l *DBLogger) List(ctx context.Context, shopID int64, filter Filter) ([]*Record, error) {
	query := `
		SELECT id, shop_id, registry_id, actor, action, description, metadata, is_system, created_at
		FROM activity_records
		WHERE shop_id = $1
	`
	args := []any{shopID}
	argCount := 2

	if filter.RegistryID != 0 {
		query += fmt.Sprintf(" AND registry_id = $%d", argCount)
		args = append(args, filter.RegistryID)
		argCount++
	}
	if len(filter.Actions) > 0 {
		query += fmt.Sprintf(" AND action = ANY($%d)", argCount)
		actions := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = string(a)
		}
		args = append(args, pq.Array(actions))
		argCount++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("activity: failed to list records: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		record := &Record{}
		var metadataJSON []byte
		var description sql.NullString

		err := rows.Scan(
			&record.ID, &record.ShopID, &record.RegistryID, &record.Actor,
			&record.Action, &description, &metadataJSON, &record.IsSystem,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("activity: failed to scan record: %w", err)
		}
		record.Description = description.String

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
				return nil, fmt.Errorf("activity: failed to unmarshal metadata: %w", err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activity: failed to iterate records: %w", err)
	}
	return records, nil
}
