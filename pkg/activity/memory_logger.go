package activity

import (
	"context"
	"sync"
	"time"
)

// MemoryLogger keeps records in process memory. Used in tests and as a
// fallback when no database is configured.
type MemoryLogger struct {
	mu      sync.Mutex
	nextID  int64
	records []*Record
}

// NewMemoryLogger creates an in-memory activity logger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{nextID: 1}
}

// Record implements Logger.
func (l *MemoryLogger) Record(ctx context.Context, record *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record.ID = l.nextID
	l.nextID++
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	l.records = append(l.records, record)
	return nil
}

// List implements Logger. Records return newest first.
func (l *MemoryLogger) List(ctx context.Context, shopID int64, filter Filter) ([]*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	matched := make([]*Record, 0)
	for i := len(l.records) - 1; i >= 0; i-- {
		r := l.records[i]
		if r.ShopID != shopID {
			continue
		}
		if filter.RegistryID != 0 && r.RegistryID != filter.RegistryID {
			continue
		}
		if len(filter.Actions) > 0 && !containsAction(filter.Actions, r.Action) {
			continue
		}
		matched = append(matched, r)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*Record{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func containsAction(actions []Action, action Action) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}
