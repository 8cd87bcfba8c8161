package webhooks

import (
	"sort"
	"sync"
	"time"
)

// DeliveryStatus represents the status of a notification delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending  DeliveryStatus = "pending"
	DeliveryStatusSuccess  DeliveryStatus = "success"
	DeliveryStatusFailed   DeliveryStatus = "failed"
	DeliveryStatusRetrying DeliveryStatus = "retrying"
)

// DeliveryLog records one notification delivery and its attempts.
type DeliveryLog struct {
	ID             string           `json:"id"`
	NotificationID string           `json:"notification_id"`
	Type           NotificationType `json:"type"`
	URL            string           `json:"url"`
	Status         DeliveryStatus   `json:"status"`
	StatusCode     int              `json:"status_code,omitempty"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	Attempts       int              `json:"attempts"`
	NextRetryAt    *time.Time       `json:"next_retry_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	Duration       time.Duration    `json:"duration,omitempty"`

	notification *Notification
}

// clone copies the log so callers and the store never share a mutable entry.
// The notification pointer is shared; notifications are immutable once built.
func (l *DeliveryLog) clone() *DeliveryLog {
	c := *l
	if l.NextRetryAt != nil {
		t := *l.NextRetryAt
		c.NextRetryAt = &t
	}
	if l.CompletedAt != nil {
		t := *l.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// DeliveryLogStore keeps a bounded in-memory window of delivery logs. Entries
// are copied on the way in and out, so a log held by a delivery attempt is
// never the same object a concurrent reader sees.
type DeliveryLogStore struct {
	mu      sync.RWMutex
	logs    map[string]*DeliveryLog
	maxLogs int
}

// NewDeliveryLogStore creates a store retaining at most maxLogs entries.
func NewDeliveryLogStore(maxLogs int) *DeliveryLogStore {
	if maxLogs <= 0 {
		maxLogs = 1000
	}
	return &DeliveryLogStore{
		logs:    make(map[string]*DeliveryLog),
		maxLogs: maxLogs,
	}
}

// Add inserts a delivery log, evicting the oldest entry when full.
func (s *DeliveryLogStore) Add(log *DeliveryLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.logs) >= s.maxLogs {
		s.evictOldest()
	}
	s.logs[log.ID] = log.clone()
}

// Update replaces a delivery log entry.
func (s *DeliveryLogStore) Update(log *DeliveryLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[log.ID] = log.clone()
}

// Get retrieves a copy of a delivery log by ID.
func (s *DeliveryLogStore) Get(id string) (*DeliveryLog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.logs[id]
	if !ok {
		return nil, false
	}
	return log.clone(), true
}

// Recent returns up to limit delivery logs, newest first.
func (s *DeliveryLogStore) Recent(limit int) []*DeliveryLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*DeliveryLog, 0, len(s.logs))
	for _, log := range s.logs {
		result = append(result, log.clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// PendingRetries returns logs whose retry time has arrived.
func (s *DeliveryLogStore) PendingRetries() []*DeliveryLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var due []*DeliveryLog
	for _, log := range s.logs {
		if log.Status == DeliveryStatusRetrying && log.NextRetryAt != nil && !now.Before(*log.NextRetryAt) {
			due = append(due, log.clone())
		}
	}
	return due
}

func (s *DeliveryLogStore) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, log := range s.logs {
		if oldestID == "" || log.CreatedAt.Before(oldest) {
			oldestID = id
			oldest = log.CreatedAt
		}
	}
	if oldestID != "" {
		delete(s.logs, oldestID)
	}
}
