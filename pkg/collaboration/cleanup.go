package collaboration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/narissarah/wishcraft-sub004/pkg/auth"
)

// DefaultCleanupSchedule runs expiry cleanup every 15 minutes.
const DefaultCleanupSchedule = "*/15 * * * *"

const cleanupTimeout = time.Minute

// Janitor periodically expires stale invitations and reaps abandoned OAuth
// exchange records.
type Janitor struct {
	cron    *cron.Cron
	manager *Manager
	store   auth.ExchangeStore
	logger  *slog.Logger

	// OnExpired, when set, observes the count of invitations each run
	// expired. Set before Start.
	OnExpired func(count int64)
}

// NewJanitor schedules cleanup on the given cron expression. exchanges may
// be nil when exchange reaping is handled elsewhere (Redis TTLs).
func NewJanitor(manager *Manager, exchanges auth.ExchangeStore, schedule string, logger *slog.Logger) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultCleanupSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}

	j := &Janitor{
		cron:    cron.New(),
		manager: manager,
		store:   exchanges,
		logger:  logger,
	}
	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("collaboration: invalid cleanup schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins the cleanup schedule.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule, waiting for an in-flight run to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	expired, err := j.manager.CleanupExpiredInvitations(ctx)
	if err != nil {
		j.logger.Error("invitation cleanup failed", "error", err)
	} else if expired > 0 {
		j.logger.Info("expired pending invitations", "count", expired)
		if j.OnExpired != nil {
			j.OnExpired(expired)
		}
	}

	if j.store != nil {
		reaped, err := j.store.Reap(ctx)
		if err != nil {
			j.logger.Error("exchange reap failed", "error", err)
		} else if reaped > 0 {
			j.logger.Info("reaped abandoned auth exchanges", "count", reaped)
		}
	}
}
