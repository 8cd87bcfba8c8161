package webhooks

import (
	"context"
	"math"
	"time"

	"github.com/narissarah/wishcraft-sub004/pkg/observability"
)

// RetryConfig configures delivery retry behavior.
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialDelay:      1 * time.Second,
		MaxDelay:          5 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// RetryPolicy implements capped exponential backoff.
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy creates a retry policy, filling in sane defaults.
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Minute
	}
	if config.BackoffMultiplier <= 1.0 {
		config.BackoffMultiplier = 2.0
	}
	return &RetryPolicy{config: config}
}

// ShouldRetry determines whether a failed delivery gets another attempt.
func (p *RetryPolicy) ShouldRetry(attempts int, err error) bool {
	return err != nil && attempts < p.config.MaxAttempts
}

// NextRetryDelay calculates the backoff before the next attempt.
func (p *RetryPolicy) NextRetryDelay(attempts int) time.Duration {
	if attempts <= 0 {
		return p.config.InitialDelay
	}

	delay := float64(p.config.InitialDelay) * math.Pow(p.config.BackoffMultiplier, float64(attempts-1))
	if delay > float64(p.config.MaxDelay) {
		return p.config.MaxDelay
	}
	return time.Duration(delay)
}

// NextRetryTime is NextRetryDelay anchored at now.
func (p *RetryPolicy) NextRetryTime(attempts int) time.Time {
	return time.Now().Add(p.NextRetryDelay(attempts))
}

// RetryWorker periodically re-attempts deliveries whose retry time arrived.
type RetryWorker struct {
	dispatcher *Dispatcher
	store      *DeliveryLogStore
	policy     *RetryPolicy
	logger     *observability.Logger
	stopCh     chan struct{}
	ticker     *time.Ticker
}

// NewRetryWorker creates a retry worker bound to a dispatcher.
func NewRetryWorker(dispatcher *Dispatcher, store *DeliveryLogStore, policy *RetryPolicy, logger *observability.Logger) *RetryWorker {
	return &RetryWorker{
		dispatcher: dispatcher,
		store:      store,
		policy:     policy,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Start begins scanning for due retries every checkInterval.
func (w *RetryWorker) Start(ctx context.Context, checkInterval time.Duration) {
	w.ticker = time.NewTicker(checkInterval)

	go func() {
		defer observability.RecoverPanic(w.logger, "notification retry worker")

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-w.ticker.C:
				w.processRetries(ctx)
			}
		}
	}()
}

// Stop halts the worker.
func (w *RetryWorker) Stop() {
	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.stopCh)
}

func (w *RetryWorker) processRetries(ctx context.Context) {
	for _, log := range w.store.PendingRetries() {
		if log.notification == nil {
			log.Status = DeliveryStatusFailed
			log.ErrorMessage = "notification payload no longer available"
			now := time.Now()
			log.CompletedAt = &now
			w.store.Update(log)
			continue
		}
		w.dispatcher.attemptDelivery(ctx, log.notification, log)
	}
}
