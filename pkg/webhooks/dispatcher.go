package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/narissarah/wishcraft-sub004/pkg/observability"
)

// Outbound delivery headers. The sink verifies the signature the same way we
// verify inbound platform callbacks.
const (
	headerEventType = "X-Wishcraft-Event"
	headerEventID   = "X-Wishcraft-Event-ID"
	headerSignature = "X-Wishcraft-Hmac-Sha256"
)

// DispatcherConfig configures the notification dispatcher.
type DispatcherConfig struct {
	// SinkURL is the delivery collaborator endpoint notifications are posted to.
	SinkURL string

	// Secret signs outbound payloads. Empty disables signing.
	Secret string

	Timeout  time.Duration
	Retry    RetryConfig
	MaxLogs  int
	MaxBatch int

	// OnDelivery, when set, observes the status of every delivery attempt.
	OnDelivery func(status DeliveryStatus)

	// Logger receives retry-worker diagnostics. Defaults to a stderr logger.
	Logger *observability.Logger
}

// Dispatcher posts collaboration notifications to the external delivery
// collaborator, recording every attempt in the delivery log. Failed
// deliveries are retried in the background with exponential backoff; the
// emitter never awaits delivery.
type Dispatcher struct {
	config DispatcherConfig
	client *http.Client
	store  *DeliveryLogStore
	policy *RetryPolicy
	worker *RetryWorker
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	if config.SinkURL == "" {
		return nil, fmt.Errorf("webhooks: sink URL is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxBatch <= 0 {
		config.MaxBatch = 8
	}
	if config.Logger == nil {
		config.Logger = observability.NewLogger(observability.InfoLevel, os.Stderr)
	}

	store := NewDeliveryLogStore(config.MaxLogs)
	d := &Dispatcher{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		store:  store,
		policy: NewRetryPolicy(config.Retry),
	}
	d.worker = NewRetryWorker(d, store, d.policy, config.Logger)
	return d, nil
}

// StartRetryWorker begins background retries of failed deliveries.
func (d *Dispatcher) StartRetryWorker(ctx context.Context) {
	d.worker.Start(ctx, 30*time.Second)
}

// StopRetryWorker halts background retries.
func (d *Dispatcher) StopRetryWorker() {
	d.worker.Stop()
}

// DeliveryLogs returns recent delivery logs, newest first.
func (d *Dispatcher) DeliveryLogs(limit int) []*DeliveryLog {
	return d.store.Recent(limit)
}

// Dispatch sends one notification. The first attempt happens synchronously;
// on failure the delivery is queued for backoff retries and the error is
// returned for observability only; emitters treat dispatch as
// fire-and-forget.
func (d *Dispatcher) Dispatch(ctx context.Context, notification *Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.Timestamp.IsZero() {
		notification.Timestamp = time.Now().UTC()
	}

	log := &DeliveryLog{
		ID:             uuid.NewString(),
		NotificationID: notification.ID,
		Type:           notification.Type,
		URL:            d.config.SinkURL,
		Status:         DeliveryStatusPending,
		CreatedAt:      time.Now(),
		notification:   notification,
	}
	d.store.Add(log)

	return d.attemptDelivery(ctx, notification, log)
}

// DispatchBatch fans a set of notifications out concurrently.
func (d *Dispatcher) DispatchBatch(ctx context.Context, notifications []*Notification) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.MaxBatch)

	for _, n := range notifications {
		n := n
		g.Go(func() error {
			return d.Dispatch(ctx, n)
		})
	}
	return g.Wait()
}

func (d *Dispatcher) attemptDelivery(ctx context.Context, notification *Notification, log *DeliveryLog) error {
	log.Attempts++
	start := time.Now()

	err := d.send(ctx, notification, log)
	log.Duration = time.Since(start)

	if err != nil {
		log.ErrorMessage = err.Error()
		if d.policy.ShouldRetry(log.Attempts, err) {
			log.Status = DeliveryStatusRetrying
			next := d.policy.NextRetryTime(log.Attempts)
			log.NextRetryAt = &next
		} else {
			log.Status = DeliveryStatusFailed
			now := time.Now()
			log.CompletedAt = &now
		}
		d.store.Update(log)
		d.observe(log.Status)
		return err
	}

	log.Status = DeliveryStatusSuccess
	log.NextRetryAt = nil
	now := time.Now()
	log.CompletedAt = &now
	d.store.Update(log)
	d.observe(log.Status)
	return nil
}

func (d *Dispatcher) observe(status DeliveryStatus) {
	if d.config.OnDelivery != nil {
		d.config.OnDelivery(status)
	}
}

func (d *Dispatcher) send(ctx context.Context, notification *Notification, log *DeliveryLog) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("webhooks: failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.SinkURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhooks: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEventType, string(notification.Type))
	req.Header.Set(headerEventID, notification.ID)
	if d.config.Secret != "" {
		req.Header.Set(headerSignature, Sign(payload, d.config.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhooks: delivery failed: %w", err)
	}
	defer resp.Body.Close()

	log.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhooks: sink returned status %d", resp.StatusCode)
	}
	return nil
}
