package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_DeliversSignedNotification(t *testing.T) {
	var gotBody []byte
	var gotSig, gotType string

	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(headerSignature)
		gotType = r.Header.Get(headerEventType)
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	d, err := NewDispatcher(DispatcherConfig{SinkURL: sink.URL, Secret: "sink-secret"})
	require.NoError(t, err)

	n := &Notification{
		Type:           NotificationCollaborationInvited,
		RecipientEmail: "a@example.com",
		RegistryID:     42,
		CollaboratorID: "c-1",
	}
	require.NoError(t, d.Dispatch(context.Background(), n))

	assert.Equal(t, string(NotificationCollaborationInvited), gotType)
	assert.NoError(t, VerifySignature(gotBody, gotSig, "sink-secret"),
		"outbound payload must verify against its own signature")

	logs := d.DeliveryLogs(10)
	require.Len(t, logs, 1)
	assert.Equal(t, DeliveryStatusSuccess, logs[0].Status)
	assert.Equal(t, 1, logs[0].Attempts)
}

func TestDispatcher_QueuesRetryOnFailure(t *testing.T) {
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer sink.Close()

	d, err := NewDispatcher(DispatcherConfig{SinkURL: sink.URL})
	require.NoError(t, err)

	err = d.Dispatch(context.Background(), &Notification{
		Type:           NotificationCollaborationAccepted,
		RecipientEmail: "a@example.com",
		RegistryID:     1,
	})
	assert.Error(t, err)

	logs := d.DeliveryLogs(10)
	require.Len(t, logs, 1)
	assert.Equal(t, DeliveryStatusRetrying, logs[0].Status)
	require.NotNil(t, logs[0].NextRetryAt)
	assert.True(t, logs[0].NextRetryAt.After(time.Now()))
}

func TestDispatcher_DispatchBatch(t *testing.T) {
	var count int64
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&count, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer sink.Close()

	d, err := NewDispatcher(DispatcherConfig{SinkURL: sink.URL})
	require.NoError(t, err)

	batch := []*Notification{
		{Type: NotificationCollaborationInvited, RecipientEmail: "a@example.com", RegistryID: 1},
		{Type: NotificationCollaborationInvited, RecipientEmail: "b@example.com", RegistryID: 1},
		{Type: NotificationCollaborationRemoved, RecipientEmail: "c@example.com", RegistryID: 2},
	}
	require.NoError(t, d.DispatchBatch(context.Background(), batch))
	assert.Equal(t, int64(3), atomic.LoadInt64(&count))
}

// Failing deliveries keep the retry worker busy while readers poll the
// delivery log; run with -race to catch shared-entry mutation.
func TestDispatcher_ConcurrentDispatchAndLogReads(t *testing.T) {
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer sink.Close()

	d, err := NewDispatcher(DispatcherConfig{
		SinkURL: sink.URL,
		Retry: RetryConfig{
			MaxAttempts:       3,
			InitialDelay:      time.Millisecond,
			MaxDelay:          time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.worker.Start(ctx, time.Millisecond)
	defer d.worker.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.Dispatch(ctx, &Notification{
				Type:           NotificationCollaborationInvited,
				RecipientEmail: "a@example.com",
				RegistryID:     int64(i),
			})
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, log := range d.DeliveryLogs(100) {
				_ = log.Status
				_ = log.Attempts
				if log.NextRetryAt != nil {
					_ = log.NextRetryAt.Unix()
				}
			}
		}()
	}
	wg.Wait()
}

func TestDeliveryLogStore_ReadersSeeIsolatedCopies(t *testing.T) {
	store := NewDeliveryLogStore(10)
	next := time.Now().Add(time.Minute)
	store.Add(&DeliveryLog{ID: "d-1", Status: DeliveryStatusRetrying, NextRetryAt: &next, CreatedAt: time.Now()})

	got, ok := store.Get("d-1")
	require.True(t, ok)
	got.Status = DeliveryStatusFailed
	*got.NextRetryAt = time.Time{}

	again, ok := store.Get("d-1")
	require.True(t, ok)
	assert.Equal(t, DeliveryStatusRetrying, again.Status, "caller mutation must not reach the store")
	assert.Equal(t, next.Unix(), again.NextRetryAt.Unix())
}

func TestRetryPolicy_BackoffIsMonotonicAndCapped(t *testing.T) {
	p := NewRetryPolicy(RetryConfig{
		MaxAttempts:       10,
		InitialDelay:      time.Second,
		MaxDelay:          time.Minute,
		BackoffMultiplier: 2.0,
	})

	prev := time.Duration(0)
	for attempts := 1; attempts <= 10; attempts++ {
		delay := p.NextRetryDelay(attempts)
		assert.GreaterOrEqual(t, delay, prev, "delay shrank at attempt %d", attempts)
		assert.LessOrEqual(t, delay, time.Minute)
		prev = delay
	}
	assert.Equal(t, time.Minute, p.NextRetryDelay(10), "cap reached")
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := NewRetryPolicy(DefaultRetryConfig())

	assert.False(t, p.ShouldRetry(1, nil), "success never retries")
	assert.True(t, p.ShouldRetry(1, assert.AnError))
	assert.False(t, p.ShouldRetry(5, assert.AnError), "attempt budget exhausted")
}

func TestDeliveryLogStore_EvictsOldest(t *testing.T) {
	store := NewDeliveryLogStore(2)

	old := &DeliveryLog{ID: "old", CreatedAt: time.Now().Add(-time.Hour)}
	mid := &DeliveryLog{ID: "mid", CreatedAt: time.Now().Add(-time.Minute)}
	fresh := &DeliveryLog{ID: "new", CreatedAt: time.Now()}

	store.Add(old)
	store.Add(mid)
	store.Add(fresh)

	_, ok := store.Get("old")
	assert.False(t, ok, "oldest entry evicted")
	_, ok = store.Get("new")
	assert.True(t, ok)
}
