package observability

import (
	"bytes"
	"context"
	"net/http"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownManagerRunsRegisteredFuncs(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	manager := NewShutdownManager(logger, nil, 5*time.Second)

	var ran atomic.Int32
	manager.RegisterShutdownFunc(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	manager.RegisterShutdownFunc(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	errCh := make(chan error, 1)
	go func() { errCh <- manager.WaitForShutdown() }()

	// Give WaitForShutdown time to install its signal handler.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown never completed")
	}
	assert.Equal(t, int32(2), ran.Load())
}

func TestShutdownManagerShutsDownServer(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
	manager := NewShutdownManager(logger, server, 5*time.Second)

	errCh := make(chan error, 1)
	go func() { errCh <- manager.WaitForShutdown() }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown never completed")
	}

	// Server was shut down; ListenAndServe on a closed server returns immediately.
	assert.ErrorIs(t, server.ListenAndServe(), http.ErrServerClosed)
}

func TestShutdownManagerReportsErrors(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	manager := NewShutdownManager(logger, nil, 5*time.Second)

	manager.RegisterShutdownFunc(func(ctx context.Context) error {
		return assert.AnError
	})

	errCh := make(chan error, 1)
	go func() { errCh <- manager.WaitForShutdown() }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown never completed")
	}
}
