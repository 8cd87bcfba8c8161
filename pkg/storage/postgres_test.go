package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectPostgresRequiresURL(t *testing.T) {
	_, err := ConnectPostgres(context.Background(), PostgresOptions{})
	assert.Error(t, err)
}

func TestPostgresOptionsDefaults(t *testing.T) {
	opts := PostgresOptions{URL: "postgres://localhost/app"}
	opts.applyDefaults()

	assert.Equal(t, 25, opts.MaxConns)
	assert.Equal(t, 5, opts.MinConns)
	assert.Positive(t, opts.Timeout)
	assert.Positive(t, opts.MaxLifetime)
	assert.Positive(t, opts.MaxIdleTime)
}
