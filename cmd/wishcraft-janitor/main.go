// Command wishcraft-janitor runs one cleanup pass and exits: pending
// invitations past their expiry are marked expired and a system activity
// record is written. Intended for cron/Kubernetes Job deployments where the
// in-process schedule is disabled.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/narissarah/wishcraft-sub004/pkg/activity"
	"github.com/narissarah/wishcraft-sub004/pkg/collaboration"
	"github.com/narissarah/wishcraft-sub004/pkg/config"
	"github.com/narissarah/wishcraft-sub004/pkg/crypto"
	"github.com/narissarah/wishcraft-sub004/pkg/observability"
	"github.com/narissarah/wishcraft-sub004/pkg/permissions"
	"github.com/narissarah/wishcraft-sub004/pkg/registry"
	"github.com/narissarah/wishcraft-sub004/pkg/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.ParsedLogLevel(), os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := storage.ConnectPostgres(ctx, storage.PostgresOptions{
		URL:      cfg.Database.URL,
		MaxConns: 2,
		MinConns: 1,
		Timeout:  cfg.Database.Timeout.Std(),
	})
	if err != nil {
		logger.WithError(err).Error("Failed to connect to PostgreSQL")
		os.Exit(1)
	}
	defer db.Close()

	piiKey, err := crypto.DeriveKey([]byte(cfg.Auth.MasterSecret), "pii", []byte(cfg.Auth.KeySalt))
	if err != nil {
		logger.WithError(err).Error("Failed to derive PII key")
		os.Exit(1)
	}
	piiCipher, err := crypto.NewCipher(piiKey)
	if err != nil {
		logger.WithError(err).Error("Failed to create PII cipher")
		os.Exit(1)
	}

	activities, err := activity.NewDBLogger(db)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize activity log")
		os.Exit(1)
	}

	registryStore := registry.NewStore(db)
	collabStore := collaboration.NewStore(db, piiCipher)
	resolver := permissions.NewResolver(collabStore, 0, 0)
	manager := collaboration.NewManager(registryStore, collabStore, resolver, activities, nil)

	expired, err := manager.CleanupExpiredInvitations(ctx)
	if err != nil {
		logger.WithError(err).Error("Cleanup failed")
		os.Exit(1)
	}
	logger.Infof("Cleanup complete: %d invitations expired", expired)
}
