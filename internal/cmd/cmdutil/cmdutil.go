// Package cmdutil holds the flag set and process-wide resources shared by
// all subcommands.
package cmdutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/chirino/memory-cloud/internal/config"
	"github.com/chirino/memory-cloud/internal/registry/remote"
)

// CommonFlags returns the flags every cloud-facing command shares, writing
// into the given Config.
func CommonFlags(cfg *config.Config, syncIntervalSecs *int) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "remote-url",
			Category:    "Cloud:",
			Sources:     cli.EnvVars("MEMORY_CLOUD_REMOTE_URL"),
			Destination: &cfg.RemoteURL,
			Usage:       "Cloud Postgres endpoint URL (postgres://host:port/db)",
		},
		&cli.StringFlag{
			Name:        "service-key",
			Category:    "Cloud:",
			Sources:     cli.EnvVars("MEMORY_CLOUD_SERVICE_KEY"),
			Destination: &cfg.RemoteServiceKey,
			Usage:       "Cloud service credential",
		},
		&cli.StringFlag{
			Name:        "remote-type",
			Category:    "Cloud:",
			Sources:     cli.EnvVars("MEMORY_CLOUD_REMOTE_TYPE"),
			Destination: &cfg.RemoteType,
			Value:       cfg.RemoteType,
			Usage:       "Cloud store backend",
		},
		&cli.StringFlag{
			Name:        "local-db",
			Category:    "Local:",
			Sources:     cli.EnvVars("MEMORY_CLOUD_DB_PATH"),
			Destination: &cfg.LocalDBPath,
			Value:       cfg.LocalDBPath,
			Usage:       "Local memory store SQLite file",
		},
		&cli.StringFlag{
			Name:        "device-name",
			Category:    "Sync:",
			Sources:     cli.EnvVars("MEMORY_CLOUD_DEVICE_NAME"),
			Destination: &cfg.DeviceName,
			Value:       cfg.DeviceName,
			Usage:       "Device name used in sync state",
		},
		&cli.IntFlag{
			Name:        "sync-interval",
			Category:    "Sync:",
			Sources:     cli.EnvVars("MEMORY_CLOUD_SYNC_INTERVAL"),
			Destination: syncIntervalSecs,
			Value:       *syncIntervalSecs,
			Usage:       "Seconds between sync cycles in daemon mode",
		},
		&cli.IntFlag{
			Name:        "embedding-dim",
			Category:    "Sync:",
			Sources:     cli.EnvVars("MEMORY_CLOUD_EMBEDDING_DIM"),
			Destination: &cfg.EmbeddingDim,
			Value:       cfg.EmbeddingDim,
			Usage:       "Embedding vector dimension",
		},
	}
}

// ApplyInterval copies the seconds flag into the Config duration.
func ApplyInterval(cfg *config.Config, secs int) {
	if secs > 0 {
		cfg.SyncInterval = time.Duration(secs) * time.Second
	}
}

// RequireConfigured returns an exit-code-1 error when cloud credentials are
// missing.
func RequireConfigured(cfg *config.Config) error {
	if !cfg.IsConfigured() {
		return cli.Exit("Cloud store not configured. Run: memory-cloud setup", 1)
	}
	return nil
}

var (
	gatewayOnce sync.Once
	gateway     remote.Gateway
	gatewayErr  error
)

// Gateway returns the process-wide cloud gateway, created once on first use
// from the config carried on the context and reused by every command and
// cycle thereafter.
func Gateway(ctx context.Context) (remote.Gateway, error) {
	gatewayOnce.Do(func() {
		cfg := config.FromContext(ctx)
		if cfg == nil {
			gatewayErr = fmt.Errorf("missing config in context")
			return
		}
		loader, err := remote.Select(cfg.RemoteType)
		if err != nil {
			gatewayErr = err
			return
		}
		gateway, gatewayErr = loader(ctx)
	})
	return gateway, gatewayErr
}

// CloseGateway tears down the process-wide gateway at shutdown.
func CloseGateway() {
	if gateway != nil {
		_ = gateway.Close()
	}
}
