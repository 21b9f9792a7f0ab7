package sync

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/chirino/memory-cloud/internal/cmd/cmdutil"
	"github.com/chirino/memory-cloud/internal/config"
	"github.com/chirino/memory-cloud/internal/engine"
	"github.com/chirino/memory-cloud/internal/localstore"
	"github.com/chirino/memory-cloud/internal/metrics"
	registrymigrate "github.com/chirino/memory-cloud/internal/registry/migrate"

	// Import plugins to trigger init() registration.
	_ "github.com/chirino/memory-cloud/internal/plugin/remote/postgres"
)

// Command returns the sync sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	intervalSecs := int(cfg.SyncInterval.Seconds())
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync local memories to the cloud store",
		Flags: append(cmdutil.CommonFlags(&cfg, &intervalSecs),
			&cli.BoolFlag{
				Name:  "daemon",
				Usage: "Run as a continuous daemon",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "Run a single cycle (default)",
			},
			&cli.IntFlag{
				Name:        "metrics-port",
				Sources:     cli.EnvVars("MEMORY_CLOUD_METRICS_PORT"),
				Destination: &cfg.MetricsPort,
				Usage:       "Serve /metrics and /health on this port in daemon mode",
			},
			&cli.BoolFlag{
				Name:        "migrate-at-start",
				Sources:     cli.EnvVars("MEMORY_CLOUD_MIGRATE_AT_START"),
				Destination: &cfg.MigrateAtStart,
				Usage:       "Run cloud schema migrations before the first cycle",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := cmdutil.RequireConfigured(&cfg); err != nil {
				return err
			}
			cmdutil.ApplyInterval(&cfg, intervalSecs)
			ctx = config.WithContext(ctx, &cfg)

			if cfg.MigrateAtStart {
				if err := registrymigrate.RunAll(ctx); err != nil {
					return err
				}
			}

			gateway, err := cmdutil.Gateway(ctx)
			if err != nil {
				return err
			}
			eng := &engine.Engine{
				Gateway: gateway,
				Device:  cfg.DeviceName,
				OpenLocal: func() (engine.LocalReader, error) {
					return localstore.Open(cfg.LocalDBPath)
				},
			}

			if cmd.Bool("daemon") {
				fmt.Printf("Starting sync daemon (interval: %s)...\n", cfg.SyncInterval)
				fmt.Printf("Device:   %s\n", cfg.DeviceName)
				fmt.Printf("Local DB: %s\n", cfg.LocalDBPath)
				fmt.Printf("Cloud:    %s\n", cfg.RemoteURL)
				if cfg.MetricsPort > 0 {
					metrics.Init()
					go metrics.Serve(ctx, cfg.MetricsPort)
				}
				eng.RunForever(ctx, cfg.SyncInterval)
				return nil
			}

			fmt.Println("Running one-shot sync...")
			stats := eng.RunCycle(ctx)
			fmt.Println("\nSync complete:")
			fmt.Printf("  New/updated:      %d\n", stats.NewMemories)
			fmt.Printf("  Deletions marked: %d\n", stats.DeletedMarked)
			fmt.Printf("  Graph edges:      %d\n", stats.GraphEdges)
			fmt.Printf("  Errors:           %d\n", stats.Errors)
			fmt.Printf("  Duration:         %dms\n", stats.DurationMS)
			if stats.ErrorMessage != "" {
				fmt.Printf("  Error:            %s\n", stats.ErrorMessage)
			}
			return nil
		},
	}
}
