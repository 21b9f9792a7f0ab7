package migrate

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/chirino/memory-cloud/internal/cmd/cmdutil"
	"github.com/chirino/memory-cloud/internal/config"
	registrymigrate "github.com/chirino/memory-cloud/internal/registry/migrate"

	_ "github.com/chirino/memory-cloud/internal/plugin/remote/postgres"
)

// Command returns the migrate sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	intervalSecs := int(cfg.SyncInterval.Seconds())
	return &cli.Command{
		Name:  "migrate",
		Usage: "Install or update the cloud store schema",
		Flags: cmdutil.CommonFlags(&cfg, &intervalSecs),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := cmdutil.RequireConfigured(&cfg); err != nil {
				return err
			}
			cmdutil.ApplyInterval(&cfg, intervalSecs)
			ctx = config.WithContext(ctx, &cfg)
			if err := registrymigrate.RunAll(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Println("Cloud schema is up to date.")
			return nil
		},
	}
}
