package restore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/chirino/memory-cloud/internal/cmd/cmdutil"
	"github.com/chirino/memory-cloud/internal/config"
	"github.com/chirino/memory-cloud/internal/model"
	registryingest "github.com/chirino/memory-cloud/internal/registry/ingest"
	"github.com/chirino/memory-cloud/internal/restorer"

	// Import plugins to trigger init() registration.
	_ "github.com/chirino/memory-cloud/internal/plugin/ingest/memorycli"
	_ "github.com/chirino/memory-cloud/internal/plugin/remote/postgres"
)

// Command returns the restore sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	intervalSecs := int(cfg.SyncInterval.Seconds())
	return &cli.Command{
		Name:  "restore",
		Usage: "Restore memories from the cloud store to the local store",
		Flags: append(cmdutil.CommonFlags(&cfg, &intervalSecs),
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Restore all memories",
			},
			&cli.BoolFlag{
				Name:  "deleted",
				Usage: "Restore locally-deleted memories",
			},
			&cli.StringFlag{
				Name:  "hash",
				Usage: "Restore by content hash (comma-separated)",
			},
			&cli.StringFlag{
				Name:  "search",
				Usage: "Search the cloud and restore matches",
			},
			&cli.IntFlag{
				Name:  "limit",
				Value: 10,
				Usage: "Max results for --search",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := cmdutil.RequireConfigured(&cfg); err != nil {
				return err
			}
			ctx = config.WithContext(ctx, &cfg)

			gateway, err := cmdutil.Gateway(ctx)
			if err != nil {
				return err
			}
			ingestLoader, err := registryingest.Select("memory-cli")
			if err != nil {
				return err
			}
			ingestor, err := ingestLoader(ctx)
			if err != nil {
				return err
			}
			r := &restorer.Restorer{Gateway: gateway, Ingestor: ingestor}

			var stats model.RestoreStats
			switch {
			case cmd.Bool("all"):
				fmt.Println("Restoring ALL memories from cloud...")
				stats = r.RestoreAll(ctx, true)
			case cmd.Bool("deleted"):
				fmt.Println("Restoring locally-deleted memories from cloud...")
				stats = r.RestoreDeleted(ctx)
			case cmd.String("hash") != "":
				hashes := strings.Split(cmd.String("hash"), ",")
				fmt.Printf("Restoring %d memories by hash...\n", len(hashes))
				stats = r.RestoreByHashes(ctx, hashes)
			case cmd.String("search") != "":
				query := cmd.String("search")
				fmt.Printf("Searching and restoring: %q...\n", query)
				stats = r.RestoreBySearch(ctx, query, cmd.Int("limit"))
			default:
				return cli.Exit("Specify --all, --deleted, --hash, or --search", 1)
			}

			out, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Printf("\nRestore complete: %s\n", out)
			return nil
		},
	}
}
