package status

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/chirino/memory-cloud/internal/cmd/cmdutil"
	"github.com/chirino/memory-cloud/internal/config"
	"github.com/chirino/memory-cloud/internal/localstore"
	"github.com/chirino/memory-cloud/internal/plugin/remote/postgres"
)

// Command returns the status sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	intervalSecs := int(cfg.SyncInterval.Seconds())
	return &cli.Command{
		Name:  "status",
		Usage: "Show sync health and cloud storage counts",
		Flags: cmdutil.CommonFlags(&cfg, &intervalSecs),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cmdutil.ApplyInterval(&cfg, intervalSecs)
			ctx = config.WithContext(ctx, &cfg)

			fmt.Println("==================================================")
			fmt.Println("  Memory Cloud Status")
			fmt.Println("==================================================")
			fmt.Println()

			summary := cfg.Summary()
			fmt.Println("Configuration:")
			fmt.Printf("  Remote URL:    %v\n", summary["remote_url"])
			fmt.Printf("  Service Key:   %v\n", summary["service_key"])
			fmt.Printf("  Local DB:      %v\n", summary["local_db_path"])
			fmt.Printf("  DB exists:     %s\n", yesNo(summary["local_db_exists"].(bool)))
			fmt.Printf("  Device:        %v\n", summary["device_name"])
			fmt.Printf("  Sync interval: %v\n", summary["sync_interval"])
			fmt.Printf("  Configured:    %s\n", yesNo(summary["configured"].(bool)))
			fmt.Println()

			if !cfg.IsConfigured() {
				fmt.Println("Run 'memory-cloud setup' to configure the cloud store.")
				return nil
			}

			gateway, err := cmdutil.Gateway(ctx)
			if err != nil {
				return err
			}
			stats, err := gateway.GetStats(ctx)
			if err != nil {
				if postgres.SchemaMissing(err) {
					fmt.Println("Cloud schema not installed. Run: memory-cloud migrate")
					return nil
				}
				fmt.Printf("Cloud error: %v\n", err)
				return nil
			}

			fmt.Println("Cloud Storage:")
			fmt.Printf("  Total memories:  %d\n", stats.TotalMemories)
			fmt.Printf("  Active:          %d\n", stats.ActiveMemories)
			fmt.Printf("  Deleted locally: %d\n", stats.LocallyDeleted)
			fmt.Printf("  Summaries:       %d\n", stats.Summaries)
			fmt.Printf("  Graph edges:     %d\n", stats.GraphEdges)
			fmt.Printf("  Deletion log:    %d\n", stats.DeletionLogEntries)
			fmt.Println()

			state := gateway.GetSyncState(ctx, cfg.DeviceName)
			fmt.Println("Sync State:")
			lastSync := "never"
			if !state.LastSyncAt.IsZero() {
				lastSync = state.LastSyncAt.Local().Format("2006-01-02 15:04:05")
			}
			fmt.Printf("  Last sync:       %s\n", lastSync)
			fmt.Printf("  Memories synced: %d\n", state.MemoriesSynced)
			fmt.Printf("  Status:          %s\n", state.Status)

			if summary["local_db_exists"].(bool) {
				local, err := localstore.Open(cfg.LocalDBPath)
				if err != nil {
					fmt.Printf("\nLocal DB read error: %v\n", err)
					return nil
				}
				defer local.Close()
				count, err := local.ActiveCount(ctx)
				if err != nil {
					fmt.Printf("\nLocal DB read error: %v\n", err)
					return nil
				}
				fmt.Println()
				fmt.Println("Local Storage:")
				fmt.Printf("  Active memories: %d\n", count)
				if cloudOnly := stats.TotalMemories - count; stats.TotalMemories > 0 && cloudOnly > 0 {
					fmt.Printf("  Cloud-only:      %d (preserved from deletion)\n", cloudOnly)
				}
			}
			return nil
		},
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "NO"
}
