package summarize

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/chirino/memory-cloud/internal/cmd/cmdutil"
	"github.com/chirino/memory-cloud/internal/config"
	"github.com/chirino/memory-cloud/internal/summarizer"

	// Import plugins to trigger init() registration.
	_ "github.com/chirino/memory-cloud/internal/plugin/remote/postgres"
)

// Command returns the summarize sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	intervalSecs := int(cfg.SyncInterval.Seconds())
	opts := summarizer.DefaultOptions()
	return &cli.Command{
		Name:  "summarize",
		Usage: "Create additive summaries from clusters of similar memories",
		Flags: append(cmdutil.CommonFlags(&cfg, &intervalSecs),
			&cli.FloatFlag{
				Name:        "threshold",
				Destination: &opts.Threshold,
				Value:       opts.Threshold,
				Usage:       "Min cosine similarity for clustering (0-1)",
			},
			&cli.IntFlag{
				Name:        "min-cluster",
				Destination: &opts.MinClusterSize,
				Value:       opts.MinClusterSize,
				Usage:       "Min memories per cluster",
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Destination: &opts.DryRun,
				Usage:       "Preview without persisting",
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

			fmt.Println("Running non-destructive summarization...")
			fmt.Printf("  Similarity threshold: %v\n", opts.Threshold)
			fmt.Printf("  Min cluster size:     %d\n", opts.MinClusterSize)
			fmt.Printf("  Dry run:              %v\n\n", opts.DryRun)

			s := &summarizer.Summarizer{Gateway: gateway}
			stats := s.Run(ctx, opts)

			fmt.Println("\nSummarization complete:")
			fmt.Printf("  Total memories:    %d\n", stats.TotalMemories)
			fmt.Printf("  Clusters found:    %d\n", stats.ClustersFound)
			fmt.Printf("  Summaries created: %d\n", stats.SummariesCreated)
			fmt.Printf("  Memories covered:  %d\n", stats.MemoriesCovered)
			if stats.DryRun {
				fmt.Println("  (dry run - no changes made)")
			}
			return nil
		},
	}
}
