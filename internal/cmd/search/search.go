package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/chirino/memory-cloud/internal/cmd/cmdutil"
	"github.com/chirino/memory-cloud/internal/config"

	// Import plugins to trigger init() registration.
	_ "github.com/chirino/memory-cloud/internal/plugin/remote/postgres"
)

// Command returns the search sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	intervalSecs := int(cfg.SyncInterval.Seconds())
	return &cli.Command{
		Name:      "search",
		Usage:     "Search cloud memories",
		ArgsUsage: "QUERY...",
		Flags: append(cmdutil.CommonFlags(&cfg, &intervalSecs),
			&cli.IntFlag{
				Name:  "limit",
				Value: 10,
				Usage: "Max results",
			},
			&cli.BoolFlag{
				Name:  "include-deleted",
				Usage: "Include locally-deleted memories",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := cmdutil.RequireConfigured(&cfg); err != nil {
				return err
			}
			if cmd.Args().Len() == 0 {
				return cli.Exit("Usage: memory-cloud search QUERY", 1)
			}
			ctx = config.WithContext(ctx, &cfg)

			gateway, err := cmdutil.Gateway(ctx)
			if err != nil {
				return err
			}

			query := strings.Join(cmd.Args().Slice(), " ")
			includeDeleted := cmd.Bool("include-deleted")
			fmt.Printf("Searching cloud for: %q\n", query)
			fmt.Printf("Include deleted: %v\n\n", includeDeleted)

			results := gateway.SearchByText(ctx, query, cmd.Int("limit"), includeDeleted)
			if len(results) == 0 {
				fmt.Println("No results found.")
				return nil
			}

			for i, m := range results {
				memoryType := m.MemoryType
				if memoryType == "" {
					memoryType = "note"
				}
				var marks string
				if m.LocalDeleted {
					marks += " [DELETED LOCALLY]"
				}
				if m.IsSummary {
					marks += " [SUMMARY]"
				}
				fmt.Printf("--- %d. %s%s ---\n", i+1, memoryType, marks)
				hash := m.ContentHash
				if len(hash) > 16 {
					hash = hash[:16] + "..."
				}
				fmt.Printf("Hash: %s\n", hash)
				tags := m.Tags
				if tags == "" {
					tags = "none"
				}
				fmt.Printf("Tags: %s\n", tags)
				content := m.Content
				if len(content) > 300 {
					content = content[:300] + "..."
				}
				fmt.Printf("Content: %s\n\n", content)
			}
			fmt.Printf("Found %d results.\n", len(results))
			return nil
		},
	}
}
