package setup

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/chirino/memory-cloud/internal/cmd/cmdutil"
	"github.com/chirino/memory-cloud/internal/config"
	"github.com/chirino/memory-cloud/internal/engine"
	"github.com/chirino/memory-cloud/internal/localstore"
	"github.com/chirino/memory-cloud/internal/plugin/remote/postgres"
	registrymigrate "github.com/chirino/memory-cloud/internal/registry/migrate"
)

// Command returns the setup sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	intervalSecs := int(cfg.SyncInterval.Seconds())
	return &cli.Command{
		Name:  "setup",
		Usage: "Interactive cloud store setup",
		Flags: cmdutil.CommonFlags(&cfg, &intervalSecs),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cmdutil.ApplyInterval(&cfg, intervalSecs)

			fmt.Println("==================================================")
			fmt.Println("  Memory Cloud Setup")
			fmt.Println("==================================================")
			fmt.Println()
			fmt.Println("You need a Postgres instance with the pgvector extension")
			fmt.Println("(any managed Postgres offering works).")
			fmt.Println()

			reader := bufio.NewReader(os.Stdin)
			url, err := prompt(reader, "Cloud Postgres URL (postgres://host:port/db): ")
			if err != nil {
				return err
			}
			key, err := prompt(reader, "Service credential: ")
			if err != nil {
				return err
			}
			if url == "" || key == "" {
				return cli.Exit("Both URL and credential are required.", 1)
			}

			if err := config.WriteEnvFile(url, key, cfg.DeviceName, intervalSecs); err != nil {
				return fmt.Errorf("write env file: %w", err)
			}
			fmt.Printf("\nCredentials saved to %s\n", config.EnvFilePath())

			cfg.RemoteURL = url
			cfg.RemoteServiceKey = key
			ctx = config.WithContext(ctx, &cfg)

			fmt.Println("\nInstalling cloud schema...")
			if err := registrymigrate.RunAll(ctx); err != nil {
				fmt.Printf("Schema install failed: %v\n", err)
				fmt.Println("Fix connectivity and run: memory-cloud migrate")
				return nil
			}

			fmt.Println("\nTesting cloud connection...")
			gateway, err := cmdutil.Gateway(ctx)
			if err != nil {
				fmt.Printf("Connection failed: %v\n", err)
				return nil
			}
			if _, err := gateway.GetStats(ctx); err != nil {
				if postgres.SchemaMissing(err) {
					fmt.Println("Connection successful! (schema still missing; run: memory-cloud migrate)")
				} else {
					fmt.Printf("Connection test: %v\n", err)
				}
				return nil
			}
			fmt.Println("Connection successful!")

			fmt.Println("\nRunning initial sync...")
			eng := &engine.Engine{
				Gateway: gateway,
				Device:  cfg.DeviceName,
				OpenLocal: func() (engine.LocalReader, error) {
					return localstore.Open(cfg.LocalDBPath)
				},
			}
			stats := eng.RunCycle(ctx)
			if stats.ErrorMessage != "" {
				fmt.Printf("Initial sync will run on next daemon start: %s\n", stats.ErrorMessage)
			} else {
				fmt.Printf("Synced %d memories to cloud!\n", stats.NewMemories)
			}

			fmt.Println()
			fmt.Println("==================================================")
			fmt.Println("  Setup complete!")
			fmt.Println("==================================================")
			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  1. Start sync: memory-cloud sync --daemon")
			fmt.Println("  2. Check health: memory-cloud status")
			return nil
		},
	}
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
