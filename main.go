package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/chirino/memory-cloud/internal/cmd/cmdutil"
	"github.com/chirino/memory-cloud/internal/cmd/migrate"
	"github.com/chirino/memory-cloud/internal/cmd/restore"
	"github.com/chirino/memory-cloud/internal/cmd/search"
	"github.com/chirino/memory-cloud/internal/cmd/setup"
	"github.com/chirino/memory-cloud/internal/cmd/status"
	"github.com/chirino/memory-cloud/internal/cmd/summarize"
	syncmd "github.com/chirino/memory-cloud/internal/cmd/sync"
	"github.com/chirino/memory-cloud/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.LoadEnvFile()

	app := &cli.Command{
		Name:  "memory-cloud",
		Usage: "Cloud backup and sync for local memory stores",
		Commands: []*cli.Command{
			setup.Command(),
			syncmd.Command(),
			status.Command(),
			search.Command(),
			restore.Command(),
			summarize.Command(),
			migrate.Command(),
		},
	}
	err := app.Run(ctx, os.Args)
	cmdutil.CloseGateway()
	if err != nil {
		log.Fatal(err)
	}
}
