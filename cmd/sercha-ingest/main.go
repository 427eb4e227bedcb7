// Command sercha-ingest runs the record ingestion pipeline and its
// management commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// Set by goreleaser.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() { _ = logger.Sync() }()

	cli.SetVersion(version)

	configStore, err := file.NewConfigStore(os.Getenv("SERCHA_INGEST_HOME"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		return 1
	}

	app, err := newApp(ctx, configStore)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer app.Close()

	cli.SetServices(&cli.Services{
		Tasks:       app.pipeline.Tasks,
		Search:      app.pipeline.Search,
		Crawl:       app.pipeline.Crawler,
		Runner:      app,
		ConfigStore: configStore,
	})

	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}
