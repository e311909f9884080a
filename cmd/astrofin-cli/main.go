// Command astrofin-cli is the terminal client of the finance backend.
package main

import (
	"context"
	"fmt"
	"os"

	"astrofin/internal/cli"
	"astrofin/internal/clock"
	"astrofin/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cli.LoadEnvFile()
	cfg := config.Load()
	// A terminal client keeps its session in the user's config dir
	// unless told otherwise.
	if os.Getenv("SESSION_BACKEND") == "" {
		cfg.SessionBackend = "file"
	}
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logger := cli.SetupLogger(level, os.Stderr)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	clk := clock.Real()
	store, release, err := cli.OpenSessionStore(ctx, logger, cfg, clk)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer release()

	pub := cli.NewPublisher(cfg, logger, clk)
	if pub != nil {
		defer pub.Close()
	}
	client := cli.NewAPIClient(cfg, store, clk, logger, pub)

	a := newApp(ctx, cfg, client, logger, clk, os.Stdin, os.Stdout, os.Stderr)
	return a.run(args)
}
