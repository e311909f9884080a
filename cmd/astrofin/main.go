package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"

	"astrofin/internal/cli"
	"astrofin/internal/clock"
	apphttp "astrofin/internal/http"
	applog "astrofin/internal/log"
)

func main() {
	demo := pflag.Bool("demo", false, "serve against a seeded in-process backend (login demo/demo)")
	pflag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
	cfg := cli.LoadAndValidateConfig(logger)
	clk := clock.Real()

	var stopDemo func()
	if *demo {
		url, stop, err := cli.StartDemoBackend(logger, clk)
		if err != nil {
			logger.Error("Failed to start demo backend", applog.FieldError, err)
			os.Exit(1)
		}
		cfg.APIURL, stopDemo = url, stop
		cfg.SessionBackend = "memory"
	}

	store, releaseStore, err := cli.OpenSessionStore(context.Background(), logger, cfg, clk)
	if err != nil {
		logger.Error("Failed to initialize session store", applog.FieldError, err, applog.FieldBackend, cfg.SessionBackend)
		os.Exit(1)
	}
	pub := cli.NewPublisher(cfg, logger, clk)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:     store,
		NewClient: cli.NewClientFactory(cfg, clk, logger, pub),
		Logger:    logger,
		Clock:     clk,
		Currency:  cfg.CurrencyPrefix,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.APITimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if pub != nil {
			_ = pub.Close()
		}
		releaseStore()
		if stopDemo != nil {
			stopDemo()
		}
	})

	logger.Info("Starting astrofin server",
		"port", cfg.Port,
		"api_url", cfg.APIURL,
		applog.FieldBackend, cfg.SessionBackend,
		applog.FieldOperation, applog.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
