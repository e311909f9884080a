// Package cli provides the start-up steps shared by cmd/astrofin and
// cmd/astrofin-cli.
package cli

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"astrofin/internal/amqp"
	"astrofin/internal/api"
	"astrofin/internal/backend"
	"astrofin/internal/clock"
	"astrofin/internal/config"
	"astrofin/internal/fakeapi"
	applog "astrofin/internal/log"
	"astrofin/internal/session"
)

// SetupLogger builds the process logger and makes it the slog default.
func SetupLogger(level string, out io.Writer) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		Component: applog.ComponentApp,
		Output:    out,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenSessionStore creates the configured session store. The returned
// func releases it.
func OpenSessionStore(ctx context.Context, logger *applog.Logger, cfg *config.Config, clk clock.Clock) (session.Store, func(), error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger, clk).CreateStore(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if res.Cleanup == nil {
			return
		}
		if err := res.Cleanup(); err != nil {
			logger.Warn("Failed to close session store", applog.FieldBackend, bcfg.Type, applog.FieldError, err)
		}
	}
	return res.Store, release, nil
}

// NewPublisher returns the mutation event publisher, or nil when no
// broker is configured.
func NewPublisher(cfg *config.Config, logger *applog.Logger, clk clock.Clock) *amqp.Publisher {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	logger.Info("Publishing mutation events", "exchange", cfg.AMQPExchange, "routing_prefix", cfg.AMQPRoutingPrefix)
	return amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingPrefix,
		amqp.WithLogger(logger), amqp.WithClock(clk))
}

// NewAPIClient wires the session and, when set, the publisher into an
// API client for cfg.APIURL.
func NewAPIClient(cfg *config.Config, store session.Store, clk clock.Clock, logger *applog.Logger, pub *amqp.Publisher) *api.Client {
	return NewClientFactory(cfg, clk, logger, pub)(session.New(store, clk))
}

// NewClientFactory returns a constructor of API clients sharing cfg, the
// logger and the publisher. The web server builds one client per browser
// session with it.
func NewClientFactory(cfg *config.Config, clk clock.Clock, logger *applog.Logger, pub *amqp.Publisher) func(*session.Session) *api.Client {
	opts := []api.Option{api.WithLogger(logger), api.WithClock(clk)}
	if pub != nil {
		opts = append(opts, api.WithObserver(pub))
	}
	return func(sess *session.Session) *api.Client {
		return api.New(cfg.APIURL, sess, cfg.APITimeout, opts...)
	}
}

// StartDemoBackend serves a seeded in-process backend on a loopback port
// and returns its base URL. Log in with fakeapi.DemoUser.
func StartDemoBackend(logger *applog.Logger, clk clock.Clock) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	fake := fakeapi.New(clk, fakeapi.WithLogger(logger))
	fake.SeedDemo()
	srv := &http.Server{Handler: fake, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Demo backend stopped", applog.FieldError, err)
		}
	}()
	url := "http://" + ln.Addr().String()
	logger.Info("Demo backend listening", "url", url, "username", fakeapi.DemoUser)

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return url, stop, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has finished.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return shutdownOn(sigChan, logger, timeout, cleanup)
}

func shutdownOn(sigChan <-chan os.Signal, logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
