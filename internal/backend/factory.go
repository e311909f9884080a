package backend

import (
	"context"
	"fmt"

	"astrofin/internal/clock"
	applog "astrofin/internal/log"
	"astrofin/internal/session"
	"astrofin/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
	clock  clock.Clock
}

// NewFactory creates a new store factory
func NewFactory(logger *applog.Logger, clk clock.Clock) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentStorage),
		clock:  clk,
	}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSessionRepository(config.SQLiteDBPath, f.clock)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite session store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite session store", "db_path", config.SQLiteDBPath)
		return &Result{Store: repo, Cleanup: repo.Close}, nil

	case FileBackend:
		f.logger.InfoContext(ctx, "Initialized file session store", "path", config.SessionFile)
		return &Result{Store: session.NewFileStore(config.SessionFile)}, nil

	case MemoryBackend:
		f.logger.InfoContext(ctx, "Initialized memory session store")
		return &Result{Store: session.NewMemoryStore()}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
