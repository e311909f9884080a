package views

import (
	"context"
	"sync"

	"astrofin/internal/api"
	"astrofin/internal/core"
	applog "astrofin/internal/log"
)

type StatsAPI interface {
	Stats(ctx context.Context) (core.DashboardStats, error)
}

// Dashboard shows the backend's aggregate. Nothing on it is recomputed
// locally.
type Dashboard struct {
	client   StatsAPI
	settings settings

	mu      sync.Mutex
	status  Status
	stats   core.DashboardStats
	err     error
	message string
}

func NewDashboard(client StatsAPI, opts ...Option) *Dashboard {
	return &Dashboard{client: client, settings: newSettings(opts), status: StatusIdle}
}

func (d *Dashboard) Load(ctx context.Context) error {
	d.mu.Lock()
	d.status = StatusLoading
	d.mu.Unlock()

	st, err := d.client.Stats(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.status = StatusError
		d.err = err
		d.message = api.MessageOr(err, "Failed to load dashboard")
		d.settings.logger.ErrorContext(ctx, "Failed to load stats", applog.FieldError, err)
		return err
	}
	d.stats = st
	d.status = StatusReady
	d.err, d.message = nil, ""
	return nil
}

// DashboardState is a snapshot of the dashboard.
type DashboardState struct {
	Status  Status
	Stats   core.DashboardStats
	Err     error
	Message string
}

func (d *Dashboard) State() DashboardState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DashboardState{Status: d.status, Stats: d.stats, Err: d.err, Message: d.message}
}
