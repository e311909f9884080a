package sheets

import (
	"context"

	"astrofin/internal/core"
)

// Ports between the exporter and the outside world.
type (
	// RowAppender writes rows below the last filled row of a sheet and
	// reports how many rows were written.
	RowAppender interface {
		AppendRows(ctx context.Context, sheet string, rows [][]any) (int, error)
	}

	// LedgerSource lists the full income and expense ledgers.
	LedgerSource interface {
		ListIncome(ctx context.Context) ([]core.Income, error)
		ListExpenses(ctx context.Context) ([]core.Expense, error)
	}

	// StatsSource returns the dashboard aggregate, including the recent
	// transactions.
	StatsSource interface {
		Stats(ctx context.Context) (core.DashboardStats, error)
	}
)
