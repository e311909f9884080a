// Package sheets turns ledger records into spreadsheet rows and pushes
// them through a RowAppender.
package sheets

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"astrofin/internal/core"
	applog "astrofin/internal/log"
)

// Header is the first row written when Options.Header is set.
var Header = []any{"Date", "Type", "Title", "Category", "Amount", "Description"}

// Row is one exported transaction.
type Row struct {
	ID          int64
	Date        core.Date
	Type        core.TransactionType
	Title       string
	Category    string
	Amount      core.Money
	Description string
}

// Values renders the row in Header order. Amounts are plain decimals so
// the sheet parses them as numbers.
func (r Row) Values() []any {
	return []any{r.Date.String(), string(r.Type), r.Title, r.Category, r.Amount.String(), r.Description}
}

// Options narrows what an export writes.
type Options struct {
	// Header prepends the column titles.
	Header bool
	// Since drops rows dated before it. The zero Date keeps everything.
	Since core.Date
}

// Result describes a finished export.
type Result struct {
	Sheet string
	Rows  int
}

var ErrNoSheet = errors.New("sheet name is required")

// Exporter writes ledger rows to one sheet.
type Exporter struct {
	out    RowAppender
	sheet  string
	logger *applog.Logger
}

func NewExporter(out RowAppender, sheet string, logger *applog.Logger) *Exporter {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Exporter{out: out, sheet: sheet, logger: logger.WithComponent(applog.ComponentSheets)}
}

// LedgerRows merges income and expenses into date order. Same-day income
// comes before expenses.
func LedgerRows(income []core.Income, expenses []core.Expense) []Row {
	rows := make([]Row, 0, len(income)+len(expenses))
	for _, in := range income {
		rows = append(rows, Row{
			ID:          in.ID,
			Date:        in.Date,
			Type:        core.TransactionIncome,
			Title:       in.Source,
			Amount:      in.Amount,
			Description: in.Description,
		})
	}
	for _, ex := range expenses {
		rows = append(rows, Row{
			ID:          ex.ID,
			Date:        ex.Date,
			Type:        core.TransactionExpense,
			Title:       ex.Category.Label(),
			Category:    string(ex.Category),
			Amount:      ex.Amount,
			Description: ex.Description,
		})
	}
	slices.SortStableFunc(rows, func(a, b Row) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		if a.Type != b.Type {
			if a.Type == core.TransactionIncome {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return rows
}

// RecentRows maps the dashboard's recent transactions, oldest first.
func RecentRows(stats core.DashboardStats) []Row {
	rows := make([]Row, 0, len(stats.RecentTransactions))
	for i := len(stats.RecentTransactions) - 1; i >= 0; i-- {
		t := stats.RecentTransactions[i]
		rows = append(rows, Row{ID: t.ID, Date: t.Date, Type: t.Type, Title: t.Title, Amount: t.Amount})
	}
	return rows
}

// ExportLedger fetches both ledgers concurrently and appends them.
func (e *Exporter) ExportLedger(ctx context.Context, src LedgerSource, opts Options) (Result, error) {
	var (
		income   []core.Income
		expenses []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		income, err = src.ListIncome(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = src.ListExpenses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("fetch ledger: %w", err)
	}
	return e.write(ctx, LedgerRows(income, expenses), opts)
}

// ExportRecent appends the dashboard's recent transactions.
func (e *Exporter) ExportRecent(ctx context.Context, src StatsSource, opts Options) (Result, error) {
	stats, err := src.Stats(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stats: %w", err)
	}
	return e.write(ctx, RecentRows(stats), opts)
}

func (e *Exporter) write(ctx context.Context, rows []Row, opts Options) (Result, error) {
	if e.sheet == "" {
		return Result{}, ErrNoSheet
	}
	values := make([][]any, 0, len(rows)+1)
	if opts.Header {
		values = append(values, Header)
	}
	for _, r := range rows {
		if !opts.Since.IsZero() && r.Date.Before(opts.Since.Time) {
			continue
		}
		values = append(values, r.Values())
	}
	res := Result{Sheet: e.sheet}
	if len(values) == 0 {
		e.logger.InfoContext(ctx, "Nothing to export", "sheet", e.sheet)
		return res, nil
	}

	n, err := e.out.AppendRows(ctx, e.sheet, values)
	if err != nil {
		return res, fmt.Errorf("append rows: %w", err)
	}
	res.Rows = n
	e.logger.InfoContext(ctx, "Exported rows",
		applog.FieldOperation, applog.OpExport,
		"sheet", e.sheet,
		"rows", n)
	return res, nil
}
