// Package tui renders dashboard data and record lists for the terminal
// client. Output adapts to the writer: colors on a terminal, plain text
// when piped.
package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"astrofin/internal/chart"
	"astrofin/internal/core"
	"astrofin/internal/views"
)

// BarWidth is the length in cells of a 100% bar.
const BarWidth = 30

type Renderer struct {
	lg       *lipgloss.Renderer
	theme    Theme
	currency string
}

// New returns a renderer whose color profile matches w.
func New(w io.Writer, currency string) *Renderer {
	return &Renderer{lg: lipgloss.NewRenderer(w), theme: DefaultTheme, currency: currency}
}

func (r *Renderer) style() lipgloss.Style { return r.lg.NewStyle() }

func (r *Renderer) money(m core.Money) string { return core.FormatCurrency(m, r.currency) }

func (r *Renderer) heading(title string) string {
	return r.style().Bold(true).Foreground(r.theme.HeaderForeground).Render(title)
}

func (r *Renderer) faint(s string) string {
	return r.style().Foreground(r.theme.FaintText).Render(s)
}

// bar draws pct of BarWidth, never less than one cell for a non-zero pct.
func bar(pct int) string {
	if pct <= 0 {
		return ""
	}
	n := pct * BarWidth / 100
	if n < 1 {
		n = 1
	}
	return strings.Repeat("█", n)
}

func (r *Renderer) card(label, value string, color lipgloss.Color) string {
	return r.style().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(r.theme.BorderColor).
		Padding(0, 1).
		Render(r.faint(label) + "\n" + r.style().Bold(true).Foreground(color).Render(value))
}

// Summary renders the dashboard: totals, the monthly chart, the category
// breakdown and recent transactions. Every figure comes from stats.
func (r *Renderer) Summary(stats core.DashboardStats) string {
	var b strings.Builder

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		r.card("Total Income", r.money(stats.TotalIncome), r.theme.Income),
		r.card("Total Expenses", r.money(stats.TotalExpense), r.theme.Expense),
		r.card("Balance", r.money(stats.Balance), r.theme.Balance),
		r.card("Liabilities", r.money(stats.TotalLiabilities), r.theme.Warning),
	))
	b.WriteString("\n\n")

	b.WriteString(r.heading("Monthly Overview") + "\n")
	months := chart.Monthly(stats.MonthlyStats)
	if len(months) == 0 {
		b.WriteString(r.faint("No monthly data yet.") + "\n")
	}
	income := r.style().Foreground(r.theme.Income)
	expense := r.style().Foreground(r.theme.Expense)
	for _, m := range months {
		fmt.Fprintf(&b, "%-4s %s %s\n", m.Name, income.Render(bar(m.IncomeWidth)), r.money(m.Income))
		fmt.Fprintf(&b, "%-4s %s %s\n", "", expense.Render(bar(m.ExpenseWidth)), r.money(m.Expense))
	}
	b.WriteString("\n")

	b.WriteString(r.heading("Expenses by Category") + "\n")
	cats := chart.Categories(stats.CategoryStats)
	if len(cats) == 0 {
		b.WriteString(r.faint("No expenses yet.") + "\n")
	}
	labelWidth := 0
	for _, c := range cats {
		labelWidth = max(labelWidth, lipgloss.Width(c.Label))
	}
	for _, c := range cats {
		fmt.Fprintf(&b, "%-*s %s %s (%d%%)\n", labelWidth, c.Label, expense.Render(bar(c.Width)), r.money(c.Total), c.Share)
	}
	b.WriteString("\n")

	b.WriteString(r.heading("Recent Transactions") + "\n")
	if len(stats.RecentTransactions) == 0 {
		b.WriteString(r.faint("No transactions yet.") + "\n")
		return b.String()
	}
	rows := make([][]string, 0, len(stats.RecentTransactions))
	for _, t := range stats.RecentTransactions {
		rows = append(rows, []string{t.Date.String(), t.Title, t.Sign() + r.money(t.Amount)})
	}
	b.WriteString(r.table([]string{"Date", "Title", "Amount"}, rows, func(row, col int) lipgloss.Style {
		if col != 2 || row < 0 {
			return lipgloss.Style{}
		}
		if stats.RecentTransactions[row].Type == core.TransactionIncome {
			return income
		}
		return expense
	}) + "\n")
	return b.String()
}

// cellStyle returns extra styling for a body cell; row is 0-based.
type cellStyle func(row, col int) lipgloss.Style

func (r *Renderer) table(headers []string, rows [][]string, extra cellStyle) string {
	header := r.style().Bold(true).Foreground(r.theme.HeaderForeground).Padding(0, 1)
	cell := r.style().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.style().Foreground(r.theme.BorderColor)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if extra != nil && row >= 0 && row < len(rows) {
				return cell.Inherit(extra(row, col))
			}
			return cell
		})
	return t.String()
}

func id(n int64) string { return strconv.FormatInt(n, 10) }

// Income lists income records.
func (r *Renderer) Income(list []core.Income) string {
	if len(list) == 0 {
		return r.faint("No income recorded.")
	}
	rows := make([][]string, 0, len(list))
	for _, in := range list {
		rows = append(rows, []string{id(in.ID), in.Date.String(), in.Source, r.money(in.Amount), in.Description})
	}
	return r.table([]string{"ID", "Date", "Source", "Amount", "Description"}, rows, nil)
}

// Expenses lists expense records, including Salary and Liability entries.
func (r *Renderer) Expenses(list []core.Expense) string {
	if len(list) == 0 {
		return r.faint("No expenses recorded.")
	}
	rows := make([][]string, 0, len(list))
	for _, ex := range list {
		rows = append(rows, []string{id(ex.ID), ex.Date.String(), ex.Category.Label(), r.money(ex.Amount), ex.Description})
	}
	return r.table([]string{"ID", "Date", "Category", "Amount", "Description"}, rows, nil)
}

// Liabilities lists debts with remaining balance and progress.
func (r *Renderer) Liabilities(list []views.LiabilityRow) string {
	if len(list) == 0 {
		return r.faint("No liabilities recorded.")
	}
	rows := make([][]string, 0, len(list))
	for _, l := range list {
		status := "Due"
		if l.Settled {
			status = "Fully Paid"
		}
		rows = append(rows, []string{
			id(l.ID), l.Title, r.money(l.TotalAmount), r.money(l.PaidAmount), r.money(l.Remaining),
			fmt.Sprintf("%3d%%", l.Progress), l.DueDate.String(), status,
		})
	}
	settled := r.style().Foreground(r.theme.Settled)
	due := r.style().Foreground(r.theme.Warning)
	return r.table([]string{"ID", "Title", "Total", "Paid", "Remaining", "Progress", "Due Date", "Status"}, rows,
		func(row, col int) lipgloss.Style {
			if col != 7 {
				return lipgloss.Style{}
			}
			if list[row].Settled {
				return settled
			}
			return due
		})
}

// Customers lists clients in the order given.
func (r *Renderer) Customers(list []core.Customer) string {
	if len(list) == 0 {
		return r.faint("No clients found.")
	}
	rows := make([][]string, 0, len(list))
	for _, c := range list {
		status := "Fully Paid"
		if c.Due() {
			status = "Due " + r.money(c.Remaining())
		}
		var flags []string
		if c.IsPaymentConfirmed {
			flags = append(flags, "confirmed")
		}
		if c.IsProjectDelivered {
			flags = append(flags, "delivered")
		}
		rows = append(rows, []string{
			id(c.ID), c.Name, c.ProjectName, r.money(c.TotalAmount), r.money(c.TotalPaid), status, strings.Join(flags, ", "),
		})
	}
	due := r.style().Foreground(r.theme.Warning)
	return r.table([]string{"ID", "Client", "Project", "Total", "Paid", "Status", "Flags"}, rows,
		func(row, col int) lipgloss.Style {
			if col == 5 && list[row].Due() {
				return due
			}
			return lipgloss.Style{}
		})
}

// ClientPayments lists one client's payment history and flags a total
// that disagrees with the history.
func (r *Renderer) ClientPayments(c core.Customer, h views.History) string {
	var b strings.Builder
	b.WriteString(r.heading(fmt.Sprintf("%s: %s", c.Name, c.ProjectName)) + "\n")
	fmt.Fprintf(&b, "Total %s, advance %s, paid %s, remaining %s\n",
		r.money(c.TotalAmount), r.money(c.AdvanceAmount), r.money(c.TotalPaid), r.money(c.Remaining()))
	if h.Message != "" {
		b.WriteString(r.style().Foreground(r.theme.Expense).Render(h.Message) + "\n")
		return b.String()
	}
	if h.Mismatch != nil {
		b.WriteString(r.style().Foreground(r.theme.Warning).Render(fmt.Sprintf(
			"Recorded total %s differs from advance plus payments %s",
			r.money(h.Mismatch.Backend), r.money(h.Mismatch.Itemized))) + "\n")
	}
	if len(h.Payments) == 0 {
		b.WriteString(r.faint("No payments recorded.") + "\n")
		return b.String()
	}
	rows := make([][]string, 0, len(h.Payments))
	for _, p := range h.Payments {
		rows = append(rows, []string{id(p.ID), p.Date.String(), r.money(p.Amount), p.Note})
	}
	b.WriteString(r.table([]string{"ID", "Date", "Amount", "Note"}, rows, nil) + "\n")
	return b.String()
}

// Employees lists staff with their display status.
func (r *Renderer) Employees(list []core.Employee) string {
	if len(list) == 0 {
		return r.faint("No employees recorded.")
	}
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		rows = append(rows, []string{id(e.ID), e.Name, e.Role, r.money(e.BaseSalary), string(e.Status.Display()), e.Email})
	}
	return r.table([]string{"ID", "Name", "Role", "Base Salary", "Status", "Email"}, rows, nil)
}

// Payroll lists salary payments.
func (r *Renderer) Payroll(list []core.PayrollPayment) string {
	if len(list) == 0 {
		return r.faint("No salary payments recorded.")
	}
	rows := make([][]string, 0, len(list))
	for _, p := range list {
		rows = append(rows, []string{id(p.ID), p.PaymentDate.String(), p.EmployeeName, p.Title, r.money(p.Amount)})
	}
	return r.table([]string{"ID", "Date", "Employee", "Title", "Amount"}, rows, nil)
}
