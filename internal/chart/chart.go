// Package chart scales the backend's dashboard aggregates into bar
// widths. It only lays out numbers; nothing here recomputes a total.
package chart

import (
	"astrofin/internal/core"
)

// MinVisible is the smallest width given to a non-zero value so it stays
// visible next to much larger bars.
const MinVisible = 2

// Width returns v as a whole percentage of largest, in [0, 100]. Non-zero
// values below MinVisible are lifted to it.
func Width(v, largest int64) int {
	if largest <= 0 || v <= 0 {
		return 0
	}
	if v >= largest {
		return 100
	}
	pct := int((v*100 + largest/2) / largest)
	if pct < MinVisible {
		return MinVisible
	}
	return pct
}

// MonthBar is one month of the income/expense chart.
type MonthBar struct {
	Name         string
	Income       core.Money
	Expense      core.Money
	IncomeWidth  int
	ExpenseWidth int
}

// Monthly scales every bar against the largest income or expense of the
// period, so both series share one axis.
func Monthly(stats []core.MonthlyStat) []MonthBar {
	var largest int64
	for _, m := range stats {
		if m.Income.Cents > largest {
			largest = m.Income.Cents
		}
		if m.Expense.Cents > largest {
			largest = m.Expense.Cents
		}
	}
	out := make([]MonthBar, 0, len(stats))
	for _, m := range stats {
		out = append(out, MonthBar{
			Name:         m.Name,
			Income:       m.Income,
			Expense:      m.Expense,
			IncomeWidth:  Width(m.Income.Cents, largest),
			ExpenseWidth: Width(m.Expense.Cents, largest),
		})
	}
	return out
}

// CategoryBar is one slice of the expense breakdown.
type CategoryBar struct {
	Category core.ExpenseCategory
	Label    string
	Total    core.Money
	// Share is the percentage of all category spending.
	Share int
	// Width is relative to the largest category.
	Width int
}

// Categories keeps the backend order (largest first).
func Categories(stats []core.CategoryStat) []CategoryBar {
	var largest, sum int64
	for _, c := range stats {
		sum += c.Total.Cents
		if c.Total.Cents > largest {
			largest = c.Total.Cents
		}
	}
	out := make([]CategoryBar, 0, len(stats))
	for _, c := range stats {
		share := 0
		if sum > 0 && c.Total.Cents > 0 {
			share = int((c.Total.Cents*100 + sum/2) / sum)
		}
		out = append(out, CategoryBar{
			Category: c.Category,
			Label:    c.Category.Label(),
			Total:    c.Total,
			Share:    share,
			Width:    Width(c.Total.Cents, largest),
		})
	}
	return out
}
