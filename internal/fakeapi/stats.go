package fakeapi

import (
	"net/http"
	"sort"
	"time"

	"astrofin/internal/core"
)

const recentLimit = 5

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.statsLocked(s.clock.Now())
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

// statsLocked builds the dashboard aggregate: totals, the five most recent
// transactions, expense totals per category (largest first) and income
// and expense for the last six calendar months, oldest first.
func (s *Server) statsLocked(now time.Time) core.DashboardStats {
	var st core.DashboardStats

	txs := make([]core.Transaction, 0, len(s.income)+len(s.expenses))
	for _, in := range s.income {
		st.TotalIncome = st.TotalIncome.Add(in.Amount)
		txs = append(txs, core.Transaction{ID: in.ID, Title: in.Source, Amount: in.Amount, Date: in.Date, Type: core.TransactionIncome})
	}
	byCategory := map[core.ExpenseCategory]core.Money{}
	var order []core.ExpenseCategory
	for _, e := range s.expenses {
		st.TotalExpense = st.TotalExpense.Add(e.Amount)
		txs = append(txs, core.Transaction{ID: e.ID, Title: string(e.Category), Amount: e.Amount, Date: e.Date, Type: core.TransactionExpense})
		if _, seen := byCategory[e.Category]; !seen {
			order = append(order, e.Category)
		}
		byCategory[e.Category] = byCategory[e.Category].Add(e.Amount)
	}
	for _, l := range s.liabilities {
		st.TotalLiabilities = st.TotalLiabilities.Add(l.TotalAmount.Sub(l.PaidAmount))
	}
	st.Balance = st.TotalIncome.Sub(st.TotalExpense)

	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date.Time) })
	if len(txs) > recentLimit {
		txs = txs[:recentLimit]
	}
	st.RecentTransactions = txs

	st.CategoryStats = make([]core.CategoryStat, 0, len(order))
	for _, c := range order {
		st.CategoryStats = append(st.CategoryStats, core.CategoryStat{Category: c, Total: byCategory[c]})
	}
	sort.SliceStable(st.CategoryStats, func(i, j int) bool {
		return st.CategoryStats[i].Total.Cents > st.CategoryStats[j].Total.Cents
	})

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	st.MonthlyStats = make([]core.MonthlyStat, 0, 6)
	for i := 5; i >= 0; i-- {
		month := first.AddDate(0, -i, 0)
		ms := core.MonthlyStat{Name: month.Format("Jan")}
		for _, in := range s.income {
			if sameMonth(in.Date, month) {
				ms.Income = ms.Income.Add(in.Amount)
			}
		}
		for _, e := range s.expenses {
			if sameMonth(e.Date, month) {
				ms.Expense = ms.Expense.Add(e.Amount)
			}
		}
		st.MonthlyStats = append(st.MonthlyStats, ms)
	}
	return st
}

func sameMonth(d core.Date, month time.Time) bool {
	return d.Year() == month.Year() && d.Month() == month.Month()
}
