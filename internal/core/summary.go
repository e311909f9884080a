package core

// TransactionType tells income and expense rows apart in the recent list.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Transaction is one row of the dashboard's recent activity.
type Transaction struct {
	ID     int64           `json:"id"`
	Title  string          `json:"title"`
	Amount Money           `json:"amount"`
	Date   Date            `json:"date"`
	Type   TransactionType `json:"type"`
}

// Sign returns "+" for income and "-" for expenses.
func (t Transaction) Sign() string {
	if t.Type == TransactionIncome {
		return "+"
	}
	return "-"
}

// MonthlyStat is one bar pair of the monthly chart. Name is the short
// month label ("Jan").
type MonthlyStat struct {
	Name    string `json:"name"`
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
}

// CategoryStat is one slice of the expense-by-category chart.
type CategoryStat struct {
	Category ExpenseCategory `json:"category"`
	Total    Money           `json:"total"`
}

// DashboardStats is the server-computed aggregate behind the dashboard.
// It is read-only on this side.
type DashboardStats struct {
	TotalIncome        Money          `json:"total_income"`
	TotalExpense       Money          `json:"total_expense"`
	Balance            Money          `json:"balance"`
	TotalLiabilities   Money          `json:"total_liabilities"`
	RecentTransactions []Transaction  `json:"recent_transactions"`
	MonthlyStats       []MonthlyStat  `json:"monthly_stats"`
	CategoryStats      []CategoryStat `json:"category_stats"`
}
