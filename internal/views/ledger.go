package views

import (
	"context"

	"astrofin/internal/api"
	"astrofin/internal/core"
)

type IncomeAPI interface {
	ListIncome(ctx context.Context) ([]core.Income, error)
	CreateIncome(ctx context.Context, in api.IncomeInput) (core.Income, error)
	DeleteIncome(ctx context.Context, id int64) error
}

type ExpenseAPI interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	CreateExpense(ctx context.Context, in api.ExpenseInput) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
}

// Income lists income records, newest first as the backend orders them.
type Income struct {
	*Collection[core.Income, api.IncomeInput]
}

func NewIncome(client IncomeAPI, opts ...Option) *Income {
	s := newSettings(opts)
	c := newCollection[core.Income, api.IncomeInput]("income", s)
	c.blank = func() api.IncomeInput { return api.IncomeInput{Date: s.today()} }
	c.missing = func(f api.IncomeInput) []string {
		return blankFields("source", f.Source, "amount", f.Amount, "date", f.Date)
	}
	c.list = client.ListIncome
	c.create = func(ctx context.Context, f api.IncomeInput) error {
		_, err := client.CreateIncome(ctx, f)
		return err
	}
	c.remove = client.DeleteIncome
	return &Income{Collection: c.init()}
}

// Expenses lists expense records, including the Salary and Liability
// entries the backend writes on its own.
type Expenses struct {
	*Collection[core.Expense, api.ExpenseInput]
}

func NewExpenses(client ExpenseAPI, opts ...Option) *Expenses {
	s := newSettings(opts)
	c := newCollection[core.Expense, api.ExpenseInput]("expense", s)
	c.blank = func() api.ExpenseInput {
		return api.ExpenseInput{Category: string(core.CategoryFood), Date: s.today()}
	}
	c.missing = func(f api.ExpenseInput) []string {
		return blankFields("category", f.Category, "amount", f.Amount, "date", f.Date)
	}
	c.list = client.ListExpenses
	c.create = func(ctx context.Context, f api.ExpenseInput) error {
		_, err := client.CreateExpense(ctx, f)
		return err
	}
	c.remove = client.DeleteExpense
	return &Expenses{Collection: c.init()}
}

// Categories are the choices offered on the expense form.
func (e *Expenses) Categories() []core.ExpenseCategory {
	return core.FormCategories()
}
