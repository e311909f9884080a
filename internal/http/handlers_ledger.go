package http

import (
	"net/http"

	"astrofin/internal/api"
	"astrofin/internal/core"
	"astrofin/internal/views"
)

type incomePage struct {
	page
	Records []core.Income
	Draft   api.IncomeInput
}

func (s *Server) renderIncome(w http.ResponseWriter, r *http.Request, c *caller, status int) {
	st := c.income.State()
	meta := s.page(r, c, "Income", "income").with(st.Status, st.Message, c.income.TakeNotice())
	s.render(w, r, status, "income.html", meta, incomePage{page: meta, Records: st.Records, Draft: c.income.Draft()})
}

func (s *Server) handleIncome(w http.ResponseWriter, r *http.Request, c *caller) {
	if err := c.income.Load(r.Context()); err != nil {
		s.rejected(w, r, err, func(status int) { s.renderIncome(w, r, c, status) })
		return
	}
	s.renderIncome(w, r, c, http.StatusOK)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request, c *caller) {
	if !parseForm(w, r) {
		return
	}
	if err := c.income.Submit(r.Context(), incomeForm(r.PostForm)); !views.Saved(err) {
		s.rejected(w, r, err, func(status int) { s.renderIncome(w, r, c, status) })
		return
	}
	c.income.SetNotice("Income added")
	seeOther(w, r, "/income")
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request, c *caller) {
	s.deleteRecord(w, r, c, c.income.Delete, "/income", func(status int) { s.renderIncome(w, r, c, status) })
}

type expensesPage struct {
	page
	Records    []core.Expense
	Draft      api.ExpenseInput
	Categories []core.ExpenseCategory
}

func (s *Server) renderExpenses(w http.ResponseWriter, r *http.Request, c *caller, status int) {
	st := c.expenses.State()
	meta := s.page(r, c, "Expenses", "expenses").with(st.Status, st.Message, c.expenses.TakeNotice())
	s.render(w, r, status, "expenses.html", meta, expensesPage{
		page:       meta,
		Records:    st.Records,
		Draft:      c.expenses.Draft(),
		Categories: c.expenses.Categories(),
	})
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request, c *caller) {
	if err := c.expenses.Load(r.Context()); err != nil {
		s.rejected(w, r, err, func(status int) { s.renderExpenses(w, r, c, status) })
		return
	}
	s.renderExpenses(w, r, c, http.StatusOK)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, c *caller) {
	if !parseForm(w, r) {
		return
	}
	if err := c.expenses.Submit(r.Context(), expenseForm(r.PostForm)); !views.Saved(err) {
		s.rejected(w, r, err, func(status int) { s.renderExpenses(w, r, c, status) })
		return
	}
	c.expenses.SetNotice("Expense added")
	seeOther(w, r, "/expenses")
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, c *caller) {
	s.deleteRecord(w, r, c, c.expenses.Delete, "/expenses", func(status int) { s.renderExpenses(w, r, c, status) })
}
