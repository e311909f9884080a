package fakeapi

import (
	"fmt"
	"net/http"
	"net/mail"
	"sort"
	"strconv"
	"strings"

	"astrofin/internal/core"
)

// Income

func (s *Server) listIncome(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]core.Income, len(s.income))
	copy(out, s.income)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createIncome(w http.ResponseWriter, r *http.Request) {
	f := readForm(w, r)
	if f == nil {
		return
	}
	in := core.Income{
		Source:      f.requiredText("source"),
		Amount:      f.decimal("amount", true, core.Money{}),
		Date:        f.date("date", true),
		Description: f.optionalText("description"),
	}
	if rejectInvalid(w, f) {
		return
	}
	s.mu.Lock()
	in.ID = s.newID("income")
	s.income = append(s.income, in)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) deleteIncome(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(len(s.income), func(i int) bool { return s.income[i].ID == id }); ok && i >= 0 {
		s.income = append(s.income[:i], s.income[i+1:]...)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	notFound(w)
}

// Expenses

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]core.Expense, len(s.expenses))
	copy(out, s.expenses)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	f := readForm(w, r)
	if f == nil {
		return
	}
	e := core.Expense{
		Category:    core.ExpenseCategory(f.requiredText("category")),
		Amount:      f.decimal("amount", true, core.Money{}),
		Date:        f.date("date", true),
		Description: f.optionalText("description"),
	}
	if e.Category != "" && !e.Category.Valid() {
		f.fail("category", fmt.Sprintf("%q %s", string(e.Category), msgInvalidPick))
	}
	if rejectInvalid(w, f) {
		return
	}
	s.mu.Lock()
	e = s.addExpenseLocked(e)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) addExpenseLocked(e core.Expense) core.Expense {
	e.ID = s.newID("expenses")
	s.expenses = append(s.expenses, e)
	return e
}

func (s *Server) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(len(s.expenses), func(i int) bool { return s.expenses[i].ID == id }); ok && i >= 0 {
		s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	notFound(w)
}

// Liabilities

func withRemaining(l core.Liability) core.Liability {
	l.RemainingAmount = l.TotalAmount.Sub(l.PaidAmount)
	return l
}

func (s *Server) listLiabilities(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]core.Liability, 0, len(s.liabilities))
	for _, l := range s.liabilities {
		out = append(out, withRemaining(l))
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createLiability(w http.ResponseWriter, r *http.Request) {
	f := readForm(w, r)
	if f == nil {
		return
	}
	l := core.Liability{
		Title:       f.requiredText("title"),
		TotalAmount: f.decimal("total_amount", true, core.Money{}),
		PaidAmount:  f.decimal("paid_amount", false, core.Money{}),
		DueDate:     f.date("due_date", false),
		IsSettled:   f.boolean("is_settled"),
	}
	if rejectInvalid(w, f) {
		return
	}
	s.mu.Lock()
	l.ID = s.newID("liabilities")
	s.liabilities = append(s.liabilities, l)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, withRemaining(l))
}

func (s *Server) deleteLiability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(len(s.liabilities), func(i int) bool { return s.liabilities[i].ID == id }); ok && i >= 0 {
		s.liabilities = append(s.liabilities[:i], s.liabilities[i+1:]...)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	notFound(w)
}

// payLiability applies a payment, settles the debt once nothing remains
// and mirrors the payment into the expense ledger.
func (s *Server) payLiability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	f := readForm(w, r)
	if f == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(len(s.liabilities), func(i int) bool { return s.liabilities[i].ID == id })
	if !ok || i < 0 {
		notFound(w)
		return
	}
	l := &s.liabilities[i]

	amount := core.Money{}
	if raw, present := f.text("amount"); present {
		cents, err := parseSignedAmount(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid amount format"})
			return
		}
		amount = core.Money{Cents: cents}
	}
	if amount.Cents <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Amount must be greater than 0"})
		return
	}
	if amount.Cents > l.TotalAmount.Sub(l.PaidAmount).Cents {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Amount exceeds remaining debt"})
		return
	}

	l.PaidAmount = l.PaidAmount.Add(amount)
	if l.TotalAmount.Sub(l.PaidAmount).Cents <= 0 {
		l.IsSettled = true
	}

	date := s.today()
	if raw, present := f.text("date"); present && strings.TrimSpace(raw) != "" {
		if d, err := core.ParseDate(raw); err == nil {
			date = d
		}
	}
	s.addExpenseLocked(core.Expense{
		Category:    core.CategoryLiability,
		Amount:      amount,
		Date:        date,
		Description: "Payment for " + l.Title,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "payment recorded",
		"new_balance": l.TotalAmount.Sub(l.PaidAmount),
	})
}

// parseSignedAmount accepts negative input so that it can be rejected
// with the "greater than 0" message rather than as a format error.
func parseSignedAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if neg, ok := strings.CutPrefix(raw, "-"); ok {
		cents, err := core.ParseDecimalToCents(neg)
		return -cents, err
	}
	return core.ParseDecimalToCents(raw)
}

// Customers

func (s *Server) customerViewLocked(c core.Customer) core.Customer {
	paid := c.AdvanceAmount
	for _, p := range s.cpayments {
		if p.Customer == c.ID {
			paid = paid.Add(p.Amount)
		}
	}
	c.TotalPaid = paid
	c.RemainingAmount = c.TotalAmount.Sub(paid)
	return c
}

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]core.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, s.customerViewLocked(c))
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func customerFromForm(f *form) core.Customer {
	return core.Customer{
		Name:               f.requiredText("name"),
		ProjectName:        f.requiredText("project_name"),
		DomainName:         f.optionalText("domain_name"),
		Description:        f.optionalText("description"),
		TotalAmount:        f.decimal("total_amount", true, core.Money{}),
		AdvanceAmount:      f.decimal("advance_amount", false, core.Money{}),
		IsPaymentConfirmed: f.boolean("is_payment_confirmed"),
		IsProjectDelivered: f.boolean("is_project_delivered"),
		DeliveryDate:       f.date("delivery_date", false),
	}
}

func (s *Server) createCustomer(w http.ResponseWriter, r *http.Request) {
	f := readForm(w, r)
	if f == nil {
		return
	}
	c := customerFromForm(f)
	if rejectInvalid(w, f) {
		return
	}
	s.mu.Lock()
	c.ID = s.newID("customers")
	s.customers = append(s.customers, c)
	out := s.customerViewLocked(c)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	f := readForm(w, r)
	if f == nil {
		return
	}
	c := customerFromForm(f)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(len(s.customers), func(i int) bool { return s.customers[i].ID == id })
	if !ok || i < 0 {
		notFound(w)
		return
	}
	if rejectInvalid(w, f) {
		return
	}
	c.ID = id
	s.customers[i] = c
	writeJSON(w, http.StatusOK, s.customerViewLocked(c))
}

func (s *Server) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(len(s.customers), func(i int) bool { return s.customers[i].ID == id })
	if !ok || i < 0 {
		notFound(w)
		return
	}
	s.customers = append(s.customers[:i], s.customers[i+1:]...)
	kept := s.cpayments[:0]
	for _, p := range s.cpayments {
		if p.Customer != id {
			kept = append(kept, p)
		}
	}
	s.cpayments = kept
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCustomerPayments(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("customer")
	s.mu.Lock()
	out := make([]core.ClientPayment, 0, len(s.cpayments))
	for _, p := range s.cpayments {
		if filter != "" && !s.IgnoreCustomerFilter && strconv.FormatInt(p.Customer, 10) != filter {
			continue
		}
		out = append(out, p)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createCustomerPayment(w http.ResponseWriter, r *http.Request) {
	f := readForm(w, r)
	if f == nil {
		return
	}
	p := core.ClientPayment{
		Customer: f.id("customer"),
		Amount:   f.decimal("amount", true, core.Money{}),
		Date:     f.date("date", true),
		Note:     f.optionalText("note"),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Customer != 0 && indexOf(len(s.customers), func(i int) bool { return s.customers[i].ID == p.Customer }) < 0 {
		f.fail("customer", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", p.Customer))
	}
	if rejectInvalid(w, f) {
		return
	}
	p.ID = s.newID("customer-payments")
	s.cpayments = append(s.cpayments, p)
	writeJSON(w, http.StatusCreated, p)
}

// Employees

func (s *Server) listEmployees(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]core.Employee, len(s.employees))
	copy(out, s.employees)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func employeeFromForm(f *form) core.Employee {
	e := core.Employee{
		Name:       f.requiredText("name"),
		Role:       f.requiredText("role"),
		BaseSalary: f.decimal("base_salary", true, core.Money{}),
		Email:      f.optionalText("email"),
		Status:     core.EmployeeStatus(f.optionalText("status")),
	}
	if e.Email != "" {
		if _, err := mail.ParseAddress(e.Email); err != nil {
			f.fail("email", "Enter a valid email address.")
		}
	}
	if e.Status == "" {
		e.Status = core.StatusActive
	} else if !e.Status.Valid() {
		f.fail("status", fmt.Sprintf("%q %s", string(e.Status), msgInvalidPick))
	}
	return e
}

func (s *Server) createEmployee(w http.ResponseWriter, r *http.Request) {
	f := readForm(w, r)
	if f == nil {
		return
	}
	e := employeeFromForm(f)
	if rejectInvalid(w, f) {
		return
	}
	s.mu.Lock()
	e.ID = s.newID("employees")
	e.JoinedDate = s.today()
	s.employees = append(s.employees, e)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) updateEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	f := readForm(w, r)
	if f == nil {
		return
	}
	e := employeeFromForm(f)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(len(s.employees), func(i int) bool { return s.employees[i].ID == id })
	if !ok || i < 0 {
		notFound(w)
		return
	}
	if rejectInvalid(w, f) {
		return
	}
	e.ID = id
	e.JoinedDate = s.employees[i].JoinedDate
	s.employees[i] = e
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(len(s.employees), func(i int) bool { return s.employees[i].ID == id })
	if !ok || i < 0 {
		notFound(w)
		return
	}
	s.employees = append(s.employees[:i], s.employees[i+1:]...)
	kept := s.payroll[:0]
	for _, p := range s.payroll {
		if p.Employee != id {
			kept = append(kept, p)
		}
	}
	s.payroll = kept
	w.WriteHeader(http.StatusNoContent)
}

// Payroll

func (s *Server) listPayroll(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("employee")
	s.mu.Lock()
	out := make([]core.PayrollPayment, 0, len(s.payroll))
	for _, p := range s.payroll {
		if filter != "" && strconv.FormatInt(p.Employee, 10) != filter {
			continue
		}
		out = append(out, s.payrollViewLocked(p))
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaymentDate.After(out[j].PaymentDate.Time) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) payrollViewLocked(p core.PayrollPayment) core.PayrollPayment {
	for _, e := range s.employees {
		if e.ID == p.Employee {
			p.EmployeeName = e.Name
			p.EmployeeRole = e.Role
			break
		}
	}
	return p
}

// createPayroll stores the payment and mirrors it as a Salary expense.
func (s *Server) createPayroll(w http.ResponseWriter, r *http.Request) {
	f := readForm(w, r)
	if f == nil {
		return
	}
	p := core.PayrollPayment{
		Employee:    f.id("employee"),
		Amount:      f.decimal("amount", true, core.Money{}),
		Title:       f.optionalText("title"),
		PaymentDate: f.date("payment_date", true),
	}
	if strings.TrimSpace(p.Title) == "" {
		p.Title = core.DefaultPayrollTitle
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(len(s.employees), func(i int) bool { return s.employees[i].ID == p.Employee })
	if p.Employee != 0 && i < 0 {
		f.fail("employee", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", p.Employee))
	}
	if rejectInvalid(w, f) {
		return
	}
	p.ID = s.newID("payroll")
	s.payroll = append(s.payroll, p)

	emp := s.employees[i]
	s.addExpenseLocked(core.Expense{
		Category:    core.CategorySalary,
		Amount:      p.Amount,
		Date:        p.PaymentDate,
		Description: fmt.Sprintf("Salary Payment: %s (%s)", emp.Name, p.Title),
	})
	writeJSON(w, http.StatusCreated, s.payrollViewLocked(p))
}

func indexOf(n int, match func(i int) bool) int {
	for i := 0; i < n; i++ {
		if match(i) {
			return i
		}
	}
	return -1
}
