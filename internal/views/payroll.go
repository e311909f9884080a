package views

import (
	"context"

	"golang.org/x/sync/errgroup"

	"astrofin/internal/api"
	"astrofin/internal/core"
	applog "astrofin/internal/log"
)

type PayrollAPI interface {
	ListEmployees(ctx context.Context) ([]core.Employee, error)
	CreateEmployee(ctx context.Context, in api.EmployeeInput) (core.Employee, error)
	UpdateEmployee(ctx context.Context, id int64, in api.EmployeeInput) (core.Employee, error)
	DeleteEmployee(ctx context.Context, id int64) error
	ListPayroll(ctx context.Context, employeeID int64) ([]core.PayrollPayment, error)
	CreatePayroll(ctx context.Context, in api.PayrollInput) (core.PayrollPayment, error)
}

// Payroll holds employees (the collection) and the payroll payments.
type Payroll struct {
	*Collection[core.Employee, api.EmployeeInput]
	client PayrollAPI

	payments []core.PayrollPayment
	payDraft api.PayrollInput
}

func NewPayroll(client PayrollAPI, opts ...Option) *Payroll {
	s := newSettings(opts)
	c := newCollection[core.Employee, api.EmployeeInput]("employee", s)
	c.blank = func() api.EmployeeInput { return api.EmployeeInput{Status: string(core.StatusActive)} }
	c.missing = func(f api.EmployeeInput) []string {
		return blankFields("name", f.Name, "role", f.Role, "base_salary", f.BaseSalary)
	}
	c.list = client.ListEmployees
	c.create = func(ctx context.Context, f api.EmployeeInput) error {
		_, err := client.CreateEmployee(ctx, f)
		return err
	}
	c.remove = client.DeleteEmployee
	return &Payroll{Collection: c.init(), client: client}
}

// Load fetches employees and payroll payments concurrently. Both must
// succeed for either to replace what is shown.
func (p *Payroll) Load(ctx context.Context) error {
	p.setStatus(StatusLoading)

	var employees []core.Employee
	var payments []core.PayrollPayment
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		employees, err = p.client.ListEmployees(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		payments, err = p.client.ListPayroll(gctx, 0)
		return err
	})

	err := g.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.failLocked(err, "Failed to load payroll")
		p.settings.logger.ErrorContext(ctx, "Failed to load payroll", applog.FieldError, err)
		return err
	}
	p.records = employees
	p.payments = payments
	p.status = StatusReady
	p.err, p.message = nil, ""
	return nil
}

// Payments returns the payroll payments from the last full load.
func (p *Payroll) Payments() []core.PayrollPayment {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.PayrollPayment, len(p.payments))
	copy(out, p.payments)
	return out
}

// UpdateEmployee replaces an employee record and reloads the employees.
func (p *Payroll) UpdateEmployee(ctx context.Context, id int64, form api.EmployeeInput) error {
	p.mu.Lock()
	p.draft = form
	p.mu.Unlock()
	if missing := p.missing(form); len(missing) > 0 {
		err := &MissingFieldsError{Fields: missing}
		p.fail(err, "Please fill in all required fields")
		return err
	}
	return p.mutate(ctx, applog.OpUpdate, id, "Failed to update employee", api.MessageOr, func(ctx context.Context) error {
		_, err := p.client.UpdateEmployee(ctx, id, form)
		return err
	}, true)
}

// History fetches one employee's payments on demand.
func (p *Payroll) History(ctx context.Context, employeeID int64) ([]core.PayrollPayment, error) {
	return p.client.ListPayroll(ctx, employeeID)
}

// PayDraft returns the payroll payment form as last submitted.
func (p *Payroll) PayDraft() api.PayrollInput {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.payDraft
}

// Pay records a salary payment, then reloads employees and payments.
// The backend also files it as a Salary expense.
func (p *Payroll) Pay(ctx context.Context, form api.PayrollInput) error {
	p.mu.Lock()
	p.payDraft = form
	p.mu.Unlock()

	var employee string
	if form.Employee != 0 {
		employee = "set"
	}
	if missing := blankFields("employee", employee, "amount", form.Amount, "payment_date", form.PaymentDate); len(missing) > 0 {
		err := &MissingFieldsError{Fields: missing}
		p.fail(err, "Please fill in all required fields")
		return err
	}

	p.setStatus(StatusSubmitting)
	if _, err := p.client.CreatePayroll(ctx, form); err != nil {
		p.fail(err, "Failed to record payment")
		if !api.IsUnauthorized(err) {
			p.settings.logger.WarnContext(ctx, "Payroll payment rejected",
				applog.FieldRecordID, form.Employee, applog.FieldError, err)
		}
		return err
	}
	p.mu.Lock()
	p.payDraft = api.PayrollInput{PaymentDate: p.settings.today()}
	p.mu.Unlock()
	p.settings.logger.InfoContext(ctx, "Payroll payment recorded",
		applog.FieldOperation, applog.OpPay, applog.FieldRecordID, form.Employee)
	if err := p.Load(ctx); err != nil {
		return &ReloadError{Err: err}
	}
	return nil
}

// DefaultAmount is the base salary of employee id as a form value.
func (p *Payroll) DefaultAmount(id int64) string {
	for _, e := range p.Records() {
		if e.ID == id {
			return e.BaseSalary.String()
		}
	}
	return ""
}
