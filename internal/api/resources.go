package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"astrofin/internal/core"
)

// Collection paths, relative to /api/.
const (
	ResourceIncome           = "income/"
	ResourceExpenses         = "expenses/"
	ResourceLiabilities      = "liabilities/"
	ResourceCustomers        = "customers/"
	ResourceCustomerPayments = "customer-payments/"
	ResourceEmployees        = "employees/"
	ResourcePayroll          = "payroll/"
	ResourceStats            = "stats/"
)

// Request bodies carry amounts exactly as the operator typed them; the
// backend parses and validates them.
type (
	IncomeInput struct {
		Source      string `json:"source"`
		Amount      string `json:"amount"`
		Date        string `json:"date"`
		Description string `json:"description"`
	}

	ExpenseInput struct {
		Category    string `json:"category"`
		Amount      string `json:"amount"`
		Date        string `json:"date"`
		Description string `json:"description"`
	}

	LiabilityInput struct {
		Title       string  `json:"title"`
		TotalAmount string  `json:"total_amount"`
		PaidAmount  string  `json:"paid_amount"`
		DueDate     *string `json:"due_date"`
	}

	CustomerInput struct {
		Name               string  `json:"name"`
		ProjectName        string  `json:"project_name"`
		DomainName         string  `json:"domain_name"`
		Description        string  `json:"description"`
		TotalAmount        string  `json:"total_amount"`
		AdvanceAmount      string  `json:"advance_amount"`
		IsPaymentConfirmed bool    `json:"is_payment_confirmed"`
		IsProjectDelivered bool    `json:"is_project_delivered"`
		DeliveryDate       *string `json:"delivery_date"`
	}

	ClientPaymentInput struct {
		Customer int64  `json:"customer"`
		Amount   string `json:"amount"`
		Date     string `json:"date"`
		Note     string `json:"note"`
	}

	EmployeeInput struct {
		Name       string `json:"name"`
		Role       string `json:"role"`
		BaseSalary string `json:"base_salary"`
		Email      string `json:"email"`
		Status     string `json:"status"`
	}

	PayrollInput struct {
		Employee    int64  `json:"employee"`
		Amount      string `json:"amount"`
		Title       string `json:"title"`
		PaymentDate string `json:"payment_date"`
	}

	// PaymentInput is the body of a liability payment.
	PaymentInput struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
	}

	// PaymentResult is the backend's answer to a liability payment.
	PaymentResult struct {
		Status     string     `json:"status"`
		NewBalance core.Money `json:"new_balance"`
	}
)

func (c *Client) list(ctx context.Context, path string, query url.Values, out any) error {
	return c.get(ctx, path, query, out)
}

func (c *Client) create(ctx context.Context, path string, in any, out interface{ id() int64 }) error {
	if err := c.send(ctx, http.MethodPost, path, nil, in, out, true); err != nil {
		return err
	}
	c.notify(ctx, path, "create", out.id())
	return nil
}

func (c *Client) update(ctx context.Context, path string, id int64, in, out any) error {
	if err := c.send(ctx, http.MethodPut, itemPath(path, id), nil, in, out, true); err != nil {
		return err
	}
	c.notify(ctx, path, "update", id)
	return nil
}

func (c *Client) remove(ctx context.Context, path string, id int64) error {
	if err := c.send(ctx, http.MethodDelete, itemPath(path, id), nil, nil, nil, true); err != nil {
		return err
	}
	c.notify(ctx, path, "delete", id)
	return nil
}

// Thin wrappers so create can report the new record's id.
type (
	incomeOut    struct{ core.Income }
	expenseOut   struct{ core.Expense }
	liabilityOut struct{ core.Liability }
	customerOut  struct{ core.Customer }
	cpaymentOut  struct{ core.ClientPayment }
	employeeOut  struct{ core.Employee }
	payrollOut   struct{ core.PayrollPayment }
)

func (o *incomeOut) id() int64 { return o.ID }
func (o *expenseOut) id() int64 { return o.ID }
func (o *liabilityOut) id() int64 { return o.ID }
func (o *customerOut) id() int64 { return o.ID }
func (o *cpaymentOut) id() int64 { return o.ID }
func (o *employeeOut) id() int64 { return o.ID }
func (o *payrollOut) id() int64 { return o.ID }

// Income

func (c *Client) ListIncome(ctx context.Context) ([]core.Income, error) {
	var out []core.Income
	err := c.list(ctx, ResourceIncome, nil, &out)
	return out, err
}

func (c *Client) CreateIncome(ctx context.Context, in IncomeInput) (core.Income, error) {
	var out incomeOut
	err := c.create(ctx, ResourceIncome, in, &out)
	return out.Income, err
}

func (c *Client) DeleteIncome(ctx context.Context, id int64) error {
	return c.remove(ctx, ResourceIncome, id)
}

// Expenses

func (c *Client) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	var out []core.Expense
	err := c.list(ctx, ResourceExpenses, nil, &out)
	return out, err
}

func (c *Client) CreateExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	var out expenseOut
	err := c.create(ctx, ResourceExpenses, in, &out)
	return out.Expense, err
}

func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	return c.remove(ctx, ResourceExpenses, id)
}

// Liabilities

func (c *Client) ListLiabilities(ctx context.Context) ([]core.Liability, error) {
	var out []core.Liability
	err := c.list(ctx, ResourceLiabilities, nil, &out)
	return out, err
}

func (c *Client) CreateLiability(ctx context.Context, in LiabilityInput) (core.Liability, error) {
	var out liabilityOut
	err := c.create(ctx, ResourceLiabilities, in, &out)
	return out.Liability, err
}

func (c *Client) DeleteLiability(ctx context.Context, id int64) error {
	return c.remove(ctx, ResourceLiabilities, id)
}

// PayLiability records a payment against a liability. The backend rejects
// overpayments with {"error": "..."}.
func (c *Client) PayLiability(ctx context.Context, id int64, in PaymentInput) (PaymentResult, error) {
	var out PaymentResult
	if err := c.send(ctx, http.MethodPost, itemPath(ResourceLiabilities, id)+"pay/", nil, in, &out, true); err != nil {
		return PaymentResult{}, err
	}
	c.notify(ctx, ResourceLiabilities, "pay", id)
	return out, nil
}

// Customers

func (c *Client) ListCustomers(ctx context.Context) ([]core.Customer, error) {
	var out []core.Customer
	err := c.list(ctx, ResourceCustomers, nil, &out)
	return out, err
}

func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (core.Customer, error) {
	var out customerOut
	err := c.create(ctx, ResourceCustomers, in, &out)
	return out.Customer, err
}

func (c *Client) UpdateCustomer(ctx context.Context, id int64, in CustomerInput) (core.Customer, error) {
	var out core.Customer
	err := c.update(ctx, ResourceCustomers, id, in, &out)
	return out, err
}

func (c *Client) DeleteCustomer(ctx context.Context, id int64) error {
	return c.remove(ctx, ResourceCustomers, id)
}

// ListCustomerPayments asks the backend for one customer's payments. The
// result is returned as received; callers filter it.
func (c *Client) ListCustomerPayments(ctx context.Context, customerID int64) ([]core.ClientPayment, error) {
	var out []core.ClientPayment
	q := url.Values{"customer": {strconv.FormatInt(customerID, 10)}}
	err := c.list(ctx, ResourceCustomerPayments, q, &out)
	return out, err
}

func (c *Client) CreateCustomerPayment(ctx context.Context, in ClientPaymentInput) (core.ClientPayment, error) {
	var out cpaymentOut
	err := c.create(ctx, ResourceCustomerPayments, in, &out)
	return out.ClientPayment, err
}

// Employees and payroll

func (c *Client) ListEmployees(ctx context.Context) ([]core.Employee, error) {
	var out []core.Employee
	err := c.list(ctx, ResourceEmployees, nil, &out)
	return out, err
}

func (c *Client) CreateEmployee(ctx context.Context, in EmployeeInput) (core.Employee, error) {
	var out employeeOut
	err := c.create(ctx, ResourceEmployees, in, &out)
	return out.Employee, err
}

func (c *Client) UpdateEmployee(ctx context.Context, id int64, in EmployeeInput) (core.Employee, error) {
	var out core.Employee
	err := c.update(ctx, ResourceEmployees, id, in, &out)
	return out, err
}

func (c *Client) DeleteEmployee(ctx context.Context, id int64) error {
	return c.remove(ctx, ResourceEmployees, id)
}

// ListPayroll lists payroll payments, all of them when employeeID is 0.
func (c *Client) ListPayroll(ctx context.Context, employeeID int64) ([]core.PayrollPayment, error) {
	var out []core.PayrollPayment
	var q url.Values
	if employeeID != 0 {
		q = url.Values{"employee": {strconv.FormatInt(employeeID, 10)}}
	}
	err := c.list(ctx, ResourcePayroll, q, &out)
	return out, err
}

func (c *Client) CreatePayroll(ctx context.Context, in PayrollInput) (core.PayrollPayment, error) {
	var out payrollOut
	err := c.create(ctx, ResourcePayroll, in, &out)
	return out.PayrollPayment, err
}

// Stats fetches the dashboard aggregate.
func (c *Client) Stats(ctx context.Context) (core.DashboardStats, error) {
	var out core.DashboardStats
	err := c.get(ctx, ResourceStats, nil, &out)
	return out, err
}
