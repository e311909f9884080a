package views

import (
	"context"

	"astrofin/internal/api"
	"astrofin/internal/core"
	applog "astrofin/internal/log"
)

type CustomerAPI interface {
	ListCustomers(ctx context.Context) ([]core.Customer, error)
	CreateCustomer(ctx context.Context, in api.CustomerInput) (core.Customer, error)
	UpdateCustomer(ctx context.Context, id int64, in api.CustomerInput) (core.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error
	ListCustomerPayments(ctx context.Context, customerID int64) ([]core.ClientPayment, error)
	CreateCustomerPayment(ctx context.Context, in api.ClientPaymentInput) (core.ClientPayment, error)
}

// CustomerForm is the create and edit form of a client engagement.
type CustomerForm struct {
	Name               string
	ProjectName        string
	DomainName         string
	Description        string
	TotalAmount        string
	AdvanceAmount      string
	IsPaymentConfirmed bool
	IsProjectDelivered bool
	DeliveryDate       string
}

// FormFor fills the edit form from an existing customer.
func FormFor(c core.Customer) CustomerForm {
	return CustomerForm{
		Name:               c.Name,
		ProjectName:        c.ProjectName,
		DomainName:         c.DomainName,
		Description:        c.Description,
		TotalAmount:        c.TotalAmount.String(),
		AdvanceAmount:      c.AdvanceAmount.String(),
		IsPaymentConfirmed: c.IsPaymentConfirmed,
		IsProjectDelivered: c.IsProjectDelivered,
		DeliveryDate:       c.DeliveryDate.String(),
	}
}

// EstimatedDue is the balance the form implies before any payment.
// Unparseable amounts count as zero.
func (f CustomerForm) EstimatedDue() core.Money {
	total, _ := core.ParseDecimalToCents(f.TotalAmount)
	advance, _ := core.ParseDecimalToCents(f.AdvanceAmount)
	return core.EstimatedDue(core.Money{Cents: total}, core.Money{Cents: advance})
}

func (f CustomerForm) input() api.CustomerInput {
	return api.CustomerInput{
		Name:               f.Name,
		ProjectName:        f.ProjectName,
		DomainName:         f.DomainName,
		Description:        f.Description,
		TotalAmount:        f.TotalAmount,
		AdvanceAmount:      orZero(f.AdvanceAmount),
		IsPaymentConfirmed: f.IsPaymentConfirmed,
		IsProjectDelivered: f.IsProjectDelivered,
		DeliveryDate:       orNull(f.DeliveryDate),
	}
}

func (f CustomerForm) missing() []string {
	return blankFields("name", f.Name, "project_name", f.ProjectName, "total_amount", f.TotalAmount)
}

// History is the payment history of the selected customer.
type History struct {
	CustomerID int64
	Status     Status
	Payments   []core.ClientPayment
	Message    string
	// Mismatch is set when advance plus the itemized payments disagree
	// with the backend's total_paid.
	Mismatch *core.Mismatch
}

type Customers struct {
	*Collection[core.Customer, CustomerForm]
	client CustomerAPI

	selected    int64
	history     []core.ClientPayment
	histStatus  Status
	histMessage string
	mismatch    *core.Mismatch
	payDraft    api.ClientPaymentInput
}

func NewCustomers(client CustomerAPI, opts ...Option) *Customers {
	s := newSettings(opts)
	c := newCollection[core.Customer, CustomerForm]("customer", s)
	c.missing = CustomerForm.missing
	c.list = client.ListCustomers
	c.create = func(ctx context.Context, f CustomerForm) error {
		_, err := client.CreateCustomer(ctx, f.input())
		return err
	}
	c.remove = client.DeleteCustomer
	return &Customers{Collection: c.init(), client: client, histStatus: StatusIdle}
}

// Sorted returns the customers matching term, due clients first.
func (v *Customers) Sorted(term string) []core.Customer {
	return core.SortDueFirst(core.FilterCustomers(v.Records(), term))
}

// Find returns the customer with id from the last fetched list.
func (v *Customers) Find(id int64) (core.Customer, bool) {
	for _, c := range v.Records() {
		if c.ID == id {
			return c, true
		}
	}
	return core.Customer{}, false
}

// Update replaces a customer with the form's values and reloads.
func (v *Customers) Update(ctx context.Context, id int64, form CustomerForm) error {
	v.mu.Lock()
	v.draft = form
	v.mu.Unlock()
	if missing := form.missing(); len(missing) > 0 {
		err := &MissingFieldsError{Fields: missing}
		v.fail(err, "Please fill in all required fields")
		return err
	}
	return v.mutate(ctx, applog.OpUpdate, id, "Failed to update customer", api.MessageOr, func(ctx context.Context) error {
		_, err := v.client.UpdateCustomer(ctx, id, form.input())
		return err
	}, true)
}

// Select loads the payment history of one customer. Rows for other
// customers are dropped even if the backend returns them.
func (v *Customers) Select(ctx context.Context, id int64) error {
	v.mu.Lock()
	v.selected = id
	v.histStatus = StatusLoading
	v.mu.Unlock()

	payments, err := v.client.ListCustomerPayments(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected != id {
		// A newer selection won.
		return nil
	}
	if err != nil {
		v.histStatus = StatusError
		v.histMessage = api.MessageOr(err, "Failed to load payment history")
		return err
	}
	own := core.PaymentsFor(payments, id)
	if dropped := len(payments) - len(own); dropped > 0 {
		v.settings.logger.WarnContext(ctx, "Backend returned payments of other customers",
			applog.FieldRecordID, id, "dropped", dropped)
	}
	v.history = own
	v.histStatus = StatusReady
	v.histMessage = ""
	v.mismatch = nil
	for _, c := range v.records {
		if c.ID == id {
			v.mismatch = core.ReconcileCustomer(c, own)
			break
		}
	}
	if v.mismatch != nil {
		v.settings.logger.WarnContext(ctx, "Customer total_paid disagrees with payment history",
			applog.FieldRecordID, id,
			"backend_cents", v.mismatch.Backend.Cents,
			"itemized_cents", v.mismatch.Itemized.Cents)
	}
	return nil
}

// History returns the selected customer's payment history.
func (v *Customers) History() History {
	v.mu.Lock()
	defer v.mu.Unlock()
	payments := make([]core.ClientPayment, len(v.history))
	copy(payments, v.history)
	return History{
		CustomerID: v.selected,
		Status:     v.histStatus,
		Payments:   payments,
		Message:    v.histMessage,
		Mismatch:   v.mismatch,
	}
}

// PaymentDraft returns the payment form as last submitted.
func (v *Customers) PaymentDraft() api.ClientPaymentInput {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.payDraft
}

// AddPayment records a payment for a customer, then reloads both the
// history and the customer list, whose totals include it.
func (v *Customers) AddPayment(ctx context.Context, form api.ClientPaymentInput) error {
	v.mu.Lock()
	v.payDraft = form
	v.mu.Unlock()

	var idField string
	if form.Customer != 0 {
		idField = "set"
	}
	if missing := blankFields("customer", idField, "amount", form.Amount, "date", form.Date); len(missing) > 0 {
		err := &MissingFieldsError{Fields: missing}
		v.fail(err, "Please fill in all required fields")
		return err
	}

	err := v.mutate(ctx, applog.OpCreate, form.Customer, "Failed to add payment", api.MessageOr, func(ctx context.Context) error {
		_, err := v.client.CreateCustomerPayment(ctx, form)
		return err
	}, false)
	if !Saved(err) {
		return err
	}
	v.mu.Lock()
	v.payDraft = api.ClientPaymentInput{Customer: form.Customer, Date: v.settings.today()}
	v.mu.Unlock()
	if serr := v.Select(ctx, form.Customer); serr != nil && err == nil {
		return &ReloadError{Err: serr}
	}
	return err
}
