package views

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"astrofin/internal/api"
	"astrofin/internal/core"
	applog "astrofin/internal/log"
)

var (
	// ErrExceedsRemaining rejects a payment above the visible remaining
	// balance before it reaches the backend.
	ErrExceedsRemaining = errors.New("amount exceeds remaining debt")
	ErrAlreadySettled   = errors.New("liability is already settled")
	ErrNotFound         = errors.New("record not found")
)

const payFailed = "Payment failed"

type LiabilityAPI interface {
	ListLiabilities(ctx context.Context) ([]core.Liability, error)
	CreateLiability(ctx context.Context, in api.LiabilityInput) (core.Liability, error)
	DeleteLiability(ctx context.Context, id int64) error
	PayLiability(ctx context.Context, id int64, in api.PaymentInput) (api.PaymentResult, error)
}

// LiabilityForm is the create form. DueDate may be left empty.
type LiabilityForm struct {
	Title       string
	TotalAmount string
	PaidAmount  string
	DueDate     string
}

// LiabilityRow is a liability with its derived values.
type LiabilityRow struct {
	core.Liability
	Remaining core.Money
	Progress  int
	Settled   bool
}

// CanPay reports whether "Pay Now" is offered.
func (r LiabilityRow) CanPay() bool { return !r.Settled }

type Liabilities struct {
	*Collection[core.Liability, LiabilityForm]
	client LiabilityAPI
}

func NewLiabilities(client LiabilityAPI, opts ...Option) *Liabilities {
	s := newSettings(opts)
	c := newCollection[core.Liability, LiabilityForm]("liability", s)
	c.missing = func(f LiabilityForm) []string {
		return blankFields("title", f.Title, "total_amount", f.TotalAmount)
	}
	c.list = client.ListLiabilities
	c.create = func(ctx context.Context, f LiabilityForm) error {
		_, err := client.CreateLiability(ctx, api.LiabilityInput{
			Title:       f.Title,
			TotalAmount: f.TotalAmount,
			PaidAmount:  orZero(f.PaidAmount),
			DueDate:     orNull(f.DueDate),
		})
		return err
	}
	c.remove = client.DeleteLiability
	return &Liabilities{Collection: c.init(), client: client}
}

// Rows returns the liabilities with remaining balance and progress.
func (l *Liabilities) Rows() []LiabilityRow {
	recs := l.Records()
	out := make([]LiabilityRow, 0, len(recs))
	for _, r := range recs {
		out = append(out, LiabilityRow{
			Liability: r,
			Remaining: r.Remaining(),
			Progress:  r.Progress(),
			Settled:   r.Settled(),
		})
	}
	return out
}

// Pay records a payment against a liability. The amount must be positive
// and no larger than the remaining balance currently shown; the backend
// still has the final word. date may be empty, meaning today.
func (l *Liabilities) Pay(ctx context.Context, id int64, amount, date string) (api.PaymentResult, error) {
	row, ok := l.find(id)
	if !ok {
		l.fail(ErrNotFound, payFailed)
		return api.PaymentResult{}, ErrNotFound
	}
	if row.Settled() {
		l.fail(ErrAlreadySettled, "This liability is already fully paid")
		return api.PaymentResult{}, ErrAlreadySettled
	}

	cents, err := core.ParseDecimalToCents(amount)
	if err != nil || cents <= 0 {
		err = &core.FieldError{Field: "amount", Err: core.ErrInvalidAmount}
		l.fail(err, "Amount must be greater than 0")
		return api.PaymentResult{}, err
	}
	paid := core.Money{Cents: cents}
	if paid.Cents > row.Remaining().Cents {
		l.fail(ErrExceedsRemaining, "Amount exceeds remaining debt")
		return api.PaymentResult{}, ErrExceedsRemaining
	}

	var result api.PaymentResult
	// Only the "error" field of a rejected payment is shown.
	err = l.mutate(ctx, applog.OpPay, id, payFailed, api.ServerMessage, func(ctx context.Context) error {
		in := api.PaymentInput{Amount: paid.String(), Date: strings.TrimSpace(date)}
		if in.Date == "" {
			in.Date = l.settings.today()
		}
		res, err := l.client.PayLiability(ctx, id, in)
		result = res
		return err
	}, false)
	if !Saved(err) {
		return result, err
	}
	// The payment stands even when the list could not be refreshed.
	l.SetNotice(fmt.Sprintf("Payment of %s recorded successfully!", core.FormatCurrency(paid, l.settings.currency)))
	return result, err
}

func (l *Liabilities) find(id int64) (core.Liability, bool) {
	for _, r := range l.Records() {
		if r.ID == id {
			return r, true
		}
	}
	return core.Liability{}, false
}
