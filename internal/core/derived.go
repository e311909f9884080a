package core

import (
	"math"
	"sort"
	"strings"
)

// Remaining is total minus paid. It goes negative after an overpayment.
func Remaining(total, paid Money) Money {
	return total.Sub(paid)
}

// IsSettled reports whether nothing remains to be paid.
func IsSettled(total, paid Money) bool {
	return Remaining(total, paid).Cents <= 0
}

// LiabilityProgress returns the paid share of total as a whole percentage
// in [0, 100]. A non-positive total yields 0. The result is 100 only once
// paid reaches total; a near-complete debt reports 99.
func LiabilityProgress(total, paid Money) int {
	if total.Cents <= 0 {
		return 0
	}
	if paid.Cents >= total.Cents {
		return 100
	}
	if paid.Cents <= 0 {
		return 0
	}
	pct := int(math.Round(float64(paid.Cents) * 100 / float64(total.Cents)))
	if pct >= 100 {
		return 99
	}
	return pct
}

// EstimatedDue is what a client would still owe right after paying the
// advance, never below zero.
func EstimatedDue(total, advance Money) Money {
	due := total.Sub(advance)
	if due.Cents < 0 {
		return Money{}
	}
	return due
}

func (l Liability) Remaining() Money { return Remaining(l.TotalAmount, l.PaidAmount) }
func (l Liability) Settled() bool    { return IsSettled(l.TotalAmount, l.PaidAmount) }
func (l Liability) Progress() int    { return LiabilityProgress(l.TotalAmount, l.PaidAmount) }

// Rollup is the payment position of one client.
type Rollup struct {
	TotalPaid Money
	Remaining Money
	Due       bool
}

// ClientRollup computes a client's position from its contract total, the
// advance and the itemized payments.
func ClientRollup(total, advance Money, payments []ClientPayment) Rollup {
	paid := advance
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	rem := total.Sub(paid)
	return Rollup{TotalPaid: paid, Remaining: rem, Due: rem.Cents > 0}
}

// Remaining is the outstanding balance based on the backend's total_paid
// aggregate.
func (c Customer) Remaining() Money { return c.TotalAmount.Sub(c.TotalPaid) }

// Due reports whether the client still owes money.
func (c Customer) Due() bool { return c.Remaining().Cents > 0 }

// EstimatedDue is the balance implied by the contract and the advance alone.
func (c Customer) EstimatedDue() Money { return EstimatedDue(c.TotalAmount, c.AdvanceAmount) }

// Mismatch describes a disagreement between the backend aggregate and
// the itemized payment history.
type Mismatch struct {
	Backend  Money
	Itemized Money
}

// ReconcileCustomer compares the backend's total_paid with advance plus
// the given history. It returns nil when they agree. The backend figure
// is authoritative; the caller only reports the mismatch.
func ReconcileCustomer(c Customer, history []ClientPayment) *Mismatch {
	r := ClientRollup(c.TotalAmount, c.AdvanceAmount, history)
	if r.TotalPaid == c.TotalPaid {
		return nil
	}
	return &Mismatch{Backend: c.TotalPaid, Itemized: r.TotalPaid}
}

// SortDueFirst returns a copy of customers with every due client ahead of
// every settled one. Relative order inside each group is preserved.
func SortDueFirst(customers []Customer) []Customer {
	out := make([]Customer, len(customers))
	copy(out, customers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Due() && !out[j].Due()
	})
	return out
}

// FilterCustomers keeps customers whose name or project name contains
// term, ignoring case. An empty term keeps everything.
func FilterCustomers(customers []Customer, term string) []Customer {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return customers
	}
	out := make([]Customer, 0, len(customers))
	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.Name), term) ||
			strings.Contains(strings.ToLower(c.ProjectName), term) {
			out = append(out, c)
		}
	}
	return out
}

// PaymentsFor keeps only payments belonging to customerID.
func PaymentsFor(payments []ClientPayment, customerID int64) []ClientPayment {
	out := make([]ClientPayment, 0, len(payments))
	for _, p := range payments {
		if p.Customer == customerID {
			out = append(out, p)
		}
	}
	return out
}
