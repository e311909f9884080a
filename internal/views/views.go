// Package views holds the view models behind every page of the dashboard.
//
// A view owns the last fetched list of one collection and a draft form.
// Mutations are never applied locally: a successful create, update,
// delete or payment is followed by a full reload of the collection.
package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"astrofin/internal/api"
	"astrofin/internal/clock"
	"astrofin/internal/core"
	applog "astrofin/internal/log"
)

// Status is the lifecycle state of a view.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusLoading    Status = "loading"
	StatusReady      Status = "ready"
	StatusSubmitting Status = "submitting"
	StatusError      Status = "error"
)

// ErrDeclined is returned when the operator did not confirm a delete.
var ErrDeclined = errors.New("action not confirmed")

// MissingFieldsError lists required form fields left blank. No request
// is sent when it is returned.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Unwrap() error { return core.ErrMissingField }

// Confirmer asks the operator to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Confirmed approves every prompt. Used when the operator already
// confirmed outside the view (a --yes flag, a submitted dialog).
var Confirmed Confirmer = ConfirmFunc(func(context.Context, string) bool { return true })

// Option configures a view.
type Option func(*settings)

type settings struct {
	logger   *applog.Logger
	clock    clock.Clock
	currency string
}

func WithLogger(l *applog.Logger) Option {
	return func(s *settings) { s.logger = l.WithComponent(applog.ComponentViews) }
}

func WithClock(clk clock.Clock) Option {
	return func(s *settings) { s.clock = clk }
}

// WithCurrency sets the prefix used in operator messages ("Rs.").
func WithCurrency(prefix string) Option {
	return func(s *settings) { s.currency = prefix }
}

func newSettings(opts []Option) settings {
	s := settings{logger: applog.Discard(), clock: clock.Real(), currency: core.DefaultCurrencyPrefix}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s settings) today() string {
	return core.DateOf(s.clock.Now()).String()
}

// State is a snapshot of a view.
type State[T any] struct {
	Status  Status
	Records []T
	Err     error
	// Message is the text shown for Err: the server's own words when it
	// sent any, a generic sentence otherwise.
	Message string
	// Notice is a one-off success message.
	Notice string
}

// Collection is the view model shared by every list page. T is the
// record type and F the draft form.
type Collection[T, F any] struct {
	mu      sync.Mutex
	status  Status
	records []T
	err     error
	message string
	notice  string
	draft   F

	noun     string
	settings settings
	blank    func() F
	missing  func(F) []string
	list     func(context.Context) ([]T, error)
	create   func(context.Context, F) error
	remove   func(context.Context, int64) error
}

func newCollection[T, F any](noun string, s settings) *Collection[T, F] {
	c := &Collection[T, F]{noun: noun, settings: s, status: StatusIdle}
	c.blank = func() F {
		var f F
		return f
	}
	c.missing = func(F) []string { return nil }
	return c
}

func (c *Collection[T, F]) init() *Collection[T, F] {
	c.draft = c.blank()
	return c
}

// State returns a copy of the current state.
func (c *Collection[T, F]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs := make([]T, len(c.records))
	copy(recs, c.records)
	return State[T]{Status: c.status, Records: recs, Err: c.err, Message: c.message, Notice: c.notice}
}

// Records returns the last fetched list.
func (c *Collection[T, F]) Records() []T {
	return c.State().Records
}

// Draft returns the form as the operator left it. It is reset after a
// successful submit and kept after a failed one.
func (c *Collection[T, F]) Draft() F {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Load replaces the records with a fresh fetch.
func (c *Collection[T, F]) Load(ctx context.Context) error {
	c.setStatus(StatusLoading)
	recs, err := c.list(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failLocked(err, "Failed to load "+c.noun)
		c.settings.logger.ErrorContext(ctx, "Failed to load records",
			applog.FieldResource, c.noun, applog.FieldError, err)
		return err
	}
	c.records = recs
	c.status = StatusReady
	c.err, c.message = nil, ""
	return nil
}

// Submit validates presence of required fields, creates the record and
// reloads the list.
func (c *Collection[T, F]) Submit(ctx context.Context, form F) error {
	c.mu.Lock()
	c.draft = form
	c.mu.Unlock()

	if missing := c.missing(form); len(missing) > 0 {
		err := &MissingFieldsError{Fields: missing}
		c.fail(err, "Please fill in all required fields")
		return err
	}
	return c.mutate(ctx, applog.OpCreate, 0, "Failed to add "+c.noun, api.MessageOr, func(ctx context.Context) error {
		return c.create(ctx, form)
	}, true)
}

// Delete removes a record after the confirmer approves it.
func (c *Collection[T, F]) Delete(ctx context.Context, id int64, confirm Confirmer) error {
	if confirm == nil || !confirm.Confirm(ctx, fmt.Sprintf("Delete this %s record?", c.noun)) {
		return ErrDeclined
	}
	return c.mutate(ctx, applog.OpDelete, id, "Failed to delete "+c.noun, api.MessageOr, func(ctx context.Context) error {
		return c.remove(ctx, id)
	}, false)
}

// ReloadError is returned when the backend accepted a change but the list
// could not be fetched again afterwards. The change is saved; only the
// shown list is stale.
type ReloadError struct {
	Err error
}

func (e *ReloadError) Error() string {
	return "saved, but reloading failed: " + e.Err.Error()
}

func (e *ReloadError) Unwrap() error { return e.Err }

// Saved reports whether a mutation reached the backend: err is nil or
// only the reload after it failed.
func Saved(err error) bool {
	var reload *ReloadError
	return err == nil || errors.As(err, &reload)
}

// describeFunc turns a failed call into the operator message.
type describeFunc func(err error, fallback string) string

// mutate runs call and, on success, reloads. resetDraft clears the form
// once the backend has accepted it.
func (c *Collection[T, F]) mutate(ctx context.Context, op string, id int64, fallback string, describe describeFunc, call func(context.Context) error, resetDraft bool) error {
	c.setStatus(StatusSubmitting)
	if err := call(ctx); err != nil {
		c.mu.Lock()
		c.status = StatusError
		c.err = err
		c.message = describe(err, fallback)
		c.mu.Unlock()
		if !api.IsUnauthorized(err) {
			c.settings.logger.WarnContext(ctx, "Mutation rejected",
				applog.FieldOperation, op,
				applog.FieldResource, c.noun,
				applog.FieldRecordID, id,
				applog.FieldError, err)
		}
		return err
	}
	c.mu.Lock()
	if resetDraft {
		c.draft = c.blank()
	}
	c.mu.Unlock()
	c.settings.logger.InfoContext(ctx, "Mutation accepted",
		applog.FieldOperation, op, applog.FieldResource, c.noun, applog.FieldRecordID, id)
	if err := c.Load(ctx); err != nil {
		return &ReloadError{Err: err}
	}
	return nil
}

// SetNotice records a success message for the next render.
func (c *Collection[T, F]) SetNotice(msg string) {
	c.mu.Lock()
	c.notice = msg
	c.mu.Unlock()
}

// TakeNotice returns the pending success message and clears it.
func (c *Collection[T, F]) TakeNotice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.notice
	c.notice = ""
	return n
}

func (c *Collection[T, F]) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

func (c *Collection[T, F]) fail(err error, fallback string) {
	c.mu.Lock()
	c.failLocked(err, fallback)
	c.mu.Unlock()
}

func (c *Collection[T, F]) failLocked(err error, fallback string) {
	c.status = StatusError
	c.err = err
	c.message = api.MessageOr(err, fallback)
}

// blankFields returns the names of empty values in name/value pairs.
func blankFields(pairs ...string) []string {
	var out []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			out = append(out, pairs[i])
		}
	}
	return out
}

// orZero maps an empty amount to "0", which the backend accepts where it
// rejects an empty string.
func orZero(amount string) string {
	if strings.TrimSpace(amount) == "" {
		return "0"
	}
	return amount
}

// orNull maps an empty date to JSON null.
func orNull(date string) *string {
	if strings.TrimSpace(date) == "" {
		return nil
	}
	return &date
}
