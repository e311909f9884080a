package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type (
	// Date is a calendar day. The zero Date marshals to null.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	ExpenseCategory string
	EmployeeStatus  string

	Income struct {
		ID          int64  `json:"id,omitempty"`
		Source      string `json:"source"`
		Amount      Money  `json:"amount"`
		Date        Date   `json:"date"`
		Description string `json:"description,omitempty"`
	}

	Expense struct {
		ID          int64           `json:"id,omitempty"`
		Category    ExpenseCategory `json:"category"`
		Amount      Money           `json:"amount"`
		Date        Date            `json:"date"`
		Description string          `json:"description,omitempty"`
	}

	// Liability is a debt tracked for repayment. RemainingAmount is the
	// backend's own figure; Remaining recomputes it from total and paid.
	Liability struct {
		ID              int64  `json:"id,omitempty"`
		Title           string `json:"title"`
		TotalAmount     Money  `json:"total_amount"`
		PaidAmount      Money  `json:"paid_amount"`
		DueDate         Date   `json:"due_date"`
		IsSettled       bool   `json:"is_settled"`
		RemainingAmount Money  `json:"remaining_amount"`
	}

	// Customer is a client engagement. TotalPaid and RemainingAmount are
	// aggregates supplied by the backend (advance plus recorded payments).
	Customer struct {
		ID                 int64  `json:"id,omitempty"`
		Name               string `json:"name"`
		ProjectName        string `json:"project_name"`
		DomainName         string `json:"domain_name,omitempty"`
		Description        string `json:"description,omitempty"`
		TotalAmount        Money  `json:"total_amount"`
		AdvanceAmount      Money  `json:"advance_amount"`
		IsPaymentConfirmed bool   `json:"is_payment_confirmed"`
		IsProjectDelivered bool   `json:"is_project_delivered"`
		DeliveryDate       Date   `json:"delivery_date"`
		TotalPaid          Money  `json:"total_paid"`
		RemainingAmount    Money  `json:"remaining"`
	}

	ClientPayment struct {
		ID       int64  `json:"id,omitempty"`
		Customer int64  `json:"customer"`
		Amount   Money  `json:"amount"`
		Date     Date   `json:"date"`
		Note     string `json:"note,omitempty"`
	}

	Employee struct {
		ID         int64          `json:"id,omitempty"`
		Name       string         `json:"name"`
		Role       string         `json:"role"`
		BaseSalary Money          `json:"base_salary"`
		Email      string         `json:"email,omitempty"`
		Status     EmployeeStatus `json:"status,omitempty"`
		JoinedDate Date           `json:"joined_date"`
	}

	// PayrollPayment is a salary disbursement. The backend mirrors every
	// payment into the expense ledger under CategorySalary.
	PayrollPayment struct {
		ID           int64  `json:"id,omitempty"`
		Employee     int64  `json:"employee"`
		Amount       Money  `json:"amount"`
		Title        string `json:"title,omitempty"`
		PaymentDate  Date   `json:"payment_date"`
		EmployeeName string `json:"employee_name,omitempty"`
		EmployeeRole string `json:"employee_role,omitempty"`
	}
)

const (
	CategoryFood          ExpenseCategory = "Food"
	CategoryTransport     ExpenseCategory = "Transport"
	CategoryUtilities     ExpenseCategory = "Utilities"
	CategoryEntertainment ExpenseCategory = "Entertainment"
	CategoryHealthcare    ExpenseCategory = "Healthcare"
	CategoryEducation     ExpenseCategory = "Education"
	CategoryHousing       ExpenseCategory = "Housing"
	CategoryOther         ExpenseCategory = "Other"

	// Written by the backend only, never offered on the expense form.
	CategorySalary    ExpenseCategory = "Salary"
	CategoryLiability ExpenseCategory = "Liability"
)

const (
	StatusActive   EmployeeStatus = "Active"
	StatusOnLeave  EmployeeStatus = "On Leave"
	StatusInactive EmployeeStatus = "Inactive"
)

// DefaultPayrollTitle is used when a payroll payment is posted without a title.
const DefaultPayrollTitle = "Salary Payment"

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidStatus   = errors.New("invalid employee status")
	ErrMissingField    = errors.New("missing required field")
)

// FieldError reports a single invalid field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }

func missing(field string) error { return &FieldError{Field: field, Err: ErrMissingField} }

// FormCategories returns the categories selectable on the expense form,
// in display order.
func FormCategories() []ExpenseCategory {
	return []ExpenseCategory{
		CategoryFood, CategoryTransport, CategoryUtilities, CategoryEntertainment,
		CategoryHealthcare, CategoryEducation, CategoryHousing, CategoryOther,
	}
}

func (c ExpenseCategory) Valid() bool {
	switch c {
	case CategoryFood, CategoryTransport, CategoryUtilities, CategoryEntertainment,
		CategoryHealthcare, CategoryEducation, CategoryHousing, CategoryOther,
		CategorySalary, CategoryLiability:
		return true
	}
	return false
}

// Label is the human name of the category.
func (c ExpenseCategory) Label() string {
	if c == CategoryLiability {
		return "Debt Repayment"
	}
	return string(c)
}

func EmployeeStatuses() []EmployeeStatus {
	return []EmployeeStatus{StatusActive, StatusOnLeave, StatusInactive}
}

func (s EmployeeStatus) Valid() bool {
	switch s {
	case StatusActive, StatusOnLeave, StatusInactive:
		return true
	}
	return false
}

// Display returns the status shown for an employee; records saved before
// statuses existed have none and count as Active.
func (s EmployeeStatus) Display() EmployeeStatus {
	if s == "" {
		return StatusActive
	}
	return s
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// String returns YYYY-MM-DD, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON accepts YYYY-MM-DD, full RFC 3339 timestamps and null.
func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if len(s) > len(dateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			*d = DateOf(t)
			return nil
		}
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (i Income) Validate() error {
	if strings.TrimSpace(i.Source) == "" {
		return missing("source")
	}
	if i.Amount.Cents < 0 {
		return &FieldError{Field: "amount", Err: ErrInvalidAmount}
	}
	if i.Date.IsZero() {
		return missing("date")
	}
	return nil
}

func (e Expense) Validate() error {
	if e.Category == "" {
		return missing("category")
	}
	if !e.Category.Valid() {
		return &FieldError{Field: "category", Err: ErrInvalidCategory}
	}
	if e.Amount.Cents < 0 {
		return &FieldError{Field: "amount", Err: ErrInvalidAmount}
	}
	if e.Date.IsZero() {
		return missing("date")
	}
	return nil
}

func (l Liability) Validate() error {
	if strings.TrimSpace(l.Title) == "" {
		return missing("title")
	}
	if l.TotalAmount.Cents < 0 {
		return &FieldError{Field: "total_amount", Err: ErrInvalidAmount}
	}
	if l.PaidAmount.Cents < 0 {
		return &FieldError{Field: "paid_amount", Err: ErrInvalidAmount}
	}
	return nil
}

func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return missing("name")
	}
	if strings.TrimSpace(c.ProjectName) == "" {
		return missing("project_name")
	}
	if c.TotalAmount.Cents < 0 {
		return &FieldError{Field: "total_amount", Err: ErrInvalidAmount}
	}
	if c.AdvanceAmount.Cents < 0 {
		return &FieldError{Field: "advance_amount", Err: ErrInvalidAmount}
	}
	return nil
}

func (p ClientPayment) Validate() error {
	if p.Customer == 0 {
		return missing("customer")
	}
	if err := p.Amount.Validate(); err != nil {
		return &FieldError{Field: "amount", Err: err}
	}
	if p.Date.IsZero() {
		return missing("date")
	}
	return nil
}

func (e Employee) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return missing("name")
	}
	if strings.TrimSpace(e.Role) == "" {
		return missing("role")
	}
	if e.BaseSalary.Cents < 0 {
		return &FieldError{Field: "base_salary", Err: ErrInvalidAmount}
	}
	if e.Status != "" && !e.Status.Valid() {
		return &FieldError{Field: "status", Err: ErrInvalidStatus}
	}
	return nil
}

func (p PayrollPayment) Validate() error {
	if p.Employee == 0 {
		return missing("employee")
	}
	if err := p.Amount.Validate(); err != nil {
		return &FieldError{Field: "amount", Err: err}
	}
	if p.PaymentDate.IsZero() {
		return missing("payment_date")
	}
	return nil
}
