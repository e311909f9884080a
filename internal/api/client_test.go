package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"astrofin/internal/clock"
	"astrofin/internal/fakeapi"
	"astrofin/internal/session"
)

var testNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu   sync.Mutex
	seen []Mutation
}

func (r *recorder) Mutated(_ context.Context, m Mutation) {
	r.mu.Lock()
	r.seen = append(r.seen, m)
	r.mu.Unlock()
}

type fixture struct {
	backend *fakeapi.Server
	clock   *clock.Fake
	store   *session.MemoryStore
	client  *Client
	events  *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFake(testNow)
	backend := fakeapi.New(clk)
	backend.AddUser("alice", "secret")
	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)

	store := session.NewMemoryStore()
	events := &recorder{}
	c := New(ts.URL, session.New(store, clk), 5*time.Second, WithClock(clk), WithObserver(events))
	return &fixture{backend: backend, clock: clk, store: store, client: c, events: events}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	if err := f.client.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func TestLoginStoresTokenAndBearerIsSent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	tok, err := f.client.Session().AccessToken(ctx)
	if err != nil || tok == "" {
		t.Fatalf("access token=%q err=%v", tok, err)
	}
	if _, err := f.client.ListIncome(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	req, ok := f.backend.LastRequest(http.MethodGet, "/api/income/")
	if !ok {
		t.Fatal("no income request recorded")
	}
	if req.Auth != "Bearer "+tok {
		t.Fatalf("Authorization=%q", req.Auth)
	}

	info, err := f.client.Session().Info(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Username != "alice" || info.UserID != "1" {
		t.Fatalf("info %+v", info)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	f := newFixture(t)
	err := f.client.Login(context.Background(), "alice", "wrong")
	if IsUnauthorized(err) {
		t.Fatal("bad credentials must not be reported as a lost session")
	}
	if got := MessageOr(err, "Login failed"); got != "No active account found with the given credentials" {
		t.Fatalf("message=%q", got)
	}
	if f.client.Session().Authenticated(context.Background()) {
		t.Fatal("session should stay empty")
	}
}

func TestUnauthenticatedCallSendsNoBearer(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.Stats(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err=%v", err)
	}
	req, _ := f.backend.LastRequest(http.MethodGet, "/api/stats/")
	if req.Auth != "" {
		t.Fatalf("Authorization=%q", req.Auth)
	}
}

func TestExpiredTokenClearsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)
	_ = f.store.Set(ctx, "unrelated", "x")

	f.clock.Advance(fakeapi.AccessLifetime + time.Minute)
	_, err := f.client.ListExpenses(ctx)
	if !IsUnauthorized(err) {
		t.Fatalf("err=%v", err)
	}
	if f.client.Session().Authenticated(ctx) {
		t.Fatal("session still authenticated after 401")
	}
	if f.store.Len() != 0 {
		t.Fatalf("store keeps %d keys after 401", f.store.Len())
	}
}

func TestRevokedTokenOnMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)
	f.backend.RevokeTokens()

	_, err := f.client.CreateIncome(ctx, IncomeInput{Source: "x", Amount: "1", Date: "2025-03-01"})
	if !IsUnauthorized(err) {
		t.Fatalf("err=%v", err)
	}
	if len(f.events.seen) != 0 {
		t.Fatalf("failed mutation was observed: %+v", f.events.seen)
	}
}

func TestValidationErrorKeepsBody(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	_, err := f.client.CreateExpense(context.Background(), ExpenseInput{Category: "Gifts", Amount: "5", Date: "2025-03-01"})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%v", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Fatalf("status=%d", apiErr.Status)
	}
	var body map[string][]string
	if err := json.Unmarshal(apiErr.Body, &body); err != nil || len(body["category"]) == 0 {
		t.Fatalf("body=%s", apiErr.Body)
	}
}

func TestPayLiability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	l, err := f.client.CreateLiability(ctx, LiabilityInput{Title: "Loan", TotalAmount: "100", PaidAmount: "0"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	req, _ := f.backend.LastRequest(http.MethodPost, "/api/liabilities/")
	if !strings.Contains(string(req.Body), `"paid_amount":"0"`) || !strings.Contains(string(req.Body), `"due_date":null`) {
		t.Fatalf("body=%s", req.Body)
	}

	_, err = f.client.PayLiability(ctx, l.ID, PaymentInput{Amount: "150"})
	if got := ServerMessage(err, "Payment failed"); got != "Amount exceeds remaining debt" {
		t.Fatalf("message=%q", got)
	}

	res, err := f.client.PayLiability(ctx, l.ID, PaymentInput{Amount: "100"})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if res.Status != "payment recorded" || res.NewBalance.Cents != 0 {
		t.Fatalf("result %+v", res)
	}

	var ops []string
	for _, m := range f.events.seen {
		ops = append(ops, m.Resource+":"+m.Op)
	}
	if strings.Join(ops, ",") != "liabilities:create,liabilities:pay" {
		t.Fatalf("events %v", ops)
	}
	if f.events.seen[1].ID != l.ID || !f.events.seen[1].At.Equal(testNow) {
		t.Fatalf("event %+v", f.events.seen[1])
	}
}

func TestCustomerPaymentsQueryAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	c, err := f.client.CreateCustomer(ctx, CustomerInput{Name: "Acme", ProjectName: "Shop", TotalAmount: "1000", AdvanceAmount: "0"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	if _, err := f.client.CreateCustomerPayment(ctx, ClientPaymentInput{Customer: c.ID, Amount: "250", Date: "2025-03-01"}); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	ps, err := f.client.ListCustomerPayments(ctx, c.ID)
	if err != nil || len(ps) != 1 {
		t.Fatalf("payments=%v err=%v", ps, err)
	}
	req, _ := f.backend.LastRequest(http.MethodGet, "/api/customer-payments/")
	if req.Query != "customer=1" {
		t.Fatalf("query=%q", req.Query)
	}

	updated, err := f.client.UpdateCustomer(ctx, c.ID, CustomerInput{Name: "Acme", ProjectName: "Shop", TotalAmount: "1200", AdvanceAmount: "0"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.TotalPaid.Cents != 25000 || updated.RemainingAmount.Cents != 95000 {
		t.Fatalf("updated %+v", updated)
	}
	if _, ok := f.backend.LastRequest(http.MethodPut, "/api/customers/1/"); !ok {
		t.Fatal("no PUT recorded")
	}
}

func TestPayrollFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.login(t)

	e, err := f.client.CreateEmployee(ctx, EmployeeInput{Name: "Asha", Role: "Designer", BaseSalary: "1500"})
	if err != nil {
		t.Fatalf("employee: %v", err)
	}
	if _, err := f.client.CreatePayroll(ctx, PayrollInput{Employee: e.ID, Amount: "1500", PaymentDate: "2025-03-01"}); err != nil {
		t.Fatalf("payroll: %v", err)
	}

	tests := []struct {
		employee int64
		query    string
		want     int
	}{
		{0, "", 1},
		{e.ID, "employee=1", 1},
		{42, "employee=42", 0},
	}
	for _, tt := range tests {
		got, err := f.client.ListPayroll(ctx, tt.employee)
		if err != nil {
			t.Fatalf("list %d: %v", tt.employee, err)
		}
		if len(got) != tt.want {
			t.Fatalf("employee %d: got %d records", tt.employee, len(got))
		}
		req, _ := f.backend.LastRequest(http.MethodGet, "/api/payroll/")
		if req.Query != tt.query {
			t.Fatalf("employee %d: query=%q", tt.employee, req.Query)
		}
	}
}

func TestDeleteNotFound(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	err := f.client.DeleteIncome(context.Background(), 99)
	if got := MessageOr(err, "Delete failed"); got != "Not found." {
		t.Fatalf("message=%q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":"Amount exceeds remaining debt"}`, "Amount exceeds remaining debt"},
		{`{"detail":"Not found."}`, "Not found."},
		{`{"amount":["A valid number is required."]}`, `{"amount":["A valid number is required."]}`},
		{"", "request failed with status 500"},
	}
	for _, tt := range tests {
		e := &Error{Status: 500, Body: []byte(tt.body)}
		if got := e.Message(); got != tt.want {
			t.Errorf("Message(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
	if got := ServerMessage(&Error{Status: 400, Body: []byte(`{"detail":"x"}`)}, "Payment failed"); got != "Payment failed" {
		t.Errorf("ServerMessage fallback = %q", got)
	}
	if got := MessageOr(errors.New("dial tcp"), "Network error"); got != "Network error" {
		t.Errorf("MessageOr fallback = %q", got)
	}
}
