package fakeapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"astrofin/internal/clock"
	"astrofin/internal/core"
)

var testNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *clock.Fake, string) {
	t.Helper()
	clk := clock.NewFake(testNow)
	s := New(clk)
	s.AddUser("alice", "secret")
	rr := do(t, s, "", http.MethodPost, "/api/token/", `{"username":"alice","password":"secret"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
	var tok struct{ Access string }
	if err := json.Unmarshal(rr.Body.Bytes(), &tok); err != nil || tok.Access == "" {
		t.Fatalf("no access token: %v %s", err, rr.Body.String())
	}
	return s, clk, tok.Access
}

func do(t *testing.T, s *Server, token, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
	return v
}

func TestTokenRejectsBadCredentials(t *testing.T) {
	s := New(clock.NewFake(testNow))
	s.AddUser("alice", "secret")
	rr := do(t, s, "", http.MethodPost, "/api/token/", `{"username":"alice","password":"nope"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No active account") {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	s, clk, token := newTestServer(t)

	if rr := do(t, s, "", http.MethodGet, "/api/income/", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status=%d", rr.Code)
	}
	if rr := do(t, s, token, http.MethodGet, "/api/income/", ""); rr.Code != http.StatusOK {
		t.Fatalf("valid token: status=%d", rr.Code)
	}

	clk.Advance(AccessLifetime + time.Second)
	rr := do(t, s, token, http.MethodGet, "/api/income/", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "token_not_valid") {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestRevokeTokens(t *testing.T) {
	s, _, token := newTestServer(t)
	s.RevokeTokens()
	if rr := do(t, s, token, http.MethodGet, "/api/stats/", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	s, _, token := newTestServer(t)

	tests := []struct {
		name  string
		path  string
		body  string
		field string
	}{
		{"income missing source", "/api/income/", `{"amount":"10","date":"2025-03-01"}`, "source"},
		{"income bad amount", "/api/income/", `{"source":"x","amount":"abc","date":"2025-03-01"}`, "amount"},
		{"expense bad category", "/api/expenses/", `{"category":"Gifts","amount":"5","date":"2025-03-01"}`, "category"},
		{"liability empty paid", "/api/liabilities/", `{"title":"Loan","total_amount":"100","paid_amount":""}`, "paid_amount"},
		{"customer empty delivery", "/api/customers/", `{"name":"A","project_name":"P","total_amount":"10","delivery_date":""}`, "delivery_date"},
		{"payment unknown customer", "/api/customer-payments/", `{"customer":99,"amount":"5","date":"2025-03-01"}`, "customer"},
		{"employee bad status", "/api/employees/", `{"name":"A","role":"R","base_salary":"10","status":"Away"}`, "status"},
		{"payroll missing employee", "/api/payroll/", `{"amount":"10","payment_date":"2025-03-01"}`, "employee"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, token, http.MethodPost, tt.path, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			errs := decode[map[string][]string](t, rr)
			if len(errs[tt.field]) == 0 {
				t.Fatalf("no error for %s in %v", tt.field, errs)
			}
		})
	}
}

func TestListsNewestFirst(t *testing.T) {
	s, _, token := newTestServer(t)
	for _, d := range []string{"2025-01-10", "2025-03-01", "2025-02-05"} {
		if rr := do(t, s, token, http.MethodPost, "/api/income/", `{"source":"x","amount":"1","date":"`+d+`"}`); rr.Code != http.StatusCreated {
			t.Fatalf("create status=%d", rr.Code)
		}
	}
	got := decode[[]core.Income](t, do(t, s, token, http.MethodGet, "/api/income/", ""))
	want := []string{"2025-03-01", "2025-02-05", "2025-01-10"}
	for i, w := range want {
		if got[i].Date.String() != w {
			t.Fatalf("order[%d]=%s, want %s", i, got[i].Date, w)
		}
	}
}

func TestPayLiability(t *testing.T) {
	s, _, token := newTestServer(t)
	rr := do(t, s, token, http.MethodPost, "/api/liabilities/", `{"title":"Loan","total_amount":"100.00"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	l := decode[core.Liability](t, rr)
	if l.PaidAmount.Cents != 0 || l.RemainingAmount.Cents != 10000 {
		t.Fatalf("created %+v", l)
	}

	tests := []struct {
		body    string
		status  int
		message string
	}{
		{`{"amount":"abc"}`, http.StatusBadRequest, "Invalid amount format"},
		{`{"amount":"0"}`, http.StatusBadRequest, "Amount must be greater than 0"},
		{`{"amount":"-5"}`, http.StatusBadRequest, "Amount must be greater than 0"},
		{`{"amount":"150"}`, http.StatusBadRequest, "Amount exceeds remaining debt"},
		{`{"amount":"40"}`, http.StatusOK, "payment recorded"},
		{`{"amount":"60","date":"2025-03-10"}`, http.StatusOK, "payment recorded"},
	}
	path := "/api/liabilities/1/pay/"
	for _, tt := range tests {
		rr := do(t, s, token, http.MethodPost, path, tt.body)
		if rr.Code != tt.status || !strings.Contains(rr.Body.String(), tt.message) {
			t.Fatalf("%s: status=%d body=%s", tt.body, rr.Code, rr.Body.String())
		}
	}

	ls := decode[[]core.Liability](t, do(t, s, token, http.MethodGet, "/api/liabilities/", ""))
	if !ls[0].IsSettled || ls[0].RemainingAmount.Cents != 0 {
		t.Fatalf("after full payment %+v", ls[0])
	}

	exps := decode[[]core.Expense](t, do(t, s, token, http.MethodGet, "/api/expenses/", ""))
	if len(exps) != 2 {
		t.Fatalf("mirrored expenses=%d", len(exps))
	}
	if exps[0].Category != core.CategoryLiability || exps[0].Description != "Payment for Loan" {
		t.Fatalf("mirror %+v", exps[0])
	}
	if exps[0].Date.String() != "2025-03-15" || exps[1].Date.String() != "2025-03-10" {
		t.Fatalf("mirror dates %s %s", exps[0].Date, exps[1].Date)
	}
}

func TestCustomerAggregatesAndFilter(t *testing.T) {
	s, _, token := newTestServer(t)
	do(t, s, token, http.MethodPost, "/api/customers/", `{"name":"A","project_name":"P","total_amount":"1000","advance_amount":"200"}`)
	do(t, s, token, http.MethodPost, "/api/customers/", `{"name":"B","project_name":"Q","total_amount":"50","advance_amount":"0"}`)
	do(t, s, token, http.MethodPost, "/api/customer-payments/", `{"customer":1,"amount":"300","date":"2025-03-01"}`)
	do(t, s, token, http.MethodPost, "/api/customer-payments/", `{"customer":2,"amount":"50","date":"2025-03-02"}`)

	cs := decode[[]core.Customer](t, do(t, s, token, http.MethodGet, "/api/customers/", ""))
	if cs[0].TotalPaid.Cents != 50000 || cs[0].RemainingAmount.Cents != 50000 {
		t.Fatalf("customer A %+v", cs[0])
	}

	ps := decode[[]core.ClientPayment](t, do(t, s, token, http.MethodGet, "/api/customer-payments/?customer=1", ""))
	if len(ps) != 1 || ps[0].Customer != 1 {
		t.Fatalf("filtered payments %+v", ps)
	}
	s.IgnoreCustomerFilter = true
	ps = decode[[]core.ClientPayment](t, do(t, s, token, http.MethodGet, "/api/customer-payments/?customer=1", ""))
	if len(ps) != 2 {
		t.Fatalf("unfiltered payments %+v", ps)
	}

	rr := do(t, s, token, http.MethodPut, "/api/customers/1/", `{"name":"A2","project_name":"P","total_amount":"1200","advance_amount":"200","delivery_date":null}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if c := decode[core.Customer](t, rr); c.Name != "A2" || c.RemainingAmount.Cents != 70000 {
		t.Fatalf("updated %+v", c)
	}

	if rr := do(t, s, token, http.MethodDelete, "/api/customers/1/", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	s.IgnoreCustomerFilter = false
	ps = decode[[]core.ClientPayment](t, do(t, s, token, http.MethodGet, "/api/customer-payments/", ""))
	if len(ps) != 1 {
		t.Fatalf("payments after cascade %+v", ps)
	}
}

func TestPayrollMirrorsSalaryExpense(t *testing.T) {
	s, _, token := newTestServer(t)
	rr := do(t, s, token, http.MethodPost, "/api/employees/", `{"name":"Asha","role":"Designer","base_salary":"1500"}`)
	e := decode[core.Employee](t, rr)
	if e.Status != core.StatusActive || e.JoinedDate.String() != "2025-03-15" {
		t.Fatalf("employee %+v", e)
	}

	rr = do(t, s, token, http.MethodPost, "/api/payroll/", `{"employee":1,"amount":"1500","payment_date":"2025-03-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("payroll status=%d body=%s", rr.Code, rr.Body.String())
	}
	p := decode[core.PayrollPayment](t, rr)
	if p.Title != core.DefaultPayrollTitle || p.EmployeeName != "Asha" || p.EmployeeRole != "Designer" {
		t.Fatalf("payroll %+v", p)
	}

	exps := decode[[]core.Expense](t, do(t, s, token, http.MethodGet, "/api/expenses/", ""))
	if len(exps) != 1 || exps[0].Category != core.CategorySalary || exps[0].Description != "Salary Payment: Asha (Salary Payment)" {
		t.Fatalf("mirror %+v", exps)
	}

	if got := decode[[]core.PayrollPayment](t, do(t, s, token, http.MethodGet, "/api/payroll/?employee=2", "")); len(got) != 0 {
		t.Fatalf("filter by other employee: %+v", got)
	}
}

func TestStats(t *testing.T) {
	s, _, token := newTestServer(t)
	do(t, s, token, http.MethodPost, "/api/income/", `{"source":"Salary","amount":"1000","date":"2025-03-01"}`)
	do(t, s, token, http.MethodPost, "/api/income/", `{"source":"Old","amount":"500","date":"2024-09-01"}`)
	do(t, s, token, http.MethodPost, "/api/expenses/", `{"category":"Food","amount":"100","date":"2025-03-02"}`)
	do(t, s, token, http.MethodPost, "/api/expenses/", `{"category":"Housing","amount":"300","date":"2025-02-02"}`)
	do(t, s, token, http.MethodPost, "/api/liabilities/", `{"title":"Loan","total_amount":"800","paid_amount":"300"}`)

	st := decode[core.DashboardStats](t, do(t, s, token, http.MethodGet, "/api/stats/", ""))
	if st.TotalIncome.Cents != 150000 || st.TotalExpense.Cents != 40000 || st.Balance.Cents != 110000 {
		t.Fatalf("totals %+v", st)
	}
	if st.TotalLiabilities.Cents != 50000 {
		t.Fatalf("liabilities %v", st.TotalLiabilities)
	}
	if len(st.RecentTransactions) != 4 || st.RecentTransactions[0].Title != "Food" {
		t.Fatalf("recent %+v", st.RecentTransactions)
	}
	if st.CategoryStats[0].Category != core.CategoryHousing {
		t.Fatalf("categories %+v", st.CategoryStats)
	}
	if len(st.MonthlyStats) != 6 || st.MonthlyStats[0].Name != "Oct" || st.MonthlyStats[5].Name != "Mar" {
		t.Fatalf("months %+v", st.MonthlyStats)
	}
	if st.MonthlyStats[5].Income.Cents != 100000 || st.MonthlyStats[4].Expense.Cents != 30000 {
		t.Fatalf("month buckets %+v", st.MonthlyStats)
	}
}

func TestSeedDemo(t *testing.T) {
	s := New(clock.NewFake(testNow))
	s.SeedDemo()
	rr := do(t, s, "", http.MethodPost, "/api/token/", `{"username":"`+DemoUser+`","password":"`+DemoPassword+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("demo login status=%d", rr.Code)
	}
	var tok struct{ Access string }
	_ = json.Unmarshal(rr.Body.Bytes(), &tok)
	st := decode[core.DashboardStats](t, do(t, s, tok.Access, http.MethodGet, "/api/stats/", ""))
	if st.TotalIncome.Cents == 0 || len(st.RecentTransactions) != 5 {
		t.Fatalf("seeded stats %+v", st)
	}
}
