package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"astrofin/internal/api"
	"astrofin/internal/clock"
	"astrofin/internal/fakeapi"
	"astrofin/internal/session"
)

var testNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	backend *fakeapi.Server
	store   *session.MemoryStore
	clock   *clock.Fake
	apiURL  string
	srv     *Server
	// cookie is sent with every request; login sets it.
	cookie *http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clk := clock.NewFake(testNow)
	backend := fakeapi.New(clk)
	backend.SeedDemo()
	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)

	store := session.NewMemoryStore()
	srv := NewServer(":0", Deps{
		Store: store,
		Clock: clk,
		NewClient: func(sess *session.Session) *api.Client {
			return api.New(ts.URL, sess, 5*time.Second, api.WithClock(clk))
		},
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{backend: backend, store: store, clock: clk, apiURL: ts.URL, srv: srv}
}

// login signs in through the form and keeps the issued cookie.
func (e *testEnv) login(t *testing.T) {
	t.Helper()
	e.cookie = nil
	rr := e.post("/login", url.Values{"username": {fakeapi.DemoUser}, "password": {fakeapi.DemoPassword}})
	expectRedirect(t, rr, "/")
	e.cookie = sessionCookieFrom(t, rr)
}

func sessionCookieFrom(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", sessionCookie)
	return nil
}

// direct returns a backend client with its own session, for checking
// state behind the dashboard.
func (e *testEnv) direct(t *testing.T) *api.Client {
	t.Helper()
	client := api.New(e.apiURL, session.New(session.NewMemoryStore(), e.clock), 5*time.Second, api.WithClock(e.clock))
	if err := client.Login(context.Background(), fakeapi.DemoUser, fakeapi.DemoPassword); err != nil {
		t.Fatalf("direct login: %v", err)
	}
	return client
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	if e.cookie != nil {
		req.AddCookie(&http.Cookie{Name: e.cookie.Name, Value: e.cookie.Value})
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) get(path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return e.serve(req)
}

func (e *testEnv) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.serve(req)
}

func (e *testEnv) count(method, path string) int {
	n := 0
	for _, r := range e.backend.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func expectRedirect(t *testing.T, rr *httptest.ResponseRecorder, target string) {
	t.Helper()
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != target {
		t.Fatalf("Location = %q, want %q", loc, target)
	}
}

func expectBody(t *testing.T, rr *httptest.ResponseRecorder, parts ...string) {
	t.Helper()
	body := rr.Body.String()
	for _, p := range parts {
		if !strings.Contains(body, p) {
			t.Errorf("body missing %q", p)
		}
	}
}

func TestHealthReadyAndMetrics(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := e.get(path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
	expectBody(t, e.get("/readyz"), `"status":"ready"`)
	expectBody(t, e.get("/metrics"), "http_requests_total", "rate_limit_hits_total", "active_sessions 0")
	expectBody(t, e.get("/readyz"), `"sessions":0`)

	rr := e.get("/healthz")
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("security headers not set")
	}
}

func TestProtectedPagesRedirectToLogin(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/", "/income", "/expenses", "/liabilities", "/customers", "/payroll"} {
		expectRedirect(t, e.get(path), "/login")
	}

	rr := e.get("/customers", "HX-Request", "true")
	if rr.Header().Get("HX-Redirect") != "/login" {
		t.Fatalf("htmx request: HX-Redirect = %q", rr.Header().Get("HX-Redirect"))
	}
	if n := len(e.backend.Requests()); n != 0 {
		t.Fatalf("backend contacted %d times without a session", n)
	}
}

func TestLoginFlow(t *testing.T) {
	e := newTestEnv(t)

	rr := e.get("/login")
	if rr.Code != http.StatusOK {
		t.Fatalf("login page status=%d", rr.Code)
	}
	expectBody(t, rr, "Sign in")

	rr = e.post("/login", url.Values{"username": {"demo"}, "password": {"wrong"}})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad credentials status=%d", rr.Code)
	}
	expectBody(t, rr, "No active account found with the given credentials", `value="demo"`)

	rr = e.post("/login", url.Values{"username": {"demo"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing password status=%d", rr.Code)
	}

	rr = e.post("/login", url.Values{"username": {"demo"}, "password": {"demo"}})
	expectRedirect(t, rr, "/")
	e.cookie = sessionCookieFrom(t, rr)
	if !e.cookie.HttpOnly || e.cookie.SameSite != http.SameSiteLaxMode || e.cookie.Path != "/" {
		t.Errorf("cookie attributes = %+v", e.cookie)
	}
	expectRedirect(t, e.get("/login"), "/")

	rr = e.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status=%d: %s", rr.Code, rr.Body.String())
	}
	expectBody(t, rr, "Total Income", "Income vs Expenses", "width: 100%", "demo")

	rr = e.post("/logout", nil)
	expectRedirect(t, rr, "/login")
	if c := sessionCookieFrom(t, rr); c.MaxAge >= 0 {
		t.Errorf("logout cookie MaxAge = %d, want expired", c.MaxAge)
	}
	if e.store.Len() != 0 {
		t.Fatalf("session keys left after logout: %d", e.store.Len())
	}
	// The old cookie is worthless now.
	expectRedirect(t, e.get("/"), "/login")
}

func TestLoginRateLimit(t *testing.T) {
	e := newTestEnv(t)
	form := url.Values{"username": {"demo"}, "password": {"wrong"}}

	for i := 0; i < loginAttempts; i++ {
		if rr := e.post("/login", form); rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status=%d", i+1, rr.Code)
		}
	}
	rr := e.post("/login", form)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After not set")
	}

	e.clock.Advance(loginWindow)
	if rr := e.post("/login", form); rr.Code != http.StatusUnauthorized {
		t.Fatalf("after window status=%d", rr.Code)
	}
}

func TestExpiredSessionRedirectsFromAnyPage(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	e.backend.RevokeTokens()

	expectRedirect(t, e.get("/liabilities"), "/login")
	if e.store.Len() != 0 {
		t.Fatalf("session not cleared: %d keys", e.store.Len())
	}

	e.login(t)
	e.backend.RevokeTokens()
	rr := e.post("/income", url.Values{"source": {"Grant"}, "amount": {"10"}, "date": {"2025-03-01"}})
	expectRedirect(t, rr, "/login")
}

func TestCreateIncome(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	form := url.Values{"source": {"Grant"}, "amount": {"250"}, "date": {"2025-03-10"}}
	expectRedirect(t, e.post("/income", form), "/income")

	rr := e.get("/income")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	expectBody(t, rr, "Grant", "Rs. 250.00", "Income added")

	// The notice is shown once.
	if strings.Contains(e.get("/income").Body.String(), "Income added") {
		t.Error("notice shown twice")
	}
}

func TestCreateIncomeRejected(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	before := e.count(http.MethodPost, "/api/income/")

	rr := e.post("/income", url.Values{"source": {"Grant"}, "date": {"2025-03-10"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing amount status=%d", rr.Code)
	}
	expectBody(t, rr, "Please fill in all required fields", `value="Grant"`)
	if e.count(http.MethodPost, "/api/income/") != before {
		t.Fatal("request sent despite missing field")
	}

	req := httptest.NewRequest(http.MethodPost, "/income", strings.NewReader("source=Grant&amount=abc&date=2025-03-10"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rec := e.serve(req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("backend rejection status=%d", rec.Code)
	}
	expectBody(t, rec, "A valid number is required.", `value="abc"`)
	if !strings.Contains(rec.Header().Get("HX-Trigger"), "show-notification") {
		t.Errorf("HX-Trigger = %q", rec.Header().Get("HX-Trigger"))
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	rr := e.post("/income/1/delete", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	expectBody(t, rr, "Delete this income record?", `name="confirm" value="yes"`)
	if e.count(http.MethodDelete, "/api/income/1/") != 0 {
		t.Fatal("deleted without confirmation")
	}

	expectRedirect(t, e.post("/income/1/delete", url.Values{"confirm": {"yes"}}), "/income")
	if e.count(http.MethodDelete, "/api/income/1/") != 1 {
		t.Fatal("confirmed delete not sent")
	}

	rr = e.post("/income/999/delete", url.Values{"confirm": {"yes"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing record status=%d", rr.Code)
	}
	expectBody(t, rr, "Not found.")

	if rr := e.post("/income/abc/delete", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", rr.Code)
	}
}

func TestLiabilityPay(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	// A fresh server has not listed liabilities yet; pay loads them first.
	expectRedirect(t, e.post("/liabilities/1/pay", url.Values{"amount": {"400"}}), "/liabilities")

	rr := e.get("/liabilities")
	expectBody(t, rr, "Payment of Rs. 400.00 recorded successfully!", "Rs. 3,350.00", "Fully Paid", "Pay Now")

	tests := []struct {
		name, id, amount string
		wantStatus       int
		wantBody         string
	}{
		{"over remaining", "1", "999999", http.StatusUnprocessableEntity, "Amount exceeds remaining debt"},
		{"zero", "1", "0", http.StatusUnprocessableEntity, "Amount must be greater than 0"},
		{"settled", "2", "10", http.StatusUnprocessableEntity, "This liability is already fully paid"},
		{"unknown", "77", "10", http.StatusNotFound, "Payment failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.post("/liabilities/"+tt.id+"/pay", url.Values{"amount": {tt.amount}})
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d", rr.Code, tt.wantStatus)
			}
			expectBody(t, rr, tt.wantBody)
		})
	}
	if n := e.count(http.MethodPost, "/api/liabilities/1/pay/"); n != 1 {
		t.Fatalf("pay requests sent = %d, want 1", n)
	}
}

func TestCreateLiabilitySendsZeroPaid(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	form := url.Values{"title": {"Van"}, "total_amount": {"1000"}, "paid_amount": {""}, "due_date": {""}}
	expectRedirect(t, e.post("/liabilities", form), "/liabilities")

	req, ok := e.backend.LastRequest(http.MethodPost, "/api/liabilities/")
	if !ok {
		t.Fatal("no create request")
	}
	body := string(req.Body)
	if !strings.Contains(body, `"paid_amount":"0"`) || !strings.Contains(body, `"due_date":null`) {
		t.Fatalf("body = %s", body)
	}
}

func TestCustomers(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	rr := e.get("/customers?selected=1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	expectBody(t, rr, "Acme Traders", "Payment History", "Milestone 1", "Estimated due: Rs. 3,000.00")
	if req, ok := e.backend.LastRequest(http.MethodGet, "/api/customer-payments/"); !ok || req.Query != "customer=1" {
		t.Fatalf("history request = %+v", req)
	}

	rr = e.get("/customers?q=north")
	expectBody(t, rr, "Northwind")
	if strings.Contains(rr.Body.String(), "Acme Traders") {
		t.Error("search did not filter")
	}

	pay := url.Values{"amount": {"250"}, "date": {"2025-03-10"}, "note": {"Milestone 2"}}
	expectRedirect(t, e.post("/customers/1/payments", pay), "/customers?selected=1")
	expectBody(t, e.get("/customers?selected=1"), "Milestone 2", "Payment recorded")

	customers, err := e.direct(t).ListCustomers(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := customers[0].TotalPaid.String(); got != "1750.00" {
		t.Fatalf("total_paid = %s", got)
	}
}

func TestUpdateCustomer(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	e.get("/customers")

	form := url.Values{"name": {"Northwind Ltd"}, "project_name": {"Booking portal"}, "total_amount": {"2500"}}
	expectRedirect(t, e.post("/customers/2", form), "/customers?selected=2")
	if e.count(http.MethodPut, "/api/customers/2/") != 1 {
		t.Fatal("update not sent as PUT")
	}

	form.Del("total_amount")
	form.Set("name", "Renamed")
	rr := e.post("/customers/2", form)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	expectBody(t, rr, `value="Renamed"`)
}

func TestPayrollPayDefaultsToBaseSalary(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	rr := e.get("/payroll?employee=1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	expectBody(t, rr, "Asha Rao", "Payment History", "On Leave")

	form := url.Values{"employee": {"1"}, "payment_date": {"2025-03-10"}}
	expectRedirect(t, e.post("/payroll/payments", form), "/payroll?employee=1")

	req, ok := e.backend.LastRequest(http.MethodPost, "/api/payroll/")
	if !ok {
		t.Fatal("no payroll request")
	}
	if !strings.Contains(string(req.Body), `"amount":"1500.00"`) {
		t.Fatalf("body = %s", req.Body)
	}

	rr = e.post("/payroll/payments", url.Values{"payment_date": {"2025-03-10"}})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing employee status=%d", rr.Code)
	}
}

func TestEmployeeCRUD(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	form := url.Values{"name": {"Mina"}, "role": {"QA"}, "base_salary": {"900"}, "status": {"Active"}}
	expectRedirect(t, e.post("/payroll/employees", form), "/payroll")
	expectBody(t, e.get("/payroll"), "Mina", "Employee added")

	form.Set("role", "Lead QA")
	expectRedirect(t, e.post("/payroll/employees/3", form), "/payroll?employee=3")
	expectBody(t, e.get("/payroll?employee=3"), "Lead QA")

	expectRedirect(t, e.post("/payroll/employees/3/delete", url.Values{"confirm": {"yes"}}), "/payroll")
	if strings.Contains(e.get("/payroll").Body.String(), "Mina") {
		t.Error("employee still listed after delete")
	}
}

func TestExpensesPageOffersFormCategoriesOnly(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	rr := e.get("/expenses")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	expectBody(t, rr, `<option value="Food"`, "Office rent", "Salary")
	if strings.Contains(rr.Body.String(), `<option value="Salary"`) {
		t.Error("Salary offered on the expense form")
	}

	form := url.Values{"category": {"Transport"}, "amount": {"35"}, "date": {"2025-03-14"}}
	expectRedirect(t, e.post("/expenses", form), "/expenses")
}
