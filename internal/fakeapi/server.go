// Package fakeapi is an in-memory stand-in for the finance backend. It
// serves the same REST surface with the same validation and side effects
// (mirrored expenses, payment rules, dashboard aggregates) and is used by
// tests and by the demo mode of the binaries.
package fakeapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"astrofin/internal/clock"
	"astrofin/internal/core"
	applog "astrofin/internal/log"
)

// AccessLifetime matches the backend's default access token lifetime.
const AccessLifetime = 5 * time.Minute

// Request is a request the server received, kept for assertions.
type Request struct {
	Method string
	Path   string
	Query  string
	Body   []byte
	Auth   string
}

type Server struct {
	mu     sync.Mutex
	clock  clock.Clock
	logger *applog.Logger
	secret []byte
	mux    *http.ServeMux

	users      map[string]user
	generation int
	requests   []Request
	nextID     map[string]int64

	income      []core.Income
	expenses    []core.Expense
	liabilities []core.Liability
	customers   []core.Customer
	cpayments   []core.ClientPayment
	employees   []core.Employee
	payroll     []core.PayrollPayment

	// IgnoreCustomerFilter makes GET customer-payments/ return every
	// payment regardless of ?customer=.
	IgnoreCustomerFilter bool
}

type user struct {
	id       int64
	password string
}

type Option func(*Server)

func WithLogger(l *applog.Logger) Option {
	return func(s *Server) { s.logger = l.WithComponent(applog.ComponentFakeAPI) }
}

// New returns an empty backend with no users.
func New(clk clock.Clock, opts ...Option) *Server {
	if clk == nil {
		clk = clock.Real()
	}
	s := &Server{
		clock:  clk,
		logger: applog.Discard(),
		secret: []byte("fakeapi-signing-key"),
		users:  map[string]user{},
		nextID: map[string]int64{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token/{$}", s.handleToken)

	mux.Handle("GET /api/income/{$}", s.auth(s.listIncome))
	mux.Handle("POST /api/income/{$}", s.auth(s.createIncome))
	mux.Handle("DELETE /api/income/{id}/{$}", s.auth(s.deleteIncome))

	mux.Handle("GET /api/expenses/{$}", s.auth(s.listExpenses))
	mux.Handle("POST /api/expenses/{$}", s.auth(s.createExpense))
	mux.Handle("DELETE /api/expenses/{id}/{$}", s.auth(s.deleteExpense))

	mux.Handle("GET /api/liabilities/{$}", s.auth(s.listLiabilities))
	mux.Handle("POST /api/liabilities/{$}", s.auth(s.createLiability))
	mux.Handle("DELETE /api/liabilities/{id}/{$}", s.auth(s.deleteLiability))
	mux.Handle("POST /api/liabilities/{id}/pay/{$}", s.auth(s.payLiability))

	mux.Handle("GET /api/customers/{$}", s.auth(s.listCustomers))
	mux.Handle("POST /api/customers/{$}", s.auth(s.createCustomer))
	mux.Handle("PUT /api/customers/{id}/{$}", s.auth(s.updateCustomer))
	mux.Handle("DELETE /api/customers/{id}/{$}", s.auth(s.deleteCustomer))
	mux.Handle("GET /api/customer-payments/{$}", s.auth(s.listCustomerPayments))
	mux.Handle("POST /api/customer-payments/{$}", s.auth(s.createCustomerPayment))

	mux.Handle("GET /api/employees/{$}", s.auth(s.listEmployees))
	mux.Handle("POST /api/employees/{$}", s.auth(s.createEmployee))
	mux.Handle("PUT /api/employees/{id}/{$}", s.auth(s.updateEmployee))
	mux.Handle("DELETE /api/employees/{id}/{$}", s.auth(s.deleteEmployee))
	mux.Handle("GET /api/payroll/{$}", s.auth(s.listPayroll))
	mux.Handle("POST /api/payroll/{$}", s.auth(s.createPayroll))

	mux.Handle("GET /api/stats/{$}", s.auth(s.stats))
	s.mux = mux
}

// ServeHTTP records the request, then dispatches it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	r.Body.Close()
	r.Body = io.NopCloser(strings.NewReader(string(body)))

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Body:   body,
		Auth:   r.Header.Get("Authorization"),
	})
	s.mu.Unlock()

	s.logger.Debug("Fake backend request", applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
	s.mux.ServeHTTP(w, r)
}

// AddUser registers credentials accepted by the token endpoint.
func (s *Server) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = user{id: int64(len(s.users) + 1), password: password}
}

// RevokeTokens makes every token issued so far fail with 401.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request with the given method and
// path, and whether there was one.
func (s *Server) LastRequest(method, path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if r := s.requests[i]; r.Method == method && r.Path == path {
			return r, true
		}
	}
	return Request{}, false
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}
	errs := map[string][]string{}
	if creds.Username == "" {
		errs["username"] = []string{msgBlank}
	}
	if creds.Password == "" {
		errs["password"] = []string{msgBlank}
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	s.mu.Lock()
	u, ok := s.users[creds.Username]
	gen := s.generation
	s.mu.Unlock()
	if !ok || u.password != creds.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}

	now := s.clock.Now()
	access, err := s.sign(jwt.MapClaims{
		"token_type": "access",
		"user_id":    u.id,
		"username":   creds.Username,
		"gen":        gen,
		"iat":        now.Unix(),
		"exp":        now.Add(AccessLifetime).Unix(),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	refresh, err := s.sign(jwt.MapClaims{
		"token_type": "refresh",
		"user_id":    u.id,
		"gen":        gen,
		"iat":        now.Unix(),
		"exp":        now.Add(24 * time.Hour).Unix(),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
}

func (s *Server) sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) auth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.clock.Now))
		s.mu.Lock()
		gen := s.generation
		s.mu.Unlock()
		if err != nil || claims["token_type"] != "access" || int(toFloat(claims["gen"])) != gen {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		next(w, r)
	})
}

func toFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func (s *Server) newID(resource string) int64 {
	s.nextID[resource]++
	return s.nextID[resource]
}

func (s *Server) today() core.Date {
	return core.DateOf(s.clock.Now())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// readForm decodes the body; it writes a 400 and returns nil on bad JSON.
func readForm(w http.ResponseWriter, r *http.Request) *form {
	body, _ := io.ReadAll(r.Body)
	f, ok := parseForm(body)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return nil
	}
	return f
}

func rejectInvalid(w http.ResponseWriter, f *form) bool {
	if f.valid() {
		return false
	}
	writeJSON(w, http.StatusBadRequest, f.errors)
	return true
}
