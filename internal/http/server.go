package http

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"astrofin/internal/clock"
	"astrofin/internal/core"
	applog "astrofin/internal/log"
	"astrofin/internal/session"
	"astrofin/internal/views"
	appweb "astrofin/web"
)

// Deps are the collaborators of the web dashboard. Each browser gets its
// own session in Store, keyed by a cookie, and its own client from
// NewClient.
type Deps struct {
	Store     session.Store
	NewClient ClientFactory
	Logger    *applog.Logger
	Clock     clock.Clock
	Currency  string
}

// Server serves the dashboard pages.
type Server struct {
	http.Server

	templates   *template.Template
	logger      *applog.Logger
	structured  *applog.StructuredLogger
	clock       clock.Clock
	currency    string
	callers     *callers
	rateLimiter *rateLimiter
	security    securityMetrics
	requests    int64
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	currency := deps.Currency
	if currency == "" {
		currency = core.DefaultCurrencyPrefix
	}
	opts := []views.Option{views.WithLogger(logger), views.WithClock(clk), views.WithCurrency(currency)}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:      logger,
		structured:  applog.NewStructuredLogger(logger),
		clock:       clk,
		currency:    currency,
		callers:     newCallers(deps.Store, deps.NewClient, clk, opts),
		rateLimiter: newRateLimiter(clk, loginAttempts, loginWindow),
		started:     clk.Now(),
	}

	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	s.routes(mux)
	s.Handler = applog.Middleware(logger)(s.withSecurityHeaders(mux))
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /{$}", s.requireSession(s.handleDashboard))

	mux.Handle("GET /income", s.requireSession(s.handleIncome))
	mux.Handle("POST /income", s.requireSession(s.handleCreateIncome))
	mux.Handle("POST /income/{id}/delete", s.requireSession(s.handleDeleteIncome))

	mux.Handle("GET /expenses", s.requireSession(s.handleExpenses))
	mux.Handle("POST /expenses", s.requireSession(s.handleCreateExpense))
	mux.Handle("POST /expenses/{id}/delete", s.requireSession(s.handleDeleteExpense))

	mux.Handle("GET /liabilities", s.requireSession(s.handleLiabilities))
	mux.Handle("POST /liabilities", s.requireSession(s.handleCreateLiability))
	mux.Handle("POST /liabilities/{id}/delete", s.requireSession(s.handleDeleteLiability))
	mux.Handle("POST /liabilities/{id}/pay", s.requireSession(s.handlePayLiability))

	mux.Handle("GET /customers", s.requireSession(s.handleCustomers))
	mux.Handle("POST /customers", s.requireSession(s.handleCreateCustomer))
	mux.Handle("POST /customers/{id}", s.requireSession(s.handleUpdateCustomer))
	mux.Handle("POST /customers/{id}/delete", s.requireSession(s.handleDeleteCustomer))
	mux.Handle("POST /customers/{id}/payments", s.requireSession(s.handleAddCustomerPayment))

	mux.Handle("GET /payroll", s.requireSession(s.handlePayroll))
	mux.Handle("POST /payroll/employees", s.requireSession(s.handleCreateEmployee))
	mux.Handle("POST /payroll/employees/{id}", s.requireSession(s.handleUpdateEmployee))
	mux.Handle("POST /payroll/employees/{id}/delete", s.requireSession(s.handleDeleteEmployee))
	mux.Handle("POST /payroll/payments", s.requireSession(s.handlePayEmployee))
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(m core.Money) string { return core.FormatCurrency(m, s.currency) },
		"label": func(c core.ExpenseCategory) string { return c.Label() },
	}
}

// Shutdown stops the rate limiter cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// withSecurityHeaders tags the request with an id, sets security headers
// and logs the completed request.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		logger := applog.FromContext(r.Context()).With(applog.FieldRequestID, requestID)
		ctx := applog.NewContext(r.Context(), logger)
		r = r.WithContext(ctx)
		atomic.AddInt64(&s.requests, 1)

		if detectSuspiciousRequest(r, &s.security) {
			logger.WarnContext(ctx, "Suspicious request",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldComponent, applog.ComponentSecurity)
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": s.clock.Now().Format(time.RFC3339),
		"uptime":    s.clock.Now().Sub(s.started).String(),
	})
}

// handleReady reports whether pages can be rendered. The backend is not
// probed: without a session every call would be refused anyway.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"templates":    "ok",
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients()},
		"sessions":     s.callers.Active(),
	}
	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": s.clock.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
	}
	counter("http_requests_total", "Total number of HTTP requests", atomic.LoadInt64(&s.requests))
	counter("login_failures_total", "Rejected login attempts", atomic.LoadInt64(&s.security.loginFailures))
	counter("rate_limit_hits_total", "Login attempts refused by the rate limiter", atomic.LoadInt64(&s.security.rateLimitHits))
	counter("suspicious_requests_total", "Requests flagged as suspicious", atomic.LoadInt64(&s.security.suspiciousRequests))

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.rateLimiter.ActiveClients())
	fmt.Fprintf(w, "# HELP active_sessions Logged-in browser sessions held in memory\n")
	fmt.Fprintf(w, "# TYPE active_sessions gauge\n")
	fmt.Fprintf(w, "active_sessions %d\n\n", s.callers.Active())
	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", s.clock.Now().Sub(s.started).Seconds())
}
