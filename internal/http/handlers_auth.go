package http

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"astrofin/internal/api"
	applog "astrofin/internal/log"
)

type loginPage struct {
	page
	Username string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.callers.lookup(r); ok {
		seeOther(w, r, "/")
		return
	}
	meta := s.page(r, nil, "Login", "login")
	s.render(w, r, http.StatusOK, "login.html", meta, loginPage{page: meta})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)
	clientIP := extractClientIP(r)

	if !s.rateLimiter.allow(clientIP, &s.security) {
		logger.WarnContext(ctx, "Login rate limit exceeded",
			applog.FieldClientIP, clientIP, applog.FieldComponent, applog.ComponentRateLimit)
		w.Header().Set("Retry-After", strconv.Itoa(int(loginWindow.Seconds())))
		ErrorResponse(http.StatusTooManyRequests, "Too many login attempts. Please try again later.").Write(w)
		return
	}
	if !parseForm(w, r) {
		return
	}

	username := formText(r.PostForm, "username")
	password := r.PostForm.Get("password")
	meta := s.page(r, nil, "Login", "login")
	if username == "" || password == "" {
		meta.Error = "Username and password are required"
		s.render(w, r, http.StatusUnprocessableEntity, "login.html", meta, loginPage{page: meta, Username: username})
		return
	}

	// Every login gets a fresh id; a cookie presented before login is
	// never promoted.
	c, err := s.callers.start()
	if err != nil {
		logger.ErrorContext(ctx, "Login failed", applog.FieldError, err)
		ErrorResponse(http.StatusInternalServerError, "Login failed").Write(w)
		return
	}
	if err := c.client.Login(ctx, username, password); err != nil {
		atomic.AddInt64(&s.security.loginFailures, 1)
		status := http.StatusUnauthorized
		var apiErr *api.Error
		if !errors.As(err, &apiErr) {
			status = http.StatusBadGateway
			logger.ErrorContext(ctx, "Login failed", applog.FieldError, err, applog.FieldClientIP, clientIP)
		}
		meta.Error = api.MessageOr(err, "Login failed")
		s.render(w, r, status, "login.html", meta, loginPage{page: meta, Username: username})
		return
	}

	if prev, ok := s.callers.lookup(r); ok {
		if err := s.callers.end(ctx, prev); err != nil {
			logger.WarnContext(ctx, "Dropping previous session failed", applog.FieldError, err)
		}
	}
	s.callers.add(c)
	setSessionCookie(w, r, c.id)
	seeOther(w, r, "/")
}

// handleLogout ends the session named by the cookie. Other browsers stay
// logged in.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.callers.lookup(r); ok {
		if err := s.callers.end(r.Context(), c); err != nil {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Logout failed", applog.FieldError, err)
			ErrorResponse(http.StatusInternalServerError, "Logout failed").Write(w)
			return
		}
	}
	clearSessionCookie(w, r)
	seeOther(w, r, "/login")
}
