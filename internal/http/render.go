package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"astrofin/internal/api"
	"astrofin/internal/core"
	applog "astrofin/internal/log"
	"astrofin/internal/views"
)

// page is the part of every template's data used by the layout.
type page struct {
	Title  string
	Active string
	User   string
	Notice string
	Error  string
	Today  string
}

// page fills the layout fields. c is nil on pages served before login.
func (s *Server) page(r *http.Request, c *caller, title, active string) page {
	p := page{Title: title, Active: active, Today: core.DateOf(s.clock.Now()).String()}
	if c == nil {
		return p
	}
	if info, err := c.session.Info(r.Context()); err == nil {
		p.User = info.Username
	}
	return p
}

// with copies a view's outcome into the banner fields.
func (p page) with(status views.Status, message, notice string) page {
	if status == views.StatusError {
		p.Error = message
	}
	p.Notice = notice
	return p
}

// render executes name into a buffer so a template error never leaves a
// half-written page. htmx callers also get the banner as a notification.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, meta page, data any) {
	logger := applog.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path, applog.FieldComponent, applog.ComponentTemplate)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err, "template", name, applog.FieldComponent, applog.ComponentTemplate)
		ErrorResponse(http.StatusInternalServerError, "Error rendering page").Write(w)
		return
	}

	b := NewHTMXResponse().Status(status).BodyHTML(buf.Bytes())
	if isHTMX(r) {
		switch {
		case meta.Error != "":
			b.TriggerErrorNotification(meta.Error)
		case meta.Notice != "":
			b.TriggerSuccessNotification(meta.Notice)
		}
	}
	b.Write(w)
}

// rejected answers a failed view call. An expired session goes to login
// from whichever page hit it; anything else re-renders the page.
func (s *Server) rejected(w http.ResponseWriter, r *http.Request, err error, rerender func(status int)) {
	if api.IsUnauthorized(err) {
		s.toLogin(w, r)
		return
	}
	rerender(statusFor(err))
}

func statusFor(err error) int {
	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Status >= http.StatusInternalServerError {
			return http.StatusBadGateway
		}
		return http.StatusUnprocessableEntity
	case errors.Is(err, views.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrMissingField),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, views.ErrExceedsRemaining),
		errors.Is(err, views.ErrAlreadySettled):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func (s *Server) toLogin(w http.ResponseWriter, r *http.Request) {
	seeOther(w, r, "/login")
}

type callerHandler func(w http.ResponseWriter, r *http.Request, c *caller)

// requireSession serves next only when the request's session cookie names
// a caller with a stored credential. Its validity is not checked here; the
// first 401 from the backend clears it.
func (s *Server) requireSession(next callerHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := s.callers.lookup(r)
		if !ok {
			if _, err := r.Cookie(sessionCookie); err == nil {
				clearSessionCookie(w, r)
			}
			s.toLogin(w, r)
			return
		}
		next(w, r, c)
	})
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Parse form error",
			applog.FieldError, err, applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusBadRequest, "Invalid request format").Write(w)
		return false
	}
	return true
}

// formConfirmer approves a delete when the confirm dialog posted
// confirm=yes, and remembers the prompt it was asked.
type formConfirmer struct {
	approved bool
	prompt   string
}

func (c *formConfirmer) Confirm(_ context.Context, prompt string) bool {
	c.prompt = prompt
	return c.approved
}

type confirmPage struct {
	page
	Prompt string
	Action string
	Back   string
}

type deleteFunc func(ctx context.Context, id int64, confirm views.Confirmer) error

// deleteRecord runs del and sends the operator back to list. Without
// confirm=yes nothing is deleted and the confirmation dialog is shown.
func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request, c *caller, del deleteFunc, list string, rerender func(status int)) {
	id, ok := pathID(r)
	if !ok {
		ErrorResponse(http.StatusBadRequest, "Invalid record id").Write(w)
		return
	}
	if !parseForm(w, r) {
		return
	}
	confirm := &formConfirmer{approved: r.PostForm.Get("confirm") == "yes"}
	err := del(r.Context(), id, confirm)
	switch {
	case errors.Is(err, views.ErrDeclined):
		meta := s.page(r, c, "Confirm", "")
		s.render(w, r, http.StatusOK, "confirm.html", meta, confirmPage{page: meta, Prompt: confirm.prompt, Action: r.URL.Path, Back: list})
	case !views.Saved(err):
		s.rejected(w, r, err, rerender)
	default:
		seeOther(w, r, list)
	}
}
