package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusUnprocessableEntity).
		BodyHTML([]byte("<p>x</p>")).
		Write(w)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	if w.Body.String() != "<p>x</p>" {
		t.Errorf("Body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger set without triggers")
	}
}

func TestHTMXResponseBuilder_Notifications(t *testing.T) {
	tests := []struct {
		name         string
		build        func(*HTMXResponseBuilder) *HTMXResponseBuilder
		wantType     string
		wantDuration float64
	}{
		{"success", func(b *HTMXResponseBuilder) *HTMXResponseBuilder { return b.TriggerSuccessNotification("ok") }, "success", 3000},
		{"error stays", func(b *HTMXResponseBuilder) *HTMXResponseBuilder { return b.TriggerErrorNotification("ok") }, "error", 0},
		{"warning", func(b *HTMXResponseBuilder) *HTMXResponseBuilder {
			return b.TriggerNotification(NotificationWarning, "ok", 1000)
		}, "warning", 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.build(NewHTMXResponse()).Write(w)

			var triggers map[string]map[string]any
			if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
				t.Fatalf("HX-Trigger not JSON: %v", err)
			}
			n := triggers["show-notification"]
			if n["type"] != tt.wantType || n["message"] != "ok" || n["duration"] != tt.wantDuration {
				t.Errorf("notification = %v", n)
			}
		})
	}
}

func TestHTMXResponseBuilder_Redirect(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().Redirect("/login").Write(w)

	if got := w.Header().Get("HX-Redirect"); got != "/login" {
		t.Errorf("HX-Redirect = %q", got)
	}
	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d", w.Code)
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()

	ErrorResponse(http.StatusBadRequest, "<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("Error response did not escape HTML")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("Error response = %q", body)
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d", w.Code)
	}
}
