package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized is returned after the backend answered 401. By then the
// session has already been wiped; callers send the operator to login.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a non-2xx, non-401 response. Body is kept verbatim.
type Error struct {
	Status int
	Body   []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message())
}

// Message returns the text to show the operator: the "error" field of a
// JSON body, else its "detail" field, else the raw body.
func (e *Error) Message() string {
	var payload map[string]json.RawMessage
	if json.Unmarshal(e.Body, &payload) == nil {
		for _, key := range []string{"error", "detail"} {
			if raw, ok := payload[key]; ok {
				var s string
				if json.Unmarshal(raw, &s) == nil && s != "" {
					return s
				}
			}
		}
	}
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return body
}

// MessageOr returns the server message for an *Error, or fallback for
// any other failure.
func MessageOr(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	return fallback
}

// ServerMessage returns the "error" field of a rejection, or fallback.
// Liability payments show only that field.
func ServerMessage(err error, fallback string) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return fallback
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(apiErr.Body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return fallback
}
