package fakeapi

import (
	"encoding/json"
	"strings"

	"astrofin/internal/core"
)

const (
	msgRequired    = "This field is required."
	msgBlank       = "This field may not be blank."
	msgNumber      = "A valid number is required."
	msgDateFormat  = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	msgInvalidPick = "is not a valid choice."
	msgInteger     = "A valid integer is required."
)

// form decodes a JSON object field by field and collects errors keyed by
// field name, the way a DRF serializer reports them.
type form struct {
	raw    map[string]json.RawMessage
	errors map[string][]string
}

func parseForm(body []byte) (*form, bool) {
	f := &form{raw: map[string]json.RawMessage{}, errors: map[string][]string{}}
	if len(strings.TrimSpace(string(body))) == 0 {
		return f, true
	}
	if err := json.Unmarshal(body, &f.raw); err != nil {
		return nil, false
	}
	return f, true
}

func (f *form) fail(field, msg string) {
	f.errors[field] = append(f.errors[field], msg)
}

func (f *form) valid() bool { return len(f.errors) == 0 }

func (f *form) has(field string) bool {
	v, ok := f.raw[field]
	return ok && string(v) != "null"
}

// text returns a string field; numbers are accepted as their literal.
func (f *form) text(field string) (string, bool) {
	v, ok := f.raw[field]
	if !ok || string(v) == "null" {
		return "", false
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s, true
	}
	return strings.TrimSpace(string(v)), true
}

func (f *form) requiredText(field string) string {
	s, ok := f.text(field)
	switch {
	case !ok:
		f.fail(field, msgRequired)
	case strings.TrimSpace(s) == "":
		f.fail(field, msgBlank)
	}
	return s
}

func (f *form) optionalText(field string) string {
	s, _ := f.text(field)
	return s
}

// decimal parses a decimal field. Missing optional fields take def; a
// present but empty value is rejected, as the real serializer does.
func (f *form) decimal(field string, required bool, def core.Money) core.Money {
	s, ok := f.text(field)
	if !ok {
		if required {
			f.fail(field, msgRequired)
		}
		return def
	}
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		f.fail(field, msgNumber)
		return def
	}
	return core.Money{Cents: cents}
}

func (f *form) date(field string, required bool) core.Date {
	s, ok := f.text(field)
	if !ok {
		if required {
			f.fail(field, msgRequired)
		}
		return core.Date{}
	}
	if strings.TrimSpace(s) == "" {
		f.fail(field, msgDateFormat)
		return core.Date{}
	}
	d, err := core.ParseDate(s)
	if err != nil {
		f.fail(field, msgDateFormat)
	}
	return d
}

func (f *form) boolean(field string) bool {
	v, ok := f.raw[field]
	if !ok {
		return false
	}
	var b bool
	_ = json.Unmarshal(v, &b)
	return b
}

func (f *form) id(field string) int64 {
	v, ok := f.raw[field]
	if !ok || string(v) == "null" {
		f.fail(field, msgRequired)
		return 0
	}
	var n int64
	if err := json.Unmarshal(v, &n); err != nil {
		var s string
		if json.Unmarshal(v, &s) == nil {
			if err := json.Unmarshal([]byte(s), &n); err == nil {
				return n
			}
		}
		f.fail(field, msgInteger)
		return 0
	}
	return n
}
