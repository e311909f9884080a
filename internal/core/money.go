// Package core holds the ledger's domain records and the pure rules
// derived from them.
//
// This file contains money parsing and formatting. Amounts travel as
// decimal strings on the wire ("1250.00") and are held as int64 cents.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
)

// DefaultCurrencyPrefix replaces the LKR currency code in formatted amounts.
const DefaultCurrencyPrefix = "Rs."

// ParseDecimalToCents converts a non-negative decimal string to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Zero is accepted; callers that
// need a strictly positive amount check Money.Validate.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
//	ParseDecimalToCents("25,000.50") -> 2500050, nil
//	ParseDecimalToCents("12,5") -> 0, ErrInvalidAmount
//	ParseDecimalToCents("0") -> 0, nil
//	ParseDecimalToCents("-1") -> 0, ErrInvalidAmount
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	return parseDecimal(s)
}

// parseSignedDecimal is used for server-computed values such as a
// remaining balance, which may go negative after an overpayment.
func parseSignedDecimal(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	cents, err := parseDecimal(s)
	if err != nil {
		return 0, err
	}
	if neg {
		cents = -cents
	}
	return cents, nil
}

// ungroup drops thousands separators. Amounts are written the way
// FormatCurrency prints them, so a comma is only valid between groups of
// three digits.
func ungroup(intPart string) (string, bool) {
	if !strings.Contains(intPart, ",") {
		return intPart, true
	}
	groups := strings.Split(intPart, ",")
	if n := len(groups[0]); n == 0 || n > 3 {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	return strings.Join(groups, ""), true
}

func parseDecimal(s string) (int64, error) {
	if s == "" {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart, ok := ungroup(parts[0])
	if !ok {
		return 0, ErrInvalidAmount
	}
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	// First two fractional digits, half-up on the third.
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}

// MustMoney parses a decimal literal and panics on error. Intended for
// fixtures and tests.
func MustMoney(s string) Money {
	cents, err := parseSignedDecimal(s)
	if err != nil {
		panic(fmt.Sprintf("core: invalid money literal %q", s))
	}
	return Money{Cents: cents}
}

// String renders the amount as a plain decimal ("1250.00"), the format
// the backend expects in request bodies.
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + fmt.Sprintf("%02d", cents%100)
}

// Float returns the amount as a float64 for display scaling only.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// MarshalJSON emits the amount as a decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts decimal strings, bare numbers and null.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		m.Cents = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("money: %w", err)
		}
		if strings.TrimSpace(raw) == "" {
			m.Cents = 0
			return nil
		}
	}
	cents, err := parseSignedDecimal(raw)
	if err != nil {
		return fmt.Errorf("money %q: %w", raw, err)
	}
	m.Cents = cents
	return nil
}

// FormatCurrency renders an amount the way the en-LK locale formats LKR,
// with the currency code replaced by prefix: "Rs. 1,234.56", "-Rs. 12.00".
func FormatCurrency(m Money, prefix string) string {
	if prefix == "" {
		prefix = DefaultCurrencyPrefix
	}
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + prefix + " " + humanize.Comma(cents/100) + "." + fmt.Sprintf("%02d", cents%100)
}
