package core

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-typed decimal string to an amount.
//
// Both dot (12.34) and comma (12,34) separators are accepted. Signs,
// exponents and thousands separators are rejected. The value is kept
// exactly as typed; no rounding to cents takes place.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ValidationError("amount is required", ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "-") {
		return decimal.Zero, ValidationError("amount cannot be negative", ErrNegativeAmount)
	}
	s = strings.TrimPrefix(s, "+")

	parts := strings.Split(s, ".")
	if len(parts) > 2 || (parts[0] == "" && (len(parts) == 1 || parts[1] == "")) {
		return decimal.Zero, ValidationError("amount is not a number", ErrInvalidAmount)
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ValidationError("amount is not a number", ErrInvalidAmount)
			}
		}
	}

	if parts[0] == "" {
		parts[0] = "0"
	}
	s = parts[0]
	if len(parts) == 2 && parts[1] != "" {
		s += "." + parts[1]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ValidationError("amount is not a number", ErrInvalidAmount)
	}
	return d, nil
}

// AmountFromFloat converts a float to an amount, rejecting NaN and infinities.
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ValidationError("amount must be a finite number", ErrInvalidAmount)
	}
	return decimal.NewFromFloat(f), nil
}

// FormatAmount renders an amount with two decimals, keeping the sign so
// that income rows can be told apart if they are ever recorded.
func FormatAmount(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-" + d.Neg().StringFixed(2)
	}
	return d.StringFixed(2)
}
