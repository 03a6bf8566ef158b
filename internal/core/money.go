// Package core provides the value types shared by the household engines:
// amounts, expense rows, recurrence modes and the error taxonomy.
//
// This file contains amount parsing for both user input and cell values.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a non-negative, two-decimal quantity entered by a user.
// UnsetAmount is distinct from zero and means "leave the cell alone".
type Amount struct {
	decimal.Decimal
}

// UnsetAmount is the sentinel for an empty amount field.
var UnsetAmount = Amount{decimal.NewFromInt(-1)}

// NewAmount wraps d rounded to cents.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{d.Round(2)}
}

// IsUnset reports whether a is the sentinel.
func (a Amount) IsUnset() bool {
	return a.Equal(UnsetAmount.Decimal)
}

// Cell renders the amount the way it is written into the grid ("120.00").
func (a Amount) Cell() string {
	if a.IsUnset() {
		return ""
	}
	return a.StringFixed(2)
}

// ParseAmount validates a user supplied amount.
//
// Empty input yields UnsetAmount. Negative or non-numeric input yields a
// *ValidationError. Valid input is rounded half-up to cents.
//
// Examples:
//
//	ParseAmount("")        -> UnsetAmount, nil
//	ParseAmount("120")     -> 120.00, nil
//	ParseAmount("1,234")   -> 1234.00, nil (thousands separator)
//	ParseAmount("12,5")    -> 12.50, nil (decimal comma)
//	ParseAmount("$1,200.5")-> 1200.50, nil
//	ParseAmount("12,3456") -> error (ambiguous grouping)
//	ParseAmount("-3")      -> error
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return UnsetAmount, nil
	}
	d, err := decimal.NewFromString(normalizeNumber(s))
	if err != nil {
		return Amount{}, &ValidationError{Field: FieldAmount, Reason: fmt.Sprintf("invalid amount %q", s)}
	}
	if d.IsNegative() {
		return Amount{}, &ValidationError{Field: FieldAmount, Reason: "amount must be non-negative"}
	}
	return NewAmount(d), nil
}

// ParseCell reads a numeric cell. Formatted values such as "$1,234.56",
// "-$45.00" and "(45.00)" are understood. Empty or non-numeric cells report
// ok=false.
func ParseCell(s string) (d decimal.Decimal, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}
	d, err := decimal.NewFromString(normalizeNumber(s))
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

// CellValue is ParseCell with zero for empty or non-numeric cells.
func CellValue(s string) decimal.Decimal {
	d, _ := ParseCell(s)
	return d
}

// FormatCurrency renders d as "$1,234.56".
func FormatCurrency(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}

// normalizeNumber strips currency symbols and separators. Commas are
// thousands separators when every group after them has three digits; a
// single comma followed by one or two digits is a decimal comma. Any other
// comma placement is ambiguous and yields "", which never parses.
func normalizeNumber(s string) string {
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, " ", "")
	if !strings.Contains(s, ",") {
		return s
	}
	whole, frac, hasPoint := strings.Cut(s, ".")
	groups := strings.Split(whole, ",")
	if !hasPoint && len(groups) == 2 && groups[0] != "" && len(groups[1]) >= 1 && len(groups[1]) <= 2 {
		return groups[0] + "." + groups[1]
	}
	lead := strings.TrimPrefix(groups[0], "-")
	if len(lead) < 1 || len(lead) > 3 {
		return ""
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return ""
		}
	}
	out := strings.Join(groups, "")
	if hasPoint {
		out += "." + frac
	}
	return out
}
