package core

import (
	"fmt"
	"strings"
	"time"

	"homepay/internal/schema"
)

const (
	CurrentMonthForward RecurrenceMode = "rm"
	YearFromJanuary     RecurrenceMode = "ry"
	OneTimeCurrentMonth RecurrenceMode = "ot"
)

const (
	PayerNone   Payer = ""
	PayerParty1 Payer = "party1"
	PayerParty2 Payer = "party2"
)

const (
	Yes = "Y"
	No  = "N"
	PAP = "PAP"
)

type (
	// RecurrenceMode selects the inclusive month range an expense operation targets.
	RecurrenceMode string

	// Payer selects which payment column receives the amount.
	Payer string

	// ExpenseRow is one slot of a month grid, as stored.
	ExpenseRow struct {
		Row         int
		Type        string
		Description string
		Date        string
		Amount      string
		Split       string
		Pay1        string
		Pay2        string
		Period      string
		Paid        string
		PAP         string
	}

	// Expense is the user's intent for an upsert.
	Expense struct {
		Description string
		Type        string
		Amount      Amount
		Mode        RecurrenceMode
		PAP         bool
		Period      string
		Split       bool
		Paid        bool
		Payer       Payer
	}
)

// ParseRecurrenceMode accepts the short codes and a few long spellings.
func ParseRecurrenceMode(s string) (RecurrenceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rm", "forward", "current-forward":
		return CurrentMonthForward, nil
	case "ry", "year", "full-year":
		return YearFromJanuary, nil
	case "ot", "once", "one-time":
		return OneTimeCurrentMonth, nil
	}
	return "", &ValidationError{Field: FieldMode, Reason: fmt.Sprintf("unknown recurrence mode %q", s)}
}

// Range returns the inclusive month range for now.
func (m RecurrenceMode) Range(now time.Time) (first, last int) {
	cur := int(now.Month())
	switch m {
	case YearFromJanuary:
		return 1, 12
	case OneTimeCurrentMonth:
		return cur, cur
	default:
		return cur, 12
	}
}

// Scope describes the range in a confirmation question.
func (m RecurrenceMode) Scope() string {
	switch m {
	case YearFromJanuary:
		return "from all months"
	case OneTimeCurrentMonth:
		return "from the current month"
	default:
		return "from the current month onward"
	}
}

// ParsePayer accepts "", "none", "1", "2", "party1", "party2".
func ParsePayer(s string) (Payer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PayerNone, nil
	case "1", "party1":
		return PayerParty1, nil
	case "2", "party2":
		return PayerParty2, nil
	}
	return "", &ValidationError{Field: "payer", Reason: fmt.Sprintf("unknown payer %q", s)}
}

// Party maps the payer to a party. ok is false for PayerNone.
func (p Payer) Party() (party schema.Party, ok bool) {
	switch p {
	case PayerParty1:
		return schema.Party1, true
	case PayerParty2:
		return schema.Party2, true
	}
	return 0, false
}

// Validate checks the fields an upsert cannot proceed without.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return &ValidationError{Field: FieldDescription, Reason: "missing description"}
	}
	if !e.Amount.IsUnset() && e.Amount.IsNegative() {
		return &ValidationError{Field: FieldAmount, Reason: "amount must be non-negative"}
	}
	switch e.Mode {
	case CurrentMonthForward, YearFromJanuary, OneTimeCurrentMonth:
	default:
		return &ValidationError{Field: FieldMode, Reason: fmt.Sprintf("unknown recurrence mode %q", e.Mode)}
	}
	return nil
}

// IsEmpty is the available-slot predicate: no type and no amount.
func (r ExpenseRow) IsEmpty() bool {
	return strings.TrimSpace(r.Type) == "" && strings.TrimSpace(r.Amount) == ""
}

// Flag renders a boolean as Y/N.
func Flag(b bool) string {
	if b {
		return Yes
	}
	return No
}

// IsYes treats anything but an explicit Y as no.
func IsYes(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), Yes)
}

// PAPMarker renders the pre-authorized payment flag.
func PAPMarker(b bool) string {
	if b {
		return PAP
	}
	return ""
}
