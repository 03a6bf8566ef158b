// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating request data
// and the confirmer that turns an unanswered question into a 428.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"homepay/internal/analytics"
	"homepay/internal/core"
	"homepay/internal/services"
	"homepay/internal/settlement"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// pendingConfirmation aborts an operation at its first question when the
// client has not answered yet.
type pendingConfirmation struct {
	question string
}

func (p *pendingConfirmation) Error() string { return "confirmation required: " + p.question }

// Confirmer answers with the client's decision. A nil answer stops at the
// first question with a pendingConfirmation error.
func Confirmer(answer *bool) core.Confirmer {
	switch {
	case answer == nil:
		return core.ConfirmFunc(func(_ context.Context, q string) (bool, error) {
			return false, &pendingConfirmation{question: q}
		})
	case *answer:
		return core.AlwaysYes
	default:
		return core.AlwaysNo
	}
}

type (
	// ExpenseRequest is the body of POST /api/expenses.
	ExpenseRequest struct {
		Description string `json:"description"`
		Type        string `json:"type"`
		Amount      string `json:"amount"`
		Mode        string `json:"mode"`
		PAP         bool   `json:"pap"`
		Period      string `json:"period"`
		// Split defaults to true.
		Split       *bool  `json:"split"`
		Paid        bool   `json:"paid"`
		Payer       string `json:"payer"`
		Confirm     *bool  `json:"confirm"`
	}

	// SettlementRequest is the body of POST /api/settlements.
	SettlementRequest struct {
		Mode    string `json:"mode"`
		Amount  string `json:"amount"`
		Current bool   `json:"current"`
		Month   int    `json:"month"`
		Confirm *bool  `json:"confirm"`
	}
)

// DecodeJSON reads a bounded JSON body into v. Unknown fields are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Field: "body", Reason: "empty request body"}
		}
		return &core.ValidationError{Field: "body", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

// Expense validates the request into an engine expense.
func (req ExpenseRequest) Expense() (core.Expense, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	mode := core.CurrentMonthForward
	if strings.TrimSpace(req.Mode) != "" {
		if mode, err = core.ParseRecurrenceMode(req.Mode); err != nil {
			return core.Expense{}, err
		}
	}
	payer, err := core.ParsePayer(req.Payer)
	if err != nil {
		return core.Expense{}, err
	}
	split := true
	if req.Split != nil {
		split = *req.Split
	}
	exp := core.Expense{
		Description: strings.TrimSpace(req.Description),
		Type:        strings.TrimSpace(req.Type),
		Amount:      amount,
		Mode:        mode,
		PAP:         req.PAP,
		Period:      strings.TrimSpace(req.Period),
		Split:       split,
		Paid:        req.Paid,
		Payer:       payer,
	}
	return exp, exp.Validate()
}

// Settle validates the request into a household settlement request.
func (req SettlementRequest) Settle() (services.SettleRequest, error) {
	mode, err := settlement.ParseMode(req.Mode)
	if err != nil {
		return services.SettleRequest{}, err
	}
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return services.SettleRequest{}, err
	}
	if req.Month < 0 || req.Month > 12 {
		return services.SettleRequest{}, &core.ValidationError{Field: core.FieldMonth, Reason: fmt.Sprintf("month %d out of range", req.Month)}
	}
	return services.SettleRequest{Mode: mode, Amount: amount, Current: req.Current, Month: req.Month}, nil
}

// ParseDelete reads the description and mode of DELETE /api/expenses.
func ParseDelete(query url.Values) (string, core.RecurrenceMode, *bool, error) {
	desc := strings.TrimSpace(query.Get("description"))
	if desc == "" {
		return "", "", nil, &core.ValidationError{Field: core.FieldDescription, Reason: "missing description"}
	}
	mode := core.CurrentMonthForward
	if v := query.Get("mode"); strings.TrimSpace(v) != "" {
		var err error
		if mode, err = core.ParseRecurrenceMode(v); err != nil {
			return "", "", nil, err
		}
	}
	confirm, err := ParseConfirm(query)
	return desc, mode, confirm, err
}

// ParseConfirm reads the optional "confirm" query flag.
func ParseConfirm(query url.Values) (*bool, error) {
	v := strings.TrimSpace(query.Get("confirm"))
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, &core.ValidationError{Field: "confirm", Reason: fmt.Sprintf("invalid confirm flag %q", v)}
	}
	return &b, nil
}

// ParseAssumptions overrides the forecast defaults with query values.
func ParseAssumptions(query url.Values) (analytics.Assumptions, error) {
	as := analytics.DefaultAssumptions()
	for _, f := range []struct {
		key string
		dst *decimal.Decimal
	}{
		{"groceries", &as.Groceries},
		{"online", &as.Online},
		{"gasoline", &as.Gasoline},
		{"misc", &as.Misc},
	} {
		v := strings.TrimSpace(query.Get(f.key))
		if v == "" {
			continue
		}
		a, err := core.ParseAmount(v)
		if err != nil {
			return analytics.Assumptions{}, &core.ValidationError{Field: f.key, Reason: fmt.Sprintf("invalid %s assumption %q", f.key, v)}
		}
		*f.dst = a.Decimal
	}
	return as, nil
}
