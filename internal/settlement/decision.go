// Package settlement closes out the balance between the two parties of a
// month grid.
//
// A settlement runs in three steps. Evaluate reads the month's aggregate
// cells. Decide turns the evaluation and the caller's request into a
// Decision without touching the grid. Apply executes the decision's mutation
// once the caller has answered any confirmations.
package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"homepay/internal/core"
	"homepay/internal/schema"
)

// Mode is the settlement strategy requested by the caller.
type Mode string

const (
	FullyPaid          Mode = "f"
	CarryOver          Mode = "c"
	PartialAmount      Mode = "p"
	FromInitialBalance Mode = "s"
)

// ParseMode accepts the one letter codes and long names.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "full", "fully-paid":
		return FullyPaid, nil
	case "c", "carry", "carry-over":
		return CarryOver, nil
	case "p", "partial":
		return PartialAmount, nil
	case "s", "fund", "initial-balance":
		return FromInitialBalance, nil
	}
	return "", &core.ValidationError{Field: core.FieldMode, Reason: fmt.Sprintf("unknown settlement mode %q", s)}
}

func (m Mode) String() string {
	switch m {
	case FullyPaid:
		return "fully paid"
	case CarryOver:
		return "carry over"
	case PartialAmount:
		return "partial amount"
	case FromInitialBalance:
		return "from initial balance"
	}
	return string(m)
}

// State is where a settlement invocation ended up.
type State string

const (
	AlreadySettled    State = "already_settled"
	NeedsConfirmation State = "needs_confirmation"
	ReadyToApply      State = "ready_to_apply"
	Applied           State = "applied"
	Aborted           State = "aborted"
)

// MutationKind selects the cells a mutation writes.
type MutationKind string

const (
	// PaymentSlot writes into the first empty row of the debtor's transfer column.
	PaymentSlot MutationKind = "payment_slot"
	// CarryForward adds the debt to the next month's carryover cell.
	CarryForward MutationKind = "carry_forward"
	// FundDraw records a draw on the debtor's initial fund.
	FundDraw MutationKind = "fund_draw"
)

// Decline says what happens when a confirmation is answered "no".
type Decline int

const (
	Abort Decline = iota
	UseFallback
)

type (
	// Evaluation is the state of a month's aggregate cells.
	Evaluation struct {
		Month       int
		Balance1    decimal.Decimal
		Balance2    decimal.Decimal
		FundLeft1   decimal.Decimal
		FundLeft2   decimal.Decimal
		TotalAmount decimal.Decimal
		TotalPaid   decimal.Decimal
		Names       [2]string

		Debtor  schema.Party
		Debt    decimal.Decimal
		Settled bool
		// Inconsistent is set when balances do not net out or payments do
		// not cover the month's total.
		Inconsistent bool
	}

	// Request is the caller's intent.
	Request struct {
		Mode   Mode
		Amount decimal.Decimal // PartialAmount and FromInitialBalance
		// Batch suppresses confirmations; used by Rebalance.
		Batch bool
	}

	// Mutation is a single proposed write.
	Mutation struct {
		Kind   MutationKind
		Month  int // month written to
		Party  schema.Party
		Amount decimal.Decimal
	}

	// Confirmation is a yes/no question that must be answered before apply.
	Confirmation struct {
		Question  string
		OnDecline Decline
	}

	// Decision is the pure outcome of Decide.
	Decision struct {
		State         State
		Evaluation    Evaluation
		Message       string
		Confirmations []Confirmation
		Mutation      *Mutation
		Fallback      *Mutation
	}
)

// NewEvaluation derives debtor and flags from raw aggregate values.
//
// Party1's debt is carried as a negative balance and party2's as a positive
// one: a negative Balance1 makes party1 the debtor, anything else party2.
func NewEvaluation(threshold decimal.Decimal, month int, balance1, balance2, fundLeft1, fundLeft2, total, paid decimal.Decimal) Evaluation {
	ev := Evaluation{
		Month:       month,
		Balance1:    balance1,
		Balance2:    balance2,
		FundLeft1:   fundLeft1,
		FundLeft2:   fundLeft2,
		TotalAmount: total,
		TotalPaid:   paid,
	}
	ev.Settled = balance1.Abs().LessThan(threshold) && balance2.Abs().LessThan(threshold)
	ev.Inconsistent = balance1.Add(balance2).Abs().GreaterThan(threshold) ||
		total.Sub(paid).Abs().GreaterThan(threshold)
	if balance1.IsNegative() {
		ev.Debtor, ev.Debt = schema.Party1, balance1.Abs()
	} else {
		ev.Debtor, ev.Debt = schema.Party2, balance2.Abs()
	}
	return ev
}

// Name returns a display name for p, falling back to "party1"/"party2".
func (ev Evaluation) Name(p schema.Party) string {
	if n := strings.TrimSpace(ev.Names[int(p)-1]); n != "" {
		return n
	}
	return p.String()
}

// FundLeft returns p's remaining initial fund.
func (ev Evaluation) FundLeft(p schema.Party) decimal.Decimal {
	if p == schema.Party1 {
		return ev.FundLeft1
	}
	return ev.FundLeft2
}

// Decide computes what a settlement would do. It never touches a grid.
func Decide(ev Evaluation, req Request) (Decision, error) {
	d := Decision{Evaluation: ev}
	if ev.Settled {
		d.State = AlreadySettled
		d.Message = fmt.Sprintf("%s is already settled", monthName(ev.Month))
		return d, nil
	}

	debtor := ev.Name(ev.Debtor)
	owes := fmt.Sprintf("%s owes %s for %s", debtor, core.FormatCurrency(ev.Debt), monthName(ev.Month))

	if ev.Inconsistent && !req.Batch {
		d.Confirmations = append(d.Confirmations, Confirmation{
			Question:  fmt.Sprintf("Not all payments are marked as paid in %s. Settle anyway?", monthName(ev.Month)),
			OnDecline: Abort,
		})
	}

	switch req.Mode {
	case FullyPaid:
		d.Mutation = &Mutation{Kind: PaymentSlot, Month: ev.Month, Party: ev.Debtor, Amount: ev.Debt}
		if !req.Batch {
			d.Confirmations = append(d.Confirmations, Confirmation{Question: owes + ". Mark it as fully paid?", OnDecline: Abort})
		}

	case CarryOver:
		if ev.Month >= 12 {
			return Decision{}, &core.ValidationError{Field: core.FieldMonth, Reason: "December cannot be carried over; settle it instead"}
		}
		d.Mutation = &Mutation{Kind: CarryForward, Month: ev.Month + 1, Party: ev.Debtor, Amount: ev.Debt}
		if !req.Batch {
			d.Confirmations = append(d.Confirmations, Confirmation{
				Question:  fmt.Sprintf("%s. Carry it over to %s?", owes, monthName(ev.Month+1)),
				OnDecline: Abort,
			})
		}

	case PartialAmount:
		if req.Amount.IsNegative() {
			return Decision{}, &core.ValidationError{Field: core.FieldAmount, Reason: "amount must be non-negative"}
		}
		if req.Amount.IsZero() {
			return Decision{}, &core.ValidationError{Field: core.FieldAmount, Reason: "missing amount"}
		}
		d.Mutation = &Mutation{Kind: PaymentSlot, Month: ev.Month, Party: ev.Debtor, Amount: req.Amount.Round(2)}

	case FromInitialBalance:
		left := ev.FundLeft(ev.Debtor)
		if left.IsZero() {
			return Decision{}, &core.InsufficientFundsError{Party: ev.Debtor, Requested: req.Amount, Available: decimal.Zero}
		}
		if !req.Amount.IsPositive() {
			return Decision{}, &core.ValidationError{Field: core.FieldAmount, Reason: "amount must be positive"}
		}
		if req.Amount.GreaterThan(left) {
			return Decision{}, &core.InsufficientFundsError{Party: ev.Debtor, Requested: req.Amount, Available: left}
		}
		d.Mutation = &Mutation{Kind: FundDraw, Month: ev.Month, Party: ev.Debtor, Amount: req.Amount.Round(2)}
		if req.Amount.GreaterThan(ev.Debt) {
			d.Fallback = &Mutation{Kind: FundDraw, Month: ev.Month, Party: ev.Debtor, Amount: ev.Debt}
			d.Confirmations = append(d.Confirmations, Confirmation{
				Question: fmt.Sprintf("%s is more than the %s %s owes. Overpay?",
					core.FormatCurrency(req.Amount), core.FormatCurrency(ev.Debt), debtor),
				OnDecline: UseFallback,
			})
		}

	default:
		return Decision{}, &core.ValidationError{Field: core.FieldMode, Reason: fmt.Sprintf("unknown settlement mode %q", req.Mode)}
	}

	d.State = ReadyToApply
	if len(d.Confirmations) > 0 {
		d.State = NeedsConfirmation
	}
	return d, nil
}

// ResolveMonth picks the month a settlement targets.
//
// By default that is the month before now; current selects now's month;
// explicit (1-12) wins over both. January's previous month clamps to
// January. A document from a past year always settles December.
func ResolveMonth(now time.Time, documentYear int, current bool, explicit int) int {
	m := int(now.Month()) - 1 // zero-based current month
	switch {
	case explicit > 0:
		m = explicit - 1
	case !current:
		m--
	}
	if m < 0 {
		m = 0
	}
	if documentYear > 0 && now.Year() > documentYear {
		m = 11
	}
	return m + 1
}

func monthName(m int) string {
	if m < 1 || m > 12 {
		return fmt.Sprintf("month %d", m)
	}
	return time.Month(m).String()
}
