package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"homepay/internal/core"
	"homepay/internal/schema"
	"homepay/internal/sheets"
)

// CarryOverNote annotates a carryover cell written by a settlement.
const CarryOverNote = "Carryover amount"

type (
	// Result is the end state of one settlement invocation.
	Result struct {
		State    State
		Month    int
		Message  string
		Mutation *Mutation
		// Row and Col locate the written cell when State is Applied.
		Row int
		Col int
	}

	// Engine settles months of a single document.
	Engine struct {
		grid   sheets.Grid
		layout *schema.Layout
	}
)

func New(grid sheets.Grid, layout *schema.Layout) *Engine {
	return &Engine{grid: grid, layout: layout}
}

// Evaluate reads the aggregate cells of month.
func (e *Engine) Evaluate(ctx context.Context, month int) (Evaluation, error) {
	if month < 1 || month > 12 {
		return Evaluation{}, &core.ValidationError{Field: core.FieldMonth, Reason: fmt.Sprintf("month %d out of range", month)}
	}
	m := e.layout.Month
	rows := []int{m.TotalAmountRow, m.TotalPaidParty1Row, m.TotalPaidParty2Row, m.BalanceParty1Row,
		m.BalanceParty2Row, m.FundLeftParty1Row, m.FundLeftParty2Row}
	first, last := rows[0], rows[0]
	for _, r := range rows {
		first, last = min(first, r), max(last, r)
	}
	col, err := sheets.Column(ctx, e.grid, sheets.Month(month), first, m.AggregateCol, last-first+1)
	if err != nil {
		return Evaluation{}, fmt.Errorf("read %s aggregates: %w", core.MonthShort(month), err)
	}
	at := func(row int) decimal.Decimal { return core.CellValue(col[row-first]) }

	names, err := e.grid.GetRange(ctx, sheets.Dashboard, e.layout.Dashboard.NamesRow, e.layout.Dashboard.Party1Col, 1, 2)
	if err != nil {
		return Evaluation{}, fmt.Errorf("read party names: %w", err)
	}

	ev := NewEvaluation(
		decimal.NewFromFloat(e.layout.Threshold), month,
		at(m.BalanceParty1Row), at(m.BalanceParty2Row),
		at(m.FundLeftParty1Row), at(m.FundLeftParty2Row),
		at(m.TotalAmountRow), at(m.TotalPaidParty1Row).Add(at(m.TotalPaidParty2Row)),
	)
	ev.Names = [2]string{names[0][0], names[0][1]}
	return ev, nil
}

// Plan evaluates month and decides req against it.
func (e *Engine) Plan(ctx context.Context, month int, req Request) (Decision, error) {
	ev, err := e.Evaluate(ctx, month)
	if err != nil {
		return Decision{}, err
	}
	return Decide(ev, req)
}

// Apply executes a single mutation.
func (e *Engine) Apply(ctx context.Context, mu Mutation) (Result, error) {
	res := Result{State: Applied, Month: mu.Month, Mutation: &mu}
	m := e.layout.Month
	switch mu.Kind {
	case PaymentSlot:
		col := e.layout.TransferCol(mu.Party)
		sheet := sheets.Month(mu.Month)
		slots, err := sheets.Column(ctx, e.grid, sheet, m.PaymentRow, col, e.layout.PaymentScan)
		if err != nil {
			return Result{}, fmt.Errorf("read payment slots: %w", err)
		}
		row := 0
		for i, v := range slots {
			if isBlank(v) {
				row = m.PaymentRow + i
				break
			}
		}
		if row == 0 {
			return Result{}, &core.CapacityError{Region: "payment slot", Months: []int{mu.Month}}
		}
		if err := e.grid.Set(ctx, sheet, row, col, mu.Amount.StringFixed(2)); err != nil {
			return Result{}, fmt.Errorf("write payment: %w", err)
		}
		res.Row, res.Col = row, col

	case CarryForward:
		if mu.Month < 1 || mu.Month > 12 {
			return Result{}, &core.ValidationError{Field: core.FieldMonth, Reason: fmt.Sprintf("no month %d to carry over to", mu.Month)}
		}
		sheet := sheets.Month(mu.Month)
		row, col := m.CarryOverRow, e.layout.CarryOverCol(mu.Party)
		cur, err := e.grid.Get(ctx, sheet, row, col)
		if err != nil {
			return Result{}, fmt.Errorf("read carryover: %w", err)
		}
		total := core.CellValue(cur).Add(mu.Amount)
		if err := e.grid.Set(ctx, sheet, row, col, total.StringFixed(2)); err != nil {
			return Result{}, fmt.Errorf("write carryover: %w", err)
		}
		if err := e.grid.SetNote(ctx, sheet, row, col, CarryOverNote); err != nil {
			return Result{}, fmt.Errorf("annotate carryover: %w", err)
		}
		res.Row, res.Col = row, col

	case FundDraw:
		row := e.layout.FundPaidRow(mu.Party)
		if err := e.grid.Set(ctx, sheets.Month(mu.Month), row, m.AggregateCol, mu.Amount.StringFixed(2)); err != nil {
			return Result{}, fmt.Errorf("write fund draw: %w", err)
		}
		res.Row, res.Col = row, m.AggregateCol

	default:
		return Result{}, fmt.Errorf("unknown mutation kind %q", mu.Kind)
	}
	return res, nil
}

// Settle runs the full state machine for month: evaluate, decide, ask every
// confirmation through confirm, then apply.
func (e *Engine) Settle(ctx context.Context, month int, req Request, confirm core.Confirmer) (Result, error) {
	d, err := e.Plan(ctx, month, req)
	if err != nil {
		return Result{}, err
	}
	return e.Resolve(ctx, d, confirm)
}

// Resolve takes a decision through its confirmations and applies it.
func (e *Engine) Resolve(ctx context.Context, d Decision, confirm core.Confirmer) (Result, error) {
	month := d.Evaluation.Month
	if d.State == AlreadySettled {
		return Result{State: AlreadySettled, Month: month, Message: d.Message}, nil
	}
	mu := d.Mutation
	for _, c := range d.Confirmations {
		ok, err := confirm.Confirm(ctx, c.Question)
		if err != nil {
			return Result{}, err
		}
		if ok {
			continue
		}
		if c.OnDecline == UseFallback && d.Fallback != nil {
			mu = d.Fallback
			continue
		}
		return Result{State: Aborted, Month: month, Message: "settlement cancelled"}, nil
	}
	if mu == nil {
		return Result{}, errors.New("decision has no mutation")
	}
	res, err := e.Apply(ctx, *mu)
	if err != nil {
		return Result{}, err
	}
	res.Month = month
	return res, nil
}

// Rebalance carries over every month from January up to, but excluding,
// through. Months already settled are reported as such. A failing month
// does not stop the following ones.
//
// A carryover leaves the source month's payment slots alone, so its debt
// still shows afterwards and running Rebalance again adds it a second time.
func (e *Engine) Rebalance(ctx context.Context, through int) ([]Result, error) {
	var (
		results []Result
		errs    []error
	)
	for m := 1; m < through && m < 12; m++ {
		res, err := e.Settle(ctx, m, Request{Mode: CarryOver, Batch: true}, core.AlwaysYes)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", core.MonthShort(m), err))
			res = Result{State: Aborted, Month: m, Message: err.Error()}
		}
		results = append(results, res)
	}
	if len(errs) > 0 {
		return results, fmt.Errorf("rebalance: %w", errors.Join(errs...))
	}
	return results, nil
}

// isBlank treats empty and zero cells as free payment slots.
func isBlank(v string) bool {
	if strings.TrimSpace(v) == "" {
		return true
	}
	d, ok := core.ParseCell(v)
	return ok && d.IsZero()
}
