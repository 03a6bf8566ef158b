package expenses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"homepay/internal/core"
	"homepay/internal/schema"
	"homepay/internal/sheets"
)

// Action is what a plan does to one month.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type (
	// MonthPlan is the pending write for one month. Row is 0 when a create
	// has no empty slot to go to.
	MonthPlan struct {
		Month  int
		Row    int
		Action Action
	}

	// Plan is the outcome of the decision step. Nothing has been written yet.
	Plan struct {
		Expense              core.Expense
		Months               []MonthPlan
		RequiresConfirmation bool
		Question             string
	}

	// MonthResult reports what happened to one month when a plan was applied.
	MonthResult struct {
		Month  int
		Row    int
		Action Action
		Err    error
	}
)

// Matched returns the months where the description already exists.
func (p *Plan) Matched() []int {
	var out []int
	for _, m := range p.Months {
		if m.Action == ActionUpdate || m.Action == ActionDelete {
			out = append(out, m.Month)
		}
	}
	return out
}

// Engine creates, updates and deletes expense rows across month ranges.
type Engine struct {
	grid   sheets.Grid
	layout *schema.Layout
	store  *Store
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(grid sheets.Grid, layout *schema.Layout, opts ...Option) *Engine {
	e := &Engine{grid: grid, layout: layout, store: NewStore(grid, layout), now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Plan reads the target months and decides what an upsert of exp would do.
func (e *Engine) Plan(ctx context.Context, exp core.Expense) (*Plan, error) {
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	first, last := exp.Mode.Range(e.now())
	snapshot := make(map[int][]core.ExpenseRow, last-first+1)
	for m := first; m <= last; m++ {
		rows, err := e.store.Rows(ctx, m)
		if err != nil {
			return nil, err
		}
		snapshot[m] = rows
	}
	p := Decide(exp, first, last, snapshot)
	return &p, nil
}

// Decide is the pure upsert decision over a snapshot of month rows.
//
// Found everywhere: update in place, no question. Found nowhere: create in
// the first empty slot of every month. Found in some months: update those,
// create in the rest, but only after the caller confirms.
func Decide(exp core.Expense, first, last int, snapshot map[int][]core.ExpenseRow) Plan {
	p := Plan{Expense: exp}
	var matched, missing []int
	for m := first; m <= last; m++ {
		rows := snapshot[m]
		if r, ok := Match(rows, exp.Description); ok {
			p.Months = append(p.Months, MonthPlan{Month: m, Row: r.Row, Action: ActionUpdate})
			matched = append(matched, m)
			continue
		}
		mp := MonthPlan{Month: m, Action: ActionCreate}
		if r, ok := FirstEmpty(rows); ok {
			mp.Row = r.Row
		}
		p.Months = append(p.Months, mp)
		missing = append(missing, m)
	}
	if len(matched) > 0 && len(missing) > 0 {
		p.RequiresConfirmation = true
		p.Question = fmt.Sprintf("%q already exists in %s. Update it there and add it to %s?",
			strings.TrimSpace(exp.Description), core.MonthList(matched), core.MonthList(missing))
	}
	return p
}

// Apply executes p month by month. A failing month does not stop the
// others and nothing is rolled back; the per-month results say what landed.
// The returned error aggregates failures, with every month lacking a slot
// collected into a single *core.CapacityError.
func (e *Engine) Apply(ctx context.Context, p *Plan) ([]MonthResult, error) {
	results := make([]MonthResult, 0, len(p.Months))
	var full []int
	var errs []error
	for _, mp := range p.Months {
		res := MonthResult{Month: mp.Month, Row: mp.Row, Action: mp.Action}
		switch {
		case mp.Action == ActionCreate && mp.Row == 0:
			res.Err = &core.CapacityError{Region: "expense slot", Months: []int{mp.Month}}
			full = append(full, mp.Month)
		default:
			if err := sheets.WriteCells(ctx, e.grid, e.rowCells(p.Expense, mp)); err != nil {
				res.Err = fmt.Errorf("write %s row %d: %w", core.MonthShort(mp.Month), mp.Row, err)
				errs = append(errs, res.Err)
			}
		}
		results = append(results, res)
	}
	if len(full) > 0 {
		errs = append([]error{&core.CapacityError{Region: "expense slot", Months: full}}, errs...)
	}
	if len(errs) > 0 {
		return results, fmt.Errorf("upsert %q: %w", p.Expense.Description, errors.Join(errs...))
	}
	return results, nil
}

// Upsert plans, asks for confirmation when the plan needs it, and applies.
// A declined confirmation returns *core.AlreadyExistsError with no writes.
func (e *Engine) Upsert(ctx context.Context, exp core.Expense, confirm core.Confirmer) ([]MonthResult, error) {
	p, err := e.Plan(ctx, exp)
	if err != nil {
		return nil, err
	}
	if p.RequiresConfirmation {
		ok, err := confirm.Confirm(ctx, p.Question)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &core.AlreadyExistsError{Name: exp.Description, Months: p.Matched()}
		}
	}
	return e.Apply(ctx, p)
}

func (e *Engine) rowCells(exp core.Expense, mp MonthPlan) []sheets.Cell {
	m := e.layout.Month
	sheet := sheets.Month(mp.Month)
	var cells []sheets.Cell
	put := func(col int, v string) {
		cells = append(cells, sheets.Cell{Sheet: sheet, Row: mp.Row, Col: col, Value: v})
	}

	if mp.Action == ActionCreate {
		put(m.DescriptionCol, strings.TrimSpace(exp.Description))
		put(m.TypeCol, strings.TrimSpace(exp.Type))
		put(m.AmountCol, exp.Amount.Cell())
		put(m.PeriodCol, strings.TrimSpace(exp.Period))
	} else {
		if t := strings.TrimSpace(exp.Type); t != "" {
			put(m.TypeCol, t)
		}
		if !exp.Amount.IsUnset() {
			put(m.AmountCol, exp.Amount.Cell())
		}
		if p := strings.TrimSpace(exp.Period); p != "" {
			put(m.PeriodCol, p)
		}
	}
	put(m.PAPCol, core.PAPMarker(exp.PAP))
	put(m.SplitCol, core.Flag(exp.Split))
	put(m.PaidCol, core.Flag(exp.Paid))
	if party, ok := exp.Payer.Party(); ok && !exp.Amount.IsUnset() {
		put(e.layout.PayCol(party), exp.Amount.Cell())
	}
	return append(cells, SplitFormulaCells(e.layout, mp.Month, mp.Row)...)
}
