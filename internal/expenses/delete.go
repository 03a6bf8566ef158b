package expenses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"homepay/internal/core"
	"homepay/internal/sheets"
)

// PlanDelete finds the rows a delete would blank. The returned plan always
// requires confirmation; its question names the scope.
func (e *Engine) PlanDelete(ctx context.Context, description string, mode core.RecurrenceMode) (*Plan, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, &core.ValidationError{Field: core.FieldDescription, Reason: "missing description"}
	}
	if mode != core.CurrentMonthForward && mode != core.YearFromJanuary {
		return nil, &core.ValidationError{Field: core.FieldMode, Reason: fmt.Sprintf("delete does not support mode %q", mode)}
	}
	p := &Plan{
		Expense:              core.Expense{Description: description, Mode: mode, Amount: core.UnsetAmount},
		RequiresConfirmation: true,
		Question:             fmt.Sprintf("Delete %q %s?", description, mode.Scope()),
	}
	first, last := mode.Range(e.now())
	for m := first; m <= last; m++ {
		rows, err := e.store.Rows(ctx, m)
		if err != nil {
			return nil, err
		}
		if r, ok := Match(rows, description); ok {
			p.Months = append(p.Months, MonthPlan{Month: m, Row: r.Row, Action: ActionDelete})
		}
	}
	return p, nil
}

// ApplyDelete blanks the planned rows from the type column through the
// amount column and from the split flag through the paid flag. Share
// formulas are left alone.
func (e *Engine) ApplyDelete(ctx context.Context, p *Plan) ([]MonthResult, error) {
	if len(p.Months) == 0 {
		return nil, &core.NotFoundError{What: "expense", Name: p.Expense.Description}
	}
	m := e.layout.Month
	results := make([]MonthResult, 0, len(p.Months))
	var errs []error
	for _, mp := range p.Months {
		res := MonthResult{Month: mp.Month, Row: mp.Row, Action: ActionDelete}
		sheet := sheets.Month(mp.Month)
		err := e.grid.Clear(ctx, sheet, mp.Row, m.TypeCol, 1, m.AmountCol-m.TypeCol+1)
		if err == nil {
			err = e.grid.Clear(ctx, sheet, mp.Row, m.SplitCol, 1, m.PaidCol-m.SplitCol+1)
		}
		if err != nil {
			res.Err = fmt.Errorf("clear %s row %d: %w", core.MonthShort(mp.Month), mp.Row, err)
			errs = append(errs, res.Err)
		}
		results = append(results, res)
	}
	if len(errs) > 0 {
		return results, fmt.Errorf("delete %q: %w", p.Expense.Description, errors.Join(errs...))
	}
	return results, nil
}

// Delete asks for confirmation, then blanks every matching row in range.
// Zero matches returns *core.NotFoundError.
func (e *Engine) Delete(ctx context.Context, description string, mode core.RecurrenceMode, confirm core.Confirmer) ([]MonthResult, error) {
	p, err := e.PlanDelete(ctx, description, mode)
	if err != nil {
		return nil, err
	}
	ok, err := confirm.Confirm(ctx, p.Question)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.ErrDeclined
	}
	return e.ApplyDelete(ctx, p)
}
