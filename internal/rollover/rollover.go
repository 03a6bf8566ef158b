// Package rollover prepares month sheets and yearly documents for reuse:
// cleaning months, copying recurring rows forward and creating the next
// year's document.
package rollover

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"homepay/internal/core"
	"homepay/internal/expenses"
	"homepay/internal/schema"
	"homepay/internal/sheets"
)

const white = "#ffffff"

type (
	Engine struct {
		layout *schema.Layout
		now    func() time.Time
	}

	Option func(*Engine)

	// CopyResult lists the months a copy wrote to and the ones it left alone
	// because they already held expenses.
	CopyResult struct {
		Copied  []int
		Skipped []int
		Rows    int
	}

	// NewYearResult describes a freshly created yearly document.
	NewYearResult struct {
		Document   sheets.Document
		Year       int
		Carried    int
		Recipients []string
	}
)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(layout *schema.Layout, opts ...Option) *Engine {
	e := &Engine{layout: layout, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

// CleanQuestion is asked before Clean starting at from.
func CleanQuestion(from int) string {
	if from <= 1 {
		return "This will clean every month of the document. Continue?"
	}
	return fmt.Sprintf("This will clean every month after %s. Continue?", time.Month(from-1))
}

// Clean empties the expense rows of months from..12. Split formulas and the
// settlement columns of the data rows are preserved.
func (e *Engine) Clean(ctx context.Context, g sheets.Grid, from int) (int, error) {
	if from < 1 || from > 12 {
		return 0, &core.ValidationError{Field: core.FieldMonth, Reason: fmt.Sprintf("month %d out of range", from)}
	}
	cleaned := 0
	for m := from; m <= 12; m++ {
		if err := e.cleanMonth(ctx, g, m); err != nil {
			return cleaned, fmt.Errorf("clean %s: %w", core.MonthShort(m), err)
		}
		cleaned++
	}
	return cleaned, nil
}

// CleanRemaining cleans the months after the current one. It does nothing
// in December.
func (e *Engine) CleanRemaining(ctx context.Context, g sheets.Grid) (int, error) {
	cur := int(e.now().Month())
	if cur == 12 {
		return 0, nil
	}
	return e.Clean(ctx, g, cur+1)
}

func (e *Engine) cleanMonth(ctx context.Context, g sheets.Grid, month int) error {
	m := e.layout.Month
	sheet := sheets.Month(month)
	slots := e.layout.Slots()
	if err := g.Clear(ctx, sheet, m.FirstRow, m.TypeCol, slots, m.AmountCol-m.TypeCol+1); err != nil {
		return err
	}
	if err := g.Clear(ctx, sheet, m.FirstRow, m.SplitCol, slots, m.PAPCol-m.SplitCol+1); err != nil {
		return err
	}
	if f, ok := g.(sheets.Formatter); ok {
		if err := f.SetBackground(ctx, sheet, m.FirstRow, m.AmountCol, slots, 1, white); err != nil {
			return err
		}
	}
	return g.Clear(ctx, sheet, m.CarryOverRow, 2, 1, m.Party1ToParty2Col-1)
}

// CopyMonth copies the current month's recurring rows (those with a period)
// into the next month (OneTimeCurrentMonth) or every remaining month
// (CurrentMonthForward). Target months that already hold expenses are
// skipped.
func (e *Engine) CopyMonth(ctx context.Context, g sheets.Grid, mode core.RecurrenceMode) (CopyResult, error) {
	var res CopyResult
	cur := int(e.now().Month())
	if cur == 12 {
		return res, &core.ValidationError{Field: core.FieldMonth, Reason: "December cannot be copied forward; create the next year's document instead"}
	}
	var targets []int
	switch mode {
	case core.OneTimeCurrentMonth:
		targets = []int{cur + 1}
	case core.CurrentMonthForward:
		for m := cur + 1; m <= 12; m++ {
			targets = append(targets, m)
		}
	default:
		return res, &core.ValidationError{Field: core.FieldMode, Reason: fmt.Sprintf("copy needs mode %q or %q", core.OneTimeCurrentMonth, core.CurrentMonthForward)}
	}

	store := expenses.NewStore(g, e.layout)
	source, err := store.Rows(ctx, cur)
	if err != nil {
		return res, err
	}
	var recurring []core.ExpenseRow
	for _, r := range source {
		if r.Period != "" && r.Description != "" {
			recurring = append(recurring, r)
		}
	}
	types := distinctTypes(source)

	for _, m := range targets {
		rows, err := store.Rows(ctx, m)
		if err != nil {
			return res, err
		}
		if hasExpenses(rows) {
			res.Skipped = append(res.Skipped, m)
			continue
		}
		n, err := e.copyRows(ctx, g, m, recurring, rows)
		if err != nil {
			return res, fmt.Errorf("copy into %s: %w", core.MonthShort(m), err)
		}
		if f, ok := g.(sheets.Formatter); ok && len(types) > 0 {
			if err := f.SetValidationList(ctx, sheets.Month(m), e.layout.Month.FirstRow, e.layout.Month.TypeCol, e.layout.Slots(), 1, types); err != nil {
				return res, fmt.Errorf("type validation %s: %w", core.MonthShort(m), err)
			}
		}
		res.Copied = append(res.Copied, m)
		res.Rows += n
	}
	return res, nil
}

func (e *Engine) copyRows(ctx context.Context, g sheets.Grid, month int, src, target []core.ExpenseRow) (int, error) {
	var cells []sheets.Cell
	taken := make([]bool, len(target))
	count := 0
	for _, r := range src {
		idx := -1
		for i, t := range target {
			if t.Description == r.Description {
				idx = i
				break
			}
		}
		if idx < 0 {
			for i, t := range target {
				if !taken[i] && t.Description == "" && t.Type == "" {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			continue
		}
		taken[idx] = true
		target[idx].Description = r.Description
		row := target[idx].Row
		cells = append(cells, e.definitionCells(month, row, r, false)...)
		count++
	}
	return count, sheets.WriteCells(ctx, g, cells)
}

// definitionCells writes the user-entered columns of r into row. With
// reset, payments and the date are dropped and the paid flag goes back to
// "N".
func (e *Engine) definitionCells(month, row int, r core.ExpenseRow, reset bool) []sheets.Cell {
	m := e.layout.Month
	sheet := sheets.Month(month)
	values := map[int]string{
		m.TypeCol:        r.Type,
		m.DescriptionCol: r.Description,
		m.AmountCol:      r.Amount,
		m.SplitCol:       r.Split,
		m.PeriodCol:      r.Period,
		m.PAPCol:         r.PAP,
	}
	if reset {
		values[m.PaidCol] = core.No
	} else {
		values[m.DateCol] = r.Date
		values[m.Pay1Col] = r.Pay1
		values[m.Pay2Col] = r.Pay2
		values[m.PaidCol] = r.Paid
	}
	cells := make([]sheets.Cell, 0, len(values)+2)
	for col := 1; col <= m.PAPCol; col++ {
		if v, ok := values[col]; ok {
			cells = append(cells, sheets.Cell{Sheet: sheet, Row: row, Col: col, Value: v})
		}
	}
	return append(cells, expenses.SplitFormulaCells(e.layout, month, row)...)
}

// NextYear is the year of the document that follows one for docYear.
func NextYear(now time.Time, docYear int) int {
	if docYear == now.Year() {
		return now.Year() + 1
	}
	return now.Year()
}

// NewYear copies src into the next yearly document and resets it: month
// labels, funds, sheet titles, expense rows and the summary. December's
// recurring rows are carried into January.
func (e *Engine) NewYear(ctx context.Context, src sheets.Document, loc sheets.Locator) (*NewYearResult, error) {
	docYear, err := sheets.DocumentYear(src.Name())
	if err != nil {
		return nil, &core.ValidationError{Field: "document", Reason: err.Error()}
	}
	year := NextYear(e.now(), docYear)
	name := e.layout.DocumentName(year)

	switch _, err := loc.Find(ctx, name); {
	case err == nil:
		return nil, &core.AlreadyExistsError{Name: name}
	case !errors.Is(err, sheets.ErrNotFound):
		return nil, fmt.Errorf("look up %s: %w", name, err)
	}

	store := expenses.NewStore(src, e.layout)
	december, err := store.Rows(ctx, 12)
	if err != nil {
		return nil, err
	}
	recipients, err := Recipients(ctx, src, e.layout)
	if err != nil {
		return nil, err
	}

	dst, err := loc.Copy(ctx, src, name)
	if err != nil {
		return nil, fmt.Errorf("copy %s: %w", src.Name(), err)
	}

	d := e.layout.Dashboard
	var cells []sheets.Cell
	for i := 0; i < 12; i++ {
		cells = append(cells, sheets.Cell{
			Sheet: sheets.Dashboard, Row: d.FirstMonthRow + i, Col: d.MonthNameCol,
			Value: fmt.Sprintf("%s %d", time.Month(i+1), year),
		})
	}
	if err := sheets.WriteCells(ctx, dst, cells); err != nil {
		return nil, fmt.Errorf("relabel dashboard: %w", err)
	}
	if err := dst.Clear(ctx, sheets.Dashboard, d.FundsRow, d.Party1Col, 1, 2); err != nil {
		return nil, fmt.Errorf("clear funds: %w", err)
	}

	if rn, ok := dst.(sheets.Renamer); ok {
		for m := 1; m <= 12; m++ {
			title, err := rn.SheetTitle(ctx, sheets.Month(m))
			if err != nil {
				return nil, err
			}
			next := strings.Replace(title, fmt.Sprint(docYear), fmt.Sprint(year), 1)
			if strings.TrimSpace(title) == "" {
				next = sheets.MonthTitle(m, year)
			}
			if err := rn.RenameSheet(ctx, sheets.Month(m), next); err != nil {
				return nil, fmt.Errorf("rename %s: %w", core.MonthShort(m), err)
			}
		}
	}

	if _, err := e.Clean(ctx, dst, 1); err != nil {
		return nil, err
	}
	m := e.layout.Month
	for month := 1; month <= 12; month++ {
		for _, p := range []schema.Party{schema.Party1, schema.Party2} {
			if err := dst.Clear(ctx, sheets.Month(month), e.layout.FundPaidRow(p), m.AggregateCol, 1, 1); err != nil {
				return nil, fmt.Errorf("clear fund draws: %w", err)
			}
		}
	}

	cells = cells[:0]
	row := m.FirstRow
	carried := 0
	for _, r := range december {
		if r.Period == "" || row > m.LastRow {
			continue
		}
		cells = append(cells, e.definitionCells(1, row, r, true)...)
		row++
		carried++
	}
	if err := sheets.WriteCells(ctx, dst, cells); err != nil {
		return nil, fmt.Errorf("carry December into January: %w", err)
	}

	s := e.layout.Summary
	if rows := s.Rows - s.TotalRow; rows > 0 {
		if err := dst.Clear(ctx, sheets.Summary, s.TotalRow+1, 1, rows, s.Cols); err != nil {
			return nil, fmt.Errorf("clear summary: %w", err)
		}
	}

	return &NewYearResult{Document: dst, Year: year, Carried: carried, Recipients: recipients}, nil
}

// Recipients reads the two dashboard email addresses, dropping blanks and
// duplicates.
func Recipients(ctx context.Context, g sheets.Grid, l *schema.Layout) ([]string, error) {
	v, err := g.GetRange(ctx, sheets.Dashboard, l.Dashboard.EmailsRow, l.Dashboard.Party1Col, 1, 2)
	if err != nil {
		return nil, fmt.Errorf("read emails: %w", err)
	}
	var out []string
	for _, addr := range v[0] {
		addr = strings.TrimSpace(addr)
		if addr == "" || (len(out) > 0 && strings.EqualFold(out[0], addr)) {
			continue
		}
		out = append(out, addr)
	}
	return out, nil
}

func hasExpenses(rows []core.ExpenseRow) bool {
	for _, r := range rows {
		if r.Type != "" || r.Description != "" {
			return true
		}
	}
	return false
}

func distinctTypes(rows []core.ExpenseRow) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rows {
		if r.Type != "" && !seen[r.Type] {
			seen[r.Type] = true
			out = append(out, r.Type)
		}
	}
	return out
}
