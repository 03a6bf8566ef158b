// Package expenses implements the expense upsert and delete engine over the
// month grids of a household document.
package expenses

import (
	"context"
	"fmt"
	"strings"

	"homepay/internal/core"
	"homepay/internal/schema"
	"homepay/internal/sheets"
)

// Store reads and writes expense rows of month sheets.
type Store struct {
	grid   sheets.Grid
	layout *schema.Layout
}

func NewStore(grid sheets.Grid, layout *schema.Layout) *Store {
	return &Store{grid: grid, layout: layout}
}

// width covers every column an expense row owns.
func (s *Store) width() int { return s.layout.Month.PAPCol }

// Rows returns the data rows of month, including empty ones.
func (s *Store) Rows(ctx context.Context, month int) ([]core.ExpenseRow, error) {
	m := s.layout.Month
	vals, err := s.grid.GetRange(ctx, sheets.Month(month), m.FirstRow, 1, s.layout.Slots(), s.width())
	if err != nil {
		return nil, fmt.Errorf("read %s rows: %w", core.MonthShort(month), err)
	}
	rows := make([]core.ExpenseRow, len(vals))
	for i, v := range vals {
		rows[i] = s.decode(m.FirstRow+i, v)
	}
	return rows, nil
}

func (s *Store) decode(row int, v []string) core.ExpenseRow {
	m := s.layout.Month
	at := func(col int) string {
		if col-1 < len(v) {
			return strings.TrimSpace(v[col-1])
		}
		return ""
	}
	return core.ExpenseRow{
		Row:         row,
		Type:        at(m.TypeCol),
		Description: at(m.DescriptionCol),
		Date:        at(m.DateCol),
		Amount:      at(m.AmountCol),
		Split:       at(m.SplitCol),
		Pay1:        at(m.Pay1Col),
		Pay2:        at(m.Pay2Col),
		Period:      at(m.PeriodCol),
		Paid:        at(m.PaidCol),
		PAP:         at(m.PAPCol),
	}
}

// Match returns the first row whose description equals desc.
func Match(rows []core.ExpenseRow, desc string) (core.ExpenseRow, bool) {
	desc = strings.TrimSpace(desc)
	for _, r := range rows {
		if r.Description != "" && r.Description == desc {
			return r, true
		}
	}
	return core.ExpenseRow{}, false
}

// FirstEmpty returns the first available slot.
func FirstEmpty(rows []core.ExpenseRow) (core.ExpenseRow, bool) {
	for _, r := range rows {
		if r.IsEmpty() {
			return r, true
		}
	}
	return core.ExpenseRow{}, false
}

// SplitFormula is the share formula for party in row. The share follows the
// split flag and the party's percentage on the dashboard.
func SplitFormula(l *schema.Layout, row int, party schema.Party) string {
	split := sheets.ColumnLetter(l.Month.SplitCol)
	amount := sheets.ColumnLetter(l.Month.AmountCol)
	share := fmt.Sprintf("Dashboard!$%s$%d", sheets.ColumnLetter(l.DashboardCol(party)), l.Dashboard.SharesRow)
	return fmt.Sprintf(`=IF(%s%d <> "N", IF(ISBLANK(%s%d),"", ROUND(%s%d*%s,2)),"")`,
		split, row, amount, row, amount, row, share)
}

// SplitFormulaCells returns the two formula writes for row of month.
func SplitFormulaCells(l *schema.Layout, month, row int) []sheets.Cell {
	return []sheets.Cell{
		{Sheet: sheets.Month(month), Row: row, Col: l.Month.Split1Col, Value: SplitFormula(l, row, schema.Party1)},
		{Sheet: sheets.Month(month), Row: row, Col: l.Month.Split2Col, Value: SplitFormula(l, row, schema.Party2)},
	}
}
