package analytics

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"homepay/internal/core"
	"homepay/internal/expenses"
	"homepay/internal/sheets"
)

type (
	// SummaryRow aggregates one expense type over the year.
	SummaryRow struct {
		Type         string
		Descriptions string
		// Total covers the months up to SummaryTable.Through.
		Total   decimal.Decimal
		Monthly [12]decimal.Decimal
	}

	// SummaryTable is the content of the summary sheet.
	SummaryTable struct {
		Year    int
		Through int // last month counted in the totals
		Rows    []SummaryRow
		Totals  SummaryRow
	}
)

// SummaryHeader is the first row of the summary sheet.
func SummaryHeader() []string {
	h := []string{"Type", "Description", "Total Amount"}
	for m := 1; m <= 12; m++ {
		h = append(h, core.MonthShort(m))
	}
	return h
}

// Matrix renders the table as sheet rows: header, totals, one row per type.
func (t *SummaryTable) Matrix() [][]string {
	out := [][]string{SummaryHeader(), t.Totals.cells()}
	for _, r := range t.Rows {
		out = append(out, r.cells())
	}
	return out
}

func (r SummaryRow) cells() []string {
	c := []string{r.Type, r.Descriptions, r.Total.StringFixed(2)}
	for _, m := range r.Monthly {
		c = append(c, m.StringFixed(2))
	}
	return c
}

// BuildSummary aggregates month rows by type. Types keep the order in which
// they first appear; descriptions are distinct and joined with ", ".
func BuildSummary(year, through int, months [12][]core.ExpenseRow) *SummaryTable {
	t := &SummaryTable{Year: year, Through: through, Totals: SummaryRow{Type: "Total"}}
	index := map[string]int{}
	seen := map[string]map[string]bool{}
	var descs [][]string

	for i, rows := range months {
		for _, r := range rows {
			amount, ok := core.ParseCell(r.Amount)
			if r.Type == "" || !ok || amount.IsZero() {
				continue
			}
			k, exists := index[r.Type]
			if !exists {
				k = len(t.Rows)
				index[r.Type] = k
				t.Rows = append(t.Rows, SummaryRow{Type: r.Type})
				seen[r.Type] = map[string]bool{}
				descs = append(descs, nil)
			}
			if r.Description != "" && !seen[r.Type][r.Description] {
				seen[r.Type][r.Description] = true
				descs[k] = append(descs[k], r.Description)
			}
			row := &t.Rows[k]
			row.Monthly[i] = row.Monthly[i].Add(amount)
			if i < through {
				row.Total = row.Total.Add(amount)
			}
		}
	}
	for k := range t.Rows {
		t.Rows[k].Descriptions = strings.Join(descs[k], ", ")
		t.Totals.Total = t.Totals.Total.Add(t.Rows[k].Total)
		for m := range t.Totals.Monthly {
			t.Totals.Monthly[m] = t.Totals.Monthly[m].Add(t.Rows[k].Monthly[m])
		}
	}
	return t
}

// Summary rebuilds the summary sheet of doc and returns its content. For a
// document of a past year the totals cover all twelve months, otherwise
// the months up to the current one.
func (a *Analyst) Summary(ctx context.Context, doc sheets.Document) (*SummaryTable, error) {
	year, err := documentYear(doc)
	if err != nil {
		return nil, err
	}
	now := a.now()
	through := int(now.Month())
	if now.Year() > year {
		through = 12
	}

	store := expenses.NewStore(doc, a.layout)
	var months [12][]core.ExpenseRow
	for m := 1; m <= 12; m++ {
		if months[m-1], err = store.Rows(ctx, m); err != nil {
			return nil, err
		}
	}
	t := BuildSummary(year, through, months)
	if err := a.writeSummary(ctx, doc, t); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}
	return t, nil
}

func (a *Analyst) writeSummary(ctx context.Context, g sheets.Grid, t *SummaryTable) error {
	s := a.layout.Summary
	if err := g.Clear(ctx, sheets.Summary, 1, 1, s.Rows, s.Cols); err != nil {
		return err
	}
	m := t.Matrix()
	if err := g.SetRange(ctx, sheets.Summary, s.HeaderRow, 1, m[:1]); err != nil {
		return err
	}

	totals := append([]string(nil), m[1]...)
	if len(t.Rows) > 0 {
		last := s.FirstDataRow + len(t.Rows) - 1
		for c := s.AmountCol; c <= s.AmountCol+12; c++ {
			col := sheets.ColumnLetter(c)
			totals[c-1] = fmt.Sprintf("=SUM(%s%d:%s%d)", col, s.FirstDataRow, col, last)
		}
	}
	if err := g.SetRange(ctx, sheets.Summary, s.TotalRow, 1, [][]string{totals}); err != nil {
		return err
	}
	if len(t.Rows) == 0 {
		return nil
	}
	return g.SetRange(ctx, sheets.Summary, s.FirstDataRow, 1, m[2:])
}

// summaryEnd is the last data row of the summary sheet: the row before the
// first blank type cell.
func (a *Analyst) summaryEnd(ctx context.Context, g sheets.Grid) (int, error) {
	s := a.layout.Summary
	col, err := sheets.Column(ctx, g, sheets.Summary, s.FirstDataRow, 1, s.Rows-s.FirstDataRow+1)
	if err != nil {
		return 0, err
	}
	for i, v := range col {
		if strings.TrimSpace(v) == "" {
			return s.FirstDataRow + i - 1, nil
		}
	}
	return s.Rows, nil
}
