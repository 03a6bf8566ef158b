package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"homepay/internal/core"
	"homepay/internal/sheets"
)

const (
	historyTitle   = "Historical Spending Summary"
	uncategorized  = "Uncategorized"
	historyYearCol = 1
	historyTrend   = 2
)

type (
	// YearSpend is what one yearly document's summary adds up to.
	YearSpend struct {
		Year   int
		Total  decimal.Decimal
		ByType map[string]decimal.Decimal
	}

	// HistoryRow is one year of the history matrix. ByType follows
	// HistoryTable.Types; a year only reports its own top type.
	HistoryRow struct {
		Year   int
		Total  decimal.Decimal
		ByType []decimal.Decimal
		Others decimal.Decimal
	}

	HistoryTable struct {
		Types []string
		Rows  []HistoryRow
		Max   decimal.Decimal
	}
)

// top returns the type with the largest amount, ties broken by name.
func (y YearSpend) top() string {
	best, name := decimal.Zero, ""
	for t, v := range y.ByType {
		if c := v.Cmp(best); c > 0 || (c == 0 && name != "" && t < name) {
			best, name = v, t
		}
	}
	return name
}

// BuildHistory turns per-year spend into the history matrix. The top type of
// every year joins the column set, ordered by their total over all years.
func BuildHistory(years []YearSpend) *HistoryTable {
	sort.Slice(years, func(i, j int) bool { return years[i].Year < years[j].Year })
	global := map[string]decimal.Decimal{}
	tops := map[string]bool{}
	h := &HistoryTable{Max: decimal.Zero}
	for _, y := range years {
		for t, v := range y.ByType {
			global[t] = global[t].Add(v)
		}
		if t := y.top(); t != "" {
			tops[t] = true
		}
		if y.Total.GreaterThan(h.Max) {
			h.Max = y.Total
		}
	}
	for t := range tops {
		h.Types = append(h.Types, t)
	}
	sort.Slice(h.Types, func(i, j int) bool {
		if c := global[h.Types[i]].Cmp(global[h.Types[j]]); c != 0 {
			return c > 0
		}
		return h.Types[i] < h.Types[j]
	})

	for _, y := range years {
		row := HistoryRow{Year: y.Year, Total: y.Total, ByType: make([]decimal.Decimal, len(h.Types))}
		others := y.Total
		top := y.top()
		for i, t := range h.Types {
			if t == top {
				row.ByType[i] = y.ByType[t]
				others = others.Sub(y.ByType[t])
			}
		}
		row.Others = decimal.Max(decimal.Zero, others)
		h.Rows = append(h.Rows, row)
	}
	return h
}

// Header is the history matrix header without the year column.
func (h *HistoryTable) Header() []string {
	out := append([]string{"Total Spend (Total)"}, h.Types...)
	return append(out, "Others")
}

// History reads the summary sheet of every yearly document up to doc's year,
// concurrently, and writes the history matrix below doc's summary.
// Documents that cannot be read are logged and skipped.
func (a *Analyst) History(ctx context.Context, doc sheets.Document) (*HistoryTable, error) {
	limit, err := documentYear(doc)
	if err != nil {
		return nil, err
	}
	var infos []sheets.DocumentInfo
	if a.loc != nil {
		if infos, err = a.loc.List(ctx, a.layout.FilePrefix+" "); err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
	}
	// doc stands in for its year whether or not the locator lists it.
	infos = append(infos, sheets.DocumentInfo{ID: doc.ID(), Name: a.layout.DocumentName(limit)})
	seen := map[int]bool{}

	var (
		mu    sync.Mutex
		years []YearSpend
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fetchers)
	for _, info := range infos {
		year, err := sheets.DocumentYear(info.Name)
		if err != nil || year > limit || seen[year] || info.Name != a.layout.DocumentName(year) {
			continue
		}
		seen[year] = true
		g.Go(func() error {
			src := sheets.Document(doc)
			if year != limit {
				d, err := a.loc.Open(gctx, info.ID)
				if err != nil {
					slog.WarnContext(gctx, "Skipping document in history", "document", info.Name, "error", err)
					return nil
				}
				src = d
			}
			ys, err := a.yearSpend(gctx, src, year)
			if err != nil {
				slog.WarnContext(gctx, "Skipping document in history", "document", info.Name, "error", err)
				return nil
			}
			mu.Lock()
			years = append(years, ys)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(years) == 0 {
		return nil, &core.NotFoundError{What: "yearly documents up to", Name: fmt.Sprint(limit)}
	}

	h := BuildHistory(years)
	if err := a.writeHistory(ctx, doc, h); err != nil {
		return nil, fmt.Errorf("write history: %w", err)
	}
	return h, nil
}

func (a *Analyst) yearSpend(ctx context.Context, g sheets.Grid, year int) (YearSpend, error) {
	s := a.layout.Summary
	rows, err := g.GetRange(ctx, sheets.Summary, s.FirstDataRow, 1, s.Rows-s.FirstDataRow+1, s.AmountCol)
	if err != nil {
		return YearSpend{}, err
	}
	ys := YearSpend{Year: year, ByType: map[string]decimal.Decimal{}}
	for _, r := range rows {
		amount, ok := core.ParseCell(r[s.AmountCol-1])
		if !ok || !amount.IsPositive() {
			continue
		}
		t := strings.TrimSpace(r[0])
		if t == "" {
			t = uncategorized
		}
		ys.ByType[t] = ys.ByType[t].Add(amount)
		ys.Total = ys.Total.Add(amount)
	}
	return ys, nil
}

func (a *Analyst) writeHistory(ctx context.Context, g sheets.Grid, h *HistoryTable) error {
	s := a.layout.Summary
	end, err := a.summaryEnd(ctx, g)
	if err != nil {
		return err
	}
	start := max(end+5, s.HistoryMinRow)
	if start+len(h.Rows)+1 > s.Rows {
		return fmt.Errorf("history needs rows up to %d, summary ends at %d", start+len(h.Rows)+1, s.Rows)
	}
	if err := g.Clear(ctx, sheets.Summary, start, 1, s.Rows-start+1, s.ComparisonCol-1); err != nil {
		return err
	}

	cells := []sheets.Cell{
		{Sheet: sheets.Summary, Row: start, Col: historyYearCol, Value: historyTitle},
		{Sheet: sheets.Summary, Row: start + 1, Col: historyYearCol, Value: "Year"},
		{Sheet: sheets.Summary, Row: start + 1, Col: historyTrend, Value: "Trend"},
	}
	for i, v := range h.Header() {
		cells = append(cells, sheets.Cell{Sheet: sheets.Summary, Row: start + 1, Col: s.HistoryDataCol + i, Value: v})
	}
	for i, r := range h.Rows {
		row := start + 2 + i
		values := []string{r.Total.StringFixed(2)}
		for _, v := range r.ByType {
			values = append(values, v.StringFixed(2))
		}
		values = append(values, r.Others.StringFixed(2))
		cells = append(cells,
			sheets.Cell{Sheet: sheets.Summary, Row: row, Col: historyYearCol, Value: fmt.Sprint(r.Year)},
			sheets.Cell{Sheet: sheets.Summary, Row: row, Col: historyTrend, Value: Sparkline(sheets.A1(row, s.HistoryDataCol), h.Max)},
		)
		for j, v := range values {
			cells = append(cells, sheets.Cell{Sheet: sheets.Summary, Row: row, Col: s.HistoryDataCol + j, Value: v})
		}
	}
	return sheets.WriteCells(ctx, g, cells)
}

// Sparkline is a single-bar trend formula scaled to max.
func Sparkline(cell string, max decimal.Decimal) string {
	return fmt.Sprintf(`=SPARKLINE(%s,{"charttype","bar";"max",%s})`, cell, max.StringFixed(2))
}

// Comparison holds the dashboard monthly totals of two consecutive years.
type Comparison struct {
	Year     int
	Current  [12]decimal.Decimal
	Previous [12]decimal.Decimal
}

// YearComparison compares doc's monthly totals with the previous year's
// document and writes the table at the comparison column of the summary.
// It returns ErrSkipped when there is no previous year's document.
func (a *Analyst) YearComparison(ctx context.Context, doc sheets.Document) (*Comparison, error) {
	year, err := documentYear(doc)
	if err != nil {
		return nil, err
	}
	prev, err := a.optionalDocument(ctx, nil, year-1)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, fmt.Errorf("%w: no document for %d", ErrSkipped, year-1)
	}
	c := &Comparison{Year: year}
	if c.Current, err = a.monthlyTotals(ctx, doc); err != nil {
		return nil, err
	}
	if c.Previous, err = a.monthlyTotals(ctx, prev); err != nil {
		return nil, err
	}

	s := a.layout.Summary
	rows := [][]string{{"Month", fmt.Sprint(year), fmt.Sprint(year - 1)}}
	for i := range c.Current {
		rows = append(rows, []string{core.MonthShort(i + 1), c.Current[i].StringFixed(2), c.Previous[i].StringFixed(2)})
	}
	if err := doc.Clear(ctx, sheets.Summary, s.HistoryMinRow, s.ComparisonCol, 13, 3); err != nil {
		return nil, err
	}
	if err := doc.SetRange(ctx, sheets.Summary, s.HistoryMinRow, s.ComparisonCol, rows); err != nil {
		return nil, fmt.Errorf("write comparison: %w", err)
	}
	return c, nil
}

// monthlyTotals reads the total column of the dashboard's twelve month rows.
func (a *Analyst) monthlyTotals(ctx context.Context, grid sheets.Grid) ([12]decimal.Decimal, error) {
	var out [12]decimal.Decimal
	d := a.layout.Dashboard
	col, err := sheets.Column(ctx, grid, sheets.Dashboard, d.FirstMonthRow, d.TotalCol, 12)
	if err != nil {
		return out, fmt.Errorf("read dashboard totals: %w", err)
	}
	for i, v := range col {
		out[i] = core.CellValue(v)
	}
	return out, nil
}
