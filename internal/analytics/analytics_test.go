package analytics

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"homepay/internal/core"
	"homepay/internal/schema"
	"homepay/internal/sheets"
	"homepay/internal/sheets/memory"
)

func at(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 8, 0, 0, 0, time.UTC) }
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func set(t *testing.T, g sheets.Grid, sheet sheets.SheetID, row, col int, v string) {
	t.Helper()
	if err := g.Set(context.Background(), sheet, row, col, v); err != nil {
		t.Fatal(err)
	}
}

func get(t *testing.T, g sheets.Grid, sheet sheets.SheetID, row, col int) string {
	t.Helper()
	v, err := g.Get(context.Background(), sheet, row, col)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func expense(t *testing.T, g sheets.Grid, month, row int, typ, desc, amount string) {
	t.Helper()
	set(t, g, sheets.Month(month), row, 1, typ)
	set(t, g, sheets.Month(month), row, 2, desc)
	set(t, g, sheets.Month(month), row, 4, amount)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	doc := memory.New("Home payments 2025")
	expense(t, doc, 1, 3, "Housing", "Rent", "1500")
	expense(t, doc, 1, 4, "Utilities", "Hydro", "100")
	expense(t, doc, 1, 6, "", "Misc", "50")
	expense(t, doc, 2, 3, "Housing", "Rent", "1500")
	expense(t, doc, 2, 5, "Utilities", "Internet", "60")
	expense(t, doc, 4, 3, "Housing", "Rent", "1600")
	set(t, doc, sheets.Summary, 40, 1, "stale")

	a := New(schema.Default(), nil, WithClock(at(2025, time.March, 10)))
	tbl, err := a.Summary(ctx, doc)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(tbl.Rows) != 2 || tbl.Rows[0].Type != "Housing" || tbl.Rows[1].Type != "Utilities" {
		t.Fatalf("rows = %+v", tbl.Rows)
	}
	if tbl.Rows[1].Descriptions != "Hydro, Internet" {
		t.Fatalf("descriptions = %q", tbl.Rows[1].Descriptions)
	}
	if !tbl.Rows[0].Total.Equal(dec("3000")) {
		t.Fatalf("April counted in the year-to-date total: %s", tbl.Rows[0].Total)
	}
	if !tbl.Rows[0].Monthly[3].Equal(dec("1600")) {
		t.Fatalf("April column = %s", tbl.Rows[0].Monthly[3])
	}
	if !tbl.Totals.Total.Equal(dec("3160")) {
		t.Fatalf("total = %s", tbl.Totals.Total)
	}

	want := map[string]string{
		"A1": "Type", "C1": "Total Amount", "D1": "Jan",
		"A2": "Total", "C2": "=SUM(C3:C4)", "D2": "=SUM(D3:D4)",
		"A3": "Housing", "B3": "Rent", "C3": "3000.00", "G3": "1600.00",
		"A4": "Utilities", "C4": "160.00",
	}
	snap := doc.Snapshot(sheets.Summary)
	for cell, v := range want {
		if snap[cell] != v {
			t.Errorf("%s = %q, want %q", cell, snap[cell], v)
		}
	}
	if snap["A40"] != "" {
		t.Error("stale summary content survived")
	}
}

func TestSummaryPastYearCountsAllMonths(t *testing.T) {
	doc := memory.New("Home payments 2024")
	expense(t, doc, 12, 3, "Gifts", "Presents", "400")
	a := New(schema.Default(), nil, WithClock(at(2025, time.February, 1)))
	tbl, err := a.Summary(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Through != 12 || !tbl.Rows[0].Total.Equal(dec("400")) {
		t.Fatalf("through %d total %s", tbl.Through, tbl.Rows[0].Total)
	}
}

func summaryDoc(t *testing.T, name string, rows ...[2]string) *memory.Store {
	t.Helper()
	doc := memory.New(name)
	for i, r := range rows {
		set(t, doc, sheets.Summary, 3+i, 1, r[0])
		set(t, doc, sheets.Summary, 3+i, 3, r[1])
	}
	return doc
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	cur := summaryDoc(t, "Home payments 2025", [2]string{"Housing", "5000"}, [2]string{"Food", "1000"})
	loc := memory.NewLocator(
		summaryDoc(t, "Home payments 2023", [2]string{"Housing", "10000"}, [2]string{"Food", "4000"}),
		summaryDoc(t, "Home payments 2024", [2]string{"Housing", "11000"}, [2]string{"Travel", "12000"}),
		summaryDoc(t, "Home payments 2026", [2]string{"Housing", "99999"}),
		summaryDoc(t, "Home payments backup 2024", [2]string{"Housing", "1"}),
	)
	a := New(schema.Default(), loc, WithClock(at(2025, time.June, 1)))

	h, err := a.History(ctx, cur)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if !reflect.DeepEqual(h.Types, []string{"Housing", "Travel"}) {
		t.Fatalf("types = %v", h.Types)
	}
	if len(h.Rows) != 3 || h.Rows[0].Year != 2023 || h.Rows[2].Year != 2025 {
		t.Fatalf("rows = %+v", h.Rows)
	}
	r2024 := h.Rows[1]
	if !r2024.ByType[0].IsZero() || !r2024.ByType[1].Equal(dec("12000")) || !r2024.Others.Equal(dec("11000")) {
		t.Fatalf("2024 row = %+v", r2024)
	}
	if !h.Max.Equal(dec("23000")) {
		t.Fatalf("max = %s", h.Max)
	}

	if got := get(t, cur, sheets.Summary, 29, 1); got != historyTitle {
		t.Fatalf("title at A29 = %q", got)
	}
	if got := get(t, cur, sheets.Summary, 30, 5); got != "Housing" {
		t.Fatalf("E30 = %q", got)
	}
	if got := get(t, cur, sheets.Summary, 31, 1); got != "2023" {
		t.Fatalf("A31 = %q", got)
	}
	if got := get(t, cur, sheets.Summary, 31, 4); got != "14000.00" {
		t.Fatalf("D31 = %q", got)
	}
	if got := get(t, cur, sheets.Summary, 31, 2); got != `=SPARKLINE(D31,{"charttype","bar";"max",23000.00})` {
		t.Fatalf("B31 = %q", got)
	}
}

func TestYearComparison(t *testing.T) {
	ctx := context.Background()
	cur := memory.New("Home payments 2025")
	set(t, cur, sheets.Dashboard, 7, 4, "2100")

	a := New(schema.Default(), memory.NewLocator(cur), WithClock(at(2025, time.June, 1)))
	if _, err := a.YearComparison(ctx, cur); !errors.Is(err, ErrSkipped) {
		t.Fatalf("expected ErrSkipped without a previous year, got %v", err)
	}

	prev := memory.New("Home payments 2024")
	set(t, prev, sheets.Dashboard, 7, 4, "1900")
	a = New(schema.Default(), memory.NewLocator(cur, prev), WithClock(at(2025, time.June, 1)))
	c, err := a.YearComparison(ctx, cur)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Current[0].Equal(dec("2100")) || !c.Previous[0].Equal(dec("1900")) {
		t.Fatalf("comparison = %+v", c)
	}
	if got := get(t, cur, sheets.Summary, 29, 17); got != "Month" {
		t.Fatalf("Q29 = %q", got)
	}
	if got := get(t, cur, sheets.Summary, 30, 19); got != "1900.00" {
		t.Fatalf("S30 = %q", got)
	}
}

func TestStatsFromRows(t *testing.T) {
	rows := []core.ExpenseRow{
		{Type: "Housing", Description: "Rent", Amount: "1500"},
		{Type: "Food", Description: "Groceries", Amount: "300"},
		{Type: "Food", Description: "Bakery", Amount: "20"},
		{Description: "Parking", Amount: "15"},
		{Type: "Food", Description: "Broken", Amount: "n/a"},
		{Type: "Food", Description: "Zero", Amount: "0"},
	}
	st := StatsFromRows(2025, 3, rows)
	if !st.Total.Equal(dec("1835")) || st.ExpenseCount != 4 {
		t.Fatalf("total %s count %d", st.Total, st.ExpenseCount)
	}
	if st.HighestName != "Rent" || st.TopCategory != "Housing" {
		t.Fatalf("highest %q top %q", st.HighestName, st.TopCategory)
	}
	if !st.Category(uncategorized).Equal(dec("15")) || !st.Category("Food").Equal(dec("320")) {
		t.Fatalf("categories = %+v", st.ByCategory)
	}
	if empty := StatsFromRows(2025, 3, nil); empty.HasData() || empty.TopCategory != "None" {
		t.Fatalf("empty stats = %+v", empty)
	}
}

func TestCompare(t *testing.T) {
	if Compare(dec("100"), decimal.Zero) != nil {
		t.Fatal("zero base must not compare")
	}
	c := Compare(dec("2000"), dec("1500"))
	if !c.Difference.Equal(dec("500")) || !c.Percent.Equal(dec("33.3")) {
		t.Fatalf("change = %+v", c)
	}
}

func TestSpikes(t *testing.T) {
	cur := core.MonthStats{ByCategory: []core.CategoryAmount{
		{Name: "Housing", Amount: dec("1600")},
		{Name: "Travel", Amount: dec("800")},
		{Name: "Food", Amount: dec("400")},
		{Name: "Gifts", Amount: dec("200")},
		{Name: "Utilities", Amount: dec("100")},
	}}
	ago := &core.MonthStats{ByCategory: []core.CategoryAmount{
		{Name: "Housing", Amount: dec("1000")},
		{Name: "Food", Amount: dec("300")},
		{Name: "Utilities", Amount: dec("100")},
	}}
	got := Spikes(cur, ago)
	want := map[string]Severity{"Housing": SeverityHigh, "Travel": SeverityNew, "Food": SeverityAboveNormal}
	if len(got) != len(want) {
		t.Fatalf("spikes = %+v", got)
	}
	for _, s := range got {
		if want[s.Category] != s.Severity {
			t.Errorf("%s: severity %s, want %s", s.Category, s.Severity, want[s.Category])
		}
	}
	if Spikes(cur, nil) != nil {
		t.Fatal("spikes without a year-ago month")
	}
}

func TestBuildForecast(t *testing.T) {
	var cur, prev [12]decimal.Decimal
	for i := range prev {
		prev[i] = dec("1000")
	}
	cur[0], cur[1], cur[2], cur[3] = dec("1000"), dec("1200"), dec("800"), dec("1000")
	cur[6] = dec("5000") // posted ahead, outside year to date

	tests := []struct {
		name     string
		month    int
		previous *[12]decimal.Decimal
		annual   string
		pct      string
	}{
		{"april uses this year's average", 4, &prev, "36000", "200"},
		{"january falls back to last year", 1, &prev, "45000", "275"},
		{"january without history", 1, nil, "34000", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := BuildForecast(2025, tt.month, cur, tt.previous, DefaultAssumptions())
			if !f.Annual.Equal(dec(tt.annual)) {
				t.Fatalf("annual = %s, want %s", f.Annual, tt.annual)
			}
			if tt.pct == "" {
				if f.VsLastYear != nil {
					t.Fatal("unexpected year-over-year change")
				}
				return
			}
			if f.VsLastYear == nil || !f.VsLastYear.Percent.Equal(dec(tt.pct)) {
				t.Fatalf("vs last year = %+v", f.VsLastYear)
			}
		})
	}
}

func TestReminderMonth(t *testing.T) {
	tests := []struct {
		now     time.Time
		docYear int
		month   int
		ok      bool
	}{
		{time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC), 2025, 0, false},
		{time.Date(2025, time.April, 5, 0, 0, 0, 0, time.UTC), 2025, 3, true},
		{time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC), 2025, 12, true},
		{time.Date(2026, time.February, 5, 0, 0, 0, 0, time.UTC), 2025, 0, false},
		{time.Date(2027, time.January, 5, 0, 0, 0, 0, time.UTC), 2025, 0, false},
		{time.Date(2024, time.May, 5, 0, 0, 0, 0, time.UTC), 2025, 0, false},
	}
	for _, tt := range tests {
		m, ok := ReminderMonth(tt.now, tt.docYear)
		if m != tt.month || ok != tt.ok {
			t.Errorf("ReminderMonth(%s, %d) = %d, %v", tt.now.Format("2006-01"), tt.docYear, m, ok)
		}
	}
}

func dashboardDoc(t *testing.T, name string) *memory.Store {
	t.Helper()
	doc := memory.New(name)
	set(t, doc, sheets.Dashboard, 2, 2, "Alex")
	set(t, doc, sheets.Dashboard, 2, 3, "Sam")
	set(t, doc, sheets.Dashboard, 3, 2, "alex@example.com")
	set(t, doc, sheets.Dashboard, 3, 3, "sam@example.com")
	return doc
}

func TestBalanceReminder(t *testing.T) {
	ctx := context.Background()
	doc := dashboardDoc(t, "Home payments 2025")
	// March is dashboard row 9.
	for col, v := range map[int]string{4: "2000", 5: "800", 6: "1200", 7: "1500", 8: "500", 9: "0", 10: "100", 11: "-600", 12: "600"} {
		set(t, doc, sheets.Dashboard, 9, col, v)
	}
	a := New(schema.Default(), nil, WithClock(at(2025, time.April, 5)))

	r, err := a.BalanceReminder(ctx, doc)
	if err != nil {
		t.Fatalf("BalanceReminder: %v", err)
	}
	if r.Subject != "Monthly Property Account for March 2025" {
		t.Fatalf("subject = %q", r.Subject)
	}
	if r.AllPaid || r.Headline != "Alex to pay $600.00" {
		t.Fatalf("headline = %q", r.Headline)
	}
	if !r.Paid[0].Equal(dec("600")) || !r.Paid[1].Equal(dec("1400")) {
		t.Fatalf("paid = %v", r.Paid)
	}
	if len(r.Recipients) != 2 {
		t.Fatalf("recipients = %v", r.Recipients)
	}

	set(t, doc, sheets.Dashboard, 9, 11, "5")
	set(t, doc, sheets.Dashboard, 9, 12, "-5")
	if r, err = a.BalanceReminder(ctx, doc); err != nil || !r.AllPaid || r.Headline != "All Paid" {
		t.Fatalf("small balance: %+v, %v", r, err)
	}

	a = New(schema.Default(), nil, WithClock(at(2025, time.January, 5)))
	if _, err := a.BalanceReminder(ctx, doc); !errors.Is(err, ErrSkipped) {
		t.Fatalf("January reminder for the current year: %v", err)
	}
}

type stubNarrator struct {
	text   string
	err    error
	prompt string
}

func (s *stubNarrator) Narrate(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.text, s.err
}

func insightsLocator(t *testing.T) *memory.Locator {
	t.Helper()
	cur := dashboardDoc(t, "Home payments 2025")
	expense(t, cur, 3, 3, "Housing", "Rent", "1500")
	expense(t, cur, 3, 4, "Food", "Groceries", "300")
	expense(t, cur, 3, 5, "Utilities", "Hydro", "200")
	expense(t, cur, 2, 3, "Housing", "Rent", "1500")
	prev := memory.New("Home payments 2024")
	expense(t, prev, 3, 3, "Housing", "Rent", "2500")
	return memory.NewLocator(cur, prev)
}

func TestMonthlyInsightsFallback(t *testing.T) {
	n := &stubNarrator{err: errors.New("quota")}
	a := New(schema.Default(), insightsLocator(t), WithClock(at(2025, time.April, 1)), WithNarrator(n))
	r, err := a.MonthlyInsights(context.Background())
	if err != nil {
		t.Fatalf("MonthlyInsights: %v", err)
	}
	if r.Subject != "Monthly Expense Insights: Mar 2025" {
		t.Fatalf("subject = %q", r.Subject)
	}
	if r.VsPrevious == nil || !r.VsPrevious.Percent.Equal(dec("33.3")) {
		t.Fatalf("vs previous = %+v", r.VsPrevious)
	}
	if r.VsYearAgo == nil || !r.VsYearAgo.Difference.Equal(dec("-500")) {
		t.Fatalf("vs year ago = %+v", r.VsYearAgo)
	}
	if r.Narrative != "" || len(r.Insights) != 3 {
		t.Fatalf("insights = %q", r.Insights)
	}
	if !strings.Contains(r.Insights[0], "75%") || !strings.Contains(r.Insights[1], "$500.00 less") {
		t.Fatalf("insights = %q", r.Insights)
	}
	if !strings.Contains(n.prompt, "Groceries") && !strings.Contains(n.prompt, "Food") {
		t.Fatalf("prompt lacks the category breakdown: %q", n.prompt)
	}
}

func TestMonthlyInsightsNarrated(t *testing.T) {
	n := &stubNarrator{text: "<ul><li>Steady month.</li></ul>"}
	a := New(schema.Default(), insightsLocator(t), WithClock(at(2025, time.April, 1)), WithNarrator(n))
	r, err := a.MonthlyInsights(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Narrative != n.text || r.Insights != nil {
		t.Fatalf("narrative %q insights %v", r.Narrative, r.Insights)
	}
}

func TestMonthlyInsightsSkipsEmptyMonth(t *testing.T) {
	a := New(schema.Default(), insightsLocator(t), WithClock(at(2025, time.June, 1)))
	if _, err := a.MonthlyInsights(context.Background()); !errors.Is(err, ErrSkipped) {
		t.Fatalf("expected ErrSkipped, got %v", err)
	}
}
