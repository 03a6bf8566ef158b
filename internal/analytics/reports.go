package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"homepay/internal/core"
	"homepay/internal/rollover"
	"homepay/internal/schema"
	"homepay/internal/sheets"
)

var allPaidBelow = decimal.NewFromInt(10)

// FallbackInsights are the built-in observations used when no narrator is
// available: the top category's share, the change against last year, and a
// single expense dominating the month.
func FallbackInsights(current core.MonthStats, yearAgo *core.MonthStats) []string {
	var out []string
	if current.Total.IsPositive() {
		share := current.Category(current.TopCategory).Div(current.Total).Mul(hundred).Round(0)
		out = append(out, fmt.Sprintf("Your top category %s accounted for %s%% of your total spending.", current.TopCategory, share))
	}
	if yearAgo != nil {
		diff := current.Total.Sub(yearAgo.Total)
		if diff.IsNegative() {
			out = append(out, fmt.Sprintf("Great news! You spent %s less than the same month last year.", core.FormatCurrency(diff.Abs())))
		} else {
			out = append(out, fmt.Sprintf("You spent %s more than the same month last year.", core.FormatCurrency(diff)))
		}
	}
	if current.Highest.GreaterThan(current.Total.Mul(singleShare)) {
		out = append(out, fmt.Sprintf("A single expense (%s) was responsible for over 30%% of your monthly total.", current.HighestName))
	}
	return out
}

// MonthlyReport is the content of the monthly insights email.
type MonthlyReport struct {
	Subject    string
	Recipients []string
	Month      int
	Year       int
	Current    core.MonthStats
	Previous   *core.MonthStats
	YearAgo    *core.MonthStats
	VsPrevious *Change
	VsYearAgo  *Change
	// Narrative is HTML produced by the narrator; empty when unavailable.
	Narrative string
	Insights  []string
}

// MonthlyInsights reviews the month that just ended against the month
// before it and the same month last year. It returns ErrSkipped when that
// month has no expenses.
func (a *Analyst) MonthlyInsights(ctx context.Context) (*MonthlyReport, error) {
	year, month := previousMonth(a.now().Year(), int(a.now().Month()))
	doc, err := a.documentFor(ctx, nil, year)
	if err != nil {
		return nil, fmt.Errorf("document for %d: %w", year, err)
	}
	cur, err := a.MonthStats(ctx, doc, year, month)
	if err != nil {
		return nil, err
	}
	if !cur.HasData() || !cur.Total.IsPositive() {
		return nil, fmt.Errorf("%w: no expenses in %s %d", ErrSkipped, core.MonthShort(month), year)
	}
	r := &MonthlyReport{
		Subject: fmt.Sprintf("Monthly Expense Insights: %s %d", core.MonthShort(month), year),
		Month:   month,
		Year:    year,
		Current: cur,
	}
	py, pm := previousMonth(year, month)
	if r.Previous, err = a.optionalStats(ctx, doc, py, pm); err != nil {
		return nil, err
	}
	if r.YearAgo, err = a.optionalStats(ctx, doc, year-1, month); err != nil {
		return nil, err
	}
	if r.Previous != nil {
		r.VsPrevious = Compare(cur.Total, r.Previous.Total)
	}
	if r.YearAgo != nil {
		r.VsYearAgo = Compare(cur.Total, r.YearAgo.Total)
	}
	if r.Recipients, err = rollover.Recipients(ctx, doc, a.layout); err != nil {
		return nil, err
	}
	if len(r.Recipients) == 0 {
		return nil, &core.NotFoundError{What: "email address on dashboard of", Name: doc.Name()}
	}
	r.Narrative = a.narrate(ctx, monthlyPrompt(r))
	if r.Narrative == "" {
		r.Insights = FallbackInsights(cur, r.YearAgo)
	}
	return r, nil
}

// Reminder is the monthly balance notice.
type Reminder struct {
	Subject    string
	Recipients []string
	Label      string // "March 2025"
	AllPaid    bool
	Debtor     string
	Amount     decimal.Decimal
	Headline   string
	Total      decimal.Decimal
	Names      [2]string
	Parts      [2]decimal.Decimal
	// Paid includes transfers and initial fund usage.
	Paid [2]decimal.Decimal
}

// ReminderMonth decides which month of a document for docYear the balance
// reminder reports on at now. ok is false when no reminder is due: the
// current year's document in January, a future document, or a document more
// than a year old. A previous year's document reports December, in January
// only.
func ReminderMonth(now time.Time, docYear int) (month int, ok bool) {
	switch behind := now.Year() - docYear; {
	case behind < 0 || behind > 1:
		return 0, false
	case behind == 1:
		if now.Month() == time.January {
			return 12, true
		}
		return 0, false
	case now.Month() == time.January:
		return 0, false
	default:
		return int(now.Month()) - 1, true
	}
}

// BalanceReminder reports who owes what for the previous month of doc.
func (a *Analyst) BalanceReminder(ctx context.Context, doc sheets.Document) (*Reminder, error) {
	year, err := documentYear(doc)
	if err != nil {
		return nil, err
	}
	month, ok := ReminderMonth(a.now(), year)
	if !ok {
		return nil, fmt.Errorf("%w: no balance reminder due for %s", ErrSkipped, doc.Name())
	}
	d := a.layout.Dashboard
	row, err := doc.GetRange(ctx, sheets.Dashboard, d.FirstMonthRow+month-1, 1, 1, d.Balance1Col)
	if err != nil {
		return nil, fmt.Errorf("read dashboard month: %w", err)
	}
	names, err := doc.GetRange(ctx, sheets.Dashboard, d.NamesRow, d.Party1Col, 1, 2)
	if err != nil {
		return nil, fmt.Errorf("read names: %w", err)
	}
	at := func(col int) decimal.Decimal { return core.CellValue(row[0][col-1]) }

	r := &Reminder{
		Label:   fmt.Sprintf("%s %d", time.Month(month), year),
		Names:   [2]string{names[0][0], names[0][1]},
		Total:   at(d.TotalCol),
		Parts:   [2]decimal.Decimal{at(d.Part1Col), at(d.Part2Col)},
		Paid: [2]decimal.Decimal{
			at(d.Paid1Col).Add(at(d.Party1ToParty2Col)).Add(at(a.layout.DashboardCol(schema.Party1))).Sub(at(d.Party2ToParty1Col)),
			at(d.Paid2Col).Add(at(d.Party2ToParty1Col)).Add(at(a.layout.DashboardCol(schema.Party2))).Sub(at(d.Party1ToParty2Col)),
		},
	}
	r.Subject = "Monthly Property Account for " + r.Label

	if b1 := at(d.Balance1Col); b1.IsPositive() {
		r.Debtor, r.Amount = r.Names[0], b1
	} else {
		r.Debtor, r.Amount = r.Names[1], at(d.Balance2Col)
	}
	if r.Amount.LessThan(allPaidBelow) {
		r.AllPaid = true
		r.Headline = "All Paid"
	} else {
		r.Headline = fmt.Sprintf("%s to pay %s", r.Debtor, core.FormatCurrency(r.Amount.Round(0)))
	}

	if r.Recipients, err = rollover.Recipients(ctx, doc, a.layout); err != nil {
		return nil, err
	}
	if len(r.Recipients) == 0 {
		return nil, &core.NotFoundError{What: "email address on dashboard of", Name: doc.Name()}
	}
	return r, nil
}

func monthlyPrompt(r *MonthlyReport) string {
	var b strings.Builder
	b.WriteString("Analyze these household expenses and provide 3-4 concise, helpful insights in HTML list format (<ul><li>...</li></ul>).\n")
	b.WriteString("Be encouraging and highlight trends. Use <strong> for emphasis.\n\n")
	writeStats(&b, r.Current)
	writeChange(&b, "PREVIOUS MONTH", r.Previous, r.VsPrevious)
	writeChange(&b, "SAME MONTH LAST YEAR", r.YearAgo, r.VsYearAgo)
	return b.String()
}

func analysisPrompt(an *Analysis) string {
	var b strings.Builder
	b.WriteString("You are a household expense analysis agent. Analyze this data and provide 3-4 actionable insights.\n")
	b.WriteString("Be concise, helpful, and use bold text for key numbers. Format as HTML list (<ul><li>...</li></ul>).\n")
	b.WriteString("List the assumptions used for projections (groceries, online purchases, gasoline, misc).\n\n")
	writeStats(&b, an.Current)
	writeChange(&b, "PREVIOUS MONTH", an.Previous, an.VsPrevious)
	writeChange(&b, "SAME MONTH LAST YEAR", an.YearAgo, an.VsYearAgo)

	f := an.Forecast
	fmt.Fprintf(&b, "\nANNUAL FORECAST:\n- YTD Posted: %s\n- Projected Annual Total: %s\n",
		core.FormatCurrency(f.YTDPosted), core.FormatCurrency(f.Annual))
	fmt.Fprintf(&b, "- Assumed monthly non-posted spend: groceries %s, online %s, gasoline %s, misc %s\n",
		core.FormatCurrency(f.Assumptions.Groceries), core.FormatCurrency(f.Assumptions.Online),
		core.FormatCurrency(f.Assumptions.Gasoline), core.FormatCurrency(f.Assumptions.Misc))
	if f.VsLastYear != nil {
		fmt.Fprintf(&b, "- vs Last Year Annual: %s%%\n", f.VsLastYear.Percent)
	}

	b.WriteString("\nEXPENSE ANOMALIES:\n")
	if len(an.Spikes) == 0 {
		b.WriteString("- No significant anomalies detected.\n")
	}
	for _, s := range an.Spikes {
		fmt.Fprintf(&b, "- %s: %s at %s (%s%% vs last year)\n", s.Severity, s.Category, core.FormatCurrency(s.Current), s.Percent)
	}
	b.WriteString("\nProvide insights focusing on: spending trends, areas of concern, and actionable recommendations.")
	return b.String()
}

func writeStats(b *strings.Builder, st core.MonthStats) {
	fmt.Fprintf(b, "THIS MONTH (%s %d):\n- Total Spend: %s\n- Top Spending Category: %s (%s)\n- Largest Single Expense: %s (%s)\n",
		core.MonthShort(st.Month), st.Year, core.FormatCurrency(st.Total),
		st.TopCategory, core.FormatCurrency(st.Category(st.TopCategory)),
		st.HighestName, core.FormatCurrency(st.Highest))
	b.WriteString("\nCATEGORY BREAKDOWN:\n")
	for _, c := range st.ByCategory {
		fmt.Fprintf(b, "- %s: %s\n", c.Name, core.FormatCurrency(c.Amount))
	}
}

func writeChange(b *strings.Builder, label string, base *core.MonthStats, ch *Change) {
	if base == nil {
		return
	}
	fmt.Fprintf(b, "\nCOMPARISON WITH %s:\n- Total: %s\n", label, core.FormatCurrency(base.Total))
	if ch != nil {
		fmt.Fprintf(b, "- Change: %s (%s%%)\n", core.FormatCurrency(ch.Difference), ch.Percent)
	}
}
