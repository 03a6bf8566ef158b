package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"homepay/internal/core"
	"homepay/internal/expenses"
	"homepay/internal/sheets"
)

var hundred = decimal.NewFromInt(100)

// StatsFromRows computes the spending profile of a month's rows. Only
// positive amounts count; rows without a type are "Uncategorized".
func StatsFromRows(year, month int, rows []core.ExpenseRow) core.MonthStats {
	st := core.MonthStats{Year: year, Month: month, HighestName: "None", TopCategory: "None"}
	totals := map[string]decimal.Decimal{}
	var order []string
	for _, r := range rows {
		amount, ok := core.ParseCell(r.Amount)
		if !ok || !amount.IsPositive() {
			continue
		}
		cat := r.Type
		if cat == "" {
			cat = uncategorized
		}
		if _, seen := totals[cat]; !seen {
			order = append(order, cat)
		}
		totals[cat] = totals[cat].Add(amount)
		st.Total = st.Total.Add(amount)
		st.ExpenseCount++
		if amount.GreaterThan(st.Highest) {
			st.Highest, st.HighestName = amount, r.Description
		}
	}
	for _, c := range order {
		st.ByCategory = append(st.ByCategory, core.CategoryAmount{Name: c, Amount: totals[c]})
	}
	core.SortCategories(st.ByCategory)
	if len(st.ByCategory) > 0 {
		st.TopCategory = st.ByCategory[0].Name
	}
	return st
}

// MonthStats reads month of g and profiles it.
func (a *Analyst) MonthStats(ctx context.Context, g sheets.Grid, year, month int) (core.MonthStats, error) {
	rows, err := expenses.NewStore(g, a.layout).Rows(ctx, month)
	if err != nil {
		return core.MonthStats{}, err
	}
	return StatsFromRows(year, month, rows), nil
}

// optionalStats profiles year/month when that year's document exists.
func (a *Analyst) optionalStats(ctx context.Context, cur sheets.Document, year, month int) (*core.MonthStats, error) {
	doc, err := a.optionalDocument(ctx, cur, year)
	if err != nil || doc == nil {
		return nil, err
	}
	st, err := a.MonthStats(ctx, doc, year, month)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Change is the difference between two totals.
type Change struct {
	Difference decimal.Decimal
	// Percent is rounded to one decimal.
	Percent decimal.Decimal
}

// Compare returns the change from base to current, or nil when base is
// not positive.
func Compare(current, base decimal.Decimal) *Change {
	if !base.IsPositive() {
		return nil
	}
	diff := current.Sub(base)
	return &Change{Difference: diff, Percent: diff.Div(base).Mul(hundred).Round(1)}
}

// Severity classifies a category spike.
type Severity string

const (
	SeverityHigh        Severity = "HIGH"
	SeverityAboveNormal Severity = "ABOVE_NORMAL"
	SeverityNew         Severity = "NEW_CATEGORY"
)

var (
	highSpike   = decimal.NewFromInt(50)
	aboveNormal = decimal.NewFromInt(30)
	newCategory = decimal.NewFromInt(500)
	singleShare = decimal.NewFromFloat(0.3)
)

// Spike is a category that grew notably against the same month last year.
type Spike struct {
	Category string
	Current  decimal.Decimal
	YearAgo  decimal.Decimal
	// Percent is zero for new categories.
	Percent  decimal.Decimal
	Severity Severity
}

// Spikes flags categories over 50% (high) or 30% (above normal) against
// yearAgo, and new categories over 500. Without yearAgo nothing is flagged.
func Spikes(current core.MonthStats, yearAgo *core.MonthStats) []Spike {
	if yearAgo == nil {
		return nil
	}
	var out []Spike
	for _, c := range current.ByCategory {
		base := yearAgo.Category(c.Name)
		if base.IsPositive() {
			pct := c.Amount.Sub(base).Div(base).Mul(hundred)
			s := Spike{Category: c.Name, Current: c.Amount, YearAgo: base, Percent: pct.Round(1)}
			switch {
			case pct.GreaterThan(highSpike):
				s.Severity = SeverityHigh
			case pct.GreaterThan(aboveNormal):
				s.Severity = SeverityAboveNormal
			default:
				continue
			}
			out = append(out, s)
			continue
		}
		if c.Amount.GreaterThan(newCategory) {
			out = append(out, Spike{Category: c.Name, Current: c.Amount, Severity: SeverityNew})
		}
	}
	return out
}

// Assumptions are monthly amounts that never show up as posted expenses.
type Assumptions struct {
	Groceries decimal.Decimal
	Online    decimal.Decimal
	Gasoline  decimal.Decimal
	Misc      decimal.Decimal
}

func DefaultAssumptions() Assumptions {
	return Assumptions{
		Groceries: decimal.NewFromInt(800),
		Online:    decimal.NewFromInt(800),
		Gasoline:  decimal.NewFromInt(400),
		Misc:      decimal.NewFromInt(1000),
	}
}

// Monthly is the sum of all assumptions.
func (as Assumptions) Monthly() decimal.Decimal {
	return as.Groceries.Add(as.Online).Add(as.Gasoline).Add(as.Misc)
}

// Forecast projects the year's spending.
type Forecast struct {
	Year               int
	YTDPosted          decimal.Decimal
	MonthsCompleted    int
	RemainingMonths    int
	AvgMonthlyThisYear decimal.Decimal
	Assumptions        Assumptions
	NonPostedMonthly   decimal.Decimal
	ProjectedRemaining decimal.Decimal
	Annual             decimal.Decimal
	PreviousYearTotal  decimal.Decimal
	// VsLastYear is nil without a previous year's document.
	VsLastYear *Change
}

// BuildForecast projects the annual total from the current year's monthly
// totals and the previous year's, when known. month is 1-12.
func BuildForecast(year, month int, current [12]decimal.Decimal, previous *[12]decimal.Decimal, as Assumptions) Forecast {
	idx := month - 1
	f := Forecast{
		Year:             year,
		MonthsCompleted:  month,
		RemainingMonths:  11 - idx,
		Assumptions:      as,
		NonPostedMonthly: as.Monthly(),
	}
	for i := 0; i <= idx; i++ {
		f.YTDPosted = f.YTDPosted.Add(current[i])
	}
	prevAvg := decimal.Zero
	if previous != nil {
		for _, v := range previous {
			f.PreviousYearTotal = f.PreviousYearTotal.Add(v)
		}
		prevAvg = f.PreviousYearTotal.Div(decimal.NewFromInt(12))
	}
	if idx > 0 {
		f.AvgMonthlyThisYear = f.YTDPosted.Div(decimal.NewFromInt(int64(month)))
	}
	projected := f.AvgMonthlyThisYear
	if !projected.IsPositive() {
		projected = prevAvg
	}
	f.ProjectedRemaining = decimal.NewFromInt(int64(f.RemainingMonths)).Mul(projected.Add(f.NonPostedMonthly)).Round(2)
	f.AvgMonthlyThisYear = f.AvgMonthlyThisYear.Round(2)
	f.Annual = f.YTDPosted.Add(f.ProjectedRemaining)
	f.VsLastYear = Compare(f.Annual, f.PreviousYearTotal)
	return f
}

// Forecast projects the current year's total from doc's dashboard and the
// previous year's document.
func (a *Analyst) Forecast(ctx context.Context, doc sheets.Document, as Assumptions) (Forecast, error) {
	now := a.now()
	cur, err := a.documentFor(ctx, doc, now.Year())
	if err != nil {
		return Forecast{}, fmt.Errorf("document for %d: %w", now.Year(), err)
	}
	current, err := a.monthlyTotals(ctx, cur)
	if err != nil {
		return Forecast{}, err
	}
	var previous *[12]decimal.Decimal
	prev, err := a.optionalDocument(ctx, doc, now.Year()-1)
	if err != nil {
		return Forecast{}, err
	}
	if prev != nil {
		p, err := a.monthlyTotals(ctx, prev)
		if err != nil {
			return Forecast{}, err
		}
		previous = &p
	}
	return BuildForecast(now.Year(), int(now.Month()), current, previous, as), nil
}

// Analysis is the month-to-date review of the current month.
type Analysis struct {
	At         time.Time
	Current    core.MonthStats
	Previous   *core.MonthStats
	YearAgo    *core.MonthStats
	VsPrevious *Change
	VsYearAgo  *Change
	Forecast   Forecast
	Spikes     []Spike
	Narrative  string
	Insights   []string
}

// Analyze compares the current month with the previous month and the same
// month last year, forecasts the year and flags spikes.
func (a *Analyst) Analyze(ctx context.Context, doc sheets.Document, as Assumptions) (*Analysis, error) {
	now := a.now()
	year, month := now.Year(), int(now.Month())
	cur, err := a.documentFor(ctx, doc, year)
	if err != nil {
		return nil, fmt.Errorf("document for %d: %w", year, err)
	}
	an := &Analysis{At: now}
	if an.Current, err = a.MonthStats(ctx, cur, year, month); err != nil {
		return nil, err
	}
	py, pm := previousMonth(year, month)
	if an.Previous, err = a.optionalStats(ctx, cur, py, pm); err != nil {
		return nil, err
	}
	if an.YearAgo, err = a.optionalStats(ctx, cur, year-1, month); err != nil {
		return nil, err
	}
	if an.Previous != nil {
		an.VsPrevious = Compare(an.Current.Total, an.Previous.Total)
	}
	if an.YearAgo != nil {
		an.VsYearAgo = Compare(an.Current.Total, an.YearAgo.Total)
	}
	if an.Forecast, err = a.Forecast(ctx, cur, as); err != nil {
		return nil, err
	}
	an.Spikes = Spikes(an.Current, an.YearAgo)
	an.Narrative = a.narrate(ctx, analysisPrompt(an))
	an.Insights = FallbackInsights(an.Current, an.YearAgo)
	return an, nil
}

func previousMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}
