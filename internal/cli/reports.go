package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"homepay/internal/analytics"
	"homepay/internal/core"
	"homepay/internal/report"
	"homepay/internal/services"
)

// skipped prints analytics.ErrSkipped instead of failing the command.
func skipped(s *session, err error) error {
	if errors.Is(err, analytics.ErrSkipped) {
		fmt.Fprintln(s.out, err)
		return nil
	}
	return err
}

func newSummaryCommand(s *session) *cobra.Command {
	var (
		csv     bool
		monthly bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Rebuild the summary sheet and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(func(ctx context.Context, h *services.Household) error {
				t, err := h.Summary(ctx)
				if err != nil {
					return err
				}
				if csv {
					return report.WriteSummaryCSV(s.out, t)
				}
				w := s.table()
				for _, row := range t.Matrix() {
					if !monthly {
						row = row[:3]
					}
					fmt.Fprintln(w, strings.Join(row, "\t"))
				}
				return w.Flush()
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&csv, "csv", false, "Write the summary as CSV")
	cmd.Flags().BoolVar(&monthly, "monthly", false, "Include one column per month")
	return cmd
}

func newHistoryCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Rebuild the multi-year spending history",
		Args:  cobra.NoArgs,
		RunE: s.run(func(ctx context.Context, h *services.Household) error {
			t, err := h.History(ctx)
			if err != nil {
				return err
			}
			w := s.table()
			fmt.Fprintln(w, "Year\t"+strings.Join(t.Header(), "\t"))
			for _, r := range t.Rows {
				cells := []string{fmt.Sprint(r.Year), r.Total.StringFixed(2)}
				for _, v := range r.ByType {
					cells = append(cells, v.StringFixed(2))
				}
				cells = append(cells, r.Others.StringFixed(2))
				fmt.Fprintln(w, strings.Join(cells, "\t"))
			}
			return w.Flush()
		}),
	}
}

func newCompareCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "compare",
		Short: "Compare monthly totals with the previous year",
		Args:  cobra.NoArgs,
		RunE: s.run(func(ctx context.Context, h *services.Household) error {
			c, err := h.YearComparison(ctx)
			if err != nil {
				return skipped(s, err)
			}
			w := s.table()
			fmt.Fprintf(w, "Month\t%d\t%d\n", c.Year-1, c.Year)
			for i := range c.Current {
				fmt.Fprintf(w, "%s\t%s\t%s\n", core.MonthShort(i+1), c.Previous[i].StringFixed(2), c.Current[i].StringFixed(2))
			}
			return w.Flush()
		}),
	}
}

func newInsightsCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Review last month and email the insights",
		Args:  cobra.NoArgs,
		RunE: s.run(func(ctx context.Context, h *services.Household) error {
			r, err := h.MonthlyInsights(ctx)
			if err != nil {
				return skipped(s, err)
			}
			fmt.Fprintln(s.out, r.Subject)
			printStats(s, r.Current, r.VsPrevious, r.VsYearAgo)
			printInsights(s, r.Narrative, r.Insights)
			fmt.Fprintf(s.out, "Sent to %s.\n", strings.Join(r.Recipients, ", "))
			return nil
		}),
	}
}

func newRemindCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Email the monthly balance reminder",
		Args:  cobra.NoArgs,
		RunE: s.run(func(ctx context.Context, h *services.Household) error {
			r, err := h.BalanceReminder(ctx)
			if err != nil {
				return skipped(s, err)
			}
			fmt.Fprintln(s.out, r.Subject)
			fmt.Fprintln(s.out, r.Headline)
			w := s.table()
			fmt.Fprintln(w, "Party\tShare\tPaid")
			for i, name := range r.Names {
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, core.FormatCurrency(r.Parts[i]), core.FormatCurrency(r.Paid[i]))
			}
			fmt.Fprintf(w, "Total\t%s\t\n", core.FormatCurrency(r.Total))
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Sent to %s.\n", strings.Join(r.Recipients, ", "))
			return nil
		}),
	}
}

// assumptionFlags binds the non-posted monthly amounts of a forecast.
type assumptionFlags struct {
	groceries, online, gasoline, misc string
}

func (f *assumptionFlags) bind(cmd *cobra.Command) {
	def := analytics.DefaultAssumptions()
	cmd.Flags().StringVar(&f.groceries, "groceries", def.Groceries.String(), "Monthly groceries not posted as expenses")
	cmd.Flags().StringVar(&f.online, "online", def.Online.String(), "Monthly online shopping not posted as expenses")
	cmd.Flags().StringVar(&f.gasoline, "gasoline", def.Gasoline.String(), "Monthly gasoline not posted as expenses")
	cmd.Flags().StringVar(&f.misc, "misc", def.Misc.String(), "Other monthly spending not posted as expenses")
}

func (f *assumptionFlags) assumptions() (analytics.Assumptions, error) {
	var as analytics.Assumptions
	for _, v := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"groceries", f.groceries, &as.Groceries},
		{"online", f.online, &as.Online},
		{"gasoline", f.gasoline, &as.Gasoline},
		{"misc", f.misc, &as.Misc},
	} {
		a, err := core.ParseAmount(v.raw)
		if err != nil || a.IsUnset() {
			return as, &core.ValidationError{Field: v.name, Reason: fmt.Sprintf("invalid amount %q", v.raw)}
		}
		*v.dst = a.Decimal
	}
	return as, nil
}

func newForecastCommand(s *session) *cobra.Command {
	var f assumptionFlags
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Project the year's total spending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			as, err := f.assumptions()
			if err != nil {
				return err
			}
			return s.run(func(ctx context.Context, h *services.Household) error {
				fc, err := h.Forecast(ctx, as)
				if err != nil {
					return err
				}
				printForecast(s, fc)
				return nil
			})(cmd, args)
		},
	}
	f.bind(cmd)
	return cmd
}

func newAnalyzeCommand(s *session) *cobra.Command {
	var f assumptionFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the current month, flag spikes and forecast the year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			as, err := f.assumptions()
			if err != nil {
				return err
			}
			return s.run(func(ctx context.Context, h *services.Household) error {
				an, err := h.Analyze(ctx, as)
				if err != nil {
					return err
				}
				printStats(s, an.Current, an.VsPrevious, an.VsYearAgo)
				for _, sp := range an.Spikes {
					fmt.Fprintf(s.out, "Spike %s: %s (%s)\n", sp.Category, core.FormatCurrency(sp.Current), sp.Severity)
				}
				printForecast(s, an.Forecast)
				printInsights(s, an.Narrative, an.Insights)
				return nil
			})(cmd, args)
		},
	}
	f.bind(cmd)
	return cmd
}

func newReceiptCommand(s *session) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Render the year-end tax receipt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(func(ctx context.Context, h *services.Household) error {
				res, err := h.TaxReceipt(ctx, s.confirmer())
				if err != nil {
					return err
				}
				path := output
				if path == "" && res.URL == "" {
					path = res.Receipt.FileName()
				}
				if path != "" {
					if err := os.WriteFile(path, res.PDF, 0o644); err != nil {
						return fmt.Errorf("write receipt: %w", err)
					}
					fmt.Fprintf(s.out, "Wrote %s.\n", path)
				}
				if res.URL != "" {
					fmt.Fprintf(s.out, "Uploaded %s: %s\n", res.Receipt.Name, res.URL)
				}
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the PDF to this path")
	return cmd
}

func newJournalCommand(s *session) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List the latest operations recorded for this year's document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(func(ctx context.Context, h *services.Household) error {
				store := s.app.Backend.Store
				if store == nil {
					return errors.New("journal needs a SQLite database; set SQLITE_DB_PATH")
				}
				entries, err := store.Recent(ctx, h.Document().Name(), limit)
				if err != nil {
					return err
				}
				w := s.table()
				fmt.Fprintln(w, "WHEN\tOPERATION\tMONTH\tDETAIL\tOUTCOME")
				for _, e := range entries {
					month := ""
					if e.Month > 0 {
						month = core.MonthShort(e.Month)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Operation, month, e.Detail, e.Outcome)
				}
				return w.Flush()
			})(cmd, args)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")
	return cmd
}

func printStats(s *session, st core.MonthStats, vsPrevious, vsYearAgo *analytics.Change) {
	fmt.Fprintf(s.out, "%s %d: %s over %d expenses\n",
		core.MonthShort(st.Month), st.Year, core.FormatCurrency(st.Total), st.ExpenseCount)
	if st.HighestName != "" {
		fmt.Fprintf(s.out, "Highest: %s (%s)\n", st.HighestName, core.FormatCurrency(st.Highest))
	}
	if st.TopCategory != "" {
		fmt.Fprintf(s.out, "Top category: %s\n", st.TopCategory)
	}
	printChange(s, "vs previous month", vsPrevious)
	printChange(s, "vs last year", vsYearAgo)
}

func printChange(s *session, label string, c *analytics.Change) {
	if c == nil {
		return
	}
	fmt.Fprintf(s.out, "%s: %s (%s%%)\n", label, core.FormatCurrency(c.Difference), c.Percent.String())
}

func printForecast(s *session, f analytics.Forecast) {
	w := s.table()
	fmt.Fprintf(w, "Posted so far\t%s\n", core.FormatCurrency(f.YTDPosted))
	fmt.Fprintf(w, "Average month\t%s\n", core.FormatCurrency(f.AvgMonthlyThisYear))
	fmt.Fprintf(w, "Not posted monthly\t%s\n", core.FormatCurrency(f.NonPostedMonthly))
	fmt.Fprintf(w, "Remaining %d months\t%s\n", f.RemainingMonths, core.FormatCurrency(f.ProjectedRemaining))
	fmt.Fprintf(w, "Projected %d\t%s\n", f.Year, core.FormatCurrency(f.Annual))
	if f.VsLastYear != nil {
		fmt.Fprintf(w, "Last year\t%s (%s%%)\n", core.FormatCurrency(f.PreviousYearTotal), f.VsLastYear.Percent.String())
	}
	_ = w.Flush()
}

func printInsights(s *session, narrative string, insights []string) {
	if narrative != "" {
		fmt.Fprintln(s.out, narrative)
		return
	}
	for _, in := range insights {
		fmt.Fprintf(s.out, "- %s\n", in)
	}
}
