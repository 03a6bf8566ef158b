package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"homepay/internal/core"
	"homepay/internal/services"
	"homepay/internal/settlement"
)

func newSettleCommand(s *session) *cobra.Command {
	var (
		mode, amount string
		current      bool
		month        int
		dryRun       bool
	)
	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Settle the balance between the parties for a month",
		Long: `Settle the balance between the parties for a month.

By default the previous month is settled; --current targets the current one.
Modes: f (fully paid), c (carry the debt to next month), p (partial amount),
s (draw on the debtor's initial fund).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := settlement.ParseMode(mode)
			if err != nil {
				return err
			}
			amt, err := core.ParseAmount(amount)
			if err != nil {
				return err
			}
			if month < 0 || month > 12 {
				return &core.ValidationError{Field: core.FieldMonth, Reason: fmt.Sprintf("month %d out of range", month)}
			}
			req := services.SettleRequest{Mode: m, Amount: amt, Current: current, Month: month}
			return s.run(func(ctx context.Context, h *services.Household) error {
				if dryRun {
					d, err := h.PlanSettlement(ctx, req)
					if err != nil {
						return err
					}
					printDecision(s, d)
					return nil
				}
				res, err := h.Settle(ctx, req, s.confirmer())
				if err != nil {
					return err
				}
				printSettlement(s, res)
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Settlement mode: f, c, p or s")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount for the p and s modes")
	cmd.Flags().BoolVar(&current, "current", false, "Settle the current month instead of the previous one")
	cmd.Flags().IntVar(&month, "month", 0, "Settle this month (1-12) instead")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be written without asking or writing")
	_ = cmd.MarkFlagRequired("mode")
	return cmd
}

func newRebalanceCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "rebalance",
		Short: "Carry every unsettled balance of the year forward",
		Long: `Carry every unsettled balance of the year forward.

Each month before the current one is carried into the next month's
carryover cell. The source month keeps showing its debt, so running
rebalance twice carries it twice.`,
		Args: cobra.NoArgs,
		RunE: s.run(func(ctx context.Context, h *services.Household) error {
			results, err := h.Rebalance(ctx)
			for _, r := range results {
				printSettlement(s, r)
			}
			return err
		}),
	}
}

func printDecision(s *session, d settlement.Decision) {
	fmt.Fprintf(s.out, "%s: %s\n", monthLabel(d.Evaluation.Month), d.State)
	if d.Message != "" {
		fmt.Fprintln(s.out, d.Message)
	}
	for _, c := range d.Confirmations {
		fmt.Fprintf(s.out, "Will ask: %s\n", c.Question)
	}
	if d.Mutation != nil {
		fmt.Fprintf(s.out, "Would write %s of %s for %s in %s\n",
			d.Mutation.Kind, core.FormatCurrency(d.Mutation.Amount),
			d.Evaluation.Name(d.Mutation.Party), monthLabel(d.Mutation.Month))
	}
}

func printSettlement(s *session, r settlement.Result) {
	switch {
	case r.Mutation != nil && r.State == settlement.Applied:
		fmt.Fprintf(s.out, "%s: %s %s written to %s\n",
			monthLabel(r.Month), r.Mutation.Kind, core.FormatCurrency(r.Mutation.Amount), monthLabel(r.Mutation.Month))
	case r.Message != "":
		fmt.Fprintf(s.out, "%s: %s\n", monthLabel(r.Month), r.Message)
	default:
		fmt.Fprintf(s.out, "%s: %s\n", monthLabel(r.Month), r.State)
	}
}
