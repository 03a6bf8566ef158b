package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"homepay/internal/core"
	"homepay/internal/expenses"
	"homepay/internal/services"
)

func newExpenseCommand(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Add, delete and list expenses",
	}
	cmd.AddCommand(
		newExpenseAddCommand(s),
		newExpenseDeleteCommand(s),
		newTypesCommand(s),
		newPairsCommand(s),
	)
	return cmd
}

type expenseFlags struct {
	description string
	typ         string
	amount      string
	mode        string
	period      string
	payer       string
	pap         bool
	noSplit     bool
	paid        bool
	dryRun      bool
}

func (f expenseFlags) expense() (core.Expense, error) {
	amount, err := core.ParseAmount(f.amount)
	if err != nil {
		return core.Expense{}, err
	}
	mode, err := core.ParseRecurrenceMode(f.mode)
	if err != nil {
		return core.Expense{}, err
	}
	payer, err := core.ParsePayer(f.payer)
	if err != nil {
		return core.Expense{}, err
	}
	exp := core.Expense{
		Description: f.description,
		Type:        f.typ,
		Amount:      amount,
		Mode:        mode,
		PAP:         f.pap,
		Period:      f.period,
		Split:       !f.noSplit,
		Paid:        f.paid,
		Payer:       payer,
	}
	return exp, exp.Validate()
}

func newExpenseAddCommand(s *session) *cobra.Command {
	var f expenseFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or update an expense in every month of its range",
		Long: `Create or update an expense in every month of its range.

Modes: rm (current month to December), ry (January to December),
ot (current month only). Updating an existing expense asks first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := f.expense()
			if err != nil {
				return err
			}
			return s.run(func(ctx context.Context, h *services.Household) error {
				if f.dryRun {
					plan, err := h.PlanExpense(ctx, exp)
					if err != nil {
						return err
					}
					printPlan(s.out, plan)
					return nil
				}
				results, err := h.AddExpense(ctx, exp, s.confirmer())
				printResults(s, results)
				return err
			})(cmd, args)
		},
	}
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "Expense description")
	cmd.Flags().StringVarP(&f.typ, "type", "t", "", "Expense type")
	cmd.Flags().StringVarP(&f.amount, "amount", "a", "", "Amount; empty leaves the amount cell alone")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", string(core.CurrentMonthForward), "Month range: rm, ry or ot")
	cmd.Flags().StringVar(&f.period, "period", "", "Payment period note")
	cmd.Flags().StringVar(&f.payer, "payer", "", "Party that paid: 1 or 2")
	cmd.Flags().BoolVar(&f.pap, "pap", false, "Paid by pre-authorized payment")
	cmd.Flags().BoolVar(&f.noSplit, "no-split", false, "Do not split the amount between the parties")
	cmd.Flags().BoolVar(&f.paid, "paid", false, "Mark the expense as paid")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Show the rows that would be written")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newExpenseDeleteCommand(s *session) *cobra.Command {
	var (
		description, mode string
		dryRun            bool
	)
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Blank an expense in every month of its range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseRecurrenceMode(mode)
			if err != nil {
				return err
			}
			return s.run(func(ctx context.Context, h *services.Household) error {
				if dryRun {
					plan, err := h.PlanDelete(ctx, description, m)
					if err != nil {
						return err
					}
					printPlan(s.out, plan)
					return nil
				}
				results, err := h.DeleteExpense(ctx, description, m, s.confirmer())
				printResults(s, results)
				return err
			})(cmd, args)
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Expense description")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(core.CurrentMonthForward), "Month range: rm, ry or ot")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the rows that would be blanked")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newTypesCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the expense types in use",
		Args:  cobra.NoArgs,
		RunE: s.run(func(ctx context.Context, h *services.Household) error {
			types, err := h.Types(ctx)
			if err != nil {
				return err
			}
			for _, t := range types {
				fmt.Fprintln(s.out, t)
			}
			return nil
		}),
	}
}

func newPairsCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "pairs",
		Short: "List known type and description pairs",
		Args:  cobra.NoArgs,
		RunE: s.run(func(ctx context.Context, h *services.Household) error {
			pairs, err := h.Pairs(ctx)
			if err != nil {
				return err
			}
			w := s.table()
			fmt.Fprintln(w, "TYPE\tDESCRIPTION")
			for _, p := range pairs {
				fmt.Fprintf(w, "%s\t%s\n", p.Type, p.Description)
			}
			return w.Flush()
		}),
	}
}

func printPlan(out io.Writer, p *expenses.Plan) {
	fmt.Fprintf(out, "%s:\n", p.Expense.Description)
	for _, m := range p.Months {
		if m.Row == 0 {
			fmt.Fprintf(out, "  %-10s %s (no free row)\n", monthLabel(m.Month), m.Action)
			continue
		}
		fmt.Fprintf(out, "  %-10s %s row %d\n", monthLabel(m.Month), m.Action, m.Row)
	}
	if p.RequiresConfirmation {
		fmt.Fprintf(out, "Will ask: %s\n", p.Question)
	}
}

func printResults(s *session, results []expenses.MonthResult) {
	if len(results) == 0 {
		return
	}
	w := s.table()
	fmt.Fprintln(w, "MONTH\tROW\tACTION\tERROR")
	for _, r := range results {
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", monthLabel(r.Month), r.Row, r.Action, msg)
	}
	_ = w.Flush()
}
