package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"homepay/internal/core"
	"homepay/internal/services"
)

func newCleanCommand(s *session) *cobra.Command {
	var from int
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Empty the expense rows of the months after the current one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if from < 0 || from > 12 {
				return &core.ValidationError{Field: core.FieldMonth, Reason: fmt.Sprintf("month %d out of range", from)}
			}
			return s.run(func(ctx context.Context, h *services.Household) error {
				n, err := h.Clean(ctx, from, s.confirmer())
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "Cleaned %d months.\n", n)
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "First month to clean (1-12); defaults to next month")
	return cmd
}

func newCopyCommand(s *session) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy the current month's recurring expenses forward",
		Long: `Copy the current month's recurring expenses forward.

With --mode ot only next month is filled; otherwise every following month.
Months that already hold expenses are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseRecurrenceMode(mode)
			if err != nil {
				return err
			}
			return s.run(func(ctx context.Context, h *services.Household) error {
				res, err := h.CopyMonth(ctx, m)
				if err != nil {
					return err
				}
				fmt.Fprintf(s.out, "Copied %d rows into %s.\n", res.Rows, monthList(res.Copied))
				if len(res.Skipped) > 0 {
					fmt.Fprintf(s.out, "Skipped %s: already filled.\n", monthList(res.Skipped))
				}
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", string(core.CurrentMonthForward), "rm fills every following month, ot only the next one")
	return cmd
}

func newRolloverCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "rollover",
		Short: "Create next year's document and carry recurring expenses into January",
		Args:  cobra.NoArgs,
		RunE: s.run(func(ctx context.Context, h *services.Household) error {
			res, err := h.NewYear(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Created %s with %d recurring expenses.\n", res.Document.Name(), res.Carried)
			if url := res.Document.URL(); url != "" {
				fmt.Fprintln(s.out, url)
			}
			return nil
		}),
	}
}

func monthList(months []int) string {
	if len(months) == 0 {
		return "no months"
	}
	return core.MonthList(months)
}
