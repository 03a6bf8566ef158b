package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"homepay/internal/config"
	"homepay/internal/core"
	"homepay/internal/services"
)

// session holds what commands of one invocation share. The household is
// opened on first use, so help and flag errors never touch a backend.
type session struct {
	in  io.Reader
	out io.Writer
	yes bool

	prompt    *Prompt
	app       *App
	household *services.Household
}

func (s *session) open(ctx context.Context) (*services.Household, error) {
	if s.household != nil {
		return s.household, nil
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg.LogLevel)
	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.app = app
	h, err := app.Open(ctx, time.Now().Year())
	if err != nil {
		return nil, err
	}
	s.household = h
	return h, nil
}

func (s *session) close() error {
	if s.app == nil {
		return nil
	}
	err := s.app.Close()
	s.app, s.household = nil, nil
	return err
}

// run opens the household for fn and releases the backend afterwards.
func (s *session) run(fn func(ctx context.Context, h *services.Household) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) (err error) {
		ctx := cmd.Context()
		h, err := s.open(ctx)
		if err != nil {
			return errors.Join(err, s.close())
		}
		defer func() { err = errors.Join(err, s.close()) }()
		return fn(ctx, h)
	}
}

// confirmer answers yes to everything with --yes, else asks on the terminal.
func (s *session) confirmer() core.Confirmer {
	if s.yes {
		return core.AlwaysYes
	}
	if s.prompt == nil {
		s.prompt = NewPrompt(s.in, s.out)
	}
	return s.prompt
}

func (s *session) table() *tabwriter.Writer {
	return tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
}

// NewRootCommand builds the homepay command tree. Questions are read from in;
// results are written to out and logs to stderr.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	s := &session{in: in, out: out}
	root := &cobra.Command{
		Use:   "homepay",
		Short: "Track shared household expenses in a yearly spreadsheet",
		Long: `homepay keeps the yearly household payments document of two parties:
recurring and one-time expenses, monthly settlements between the parties,
the year-end rollover and the reports built from it.`,
		SilenceUsage: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.PersistentFlags().BoolVarP(&s.yes, "yes", "y", false, "Accept every confirmation without asking")

	root.AddCommand(
		newExpenseCommand(s),
		newSettleCommand(s),
		newRebalanceCommand(s),
		newCleanCommand(s),
		newCopyCommand(s),
		newRolloverCommand(s),
		newSummaryCommand(s),
		newHistoryCommand(s),
		newCompareCommand(s),
		newInsightsCommand(s),
		newRemindCommand(s),
		newForecastCommand(s),
		newAnalyzeCommand(s),
		newReceiptCommand(s),
		newJournalCommand(s),
		newServeCommand(s),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	LoadEnvFile()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return ExitCode(NewRootCommand(os.Stdin, os.Stdout).ExecuteContext(ctx))
}

// Exit codes by error kind.
const (
	ExitOK = iota
	ExitFailure
	ExitInvalid
	ExitNotFound
	ExitDeclined
	ExitNoRoom
)

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	var (
		ve *core.ValidationError
		nf *core.NotFoundError
		ae *core.AlreadyExistsError
		ce *core.CapacityError
		fe *core.InsufficientFundsError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &ve):
		return ExitInvalid
	case errors.As(err, &nf):
		return ExitNotFound
	case errors.As(err, &ae), errors.Is(err, core.ErrDeclined):
		return ExitDeclined
	case errors.As(err, &ce), errors.As(err, &fe):
		return ExitNoRoom
	default:
		return ExitFailure
	}
}

func monthLabel(m int) string {
	if m < 1 || m > 12 {
		return fmt.Sprintf("month %d", m)
	}
	return time.Month(m).String()
}
