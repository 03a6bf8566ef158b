// Package services orchestrates the household engines for the command line,
// the HTTP API and the scheduler: it resolves the month a call targets,
// journals applied mutations and sends the resulting emails.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homepay/internal/analytics"
	"homepay/internal/core"
	"homepay/internal/expenses"
	"homepay/internal/log"
	"homepay/internal/rollover"
	"homepay/internal/schema"
	"homepay/internal/settlement"
	"homepay/internal/sheets"
	"homepay/internal/storage"
)

// Journal records applied mutations. *storage.SQLiteRepository implements it.
type Journal interface {
	Record(ctx context.Context, e storage.JournalEntry) (string, error)
}

// Deps are the collaborators of a Household. Layout, Document and Locator
// are required.
type Deps struct {
	Layout   *schema.Layout
	Document sheets.Document
	Locator  sheets.Locator
	// Uploader receives generated receipts; nil keeps them local only.
	Uploader sheets.Uploader
	Journal  Journal
	Notifier *Notifier
	Narrator analytics.Narrator
	Now      func() time.Time
	Logger   *log.Logger
}

// Household runs every operation against one yearly document.
type Household struct {
	layout   *schema.Layout
	doc      sheets.Document
	loc      sheets.Locator
	uploader sheets.Uploader
	journal  Journal
	notifier *Notifier
	now      func() time.Time
	logger   *log.Logger

	expenses   *expenses.Engine
	settlement *settlement.Engine
	rollover   *rollover.Engine
	analyst    *analytics.Analyst
}

func NewHousehold(d Deps) (*Household, error) {
	if d.Layout == nil || d.Document == nil || d.Locator == nil {
		return nil, errors.New("household needs a layout, a document and a locator")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = log.New(log.DefaultConfig())
	}
	opts := []analytics.Option{analytics.WithClock(d.Now)}
	if d.Narrator != nil {
		opts = append(opts, analytics.WithNarrator(d.Narrator))
	}
	return &Household{
		layout:     d.Layout,
		doc:        d.Document,
		loc:        d.Locator,
		uploader:   d.Uploader,
		journal:    d.Journal,
		notifier:   d.Notifier,
		now:        d.Now,
		logger:     d.Logger.WithComponent(log.ComponentApp),
		expenses:   expenses.New(d.Document, d.Layout, expenses.WithClock(d.Now)),
		settlement: settlement.New(d.Document, d.Layout),
		rollover:   rollover.New(d.Layout, rollover.WithClock(d.Now)),
		analyst:    analytics.New(d.Layout, d.Locator, opts...),
	}, nil
}

// Document is the yearly document the household works on.
func (h *Household) Document() sheets.Document { return h.doc }

// Layout is the coordinate registry in use.
func (h *Household) Layout() *schema.Layout { return h.layout }

func (h *Household) year() int {
	y, err := sheets.DocumentYear(h.doc.Name())
	if err != nil {
		return 0
	}
	return y
}

// record journals an applied mutation. Journal failures are logged only.
func (h *Household) record(ctx context.Context, op string, month int, detail string, err error) {
	if h.journal == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = log.ErrorType(err) + ": " + err.Error()
	}
	_, jerr := h.journal.Record(ctx, storage.JournalEntry{
		Document:  h.doc.Name(),
		Operation: op,
		Month:     month,
		Detail:    detail,
		Outcome:   outcome,
		CreatedAt: h.now().UTC(),
	})
	if jerr != nil {
		h.logger.WarnContext(ctx, "Failed to journal operation", log.FieldOperation, op, log.FieldError, jerr)
	}
}

func (h *Household) Types(ctx context.Context) ([]string, error) { return h.expenses.Types(ctx) }

func (h *Household) Pairs(ctx context.Context) ([]expenses.Pair, error) {
	return h.expenses.Pairs(ctx)
}

// PlanExpense returns what AddExpense would do without writing.
func (h *Household) PlanExpense(ctx context.Context, exp core.Expense) (*expenses.Plan, error) {
	return h.expenses.Plan(ctx, exp)
}

// AddExpense creates or updates exp in every month of its mode.
func (h *Household) AddExpense(ctx context.Context, exp core.Expense, confirm core.Confirmer) ([]expenses.MonthResult, error) {
	results, err := h.expenses.Upsert(ctx, exp, confirm)
	h.journalMonths(ctx, log.OpUpsert, exp.Description, results, err)
	log.LogOperation(ctx, h.logger, log.OpUpsert,
		log.NewFields().WithExpense(exp.Description, exp.Amount.Cell(), string(exp.Mode)), err)
	return results, err
}

// PlanDelete returns the rows DeleteExpense would blank.
func (h *Household) PlanDelete(ctx context.Context, description string, mode core.RecurrenceMode) (*expenses.Plan, error) {
	return h.expenses.PlanDelete(ctx, description, mode)
}

// DeleteExpense blanks description in the months of mode after confirmation.
func (h *Household) DeleteExpense(ctx context.Context, description string, mode core.RecurrenceMode, confirm core.Confirmer) ([]expenses.MonthResult, error) {
	results, err := h.expenses.Delete(ctx, description, mode, confirm)
	h.journalMonths(ctx, log.OpDelete, description, results, err)
	log.LogOperation(ctx, h.logger, log.OpDelete, log.NewFields().WithExpense(description, "", string(mode)), err)
	return results, err
}

func (h *Household) journalMonths(ctx context.Context, op, detail string, results []expenses.MonthResult, err error) {
	if len(results) == 0 {
		if err != nil && !errors.Is(err, core.ErrDeclined) {
			h.record(ctx, op, 0, detail, err)
		}
		return
	}
	for _, r := range results {
		h.record(ctx, op, r.Month, fmt.Sprintf("%s (row %d, %s)", detail, r.Row, r.Action), r.Err)
	}
}

// SettleRequest selects the month and strategy of a settlement.
type SettleRequest struct {
	Mode   settlement.Mode
	Amount core.Amount
	// Current targets the current month instead of the previous one.
	Current bool
	// Month, when set, overrides the resolved month.
	Month int
}

func (h *Household) settleMonth(ctx context.Context, req SettleRequest) (int, error) {
	if req.Mode == settlement.PartialAmount && req.Amount.IsUnset() {
		return 0, &core.ValidationError{Field: core.FieldAmount, Reason: "missing amount"}
	}
	now := h.now()
	year := h.year()
	if req.Month == 0 {
		p1, p2, err := h.settlement.Funds(ctx)
		if err != nil {
			return 0, err
		}
		funded := !p1.IsZero() || !p2.IsZero()
		if err := settlement.CheckAvailable(now, year, req.Mode, req.Current, funded); err != nil {
			return 0, err
		}
	}
	return settlement.ResolveMonth(now, year, req.Current, req.Month), nil
}

func (req SettleRequest) request() settlement.Request {
	r := settlement.Request{Mode: req.Mode}
	if !req.Amount.IsUnset() {
		r.Amount = req.Amount.Decimal
	}
	return r
}

// PlanSettlement decides a settlement without writing.
func (h *Household) PlanSettlement(ctx context.Context, req SettleRequest) (settlement.Decision, error) {
	month, err := h.settleMonth(ctx, req)
	if err != nil {
		return settlement.Decision{}, err
	}
	return h.settlement.Plan(ctx, month, req.request())
}

// Settle runs a settlement through its confirmations.
func (h *Household) Settle(ctx context.Context, req SettleRequest, confirm core.Confirmer) (settlement.Result, error) {
	month, err := h.settleMonth(ctx, req)
	if err != nil {
		log.LogOperation(ctx, h.logger, log.OpSettle, log.NewFields().WithMonth(h.doc.Name(), req.Month), err)
		return settlement.Result{}, err
	}
	res, err := h.settlement.Settle(ctx, month, req.request(), confirm)
	if err == nil && res.State == settlement.Applied {
		h.record(ctx, log.OpSettle, month, fmt.Sprintf("%s %s", req.Mode, res.Mutation.Amount.StringFixed(2)), nil)
	} else if err != nil {
		h.record(ctx, log.OpSettle, month, req.Mode.String(), err)
	}
	fields := log.NewFields().WithMonth(h.doc.Name(), month)
	fields[log.FieldMode] = req.Mode.String()
	log.LogOperation(ctx, h.logger, log.OpSettle, fields, err)
	return res, err
}

// Rebalance carries over every month before the current one. A past-year
// document is rebalanced through November.
func (h *Household) Rebalance(ctx context.Context) ([]settlement.Result, error) {
	through := int(h.now().Month())
	if y := h.year(); y > 0 && y < h.now().Year() {
		through = 12
	}
	results, err := h.settlement.Rebalance(ctx, through)
	for _, r := range results {
		if r.State == settlement.Applied {
			h.record(ctx, log.OpRebalance, r.Month, r.Mutation.Amount.StringFixed(2), nil)
		}
	}
	log.LogOperation(ctx, h.logger, log.OpRebalance, log.NewFields().WithMonth(h.doc.Name(), through), err)
	return results, err
}

// Clean empties months from..12 after confirmation; from 0 cleans the
// months after the current one.
func (h *Household) Clean(ctx context.Context, from int, confirm core.Confirmer) (int, error) {
	start := from
	if start == 0 {
		if h.now().Month() == time.December {
			return 0, nil
		}
		start = int(h.now().Month()) + 1
	}
	ok, err := confirm.Confirm(ctx, rollover.CleanQuestion(start))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, core.ErrDeclined
	}
	n, err := h.rollover.Clean(ctx, h.doc, start)
	h.record(ctx, log.OpClean, start, fmt.Sprintf("%d months", n), err)
	log.LogOperation(ctx, h.logger, log.OpClean, log.NewFields().WithMonth(h.doc.Name(), start), err)
	return n, err
}

// CopyMonth copies the current month's recurring rows forward.
func (h *Household) CopyMonth(ctx context.Context, mode core.RecurrenceMode) (rollover.CopyResult, error) {
	res, err := h.rollover.CopyMonth(ctx, h.doc, mode)
	for _, m := range res.Copied {
		h.record(ctx, log.OpCopy, m, string(mode), nil)
	}
	log.LogOperation(ctx, h.logger, log.OpCopy, log.NewFields().WithMonth(h.doc.Name(), int(h.now().Month())), err)
	return res, err
}

// NewYear creates next year's document and tells both parties.
func (h *Household) NewYear(ctx context.Context) (*rollover.NewYearResult, error) {
	res, err := h.rollover.NewYear(ctx, h.doc, h.loc)
	log.LogOperation(ctx, h.logger, log.OpRollover, log.NewFields().WithMonth(h.doc.Name(), 12), err)
	if err != nil {
		return nil, err
	}
	h.record(ctx, log.OpRollover, 0, res.Document.Name(), nil)
	if h.notifier != nil {
		if err := h.notifier.FileReady(ctx, kindNewYear, res.Document.Name(), res.Document.URL(),
			fmt.Sprintf("%d recurring expenses were carried into January.", res.Carried), res.Recipients); err != nil {
			h.logger.WarnContext(ctx, "New year notice not sent", log.FieldDocument, res.Document.Name(), log.FieldError, err)
		}
	}
	return res, nil
}

// Summary rebuilds the summary sheet.
func (h *Household) Summary(ctx context.Context) (*analytics.SummaryTable, error) {
	t, err := h.analyst.Summary(ctx, h.doc)
	log.LogOperation(ctx, h.logger, log.OpSummary, log.NewFields().WithMonth(h.doc.Name(), 0), err)
	return t, err
}

// History writes the multi-year history below the summary.
func (h *Household) History(ctx context.Context) (*analytics.HistoryTable, error) {
	t, err := h.analyst.History(ctx, h.doc)
	log.LogOperation(ctx, h.logger, log.OpHistory, log.NewFields().WithMonth(h.doc.Name(), 0), err)
	return t, err
}

// YearComparison writes this year's monthly totals next to last year's.
func (h *Household) YearComparison(ctx context.Context) (*analytics.Comparison, error) {
	return h.analyst.YearComparison(ctx, h.doc)
}

func (h *Household) Forecast(ctx context.Context, as analytics.Assumptions) (analytics.Forecast, error) {
	return h.analyst.Forecast(ctx, h.doc, as)
}

// Analyze reviews the current month to date.
func (h *Household) Analyze(ctx context.Context, as analytics.Assumptions) (*analytics.Analysis, error) {
	return h.analyst.Analyze(ctx, h.doc, as)
}
