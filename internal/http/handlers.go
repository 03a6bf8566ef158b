package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"homepay/internal/analytics"
	"homepay/internal/expenses"
	"homepay/internal/log"
	"homepay/internal/report"
	"homepay/internal/settlement"
)

type (
	monthResultView struct {
		Month  int    `json:"month"`
		Row    int    `json:"row"`
		Action string `json:"action"`
		Error  string `json:"error,omitempty"`
	}

	mutationView struct {
		Kind   string          `json:"kind"`
		Month  int             `json:"month"`
		Party  int             `json:"party"`
		Amount decimal.Decimal `json:"amount"`
	}

	settlementView struct {
		State    string        `json:"state"`
		Month    int           `json:"month"`
		Message  string        `json:"message,omitempty"`
		Mutation *mutationView `json:"mutation,omitempty"`
		Row      int           `json:"row,omitempty"`
		Col      int           `json:"col,omitempty"`
	}

	summaryRowView struct {
		Type         string              `json:"type"`
		Descriptions string              `json:"descriptions"`
		Total        decimal.Decimal     `json:"total"`
		Monthly      [12]decimal.Decimal `json:"monthly"`
	}

	summaryView struct {
		Year    int              `json:"year"`
		Through int              `json:"through"`
		Rows    []summaryRowView `json:"rows"`
		Totals  summaryRowView   `json:"totals"`
	}

	changeView struct {
		Difference decimal.Decimal `json:"difference"`
		Percent    decimal.Decimal `json:"percent"`
	}

	forecastView struct {
		Year               int             `json:"year"`
		YTDPosted          decimal.Decimal `json:"ytd_posted"`
		MonthsCompleted    int             `json:"months_completed"`
		RemainingMonths    int             `json:"remaining_months"`
		AvgMonthlyThisYear decimal.Decimal `json:"avg_monthly_this_year"`
		NonPostedMonthly   decimal.Decimal `json:"non_posted_monthly"`
		ProjectedRemaining decimal.Decimal `json:"projected_remaining"`
		Annual             decimal.Decimal `json:"annual"`
		PreviousYearTotal  decimal.Decimal `json:"previous_year_total"`
		VsLastYear         *changeView     `json:"vs_last_year,omitempty"`
	}
)

func monthResults(results []expenses.MonthResult) []monthResultView {
	out := make([]monthResultView, 0, len(results))
	for _, r := range results {
		v := monthResultView{Month: r.Month, Row: r.Row, Action: string(r.Action)}
		if r.Err != nil {
			v.Error = r.Err.Error()
		}
		out = append(out, v)
	}
	return out
}

func settlementResult(r settlement.Result) settlementView {
	v := settlementView{State: string(r.State), Month: r.Month, Message: r.Message, Row: r.Row, Col: r.Col}
	if mu := r.Mutation; mu != nil {
		v.Mutation = &mutationView{Kind: string(mu.Kind), Month: mu.Month, Party: int(mu.Party), Amount: mu.Amount}
	}
	return v
}

func summaryRow(r analytics.SummaryRow) summaryRowView {
	return summaryRowView{Type: r.Type, Descriptions: r.Descriptions, Total: r.Total, Monthly: r.Monthly}
}

// writeError logs err against the request logger and writes its response.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger := log.FromContext(r.Context())
	var pending *pendingConfirmation
	switch {
	case errors.As(err, &pending):
		logger.InfoContext(r.Context(), "Awaiting confirmation", log.FieldOperation, op)
	case log.ErrorType(err) == log.ErrorTypeInternal:
		logger.ErrorContext(r.Context(), "Request failed", log.FieldOperation, op, log.FieldError, err)
	default:
		logger.WarnContext(r.Context(), "Request rejected", log.FieldOperation, op, log.FieldError, err)
	}
	FromError(err).Write(w)
}

// handleHealth performs a basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the document answers a lightweight read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if _, err := s.household.Types(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "document unavailable").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{
		"status":   "ready",
		"document": s.household.Document().Name(),
	}).Write(w)
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.household.Types(r.Context())
	if err != nil {
		writeError(w, r, "types", err)
		return
	}
	NewJSONResponse().Body(map[string][]string{"types": types}).Write(w)
}

func (s *Server) handlePairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.household.Pairs(r.Context())
	if err != nil {
		writeError(w, r, "pairs", err)
		return
	}
	NewJSONResponse().Body(map[string][]expenses.Pair{"pairs": pairs}).Write(w)
}

// handleAddExpense creates or updates an expense across its month range.
// Without a confirm answer, a request that needs one gets a 428.
func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	exp, err := req.Expense()
	if err != nil {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	results, err := s.household.AddExpense(r.Context(), exp, Confirmer(req.Confirm))
	if err != nil && len(results) == 0 {
		writeError(w, r, log.OpUpsert, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
	}
	NewJSONResponse().Status(status).Body(map[string]any{
		"description": exp.Description,
		"months":      monthResults(results),
	}).Write(w)
}

// handleDeleteExpense blanks an expense; parameters come from the query.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	desc, mode, confirm, err := ParseDelete(r.URL.Query())
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	results, err := s.household.DeleteExpense(r.Context(), desc, mode, Confirmer(confirm))
	if err != nil && len(results) == 0 {
		writeError(w, r, log.OpDelete, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
	}
	NewJSONResponse().Status(status).Body(map[string]any{
		"description": desc,
		"months":      monthResults(results),
	}).Write(w)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req SettlementRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpSettle, err)
		return
	}
	settle, err := req.Settle()
	if err != nil {
		writeError(w, r, log.OpSettle, err)
		return
	}
	res, err := s.household.Settle(r.Context(), settle, Confirmer(req.Confirm))
	if err != nil {
		writeError(w, r, log.OpSettle, err)
		return
	}
	NewJSONResponse().Body(settlementResult(res)).Write(w)
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	results, err := s.household.Rebalance(r.Context())
	if err != nil && len(results) == 0 {
		writeError(w, r, log.OpRebalance, err)
		return
	}
	views := make([]settlementView, 0, len(results))
	for _, res := range results {
		views = append(views, settlementResult(res))
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
	}
	NewJSONResponse().Status(status).Body(map[string]any{"months": views}).Write(w)
}

// handleSummary rebuilds the summary sheet and returns it as JSON, or as
// CSV with ?format=csv.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	t, err := s.household.Summary(r.Context())
	if err != nil {
		writeError(w, r, log.OpSummary, err)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="summary.csv"`)
		if err := report.WriteSummaryCSV(w, t); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to write summary CSV", log.FieldError, err)
		}
		return
	}
	view := summaryView{Year: t.Year, Through: t.Through, Rows: make([]summaryRowView, 0, len(t.Rows)), Totals: summaryRow(t.Totals)}
	for _, row := range t.Rows {
		view.Rows = append(view.Rows, summaryRow(row))
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	as, err := ParseAssumptions(r.URL.Query())
	if err != nil {
		writeError(w, r, "forecast", err)
		return
	}
	f, err := s.household.Forecast(r.Context(), as)
	if err != nil {
		writeError(w, r, "forecast", err)
		return
	}
	view := forecastView{
		Year:               f.Year,
		YTDPosted:          f.YTDPosted,
		MonthsCompleted:    f.MonthsCompleted,
		RemainingMonths:    f.RemainingMonths,
		AvgMonthlyThisYear: f.AvgMonthlyThisYear,
		NonPostedMonthly:   f.NonPostedMonthly,
		ProjectedRemaining: f.ProjectedRemaining,
		Annual:             f.Annual,
		PreviousYearTotal:  f.PreviousYearTotal,
	}
	if c := f.VsLastYear; c != nil {
		view.VsLastYear = &changeView{Difference: c.Difference, Percent: c.Percent}
	}
	NewJSONResponse().Body(view).Write(w)
}
