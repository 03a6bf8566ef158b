package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"homepay/internal/analytics"
	"homepay/internal/core"
	"homepay/internal/expenses"
	"homepay/internal/log"
	"homepay/internal/middleware/ratelimit"
	"homepay/internal/middleware/security"
	"homepay/internal/middleware/trace"
	"homepay/internal/services"
	"homepay/internal/settlement"
	"homepay/internal/sheets"
)

// Household is the set of operations the API exposes. *services.Household
// satisfies it.
type Household interface {
	Document() sheets.Document
	Types(ctx context.Context) ([]string, error)
	Pairs(ctx context.Context) ([]expenses.Pair, error)
	AddExpense(ctx context.Context, exp core.Expense, confirm core.Confirmer) ([]expenses.MonthResult, error)
	DeleteExpense(ctx context.Context, description string, mode core.RecurrenceMode, confirm core.Confirmer) ([]expenses.MonthResult, error)
	Settle(ctx context.Context, req services.SettleRequest, confirm core.Confirmer) (settlement.Result, error)
	Rebalance(ctx context.Context) ([]settlement.Result, error)
	Summary(ctx context.Context) (*analytics.SummaryTable, error)
	Forecast(ctx context.Context, as analytics.Assumptions) (analytics.Forecast, error)
}

var _ Household = (*services.Household)(nil)

// Server wraps http.Server with the API routes and their middleware.
type Server struct {
	http.Server

	household Household
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, household Household, logger *log.Logger, limits ratelimit.Config) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		household: household,
		logger:    logger,
		limiter:   ratelimit.NewLimiter(limits),
		detector:  security.NewDetector(),
		started:   time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.detector.Middleware)
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
		}))

		r.Get("/types", s.handleTypes)
		r.Get("/pairs", s.handlePairs)
		r.Post("/expenses", s.handleAddExpense)
		r.Delete("/expenses", s.handleDeleteExpense)
		r.Post("/settlements", s.handleSettle)
		r.Post("/rebalance", s.handleRebalance)
		r.Get("/summary", s.handleSummary)
		r.Get("/forecast", s.handleForecast)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})
	return r
}

// Shutdown stops the limiter and drains the server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		m := s.tracer.GetMetrics()
		s.logger.InfoContext(ctx, "HTTP server stopping",
			"total_requests", m.TotalRequests,
			"failed_requests", m.FailedRequests,
			"suspicious_requests", s.detector.GetMetrics().SuspiciousRequests,
			"rate_limited_clients", s.limiter.GetMetrics().ClientCount)
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
