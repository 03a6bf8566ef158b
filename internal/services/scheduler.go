package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"homepay/internal/analytics"
	"homepay/internal/log"
)

// RunStore remembers when jobs last ran. *storage.SQLiteRepository
// implements it.
type RunStore interface {
	LastRun(ctx context.Context, job string) (time.Time, error)
	MarkRun(ctx context.Context, job string, at time.Time, outcome string) error
}

// Job is a named periodic task.
type Job struct {
	Name     string
	Schedule Schedule
	Run      func(ctx context.Context, now time.Time) error
}

// Opener returns the household working on the document of year.
type Opener func(ctx context.Context, year int) (*Household, error)

// BalanceReminderJob sends the balance reminder. In January it reads last
// year's document, which reports December.
func BalanceReminderJob(open Opener) (Job, error) {
	s, err := ScheduleFor(JobBalanceReminder)
	if err != nil {
		return Job{}, err
	}
	return Job{Name: JobBalanceReminder, Schedule: s, Run: func(ctx context.Context, now time.Time) error {
		year := now.Year()
		if now.Month() == time.January {
			year--
		}
		h, err := open(ctx, year)
		if err != nil {
			return err
		}
		_, err = h.BalanceReminder(ctx)
		return err
	}}, nil
}

// MonthlyInsightsJob sends the insights for the month that just ended.
func MonthlyInsightsJob(open Opener) (Job, error) {
	s, err := ScheduleFor(JobMonthlyInsights)
	if err != nil {
		return Job{}, err
	}
	return Job{Name: JobMonthlyInsights, Schedule: s, Run: func(ctx context.Context, now time.Time) error {
		year := now.Year()
		if now.Month() == time.January {
			year--
		}
		h, err := open(ctx, year)
		if err != nil {
			return err
		}
		_, err = h.MonthlyInsights(ctx)
		return err
	}}, nil
}

// Scheduler runs due jobs. Without a RunStore last runs are kept in memory.
type Scheduler struct {
	jobs []Job
	runs RunStore
	now  func() time.Time

	mu     sync.Mutex
	memory map[string]time.Time
}

func NewScheduler(runs RunStore, now func() time.Time, jobs ...Job) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{jobs: jobs, runs: runs, now: now, memory: map[string]time.Time{}}
}

func (s *Scheduler) lastRun(ctx context.Context, job string) (time.Time, error) {
	if s.runs != nil {
		return s.runs.LastRun(ctx, job)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory[job], nil
}

func (s *Scheduler) markRun(ctx context.Context, job string, at time.Time, outcome string) error {
	if s.runs != nil {
		return s.runs.MarkRun(ctx, job, at, outcome)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory[job] = at
	return nil
}

// RunDue runs every due job once and returns the names of those that ran.
// A job answering analytics.ErrSkipped counts as run; any other failure is
// retried on the next pass.
func (s *Scheduler) RunDue(ctx context.Context) ([]string, error) {
	now := s.now()
	var (
		ran  []string
		errs []error
	)
	for _, j := range s.jobs {
		last, err := s.lastRun(ctx, j.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !j.Schedule.IsDue(last, now) {
			continue
		}
		outcome := "ok"
		err = j.Run(ctx, now)
		switch {
		case errors.Is(err, analytics.ErrSkipped):
			outcome = "skipped"
			slog.InfoContext(ctx, "Job had nothing to do", "job", j.Name, log.FieldError, err)
		case err != nil:
			slog.ErrorContext(ctx, "Job failed", "job", j.Name, log.FieldError, err)
			errs = append(errs, fmt.Errorf("%s: %w", j.Name, err))
			continue
		default:
			slog.InfoContext(ctx, "Job completed", "job", j.Name)
		}
		if err := s.markRun(ctx, j.Name, now, outcome); err != nil {
			errs = append(errs, err)
		}
		ran = append(ran, j.Name)
	}
	return ran, errors.Join(errs...)
}

// Start checks for due jobs every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Scheduler started", "interval", interval, "jobs", len(s.jobs))
	for {
		if _, err := s.RunDue(ctx); err != nil {
			slog.WarnContext(ctx, "Scheduler pass finished with errors", log.FieldError, err)
		}
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
