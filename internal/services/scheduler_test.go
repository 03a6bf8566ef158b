package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"homepay/internal/analytics"
)

func TestSchedulerRunDue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	calls := map[string]int{}
	job := func(name string, err error) Job {
		return Job{Name: name, Schedule: MonthlyAt{Day: 5, Hour: 8}, Run: func(context.Context, time.Time) error {
			calls[name]++
			return err
		}}
	}
	s := NewScheduler(nil, clock,
		job("ok", nil),
		job("skipped", fmt.Errorf("%w: empty month", analytics.ErrSkipped)),
		job("broken", errors.New("mailer down")),
	)

	ran, err := s.RunDue(ctx)
	if err == nil {
		t.Fatal("expected the broken job to be reported")
	}
	if len(ran) != 2 {
		t.Fatalf("ran = %v, want ok and skipped", ran)
	}

	if _, err := s.RunDue(ctx); err == nil {
		t.Fatal("broken job should be retried and fail again")
	}
	if calls["ok"] != 1 || calls["skipped"] != 1 {
		t.Errorf("completed jobs ran again: %v", calls)
	}
	if calls["broken"] != 2 {
		t.Errorf("broken job ran %d times, want 2", calls["broken"])
	}
}

type fakeRuns struct {
	last     map[string]time.Time
	outcomes map[string]string
}

func (f *fakeRuns) LastRun(_ context.Context, job string) (time.Time, error) {
	return f.last[job], nil
}

func (f *fakeRuns) MarkRun(_ context.Context, job string, at time.Time, outcome string) error {
	f.last[job] = at
	f.outcomes[job] = outcome
	return nil
}

func TestSchedulerUsesRunStore(t *testing.T) {
	now := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	runs := &fakeRuns{
		last:     map[string]time.Time{"done": now.Add(-time.Hour)},
		outcomes: map[string]string{},
	}
	var ran []string
	mk := func(name string) Job {
		return Job{Name: name, Schedule: MonthlyAt{Day: 1}, Run: func(context.Context, time.Time) error {
			ran = append(ran, name)
			return nil
		}}
	}
	s := NewScheduler(runs, func() time.Time { return now }, mk("done"), mk("pending"))
	if _, err := s.RunDue(context.Background()); err != nil {
		t.Fatalf("RunDue: %v", err)
	}
	if len(ran) != 1 || ran[0] != "pending" {
		t.Fatalf("ran = %v", ran)
	}
	if runs.outcomes["pending"] != "ok" || !runs.last["pending"].Equal(now) {
		t.Errorf("run not stored: %v %v", runs.last, runs.outcomes)
	}
}
