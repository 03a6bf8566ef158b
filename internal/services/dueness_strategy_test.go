package services

import (
	"testing"
	"time"
)

func TestMonthlyAt_IsDue(t *testing.T) {
	s := MonthlyAt{Day: 5, Hour: 8}

	tests := []struct {
		name    string
		lastRun time.Time
		now     time.Time
		want    bool
	}{
		{
			name: "never run, before the day - not due",
			now:  time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "never run, on the day before the hour - not due",
			now:  time.Date(2025, 3, 5, 7, 59, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "never run, on the day at the hour - is due",
			now:  time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name:    "ran this month - not due",
			lastRun: time.Date(2025, 3, 5, 8, 0, 0, 0, time.UTC),
			now:     time.Date(2025, 3, 20, 8, 0, 0, 0, time.UTC),
			want:    false,
		},
		{
			name:    "ran last month, missed day - is due",
			lastRun: time.Date(2025, 2, 5, 8, 0, 0, 0, time.UTC),
			now:     time.Date(2025, 3, 9, 1, 0, 0, 0, time.UTC),
			want:    true,
		},
		{
			name:    "same month last year - is due",
			lastRun: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC),
			now:     time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsDue(tt.lastRun, tt.now); got != tt.want {
				t.Errorf("MonthlyAt.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthlyAt_ShortMonth(t *testing.T) {
	s := MonthlyAt{Day: 31, Hour: 0}
	if !s.IsDue(time.Time{}, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)) {
		t.Error("day 31 should fall on February 28")
	}
	if s.IsDue(time.Time{}, time.Date(2025, 4, 29, 23, 0, 0, 0, time.UTC)) {
		t.Error("day 31 should fall on April 30")
	}
}

func TestEvery_IsDue(t *testing.T) {
	s := Every{Interval: time.Hour}
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		lastRun time.Time
		want    bool
	}{
		{"never run - is due", time.Time{}, true},
		{"ran 30 minutes ago - not due", now.Add(-30 * time.Minute), false},
		{"ran an hour ago - is due", now.Add(-time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsDue(tt.lastRun, now); got != tt.want {
				t.Errorf("Every.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduleFor(t *testing.T) {
	tests := []struct {
		job     string
		want    Schedule
		wantErr bool
	}{
		{JobBalanceReminder, MonthlyAt{Day: 5, Hour: 8}, false},
		{JobMonthlyInsights, MonthlyAt{Day: 1, Hour: 8}, false},
		{"unknown", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.job, func(t *testing.T) {
			got, err := ScheduleFor(tt.job)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ScheduleFor(%q) error = %v, wantErr %v", tt.job, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ScheduleFor(%q) = %#v, want %#v", tt.job, got, tt.want)
			}
		})
	}
}

func TestRegisterSchedule(t *testing.T) {
	RegisterSchedule("test_job", Every{Interval: time.Minute})
	defer delete(schedules, "test_job")

	s, err := ScheduleFor("test_job")
	if err != nil {
		t.Fatalf("ScheduleFor() error = %v", err)
	}
	if _, ok := s.(Every); !ok {
		t.Errorf("registered schedule has type %T", s)
	}
}
