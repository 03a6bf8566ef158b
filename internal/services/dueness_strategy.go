// This file implements the schedules of the periodic household jobs. Each
// schedule decides from the last run and the current time whether a job is
// due; the registry maps job names to their schedule.

package services

import (
	"fmt"
	"time"
)

// Job names.
const (
	JobBalanceReminder = "balance_reminder"
	JobMonthlyInsights = "monthly_insights"
)

// Schedule is the strategy deciding whether a job is due.
type Schedule interface {
	// IsDue returns true if the job should run at now given its last run.
	IsDue(lastRun, now time.Time) bool
}

// MonthlyAt is due once a month, from Day at Hour onward. A day past the end
// of the month means its last day.
type MonthlyAt struct {
	Day  int
	Hour int
}

func (s MonthlyAt) IsDue(lastRun, now time.Time) bool {
	if !lastRun.IsZero() && lastRun.Year() == now.Year() && lastRun.Month() == now.Month() {
		return false
	}
	day := s.Day
	if last := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day(); day > last {
		day = last
	}
	return now.Day() > day || (now.Day() == day && now.Hour() >= s.Hour)
}

// Every is due when Interval has passed since the last run.
type Every struct {
	Interval time.Duration
}

func (s Every) IsDue(lastRun, now time.Time) bool {
	return lastRun.IsZero() || now.Sub(lastRun) >= s.Interval
}

// schedules maps job names to when they run: the balance reminder on the
// 5th at 08:00, the insights email on the 1st at 08:00.
var schedules = map[string]Schedule{
	JobBalanceReminder: MonthlyAt{Day: 5, Hour: 8},
	JobMonthlyInsights: MonthlyAt{Day: 1, Hour: 8},
}

// ScheduleFor returns the registered schedule of job.
func ScheduleFor(job string) (Schedule, error) {
	s, ok := schedules[job]
	if !ok {
		return nil, fmt.Errorf("unknown job: %s", job)
	}
	return s, nil
}

// RegisterSchedule sets or replaces the schedule of job.
func RegisterSchedule(job string, s Schedule) {
	schedules[job] = s
}
