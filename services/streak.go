package services

import (
	"fmt"
	"time"

	"github.com/cppla/learnsprint/models"
)

// DayMode selects how the gap between two check-ins is measured.
type DayMode string

const (
	// DayModeCalendar counts calendar days between local midnights; month and year boundaries work.
	DayModeCalendar DayMode = "calendar"
	// DayModeDayOfMonth subtracts day-of-month numbers. Kept for compatibility with older stats;
	// it breaks at month boundaries (the 1st after the 31st gives -30).
	DayModeDayOfMonth DayMode = "day_of_month"
)

// ParseDayMode accepts "calendar" or "day_of_month".
func ParseDayMode(s string) (DayMode, error) {
	switch DayMode(s) {
	case DayModeCalendar, "":
		return DayModeCalendar, nil
	case DayModeDayOfMonth:
		return DayModeDayOfMonth, nil
	}
	return "", fmt.Errorf("unknown day mode %q", s)
}

// StreakPolicy controls consecutive-day detection.
type StreakPolicy struct {
	Mode     DayMode
	Location *time.Location
}

// DayDiff returns the number of days from last to next under the policy.
func (p StreakPolicy) DayDiff(last, next time.Time) int {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	l, n := last.In(loc), next.In(loc)
	if p.Mode == DayModeDayOfMonth {
		return n.Day() - l.Day()
	}
	// Compare Y/M/D at UTC midnight so DST shifts never produce 23h or 25h days
	ld := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
	nd := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return int(nd.Sub(ld).Hours() / 24)
}

// ApplyProgress folds one new check-in dated entryDate into stats and returns the new counters.
// stats is nil for the first check-in of a sprint. The input is never modified.
func ApplyProgress(stats *models.SprintStats, entryDate time.Time, policy StreakPolicy) models.SprintStats {
	date := entryDate
	if stats == nil {
		return models.SprintStats{
			DaysWithProgress: 1,
			CurrentStreak:    1,
			LongestStreak:    1,
			LastProgressDate: &date,
		}
	}

	next := *stats
	consecutive := stats.LastProgressDate != nil && policy.DayDiff(*stats.LastProgressDate, entryDate) == 1

	next.DaysWithProgress = stats.DaysWithProgress + 1
	if consecutive {
		next.CurrentStreak = stats.CurrentStreak + 1
		next.LongestStreak = max(stats.LongestStreak, stats.CurrentStreak+1)
	} else {
		// same-day repeats land here too and restart the streak
		next.CurrentStreak = 1
		next.LongestStreak = stats.LongestStreak
	}
	next.LastProgressDate = &date
	return next
}
