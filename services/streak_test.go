package services

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cppla/learnsprint/models"
)

var utcCalendar = StreakPolicy{Mode: DayModeCalendar, Location: time.UTC}

func day(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestApplyProgress_FirstEntry(t *testing.T) {
	at := day(2024, 5, 10, 9)
	got := ApplyProgress(nil, at, utcCalendar)

	assert.Equal(t, 1, got.DaysWithProgress)
	assert.Equal(t, 1, got.CurrentStreak)
	assert.Equal(t, 1, got.LongestStreak)
	require.NotNil(t, got.LastProgressDate)
	assert.True(t, got.LastProgressDate.Equal(at))
}

func TestApplyProgress(t *testing.T) {
	last := day(2024, 5, 10, 21)
	tests := []struct {
		name        string
		stats       models.SprintStats
		entry       time.Time
		wantDays    int
		wantCurrent int
		wantLongest int
	}{
		{
			name:        "next day extends streak",
			stats:       models.SprintStats{DaysWithProgress: 3, CurrentStreak: 3, LongestStreak: 3, LastProgressDate: &last},
			entry:       day(2024, 5, 11, 7),
			wantDays:    4,
			wantCurrent: 4,
			wantLongest: 4,
		},
		{
			name:        "extension below longest keeps longest",
			stats:       models.SprintStats{DaysWithProgress: 9, CurrentStreak: 2, LongestStreak: 6, LastProgressDate: &last},
			entry:       day(2024, 5, 11, 7),
			wantDays:    10,
			wantCurrent: 3,
			wantLongest: 6,
		},
		{
			name:        "gap resets current, keeps longest",
			stats:       models.SprintStats{DaysWithProgress: 5, CurrentStreak: 5, LongestStreak: 5, LastProgressDate: &last},
			entry:       day(2024, 5, 13, 7),
			wantDays:    6,
			wantCurrent: 1,
			wantLongest: 5,
		},
		{
			name:        "same day counts the entry and restarts the streak",
			stats:       models.SprintStats{DaysWithProgress: 2, CurrentStreak: 2, LongestStreak: 2, LastProgressDate: &last},
			entry:       day(2024, 5, 10, 23),
			wantDays:    3,
			wantCurrent: 1,
			wantLongest: 2,
		},
		{
			name:        "stats row without a last date",
			stats:       models.SprintStats{},
			entry:       day(2024, 5, 11, 7),
			wantDays:    1,
			wantCurrent: 1,
			wantLongest: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.stats
			got := ApplyProgress(&tt.stats, tt.entry, utcCalendar)

			assert.Equal(t, tt.wantDays, got.DaysWithProgress)
			assert.Equal(t, tt.wantCurrent, got.CurrentStreak)
			assert.Equal(t, tt.wantLongest, got.LongestStreak)
			require.NotNil(t, got.LastProgressDate)
			assert.True(t, got.LastProgressDate.Equal(tt.entry))
			assert.Equal(t, before, tt.stats, "input must not be modified")
		})
	}
}

func TestApplyProgress_KeepsIdentity(t *testing.T) {
	last := day(2024, 5, 10, 8)
	stats := models.SprintStats{ID: "row-1", SprintID: "sprint-1", DaysWithProgress: 1, CurrentStreak: 1, LongestStreak: 1, LastProgressDate: &last}
	got := ApplyProgress(&stats, day(2024, 5, 11, 8), utcCalendar)
	assert.Equal(t, "row-1", got.ID)
	assert.Equal(t, "sprint-1", got.SprintID)
}

func TestStreakPolicy_DayDiff(t *testing.T) {
	tests := []struct {
		name string
		mode DayMode
		last time.Time
		next time.Time
		want int
	}{
		{"calendar month boundary", DayModeCalendar, day(2024, 1, 31, 22), day(2024, 2, 1, 6), 1},
		{"calendar year boundary", DayModeCalendar, day(2023, 12, 31, 12), day(2024, 1, 1, 12), 1},
		{"calendar leap day", DayModeCalendar, day(2024, 2, 28, 12), day(2024, 2, 29, 12), 1},
		{"calendar late to early next day", DayModeCalendar, day(2024, 5, 1, 23), day(2024, 5, 2, 0), 1},
		{"calendar same day", DayModeCalendar, day(2024, 5, 1, 1), day(2024, 5, 1, 23), 0},
		{"calendar two days", DayModeCalendar, day(2024, 5, 1, 1), day(2024, 5, 3, 0), 2},
		{"day of month within month", DayModeDayOfMonth, day(2024, 5, 1, 9), day(2024, 5, 2, 9), 1},
		{"day of month across boundary", DayModeDayOfMonth, day(2024, 1, 31, 9), day(2024, 2, 1, 9), -30},
		{"day of month ignores month", DayModeDayOfMonth, day(2024, 1, 4, 9), day(2024, 3, 5, 9), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := StreakPolicy{Mode: tt.mode, Location: time.UTC}
			assert.Equal(t, tt.want, p.DayDiff(tt.last, tt.next))
		})
	}
}

func TestStreakPolicy_DayDiffUsesLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	p := StreakPolicy{Mode: DayModeCalendar, Location: berlin}

	// 23:30 UTC on the 9th is already the 10th in Berlin
	last := time.Date(2024, 5, 9, 23, 30, 0, 0, time.UTC)
	next := time.Date(2024, 5, 10, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, p.DayDiff(last, next))
	assert.Equal(t, 1, utcCalendar.DayDiff(last, next))

	// spring-forward night is a 23 hour day but still one calendar day
	before := time.Date(2024, 3, 30, 12, 0, 0, 0, berlin)
	after := time.Date(2024, 3, 31, 12, 0, 0, 0, berlin)
	assert.Equal(t, 1, p.DayDiff(before, after))
}

func TestParseDayMode(t *testing.T) {
	m, err := ParseDayMode("")
	require.NoError(t, err)
	assert.Equal(t, DayModeCalendar, m)

	m, err = ParseDayMode("day_of_month")
	require.NoError(t, err)
	assert.Equal(t, DayModeDayOfMonth, m)

	_, err = ParseDayMode("weekly")
	assert.Error(t, err)
}

func TestApplyProgress_ConsecutiveDaysProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 60).Draw(rt, "days")
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, rapid.IntRange(0, 700).Draw(rt, "offset"))

		var stats *models.SprintStats
		prevLongest := 0
		for i := 0; i < n; i++ {
			hour := rapid.IntRange(0, 23).Draw(rt, "hour")
			at := start.AddDate(0, 0, i).Add(time.Duration(hour) * time.Hour)
			next := ApplyProgress(stats, at, utcCalendar)

			if next.CurrentStreak != i+1 {
				rt.Fatalf("entry %d: currentStreak = %d, want %d", i, next.CurrentStreak, i+1)
			}
			if next.LongestStreak < prevLongest {
				rt.Fatalf("entry %d: longestStreak decreased from %d to %d", i, prevLongest, next.LongestStreak)
			}
			prevLongest = next.LongestStreak
			stats = &next
		}
	})
}

func TestApplyProgress_ResetProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		run := rapid.IntRange(1, 20).Draw(rt, "run")
		gap := rapid.IntRange(2, 40).Draw(rt, "gap")
		start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

		var stats *models.SprintStats
		for i := 0; i < run; i++ {
			next := ApplyProgress(stats, start.AddDate(0, 0, i), utcCalendar)
			stats = &next
		}
		longest := stats.LongestStreak

		after := ApplyProgress(stats, start.AddDate(0, 0, run-1+gap), utcCalendar)
		if after.CurrentStreak != 1 {
			rt.Fatalf("currentStreak = %d after a %d day gap, want 1", after.CurrentStreak, gap)
		}
		if after.LongestStreak != longest {
			rt.Fatalf("longestStreak = %d, want %d", after.LongestStreak, longest)
		}
	})
}

func TestApplyProgress_DaysCountEveryEntryProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(rt, "entries")
		at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

		var stats *models.SprintStats
		for i := 0; i < n; i++ {
			// between zero and three days later, so same-day duplicates happen often
			at = at.Add(time.Duration(rapid.IntRange(0, 72).Draw(rt, "hours")) * time.Hour)
			next := ApplyProgress(stats, at, utcCalendar)
			stats = &next
		}
		if stats.DaysWithProgress != n {
			rt.Fatalf("daysWithProgress = %d, want %d", stats.DaysWithProgress, n)
		}
		if stats.CurrentStreak > stats.LongestStreak {
			rt.Fatalf("currentStreak %d exceeds longestStreak %d", stats.CurrentStreak, stats.LongestStreak)
		}
	})
}
