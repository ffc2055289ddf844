package services

import (
	"math"

	"github.com/cppla/learnsprint/models"
)

// RecentProgressLimit bounds the entries read for the time-of-day view and recent lists.
const RecentProgressLimit = 14

// TimeOfDayStat is the effectiveness summary for one time-of-day bucket.
type TimeOfDayStat struct {
	TimeOfDay     string `json:"timeOfDay"`
	Count         int    `json:"count"`
	EffectiveRate int    `json:"effectiveRate"`
}

// AggregateTimeOfDay counts entries per time-of-day tag and the share rated "very" effective.
// Buckets appear in order of first occurrence; a tag repeated within one entry counts once.
func AggregateTimeOfDay(entries []models.ProgressEntry) []TimeOfDayStat {
	type bucket struct{ count, very int }
	var order []string
	buckets := map[string]*bucket{}

	for _, e := range entries {
		seen := make(map[string]struct{}, len(e.TimeOfDay))
		for _, tag := range e.TimeOfDay {
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}

			b, ok := buckets[tag]
			if !ok {
				b = &bucket{}
				buckets[tag] = b
				order = append(order, tag)
			}
			b.count++
			if e.Effectiveness == models.EffectivenessVery {
				b.very++
			}
		}
	}

	out := make([]TimeOfDayStat, 0, len(order))
	for _, tag := range order {
		b := buckets[tag]
		out = append(out, TimeOfDayStat{
			TimeOfDay:     tag,
			Count:         b.count,
			EffectiveRate: int(math.Round(100 * float64(b.very) / float64(b.count))),
		})
	}
	return out
}
