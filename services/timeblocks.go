package services

import "math"

// CalculateTimeBlocks splits totalHours into session lengths of at most hoursPerDay,
// leaning toward a third of what remains, rounded to the nearest half hour.
// The result only seeds the planning prompt.
func CalculateTimeBlocks(totalHours, hoursPerDay float64) []float64 {
	var blocks []float64
	remaining := totalHours
	for remaining > 0 {
		block := math.Min(remaining, math.Min(hoursPerDay, math.Max(0.5, remaining/3)))
		rounded := math.Round(block*2) / 2
		if rounded > hoursPerDay {
			rounded = math.Floor(hoursPerDay*2) / 2
		}
		// days shorter than half an hour, and small tails, are not rounded
		if rounded <= 0 || rounded > remaining {
			rounded = block
		}
		blocks = append(blocks, rounded)
		remaining = math.Round((remaining-rounded)*1e9) / 1e9
	}
	return blocks
}
