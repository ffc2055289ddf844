package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SprintStats holds the running streak counters for a sprint. One row per sprint.
type SprintStats struct {
	ID               string     `gorm:"primaryKey;size:36" json:"-"`
	SprintID         string     `gorm:"uniqueIndex;size:36;not null" json:"sprintId"`
	DaysWithProgress int        `gorm:"not null;default:0" json:"daysWithProgress"`
	CurrentStreak    int        `gorm:"not null;default:0" json:"currentStreak"`
	LongestStreak    int        `gorm:"not null;default:0" json:"longestStreak"`
	LastProgressDate *time.Time `json:"lastProgressDate"`
	CreatedAt        time.Time  `json:"-"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (s *SprintStats) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ZeroStats is what readers see for a sprint without any progress yet.
func ZeroStats(sprintID string) SprintStats {
	return SprintStats{SprintID: sprintID}
}
