package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SprintStatus is the lifecycle state of a sprint.
type SprintStatus string

const (
	SprintActive SprintStatus = "active"
	SprintPaused SprintStatus = "paused"
)

// Sprint is a fixed-window learning goal owned by one user.
type Sprint struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	UserID          string          `gorm:"index;size:128;not null" json:"userId"`
	Slug            string          `gorm:"uniqueIndex;size:16;not null" json:"slug"`
	Title           string          `gorm:"size:255;not null" json:"title"`
	GoalDescription string          `gorm:"type:text;not null" json:"goalDescription"`
	StartDate       time.Time       `gorm:"not null" json:"startDate"`
	EndDate         time.Time       `gorm:"not null" json:"endDate"`
	Status          SprintStatus    `gorm:"size:16;index;not null;default:'active'" json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Stats           *SprintStats    `gorm:"foreignKey:SprintID" json:"stats,omitempty"`
	Progress        []ProgressEntry `gorm:"foreignKey:SprintID" json:"dailyProgress,omitempty"`
	Insights        []SprintInsight `gorm:"foreignKey:SprintID" json:"insights,omitempty"`
}

// BeforeCreate assigns a random id and the default status.
func (s *Sprint) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = SprintActive
	}
	return nil
}
