package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Time-of-day tags a progress entry may carry.
const (
	Morning   = "morning"
	Afternoon = "afternoon"
	Evening   = "evening"
)

// Effectiveness ratings.
const (
	EffectivenessVery     = "very"
	EffectivenessSomewhat = "somewhat"
	EffectivenessNot      = "not"
)

// ProgressEntry is one check-in: what was shipped, when, and how effective it felt.
type ProgressEntry struct {
	ID            string                      `gorm:"primaryKey;size:36" json:"id"`
	SprintID      string                      `gorm:"index:idx_progress_sprint_date,priority:1;size:36;not null" json:"sprintId"`
	Progress      string                      `gorm:"type:text;not null" json:"progress"`
	TimeOfDay     datatypes.JSONSlice[string] `gorm:"not null" json:"timeOfDay"`
	Effectiveness string                      `gorm:"size:16;not null" json:"effectiveness"`
	Reflection    *string                     `gorm:"type:text" json:"reflection"`
	Date          time.Time                   `gorm:"index:idx_progress_sprint_date,priority:2;not null" json:"date"`
	CreatedAt     time.Time                   `json:"createdAt"`
	UpdatedAt     time.Time                   `json:"updatedAt"`
}

// BeforeCreate assigns an id and defaults the entry date to creation time.
func (p *ProgressEntry) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Date.IsZero() {
		p.Date = time.Now()
	}
	return nil
}

// ValidTimeOfDay reports whether tag is a known time-of-day bucket.
func ValidTimeOfDay(tag string) bool {
	switch tag {
	case Morning, Afternoon, Evening:
		return true
	}
	return false
}

// ValidEffectiveness reports whether rating is a known effectiveness value.
func ValidEffectiveness(rating string) bool {
	switch rating {
	case EffectivenessVery, EffectivenessSomewhat, EffectivenessNot:
		return true
	}
	return false
}
