package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Adjustment classifications an insight may recommend.
const (
	AdjustmentContinue = "continue"
	AdjustmentRefine   = "refine"
	AdjustmentPivot    = "pivot"
)

// SprintInsight is an append-only snapshot of detected patterns plus a recommended adjustment.
type SprintInsight struct {
	ID               string                      `gorm:"primaryKey;size:36" json:"id"`
	SprintID         string                      `gorm:"index:idx_insight_sprint_created,priority:1;size:36;not null" json:"sprintId"`
	Patterns         datatypes.JSONSlice[string] `gorm:"not null" json:"patterns"`
	AdjustmentType   string                      `gorm:"size:16;not null" json:"adjustmentType"`
	Rationale        string                      `gorm:"type:text;not null" json:"rationale"`
	SuggestedActions datatypes.JSONSlice[string] `gorm:"not null" json:"suggestedActions"`
	CreatedAt        time.Time                   `gorm:"index:idx_insight_sprint_created,priority:2" json:"createdAt"`
}

func (i *SprintInsight) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// ValidAdjustment reports whether kind is continue, refine or pivot.
func ValidAdjustment(kind string) bool {
	switch kind {
	case AdjustmentContinue, AdjustmentRefine, AdjustmentPivot:
		return true
	}
	return false
}
