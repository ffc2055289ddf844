package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/learnsprint/models"
	"github.com/cppla/learnsprint/utils"
)

// ProgressInput is one check-in as submitted.
type ProgressInput struct {
	Progress      string
	TimeOfDay     []string
	Effectiveness string
	Reflection    *string
	// Date defaults to now.
	Date *time.Time
}

// ProgressService records check-ins and keeps sprint stats in step with them.
type ProgressService struct {
	db      *gorm.DB
	policy  StreakPolicy
	cache   *utils.Cache
	metrics *Metrics
	log     *zap.Logger
}

// NewProgressService creates the service. cache may be nil.
func NewProgressService(db *gorm.DB, policy StreakPolicy, cache *utils.Cache, log *zap.Logger) *ProgressService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProgressService{db: db, policy: policy, cache: cache, metrics: NewMetrics(), log: log}
}

func normalizeProgress(in ProgressInput) (models.ProgressEntry, error) {
	entry := models.ProgressEntry{
		Progress:      utils.Sanitize(in.Progress),
		Effectiveness: in.Effectiveness,
		Reflection:    utils.SanitizeOptional(in.Reflection),
	}
	if entry.Progress == "" {
		return entry, validationErr("progress is required")
	}
	if !models.ValidEffectiveness(in.Effectiveness) {
		return entry, validationErr("effectiveness must be one of very, somewhat, not")
	}
	seen := map[string]struct{}{}
	tags := make([]string, 0, len(in.TimeOfDay))
	for _, tag := range in.TimeOfDay {
		if !models.ValidTimeOfDay(tag) {
			return entry, validationErr("unknown time of day %q", tag)
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return entry, validationErr("at least one time of day is required")
	}
	entry.TimeOfDay = tags
	if in.Date != nil && !in.Date.IsZero() {
		entry.Date = *in.Date
	} else {
		entry.Date = time.Now()
	}
	return entry, nil
}

// Record stores a check-in for an owned sprint and folds it into the sprint's stats.
// The insert and the stats update commit together.
func (s *ProgressService) Record(ctx context.Context, userID, sprintID string, in ProgressInput) (*models.ProgressEntry, *models.Sprint, error) {
	entry, err := normalizeProgress(in)
	if err != nil {
		return nil, nil, err
	}

	var sprint models.Sprint
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", sprintID, userID).First(&sprint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("sprint: %w", ErrNotFound)
		}
		return nil, nil, persistenceErr("load sprint", err)
	}
	entry.SprintID = sprint.ID

	var updated models.SprintStats
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		var current models.SprintStats
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("sprint_id = ?", sprint.ID).
			First(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			updated = ApplyProgress(nil, entry.Date, s.policy)
			updated.SprintID = sprint.ID
			return tx.Create(&updated).Error
		case err != nil:
			return err
		}

		updated = ApplyProgress(&current, entry.Date, s.policy)
		return tx.Save(&updated).Error
	})
	if err != nil {
		return nil, nil, persistenceErr("record progress", err)
	}

	s.metrics.ProgressEntries.Inc()
	s.cache.Delete(ctx, StatsCacheKey(sprint.ID))
	s.log.Debug("progress recorded",
		zap.String("sprint", sprint.ID),
		zap.Int("current_streak", updated.CurrentStreak),
		zap.Int("days_with_progress", updated.DaysWithProgress))

	sprint.Stats = &updated
	return &entry, &sprint, nil
}

// RecentEntries returns up to limit check-ins, newest first.
func RecentEntries(ctx context.Context, db *gorm.DB, sprintID string, limit int) ([]models.ProgressEntry, error) {
	var entries []models.ProgressEntry
	err := db.WithContext(ctx).
		Where("sprint_id = ?", sprintID).
		Order("date DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, persistenceErr("recent progress", err)
	}
	return entries, nil
}

// History returns every check-in of a sprint, oldest first.
func History(ctx context.Context, db *gorm.DB, sprintID string) ([]models.ProgressEntry, error) {
	var entries []models.ProgressEntry
	err := db.WithContext(ctx).
		Where("sprint_id = ?", sprintID).
		Order("date ASC").
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, persistenceErr("progress history", err)
	}
	return entries, nil
}
