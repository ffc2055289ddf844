package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/learnsprint/models"
	"github.com/cppla/learnsprint/utils"
)

const slugAttempts = 5

// CreateSprintInput carries a new sprint plus the parameters for its learning path.
type CreateSprintInput struct {
	UserID          string
	Title           string
	GoalDescription string
	// Topic defaults to the goal description.
	Topic       string
	HoursPerDay float64
	Level       string
	// StartDate defaults to now and EndDate to StartDate + 14 days.
	StartDate time.Time
	EndDate   time.Time
}

// SprintService owns sprint records.
type SprintService struct {
	db         *gorm.DB
	decomposer *Decomposer
	metrics    *Metrics
	log        *zap.Logger
}

// NewSprintService creates a sprint service. decomposer may be nil when only reads are needed.
func NewSprintService(db *gorm.DB, decomposer *Decomposer, log *zap.Logger) *SprintService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SprintService{db: db, decomposer: decomposer, metrics: NewMetrics(), log: log}
}

// Create decomposes the goal and persists the sprint only if decomposition succeeded.
func (s *SprintService) Create(ctx context.Context, in CreateSprintInput) (*models.Sprint, *models.Decomposition, error) {
	title := utils.Sanitize(in.Title)
	goal := utils.Sanitize(in.GoalDescription)
	if in.UserID == "" {
		return nil, nil, validationErr("user id required")
	}
	if title == "" || goal == "" {
		return nil, nil, validationErr("title and goal description are required")
	}
	start := in.StartDate
	if start.IsZero() {
		start = time.Now()
	}
	end := in.EndDate
	if end.IsZero() {
		end = start.AddDate(0, 0, SprintDays)
	}
	if !end.After(start) {
		return nil, nil, validationErr("end date must be after start date")
	}
	if s.decomposer == nil {
		return nil, nil, fmt.Errorf("%w: decomposition is not configured", ErrGeneration)
	}

	topic := utils.Sanitize(in.Topic)
	if topic == "" {
		topic = goal
	}
	plan, err := s.decomposer.Decompose(ctx, DecomposeRequest{
		Topic:       topic,
		HoursPerDay: in.HoursPerDay,
		Level:       in.Level,
	})
	if err != nil {
		s.metrics.SprintsCreated.WithLabelValues("decompose_failed").Inc()
		return nil, nil, err
	}

	sprint := models.Sprint{
		UserID:          in.UserID,
		Title:           title,
		GoalDescription: goal,
		StartDate:       start,
		EndDate:         end,
		Status:          models.SprintActive,
	}
	if err := s.insertWithSlug(ctx, &sprint); err != nil {
		s.metrics.SprintsCreated.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	zero := models.ZeroStats(sprint.ID)
	sprint.Stats = &zero
	s.metrics.SprintsCreated.WithLabelValues("ok").Inc()
	s.log.Info("sprint created",
		zap.String("sprint", sprint.ID),
		zap.String("slug", sprint.Slug),
		zap.Int("objectives", len(plan.Objectives)))
	return &sprint, plan, nil
}

func (s *SprintService) insertWithSlug(ctx context.Context, sprint *models.Sprint) error {
	db := s.db.WithContext(ctx)
	for i := 0; i < slugAttempts; i++ {
		slug := utils.NewSlug()
		var n int64
		if err := db.Model(&models.Sprint{}).Where("slug = ?", slug).Count(&n).Error; err != nil {
			return persistenceErr("check slug", err)
		}
		if n > 0 {
			continue
		}
		sprint.Slug = slug
		if err := db.Create(sprint).Error; err != nil {
			return persistenceErr("create sprint", err)
		}
		return nil
	}
	return persistenceErr("create sprint", errors.New("could not allocate a unique slug"))
}

// List returns the user's sprints, most recently updated first, each with stats.
func (s *SprintService) List(ctx context.Context, userID string) ([]models.Sprint, error) {
	var sprints []models.Sprint
	err := s.db.WithContext(ctx).
		Preload("Stats").
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&sprints).Error
	if err != nil {
		return nil, persistenceErr("list sprints", err)
	}
	for i := range sprints {
		withStats(&sprints[i])
	}
	return sprints, nil
}

// GetBySlug returns an owned sprint with stats and its most recent check-ins.
func (s *SprintService) GetBySlug(ctx context.Context, userID, slug string) (*models.Sprint, error) {
	return s.findOwned(ctx, "slug = ? AND user_id = ?", slug, userID)
}

// GetOwned returns an owned sprint by id with stats and its most recent check-ins.
func (s *SprintService) GetOwned(ctx context.Context, userID, sprintID string) (*models.Sprint, error) {
	return s.findOwned(ctx, "id = ? AND user_id = ?", sprintID, userID)
}

func (s *SprintService) findOwned(ctx context.Context, query string, args ...interface{}) (*models.Sprint, error) {
	var sprint models.Sprint
	err := s.db.WithContext(ctx).
		Preload("Stats").
		Preload("Progress", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("date DESC").Limit(RecentProgressLimit)
		}).
		Where(query, args...).
		First(&sprint).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sprint: %w", ErrNotFound)
		}
		return nil, persistenceErr("load sprint", err)
	}
	withStats(&sprint)
	return &sprint, nil
}

// ListActive returns every sprint with status active, across users.
func (s *SprintService) ListActive(ctx context.Context) ([]models.Sprint, error) {
	var sprints []models.Sprint
	if err := s.db.WithContext(ctx).Where("status = ?", models.SprintActive).Find(&sprints).Error; err != nil {
		return nil, persistenceErr("list active sprints", err)
	}
	return sprints, nil
}

// withStats fills zero counters for sprints that have no check-ins yet.
func withStats(sprint *models.Sprint) {
	if sprint.Stats == nil {
		zero := models.ZeroStats(sprint.ID)
		sprint.Stats = &zero
	}
}
