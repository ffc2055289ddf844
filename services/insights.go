package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/learnsprint/llm"
	"github.com/cppla/learnsprint/models"
	"github.com/cppla/learnsprint/utils"
)

// Adjustment is a recommended course correction.
type Adjustment struct {
	Type             string   `json:"type" validate:"oneof=continue refine pivot"`
	Rationale        string   `json:"rationale" validate:"required"`
	SuggestedActions []string `json:"suggestedActions" validate:"required"`
}

// InsightPayload is what an analysis returns to its caller.
type InsightPayload struct {
	Patterns   []string   `json:"patterns"`
	Adjustment Adjustment `json:"adjustment"`
}

type insightResponse struct {
	DetectedPatterns    []string   `json:"detectedPatterns" validate:"required"`
	SuggestedAdjustment Adjustment `json:"suggestedAdjustment"`
}

// InsightNotifier is told about each stored insight.
type InsightNotifier interface {
	NotifyInsight(ctx context.Context, sprint models.Sprint, insight models.SprintInsight) error
}

// AnalyzerOptions are the optional collaborators of an Analyzer.
type AnalyzerOptions struct {
	Temperature float64
	Cache       *utils.Cache
	Notifier    InsightNotifier
}

// Analyzer derives behavioural patterns and a recommended adjustment from a sprint's history.
type Analyzer struct {
	db      *gorm.DB
	gen     llm.Generator
	opts    AnalyzerOptions
	metrics *Metrics
	log     *zap.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(db *gorm.DB, gen llm.Generator, log *zap.Logger, opts AnalyzerOptions) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{db: db, gen: gen, opts: opts, metrics: NewMetrics(), log: log}
}

// Analyze reads the full history of sprintID, asks the generator for patterns and an adjustment,
// and appends the result as a new insight.
func (a *Analyzer) Analyze(ctx context.Context, sprintID string) (*InsightPayload, error) {
	payload, err := a.analyze(ctx, sprintID)
	if err != nil {
		a.metrics.Insights.WithLabelValues("error").Inc()
		return nil, err
	}
	a.metrics.Insights.WithLabelValues("ok").Inc()
	return payload, nil
}

func (a *Analyzer) analyze(ctx context.Context, sprintID string) (*InsightPayload, error) {
	var sprint models.Sprint
	if err := a.db.WithContext(ctx).Where("id = ?", sprintID).First(&sprint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sprint %s: %w", sprintID, ErrNotFound)
		}
		return nil, persistenceErr("load sprint", err)
	}

	history, err := History(ctx, a.db, sprint.ID)
	if err != nil {
		return nil, err
	}

	system, user, err := insightPrompts(sprint, history)
	if err != nil {
		return nil, err
	}
	raw, err := a.gen.GenerateJSON(ctx, llm.Prompt{
		Name:        "insights",
		System:      system,
		User:        user,
		Temperature: a.opts.Temperature,
	})
	if err != nil {
		return nil, generationErr("analyze sprint "+sprint.ID, err)
	}

	var resp insightResponse
	if err := decodeGenerated("insight", raw, &resp); err != nil {
		return nil, err
	}

	record := models.SprintInsight{
		SprintID:         sprint.ID,
		Patterns:         resp.DetectedPatterns,
		AdjustmentType:   resp.SuggestedAdjustment.Type,
		Rationale:        resp.SuggestedAdjustment.Rationale,
		SuggestedActions: resp.SuggestedAdjustment.SuggestedActions,
	}
	if err := a.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, persistenceErr("store insight", err)
	}
	a.opts.Cache.Delete(ctx, StatsCacheKey(sprint.ID))

	a.log.Info("insight stored",
		zap.String("sprint", sprint.ID),
		zap.Int("entries", len(history)),
		zap.Int("patterns", len(record.Patterns)),
		zap.String("adjustment", record.AdjustmentType))

	if a.opts.Notifier != nil {
		if err := a.opts.Notifier.NotifyInsight(ctx, sprint, record); err != nil {
			a.log.Warn("insight notification failed", zap.String("sprint", sprint.ID), zap.Error(err))
		}
	}

	return &InsightPayload{
		Patterns:   resp.DetectedPatterns,
		Adjustment: resp.SuggestedAdjustment,
	}, nil
}
