package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/learnsprint/models"
	"github.com/cppla/learnsprint/utils"
)

const statsCachePrefix = "learnsprint:stats:"

// StatsCacheKey is the cache key of a sprint's stats view.
func StatsCacheKey(sprintID string) string {
	return statsCachePrefix + sprintID
}

// RecentCheckIn is a check-in as shown in the stats view.
type RecentCheckIn struct {
	Date          time.Time `json:"date"`
	Shipped       string    `json:"shipped"`
	TimeOfDay     []string  `json:"timeOfDay"`
	Effectiveness string    `json:"effectiveness"`
	Reflection    *string   `json:"reflection"`
}

// InsightView is the latest insight as shown in the stats view.
type InsightView struct {
	Patterns   []string   `json:"patterns"`
	Adjustment Adjustment `json:"adjustment"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// StatsView is the analytics read model for one sprint.
type StatsView struct {
	DaysShipped    int             `json:"daysShipped"`
	CurrentStreak  int             `json:"currentStreak"`
	LongestStreak  int             `json:"longestStreak"`
	LastShipDate   *time.Time      `json:"lastShipDate"`
	TimeOfDay      []TimeOfDayStat `json:"timeOfDay"`
	RecentProgress []RecentCheckIn `json:"recentProgress"`
	LatestInsight  *InsightView    `json:"latestInsight"`
}

// StatsService builds stats views. Reads never change stored stats.
type StatsService struct {
	db    *gorm.DB
	cache *utils.Cache
	ttl   time.Duration
}

// NewStatsService creates the service. cache may be nil.
func NewStatsService(db *gorm.DB, cache *utils.Cache, ttl time.Duration) *StatsService {
	return &StatsService{db: db, cache: cache, ttl: ttl}
}

// Get returns the stats view of an owned sprint.
func (s *StatsService) Get(ctx context.Context, userID, sprintID string) (*StatsView, error) {
	var sprint models.Sprint
	err := s.db.WithContext(ctx).
		Preload("Stats").
		Where("id = ? AND user_id = ?", sprintID, userID).
		First(&sprint).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sprint: %w", ErrNotFound)
		}
		return nil, persistenceErr("load sprint", err)
	}

	key := StatsCacheKey(sprint.ID)
	var cached StatsView
	// a view built before a concurrent check-in can land after that check-in's invalidation;
	// so a view whose counters no longer match is rebuilt
	if s.cache.GetJSON(ctx, key, &cached) && freshView(&cached, sprint.Stats) {
		return &cached, nil
	}

	view, err := s.build(ctx, &sprint)
	if err != nil {
		return nil, err
	}
	s.cache.SetJSON(ctx, key, view, s.ttl)
	return view, nil
}

func (s *StatsService) build(ctx context.Context, sprint *models.Sprint) (*StatsView, error) {
	recent, err := RecentEntries(ctx, s.db, sprint.ID, RecentProgressLimit)
	if err != nil {
		return nil, err
	}

	view := &StatsView{
		TimeOfDay:      AggregateTimeOfDay(recent),
		RecentProgress: make([]RecentCheckIn, len(recent)),
	}
	if st := sprint.Stats; st != nil {
		view.DaysShipped = st.DaysWithProgress
		view.CurrentStreak = st.CurrentStreak
		view.LongestStreak = st.LongestStreak
		view.LastShipDate = st.LastProgressDate
	}
	for i, e := range recent {
		view.RecentProgress[i] = RecentCheckIn{
			Date:          e.Date,
			Shipped:       e.Progress,
			TimeOfDay:     e.TimeOfDay,
			Effectiveness: e.Effectiveness,
			Reflection:    e.Reflection,
		}
	}

	latest, err := LatestInsight(ctx, s.db, sprint.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		view.LatestInsight = &InsightView{
			Patterns: latest.Patterns,
			Adjustment: Adjustment{
				Type:             latest.AdjustmentType,
				Rationale:        latest.Rationale,
				SuggestedActions: latest.SuggestedActions,
			},
			CreatedAt: latest.CreatedAt,
		}
	}
	return view, nil
}

// LatestInsight returns the most recent insight of a sprint, or nil when there is none.
func LatestInsight(ctx context.Context, db *gorm.DB, sprintID string) (*models.SprintInsight, error) {
	var insight models.SprintInsight
	err := db.WithContext(ctx).
		Where("sprint_id = ?", sprintID).
		Order("created_at DESC").
		First(&insight).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, persistenceErr("latest insight", err)
	}
	return &insight, nil
}

// freshView reports whether a cached view still matches the stored counters.
func freshView(view *StatsView, stats *models.SprintStats) bool {
	current := models.ZeroStats("")
	if stats != nil {
		current = *stats
	}
	if view.DaysShipped != current.DaysWithProgress {
		return false
	}
	switch {
	case view.LastShipDate == nil && current.LastProgressDate == nil:
		return true
	case view.LastShipDate == nil || current.LastProgressDate == nil:
		return false
	}
	return view.LastShipDate.Equal(*current.LastProgressDate)
}
