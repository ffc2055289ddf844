package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/cppla/learnsprint/config"
	"github.com/cppla/learnsprint/llm"
	"github.com/cppla/learnsprint/models"
	"github.com/cppla/learnsprint/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(config.AppConfig{
		DBDriver:    "sqlite",
		DatabaseURI: filepath.Join(t.TempDir(), "learnsprint.db"),
		LogLevel:    "silent",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Sprint{}, &models.ProgressEntry{}, &models.SprintStats{}, &models.SprintInsight{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedSprint(t *testing.T, db *gorm.DB, userID, title string) models.Sprint {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := models.Sprint{
		UserID:          userID,
		Slug:            utils.NewSlug(),
		Title:           title,
		GoalDescription: "learn " + title,
		StartDate:       start,
		EndDate:         start.AddDate(0, 0, SprintDays),
	}
	require.NoError(t, db.Create(&s).Error)
	return s
}

// fakeGenerator answers prompts by name through respond and counts calls per objective id.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   map[string]int
	prompts []llm.Prompt
	respond func(p llm.Prompt, call int) (string, error)
}

var objectiveIDPattern = regexp.MustCompile(`"id": "([^"]+)"`)

func newFakeGenerator(respond func(p llm.Prompt, call int) (string, error)) *fakeGenerator {
	return &fakeGenerator{calls: map[string]int{}, respond: respond}
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, p llm.Prompt) (string, error) {
	key := p.Name
	if m := objectiveIDPattern.FindStringSubmatch(p.User); p.Name == "enrich" && m != nil {
		key = "enrich:" + m[1]
	}
	f.mu.Lock()
	f.calls[key]++
	call := f.calls[key]
	f.prompts = append(f.prompts, p)
	f.mu.Unlock()
	return f.respond(p, call)
}

func (f *fakeGenerator) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func objectiveIDOf(p llm.Prompt) string {
	if m := objectiveIDPattern.FindStringSubmatch(p.User); m != nil {
		return m[1]
	}
	return ""
}

func planJSON(t *testing.T, hours map[string]float64, order ...string) string {
	t.Helper()
	plan := ObjectivePlan{PrerequisiteKnowledge: []string{"basic programming"}}
	for i, id := range order {
		plan.Objectives = append(plan.Objectives, models.BaseObjective{
			ID:             id,
			Title:          "Objective " + id,
			Description:    "Do " + id,
			Type:           models.ObjectivePractice,
			Dependencies:   []string{},
			Priority:       i + 1,
			Concepts:       []string{"concept-" + id},
			EstimatedHours: hours[id],
		})
	}
	b, err := json.Marshal(plan)
	require.NoError(t, err)
	return string(b)
}

func enrichedJSON(t *testing.T, id string, estimated float64, phases ...float64) string {
	t.Helper()
	obj := models.EnrichedObjective{
		BaseObjective: models.BaseObjective{
			ID:             id,
			Title:          "Objective " + id,
			Description:    "Build the thing for " + id,
			Type:           models.ObjectiveProject,
			Dependencies:   []string{},
			Priority:       3,
			Concepts:       []string{"concept"},
			EstimatedHours: estimated,
		},
		ActivityDetails: models.ActivityDetails{
			Overview:         "Produce a working prototype",
			GettingStarted:   []string{"create a repo"},
			KeyMilestones:    []string{"prototype runs"},
			CommonChallenges: []string{"scope creep"},
		},
		ReflectionPrompts: []string{"what surprised you?"},
	}
	for i, h := range phases {
		obj.ActivityDetails.TimeBreakdown = append(obj.ActivityDetails.TimeBreakdown, models.TimeBlock{
			Phase:       fmt.Sprintf("phase %d", i+1),
			Hours:       h,
			Description: "work",
		})
	}
	b, err := json.Marshal(obj)
	require.NoError(t, err)
	return string(b)
}
