package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cppla/learnsprint/llm"
	"github.com/cppla/learnsprint/models"
)

func happyGenerator(t *testing.T) *fakeGenerator {
	return newFakeGenerator(func(p llm.Prompt, _ int) (string, error) {
		if p.Name == "decompose" {
			return planJSON(t, stageHours, "o1", "o2", "o3"), nil
		}
		return happyEnrich(t, p)
	})
}

func newTestSprintService(t *testing.T, gen llm.Generator) *SprintService {
	db := newTestDB(t)
	log := zaptest.NewLogger(t)
	return NewSprintService(db, NewDecomposer(gen, log, DecomposerOptions{}), log)
}

func createInput(user string) CreateSprintInput {
	return CreateSprintInput{
		UserID:          user,
		Title:           "Go <em>concurrency</em>",
		GoalDescription: "Write a worker pool",
		HoursPerDay:     2,
		Level:           LevelIntermediate,
	}
}

func TestSprintService_Create(t *testing.T) {
	gen := happyGenerator(t)
	svc := newTestSprintService(t, gen)

	sprint, plan, err := svc.Create(context.Background(), createInput("user-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, sprint.ID)
	assert.Len(t, sprint.Slug, 6)
	assert.Equal(t, "Go concurrency", sprint.Title)
	assert.Equal(t, models.SprintActive, sprint.Status)
	assert.True(t, sprint.EndDate.Equal(sprint.StartDate.AddDate(0, 0, SprintDays)))
	require.NotNil(t, sprint.Stats)
	assert.Zero(t, sprint.Stats.DaysWithProgress)
	require.Len(t, plan.Objectives, 3)

	// the goal is the decomposition topic when none is given
	assert.Contains(t, gen.prompts[0].User, "Write a worker pool")

	got, err := svc.GetBySlug(context.Background(), "user-1", sprint.Slug)
	require.NoError(t, err)
	assert.Equal(t, sprint.ID, got.ID)
}

func TestSprintService_CreateFailsWithoutPersisting(t *testing.T) {
	gen := newFakeGenerator(func(p llm.Prompt, _ int) (string, error) {
		if p.Name == "decompose" {
			return planJSON(t, stageHours, "o1", "o2", "o3"), nil
		}
		return "{}", nil
	})
	svc := newTestSprintService(t, gen)

	_, _, err := svc.Create(context.Background(), createInput("user-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGeneration))

	var rows int64
	require.NoError(t, svc.db.Model(&models.Sprint{}).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestSprintService_CreateValidation(t *testing.T) {
	svc := newTestSprintService(t, happyGenerator(t))
	ctx := context.Background()

	in := createInput("user-1")
	in.Title = "<b></b>"
	_, _, err := svc.Create(ctx, in)
	assert.True(t, errors.Is(err, ErrValidation))

	in = createInput("user-1")
	in.StartDate = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	in.EndDate = in.StartDate.Add(-time.Hour)
	_, _, err = svc.Create(ctx, in)
	assert.True(t, errors.Is(err, ErrValidation))

	in = createInput("user-1")
	in.Level = "wizard"
	_, _, err = svc.Create(ctx, in)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestSprintService_ListAndOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := NewSprintService(db, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	mine := seedSprint(t, db, "user-1", "Rust")
	seedSprint(t, db, "user-2", "Haskell")
	paused := seedSprint(t, db, "user-1", "Elixir")
	require.NoError(t, db.Model(&paused).Update("status", models.SprintPaused).Error)

	list, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, s := range list {
		assert.Equal(t, "user-1", s.UserID)
		require.NotNil(t, s.Stats, "zero stats filled in")
	}

	_, err = svc.GetOwned(ctx, "user-2", mine.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = svc.GetBySlug(ctx, "user-2", mine.Slug)
	assert.True(t, errors.Is(err, ErrNotFound))

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
	for _, s := range active {
		assert.Equal(t, models.SprintActive, s.Status)
	}
}

func TestSprintService_CreateWithoutDecomposer(t *testing.T) {
	svc := NewSprintService(newTestDB(t), nil, zaptest.NewLogger(t))
	_, _, err := svc.Create(context.Background(), createInput("user-1"))
	assert.True(t, errors.Is(err, ErrGeneration))
}
