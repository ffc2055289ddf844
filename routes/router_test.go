package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cppla/learnsprint/config"
	"github.com/cppla/learnsprint/llm"
	"github.com/cppla/learnsprint/models"
	"github.com/cppla/learnsprint/services"
	"github.com/cppla/learnsprint/utils"
)

const testSecret = "router-test-secret"

const (
	planOK = `{
  "objectives": [{
    "id": "obj-1", "title": "Ownership", "description": "Learn borrowing",
    "type": "practice", "dependencies": [], "priority": 1,
    "concepts": ["borrow checker"], "estimatedHours": 28
  }],
  "prerequisiteKnowledge": ["basic programming"]
}`
	enrichOK = `{
  "id": "obj-1", "title": "Ownership", "description": "Learn borrowing",
  "type": "practice", "dependencies": [], "priority": 1,
  "concepts": ["borrow checker"], "estimatedHours": 28,
  "activityDetails": {
    "overview": "Write small programs that fight the borrow checker",
    "gettingStarted": ["install rustup"],
    "keyMilestones": ["a linked list compiles"],
    "commonChallenges": ["lifetimes"],
    "timeBreakdown": [
      {"phase": "read", "hours": 8, "description": "the book"},
      {"phase": "build", "hours": 20, "description": "exercises"}
    ]
  },
  "reflectionPrompts": ["what clicked?"]
}`
	insightOK = `{
  "detectedPatterns": ["Mornings are productive"],
  "suggestedAdjustment": {"type": "continue", "rationale": "steady", "suggestedActions": ["keep going"]}
}`
)

// cannedGenerator answers by prompt name; err forces every call to fail.
type cannedGenerator struct {
	replies map[string]string
	err     error
}

func (g cannedGenerator) GenerateJSON(_ context.Context, p llm.Prompt) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.replies[p.Name], nil
}

func healthyGenerator() cannedGenerator {
	return cannedGenerator{replies: map[string]string{
		"decompose": planOK,
		"enrich":    enrichOK,
		"insights":  insightOK,
	}}
}

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T, gen llm.Generator, opts ...func(*config.AppConfig)) *testServer {
	t.Helper()
	log := zaptest.NewLogger(t)
	cfg := config.AppConfig{
		GinMode:     "test",
		JWTSecret:   testSecret,
		DBDriver:    "sqlite",
		DatabaseURI: filepath.Join(t.TempDir(), "router.db"),
		LogLevel:    "silent",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	db, err := config.OpenDatabase(cfg, log)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Sprint{}, &models.ProgressEntry{}, &models.SprintStats{}, &models.SprintInsight{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	policy := services.StreakPolicy{Mode: services.DayModeCalendar, Location: time.UTC}
	svc := Services{
		Sprints:  services.NewSprintService(db, services.NewDecomposer(gen, log, services.DecomposerOptions{}), log),
		Progress: services.NewProgressService(db, policy, nil, log),
		Stats:    services.NewStatsService(db, nil, time.Minute),
		Analyzer: services.NewAnalyzer(db, gen, log, services.AnalyzerOptions{}),
	}
	return &testServer{t: t, handler: SetupRouter(cfg, svc, log)}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(method, path, user string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		tok, err := utils.GenerateToken(testSecret, user, time.Hour)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func newSprintBody() map[string]interface{} {
	return map[string]interface{}{
		"title":           "Learn Rust",
		"goalDescription": "Become productive in Rust",
		"hoursPerDay":     2,
		"level":           "beginner",
	}
}

// createSprint returns the id and slug of a new sprint owned by user.
func (s *testServer) createSprint(user string) (string, string) {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/api/v1/sprints", user, newSprintBody())
	require.Equal(s.t, http.StatusCreated, status, env.Message)
	var data struct {
		Sprint models.Sprint         `json:"sprint"`
		Plan   models.Decomposition `json:"plan"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &data))
	return data.Sprint.ID, data.Sprint.Slug
}

func TestHealthAndNoRoute(t *testing.T) {
	s := newTestServer(t, healthyGenerator())

	status, _ := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env := s.do(http.MethodGet, "/api/v1/nope", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, 40400, env.Code)
}

func TestAccessLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "access.log")
	s := newTestServer(t, healthyGenerator(), func(c *config.AppConfig) { c.GinPath = path })

	status, _ := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.SplitN(b, []byte("\n"), 2)[0], &line))
	assert.Equal(t, "/health", line["path"])
	assert.EqualValues(t, http.StatusOK, line["status"])
	assert.Equal(t, http.MethodGet, line["method"])
}

func TestRequiresAuth(t *testing.T) {
	s := newTestServer(t, healthyGenerator())
	status, env := s.do(http.MethodGet, "/api/v1/sprints", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, 40101, env.Code)
}

func TestSprintLifecycle(t *testing.T) {
	s := newTestServer(t, healthyGenerator())

	status, env := s.do(http.MethodPost, "/api/v1/sprints", "user-1", newSprintBody())
	require.Equal(t, http.StatusCreated, status, env.Message)
	var created struct {
		Sprint models.Sprint         `json:"sprint"`
		Plan   models.Decomposition `json:"plan"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Len(t, created.Sprint.Slug, 6)
	assert.InDelta(t, 28, created.Plan.TotalEstimatedHours, 1e-9)
	require.Len(t, created.Plan.Objectives, 1)
	assert.Len(t, created.Plan.Objectives[0].ActivityDetails.TimeBreakdown, 2)
	id := created.Sprint.ID

	for i, at := range []string{"2024-03-01T08:00:00Z", "2024-03-02T09:00:00Z"} {
		status, env = s.do(http.MethodPost, "/api/v1/progress/"+id, "user-1", map[string]interface{}{
			"progress":      fmt.Sprintf("chapter %d", i+1),
			"timeOfDay":     []string{"morning"},
			"effectiveness": "very",
			"date":          at,
		})
		require.Equal(t, http.StatusCreated, status, env.Message)
	}
	var recorded struct {
		Sprint models.Sprint `json:"sprint"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &recorded))
	require.NotNil(t, recorded.Sprint.Stats)
	assert.Equal(t, 2, recorded.Sprint.Stats.CurrentStreak)

	status, env = s.do(http.MethodPost, "/api/v1/insights/"+id, "user-1", nil)
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = s.do(http.MethodGet, "/api/v1/stats/"+id, "user-1", nil)
	require.Equal(t, http.StatusOK, status)
	var stats struct {
		Stats services.StatsView `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 2, stats.Stats.DaysShipped)
	assert.Equal(t, 2, stats.Stats.LongestStreak)
	require.Len(t, stats.Stats.TimeOfDay, 1)
	assert.Equal(t, 100, stats.Stats.TimeOfDay[0].EffectiveRate)
	require.NotNil(t, stats.Stats.LatestInsight)
	assert.Equal(t, "continue", stats.Stats.LatestInsight.Adjustment.Type)

	status, env = s.do(http.MethodGet, "/api/v1/sprints", "user-1", nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Sprints []models.Sprint `json:"sprints"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Sprints, 1)

	status, env = s.do(http.MethodGet, "/api/v1/progress/"+id, "user-1", nil)
	require.Equal(t, http.StatusOK, status)
	var withProgress struct {
		Sprint models.Sprint `json:"sprint"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &withProgress))
	require.Len(t, withProgress.Sprint.Progress, 2)
	assert.Equal(t, "chapter 2", withProgress.Sprint.Progress[0].Progress, "newest first")
}

func TestResponsesUseCamelCase(t *testing.T) {
	s := newTestServer(t, healthyGenerator())
	id, _ := s.createSprint("user-1")

	status, env := s.do(http.MethodPost, "/api/v1/progress/"+id, "user-1", map[string]interface{}{
		"progress": "read a chapter", "timeOfDay": []string{"evening"}, "effectiveness": "somewhat",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	progress := fields(t, mustField(t, env.Data, "progress"))
	sprint := fields(t, mustField(t, env.Data, "sprint"))
	stats := fields(t, mustField(t, mustField(t, env.Data, "sprint"), "stats"))

	for _, key := range []string{"sprintId", "timeOfDay", "createdAt"} {
		assert.Contains(t, progress, key)
	}
	for _, key := range []string{"userId", "goalDescription", "startDate", "endDate"} {
		assert.Contains(t, sprint, key)
	}
	for _, key := range []string{"daysWithProgress", "currentStreak", "longestStreak", "lastProgressDate"} {
		assert.Contains(t, stats, key)
	}
	assert.NotContains(t, progress, "time_of_day")
	assert.NotContains(t, sprint, "user_id")
}

func fields(t *testing.T, raw json.RawMessage) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func mustField(t *testing.T, raw json.RawMessage, key string) json.RawMessage {
	t.Helper()
	m := fields(t, raw)
	require.Contains(t, m, key)
	return m[key]
}

func TestOwnershipIsEnforced(t *testing.T) {
	s := newTestServer(t, healthyGenerator())
	id, slug := s.createSprint("owner")

	checks := []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodGet, "/api/v1/sprints/" + slug, nil},
		{http.MethodGet, "/api/v1/stats/" + id, nil},
		{http.MethodGet, "/api/v1/progress/" + id, nil},
		{http.MethodPost, "/api/v1/insights/" + id, nil},
		{http.MethodPost, "/api/v1/progress/" + id, map[string]interface{}{
			"progress": "sneaky", "timeOfDay": []string{"evening"}, "effectiveness": "not",
		}},
	}
	for _, c := range checks {
		status, _ := s.do(c.method, c.path, "intruder", c.body)
		assert.Equal(t, http.StatusNotFound, status, "%s %s", c.method, c.path)
	}

	status, _ := s.do(http.MethodGet, "/api/v1/sprints/"+slug, "owner", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestValidationErrors(t *testing.T) {
	s := newTestServer(t, healthyGenerator())
	id, _ := s.createSprint("user-1")

	status, env := s.do(http.MethodPost, "/api/v1/sprints", "user-1", map[string]interface{}{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40020, env.Code)

	body := newSprintBody()
	body["level"] = "wizard"
	status, env = s.do(http.MethodPost, "/api/v1/sprints", "user-1", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40021, env.Code)

	status, env = s.do(http.MethodPost, "/api/v1/progress/"+id, "user-1", map[string]interface{}{
		"progress": "did things", "timeOfDay": []string{"midnight"}, "effectiveness": "very",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 40031, env.Code)
}

func TestGenerationFailures(t *testing.T) {
	down := newTestServer(t, cannedGenerator{err: errors.New("upstream unavailable")})
	status, env := down.do(http.MethodPost, "/api/v1/sprints", "user-1", newSprintBody())
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, 50221, env.Code)

	malformed := healthyGenerator()
	malformed.replies["enrich"] = `{"id": "obj-1"}`
	s := newTestServer(t, malformed)
	status, env = s.do(http.MethodPost, "/api/v1/sprints", "user-1", newSprintBody())
	assert.Equal(t, http.StatusBadGateway, status, "schema violations are generation failures")
	assert.Equal(t, 50221, env.Code)

	status, env = s.do(http.MethodGet, "/api/v1/sprints", "user-1", nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Sprints []models.Sprint `json:"sprints"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list.Sprints, "nothing persisted")
}
