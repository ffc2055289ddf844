package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cppla/learnsprint/models"
)

const planSystemPrompt = `You are an expert curriculum designer.
Break a learning goal into objectives that can be completed in %[1]s hours per day.

Objective types:
- "project": hands-on building of something concrete
- "practice": focused exercises and practical application
- "research": deep learning and exploration of concepts

Constraints:
1. The plan must fill %[1]s hours per day for %[2]d days.
2. Each objective should be completable in one sitting.
3. Priority (1-10) encodes dependency order: 1-3 foundational, 4-7 intermediate, 8-10 advanced.
   Objectives at the same level may share a priority.

Respond with VALID JSON of exactly this shape:
{
  "objectives": [
    {
      "id": "string",
      "title": "string",
      "description": "string",
      "type": "project" | "practice" | "research",
      "dependencies": ["objective id"],
      "priority": number (1-10),
      "concepts": ["string"],
      "estimatedHours": number
    }
  ],
  "prerequisiteKnowledge": ["string"]
}

Rules:
- "objectives" and "prerequisiteKnowledge" MUST both be present and non-empty.
- estimatedHours across all objectives MUST sum to exactly %[3]s.
- Every id MUST be unique; dependencies reference other ids.`

const planUserPrompt = `Create a diverse learning path for: %s

Available time: %s hours (%s hours/day for %d days)
Target depth: %s (beginner=1, intermediate=2, expert=3)
Suggested session lengths in hours: %s

Balance projects, practice and research. Objectives should build on each other,
be self-contained and allow self-guided progress.`

const enrichSystemPrompt = `You turn a learning objective into a concrete activity with clear deliverables.

Constraints:
- The activity MUST fit within exactly %[1]s hours.
- activityDetails.timeBreakdown hours MUST sum to exactly %[1]s.
- Every phase needs concrete actions and a tangible output.

For "practice" include specific exercises with example problems.
For "project" include specific things to build.
For "research" include specific topics to investigate and outputs to write.

Respond with VALID JSON of exactly this shape:
{
  "id": "string (unchanged)",
  "title": "string",
  "description": "string (the task to complete)",
  "type": "project" | "practice" | "research",
  "estimatedHours": number,
  "dependencies": ["string"],
  "priority": number (1-10),
  "concepts": ["string"],
  "activityDetails": {
    "overview": "string",
    "gettingStarted": ["string"],
    "keyMilestones": ["string"],
    "commonChallenges": ["string"],
    "timeBreakdown": [{"phase": "string", "hours": number, "description": "string"}]
  },
  "reflectionPrompts": ["string"]
}`

const enrichUserPrompt = `Create a specific, actionable task for learning "%s" at %s level.

Objective:
%s

The task must be immediately actionable, self-contained, clearly measurable
and focused on producing something specific.`

const insightSystemPrompt = `You are a learning coach reviewing a learner's daily check-ins for a %d-day sprint.
Look for behavioural patterns: consistency, time of day, effectiveness trends, recurring blockers.
Then recommend one adjustment:
- "continue": the current approach works
- "refine": keep the goal, change how the time is used
- "pivot": the goal or approach should change

Respond with VALID JSON of exactly this shape:
{
  "detectedPatterns": ["string"],
  "suggestedAdjustment": {
    "type": "continue" | "refine" | "pivot",
    "rationale": "string",
    "suggestedActions": ["string"]
  }
}`

const insightUserPrompt = `Sprint: %s
Goal: %s
Check-ins so far (oldest first):
%s`

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func formatBlocks(blocks []float64) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = formatHours(b)
	}
	return strings.Join(parts, ", ")
}

func planPrompts(req DecomposeRequest) (string, string) {
	total := req.HoursPerDay * SprintDays
	perDay := formatHours(req.HoursPerDay)
	system := fmt.Sprintf(planSystemPrompt, perDay, SprintDays, formatHours(total))
	user := fmt.Sprintf(planUserPrompt,
		req.Topic, formatHours(total), perDay, SprintDays, req.Level,
		formatBlocks(CalculateTimeBlocks(total, req.HoursPerDay)))
	return system, user
}

func enrichPrompts(req DecomposeRequest, obj models.BaseObjective) (string, string, error) {
	b, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return "", "", err
	}
	system := fmt.Sprintf(enrichSystemPrompt, formatHours(obj.EstimatedHours))
	user := fmt.Sprintf(enrichUserPrompt, req.Topic, req.Level, b)
	return system, user, nil
}

type checkIn struct {
	Date          string   `json:"date"`
	Shipped       string   `json:"shipped"`
	TimeOfDay     []string `json:"timeOfDay"`
	Effectiveness string   `json:"effectiveness"`
	Reflection    *string  `json:"reflection"`
}

func insightPrompts(sprint models.Sprint, history []models.ProgressEntry) (string, string, error) {
	rows := make([]checkIn, len(history))
	for i, e := range history {
		rows[i] = checkIn{
			Date:          e.Date.Format("2006-01-02 15:04"),
			Shipped:       e.Progress,
			TimeOfDay:     e.TimeOfDay,
			Effectiveness: e.Effectiveness,
			Reflection:    e.Reflection,
		}
	}
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", "", err
	}
	system := fmt.Sprintf(insightSystemPrompt, SprintDays)
	user := fmt.Sprintf(insightUserPrompt, sprint.Title, sprint.GoalDescription, b)
	return system, user, nil
}
