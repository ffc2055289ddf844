package models

// Decomposition types are produced at sprint creation and returned to the caller; they are not persisted.

// Objective types.
const (
	ObjectiveProject  = "project"
	ObjectivePractice = "practice"
	ObjectiveResearch = "research"
)

// BaseObjective is one coarse learning objective from the first planning stage.
type BaseObjective struct {
	ID             string   `json:"id" validate:"required"`
	Title          string   `json:"title" validate:"required"`
	Description    string   `json:"description" validate:"required"`
	Type           string   `json:"type" validate:"oneof=project practice research"`
	Dependencies   []string `json:"dependencies" validate:"required"`
	Priority       int      `json:"priority" validate:"min=1,max=10"`
	Concepts       []string `json:"concepts" validate:"required"`
	EstimatedHours float64  `json:"estimatedHours" validate:"gt=0"`
}

// TimeBlock is one phase of an objective's time breakdown.
type TimeBlock struct {
	Phase       string  `json:"phase" validate:"required"`
	Hours       float64 `json:"hours" validate:"gt=0"`
	Description string  `json:"description" validate:"required"`
}

// ActivityDetails is the concrete plan attached to an objective during enrichment.
type ActivityDetails struct {
	Overview         string      `json:"overview" validate:"required"`
	GettingStarted   []string    `json:"gettingStarted" validate:"required"`
	KeyMilestones    []string    `json:"keyMilestones" validate:"required"`
	CommonChallenges []string    `json:"commonChallenges" validate:"required"`
	TimeBreakdown    []TimeBlock `json:"timeBreakdown" validate:"required,min=1,dive"`
}

// EnrichedObjective is a BaseObjective with its activity plan.
type EnrichedObjective struct {
	BaseObjective
	ActivityDetails   ActivityDetails `json:"activityDetails"`
	ReflectionPrompts []string        `json:"reflectionPrompts" validate:"required"`
}

// Decomposition is the full learning path returned from sprint creation.
type Decomposition struct {
	Objectives            []EnrichedObjective `json:"objectives" validate:"required,min=1,dive"`
	TotalEstimatedHours   float64             `json:"totalEstimatedHours" validate:"gt=0"`
	PrerequisiteKnowledge []string            `json:"prerequisiteKnowledge" validate:"required,min=1"`
}
