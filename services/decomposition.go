package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cppla/learnsprint/llm"
	"github.com/cppla/learnsprint/models"
)

// SprintDays is the fixed sprint length the plan has to fill.
const SprintDays = 14

// hoursTolerance absorbs float noise when comparing hour sums.
const hoursTolerance = 1e-6

// Difficulty levels.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelExpert       = "expert"
)

// DecomposeRequest is the input to goal decomposition.
type DecomposeRequest struct {
	Topic       string  `json:"topic" validate:"required"`
	HoursPerDay float64 `json:"hoursPerDay" validate:"gte=0.1,lte=24"`
	Level       string  `json:"level" validate:"oneof=beginner intermediate expert"`
}

// ObjectivePlan is the coarse plan from the first stage.
type ObjectivePlan struct {
	Objectives            []models.BaseObjective `json:"objectives" validate:"required,min=1,dive"`
	PrerequisiteKnowledge []string               `json:"prerequisiteKnowledge" validate:"required,min=1"`
}

// EnrichmentOutcome is the result of enriching one objective: either Enriched or Err is set.
type EnrichmentOutcome struct {
	Objective models.BaseObjective
	Enriched  *models.EnrichedObjective
	Err       error
}

// OK reports whether the objective was enriched and validated.
func (o EnrichmentOutcome) OK() bool { return o.Err == nil && o.Enriched != nil }

// FailurePolicy decides what happens to objectives whose enrichment failed.
// RetryFailed extra rounds re-enrich only the failures; anything still failing aborts the pipeline.
type FailurePolicy struct {
	RetryFailed int
}

// DecomposerOptions tunes the pipeline.
type DecomposerOptions struct {
	// Concurrency bounds parallel enrichment calls; <= 0 means unbounded.
	Concurrency int
	Temperature float64
	Policy      FailurePolicy
}

// Decomposer runs the two-stage planning pipeline against a generator.
type Decomposer struct {
	gen  llm.Generator
	log  *zap.Logger
	opts DecomposerOptions
}

// NewDecomposer wires a generator into the pipeline.
func NewDecomposer(gen llm.Generator, log *zap.Logger, opts DecomposerOptions) *Decomposer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decomposer{gen: gen, log: log, opts: opts}
}

// Decompose plans objectives for req, enriches each one and returns the validated learning path.
// Nothing is returned unless every objective was enriched.
func (d *Decomposer) Decompose(ctx context.Context, req DecomposeRequest) (*models.Decomposition, error) {
	if err := validate.Struct(req); err != nil {
		return nil, validationErr("decompose request: %v", err)
	}

	plan, err := d.PlanObjectives(ctx, req)
	if err != nil {
		return nil, err
	}

	outcomes := d.Enrich(ctx, req, plan.Objectives)
	for round := 1; round <= d.opts.Policy.RetryFailed; round++ {
		failed := failedIndexes(outcomes)
		if len(failed) == 0 || ctx.Err() != nil {
			break
		}
		d.log.Info("retrying failed enrichments",
			zap.Int("round", round),
			zap.Int("failed", len(failed)))
		retryObjs := make([]models.BaseObjective, len(failed))
		for i, idx := range failed {
			retryObjs[i] = outcomes[idx].Objective
		}
		for i, o := range d.Enrich(ctx, req, retryObjs) {
			outcomes[failed[i]] = o
		}
	}

	return Finalize(plan, outcomes)
}

// PlanObjectives runs the first stage and validates the coarse plan, including the hour budget.
func (d *Decomposer) PlanObjectives(ctx context.Context, req DecomposeRequest) (*ObjectivePlan, error) {
	system, user := planPrompts(req)
	raw, err := d.gen.GenerateJSON(ctx, llm.Prompt{
		Name:        "decompose",
		System:      system,
		User:        user,
		Temperature: d.opts.Temperature,
	})
	if err != nil {
		return nil, generationErr("plan objectives", err)
	}

	var plan ObjectivePlan
	if err := decodeGenerated("objectives", raw, &plan); err != nil {
		return nil, err
	}
	if err := checkPlan(&plan, req.HoursPerDay*SprintDays); err != nil {
		return nil, err
	}
	return &plan, nil
}

func checkPlan(plan *ObjectivePlan, target float64) error {
	ids := make([]string, len(plan.Objectives))
	sum := 0.0
	for i, o := range plan.Objectives {
		ids[i] = o.ID
		sum += o.EstimatedHours
	}
	if err := checkUniqueIDs("objectives", ids); err != nil {
		return err
	}
	if math.Abs(sum-target) > hoursTolerance {
		return &SchemaError{
			Stage:  "objectives",
			Field:  "objectives.estimatedHours",
			Reason: fmt.Sprintf("hours sum to %s, want %s", formatHours(sum), formatHours(target)),
		}
	}
	return nil
}

// Enrich expands every objective concurrently. One outcome per objective, in input order;
// a failure never cancels its siblings.
func (d *Decomposer) Enrich(ctx context.Context, req DecomposeRequest, objectives []models.BaseObjective) []EnrichmentOutcome {
	outcomes := make([]EnrichmentOutcome, len(objectives))
	var g errgroup.Group
	if d.opts.Concurrency > 0 {
		g.SetLimit(d.opts.Concurrency)
	}
	for i, obj := range objectives {
		g.Go(func() error {
			enriched, err := d.enrichOne(ctx, req, obj)
			outcomes[i] = EnrichmentOutcome{Objective: obj, Enriched: enriched, Err: err}
			if err != nil {
				d.log.Warn("objective enrichment failed",
					zap.String("objective", obj.ID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (d *Decomposer) enrichOne(ctx context.Context, req DecomposeRequest, obj models.BaseObjective) (*models.EnrichedObjective, error) {
	system, user, err := enrichPrompts(req, obj)
	if err != nil {
		return nil, err
	}
	raw, err := d.gen.GenerateJSON(ctx, llm.Prompt{
		Name:        "enrich",
		System:      system,
		User:        user,
		Temperature: d.opts.Temperature,
	})
	if err != nil {
		return nil, generationErr("enrich objective "+obj.ID, err)
	}

	var enriched models.EnrichedObjective
	stage := "enrichment " + obj.ID
	if err := decodeGenerated(stage, raw, &enriched); err != nil {
		return nil, err
	}
	if enriched.ID != obj.ID {
		return nil, &SchemaError{
			Stage:  stage,
			Field:  "id",
			Reason: fmt.Sprintf("got %q, want %q", enriched.ID, obj.ID),
		}
	}
	sum := 0.0
	for _, tb := range enriched.ActivityDetails.TimeBreakdown {
		sum += tb.Hours
	}
	if math.Abs(sum-obj.EstimatedHours) > hoursTolerance {
		return nil, &SchemaError{
			Stage:  stage,
			Field:  "activityDetails.timeBreakdown",
			Reason: fmt.Sprintf("phases sum to %s hours, want %s", formatHours(sum), formatHours(obj.EstimatedHours)),
		}
	}
	return &enriched, nil
}

// Finalize assembles the learning path from a plan and its enrichment outcomes.
// Any failed outcome aborts with that objective's error. totalEstimatedHours is the sum of
// the enriched objectives' own estimates, which may drift from the first-stage budget.
func Finalize(plan *ObjectivePlan, outcomes []EnrichmentOutcome) (*models.Decomposition, error) {
	if failed := failedIndexes(outcomes); len(failed) > 0 {
		first := outcomes[failed[0]]
		err := first.Err
		if err == nil {
			err = fmt.Errorf("%w: no result", ErrGeneration)
		}
		return nil, fmt.Errorf("%d of %d objectives failed enrichment, first %q: %w",
			len(failed), len(outcomes), first.Objective.ID, err)
	}

	result := &models.Decomposition{
		Objectives:            make([]models.EnrichedObjective, len(outcomes)),
		PrerequisiteKnowledge: plan.PrerequisiteKnowledge,
	}
	ids := make([]string, len(outcomes))
	for i, o := range outcomes {
		result.Objectives[i] = *o.Enriched
		result.TotalEstimatedHours += o.Enriched.EstimatedHours
		ids[i] = o.Enriched.ID
	}
	if err := checkShape("decomposition", result); err != nil {
		return nil, err
	}
	if err := checkUniqueIDs("decomposition", ids); err != nil {
		return nil, err
	}
	return result, nil
}

func checkUniqueIDs(stage string, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return &SchemaError{Stage: stage, Field: "objectives.id", Reason: fmt.Sprintf("duplicate id %q", id)}
		}
		seen[id] = struct{}{}
	}
	return nil
}

func failedIndexes(outcomes []EnrichmentOutcome) []int {
	var failed []int
	for i, o := range outcomes {
		if !o.OK() {
			failed = append(failed, i)
		}
	}
	return failed
}

// IsSchemaError reports whether err came from malformed model output.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
