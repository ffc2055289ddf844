package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/learnsprint/services"
	"github.com/cppla/learnsprint/utils"
)

// SprintController manages sprints and their learning paths.
type SprintController struct {
	sprints *services.SprintService
	log     *zap.Logger
}

// NewSprintController creates a new SprintController instance.
func NewSprintController(sprints *services.SprintService, log *zap.Logger) *SprintController {
	return &SprintController{sprints: sprints, log: log}
}

// CreateSprint decomposes the goal into a learning path and stores the sprint.
func (s *SprintController) CreateSprint(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		Title           string     `json:"title" binding:"required"`
		GoalDescription string     `json:"goalDescription" binding:"required"`
		Topic           string     `json:"topic"`
		HoursPerDay     float64    `json:"hoursPerDay" binding:"required"`
		Level           string     `json:"level" binding:"required"`
		StartDate       *time.Time `json:"startDate"`
		EndDate         *time.Time `json:"endDate"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	in := services.CreateSprintInput{
		UserID:          userID,
		Title:           req.Title,
		GoalDescription: req.GoalDescription,
		Topic:           req.Topic,
		HoursPerDay:     req.HoursPerDay,
		Level:           req.Level,
	}
	if req.StartDate != nil {
		in.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		in.EndDate = *req.EndDate
	}

	sprint, plan, err := s.sprints.Create(ctx.Request.Context(), in)
	if err != nil {
		fail(ctx, s.log, err, 21, "create sprint")
		return
	}
	utils.Created(ctx, gin.H{
		"sprint": sprint,
		"plan":   plan,
	})
}

// ListSprints returns the caller's sprints with their stats.
func (s *SprintController) ListSprints(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	sprints, err := s.sprints.List(ctx.Request.Context(), userID)
	if err != nil {
		fail(ctx, s.log, err, 22, "list sprints")
		return
	}
	utils.Success(ctx, gin.H{"sprints": sprints})
}

// GetSprint returns one sprint by slug with stats and recent check-ins.
func (s *SprintController) GetSprint(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	sprint, err := s.sprints.GetBySlug(ctx.Request.Context(), userID, ctx.Param("slug"))
	if err != nil {
		fail(ctx, s.log, err, 23, "load sprint")
		return
	}
	utils.Success(ctx, gin.H{"sprint": sprint})
}
