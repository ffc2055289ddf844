package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/learnsprint/services"
	"github.com/cppla/learnsprint/utils"
)

// ProgressController records and lists daily check-ins.
type ProgressController struct {
	progress *services.ProgressService
	sprints  *services.SprintService
	log      *zap.Logger
}

// NewProgressController creates a new ProgressController instance.
func NewProgressController(progress *services.ProgressService, sprints *services.SprintService, log *zap.Logger) *ProgressController {
	return &ProgressController{progress: progress, sprints: sprints, log: log}
}

// AddProgress records a check-in and returns it with the updated stats.
func (p *ProgressController) AddProgress(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var req struct {
		Progress      string     `json:"progress" binding:"required"`
		TimeOfDay     []string   `json:"timeOfDay" binding:"required,min=1"`
		Effectiveness string     `json:"effectiveness" binding:"required"`
		Reflection    *string    `json:"reflection"`
		Date          *time.Time `json:"date"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	entry, sprint, err := p.progress.Record(ctx.Request.Context(), userID, ctx.Param("sprintId"), services.ProgressInput{
		Progress:      req.Progress,
		TimeOfDay:     req.TimeOfDay,
		Effectiveness: req.Effectiveness,
		Reflection:    req.Reflection,
		Date:          req.Date,
	})
	if err != nil {
		fail(ctx, p.log, err, 31, "record progress")
		return
	}
	utils.Created(ctx, gin.H{
		"progress": entry,
		"sprint":   sprint,
	})
}

// ListProgress returns the sprint with its most recent check-ins and stats.
func (p *ProgressController) ListProgress(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	sprint, err := p.sprints.GetOwned(ctx.Request.Context(), userID, ctx.Param("sprintId"))
	if err != nil {
		fail(ctx, p.log, err, 32, "load progress")
		return
	}
	utils.Success(ctx, gin.H{"sprint": sprint})
}
