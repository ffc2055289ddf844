package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/learnsprint/services"
	"github.com/cppla/learnsprint/utils"
)

// InsightController runs on-demand pattern analysis.
type InsightController struct {
	sprints  *services.SprintService
	analyzer services.SprintAnalyzer
	log      *zap.Logger
}

// NewInsightController creates a new InsightController instance.
func NewInsightController(sprints *services.SprintService, analyzer services.SprintAnalyzer, log *zap.Logger) *InsightController {
	return &InsightController{sprints: sprints, analyzer: analyzer, log: log}
}

// Analyze generates and stores a fresh insight for an owned sprint.
func (i *InsightController) Analyze(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	sprint, err := i.sprints.GetOwned(ctx.Request.Context(), userID, ctx.Param("sprintId"))
	if err != nil {
		fail(ctx, i.log, err, 51, "analyze sprint")
		return
	}
	payload, err := i.analyzer.Analyze(ctx.Request.Context(), sprint.ID)
	if err != nil {
		fail(ctx, i.log, err, 52, "analyze sprint")
		return
	}
	utils.Created(ctx, gin.H{"insight": payload})
}
