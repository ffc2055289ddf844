package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/learnsprint/services"
	"github.com/cppla/learnsprint/utils"
)

// StatsController serves the per-sprint analytics view.
type StatsController struct {
	stats *services.StatsService
	log   *zap.Logger
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(stats *services.StatsService, log *zap.Logger) *StatsController {
	return &StatsController{stats: stats, log: log}
}

// GetStats returns streak counters, time-of-day effectiveness, recent check-ins and the latest insight.
func (s *StatsController) GetStats(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	view, err := s.stats.Get(ctx.Request.Context(), userID, ctx.Param("sprintId"))
	if err != nil {
		fail(ctx, s.log, err, 41, "load stats")
		return
	}
	utils.Success(ctx, gin.H{"stats": view})
}
