package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cppla/learnsprint/config"
	"github.com/cppla/learnsprint/controllers"
	"github.com/cppla/learnsprint/middleware"
	"github.com/cppla/learnsprint/services"
	"github.com/cppla/learnsprint/utils"
)

// Services are the collaborators the HTTP layer dispatches to.
type Services struct {
	Sprints  *services.SprintService
	Progress *services.ProgressService
	Stats    *services.StatsService
	Analyzer services.SprintAnalyzer
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, svc Services, log *zap.Logger) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	// Access log goes to its own rolling file; the application log stays on the main logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
		r.Use(ginzap.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sprintController := controllers.NewSprintController(svc.Sprints, log)
	progressController := controllers.NewProgressController(svc.Progress, svc.Sprints, log)
	statsController := controllers.NewStatsController(svc.Stats, log)
	insightController := controllers.NewInsightController(svc.Sprints, svc.Analyzer, log)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthRequired(cfg.JWTSecret), middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))

	api.POST("/sprints", sprintController.CreateSprint)
	api.GET("/sprints", sprintController.ListSprints)
	api.GET("/sprints/:slug", sprintController.GetSprint)
	api.POST("/insights/:sprintId", insightController.Analyze)

	api.POST("/progress/:sprintId", progressController.AddProgress)
	api.GET("/progress/:sprintId", progressController.ListProgress)

	api.GET("/stats/:sprintId", statsController.GetStats)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		ctx.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})

	return r
}
