package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/learnsprint/config"
	"github.com/cppla/learnsprint/llm"
	"github.com/cppla/learnsprint/models"
	"github.com/cppla/learnsprint/notify"
	"github.com/cppla/learnsprint/routes"
	"github.com/cppla/learnsprint/services"
	"github.com/cppla/learnsprint/utils"
)

// app holds the wired services of one process.
type app struct {
	cfg      config.AppConfig
	db       *gorm.DB
	sprints  *services.SprintService
	progress *services.ProgressService
	stats    *services.StatsService
	analyzer *services.Analyzer
	sweeper  *services.Sweeper
	llmReady bool
}

func loadConfig() (config.AppConfig, error) {
	if configPath != "" {
		config.DefaultConfigPath = configPath
	}
	cfg, err := config.Load()
	if err != nil {
		return config.AppConfig{}, err
	}
	if err := utils.InitLogger(cfg); err != nil {
		return config.AppConfig{}, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func buildApp(cfg config.AppConfig, log *zap.Logger) (*app, error) {
	db, err := config.InitDatabase(cfg, log,
		&models.Sprint{}, &models.ProgressEntry{}, &models.SprintStats{}, &models.SprintInsight{})
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	mode, err := services.ParseDayMode(cfg.StreakDayMode)
	if err != nil {
		return nil, err
	}

	var gen llm.Generator = llm.Disabled{}
	ready := false
	if cfg.OpenAIAPIKey != "" {
		client, err := llm.New(llm.Config{
			APIKey:            cfg.OpenAIAPIKey,
			Model:             cfg.LLMModel,
			BaseURL:           cfg.LLMBaseURL,
			Timeout:           cfg.LLMTimeout,
			MaxRetries:        cfg.LLMMaxRetries,
			RequestsPerMinute: cfg.LLMRequestsPerMinute,
		}, log.Named("llm"))
		if err != nil {
			return nil, err
		}
		gen, ready = client, true
	} else {
		log.Warn("OPENAI_API_KEY not set; sprint creation and insights are disabled")
	}

	rc := utils.NewRedis(cfg)
	cache := utils.NewCache(rc, log.Named("cache"))

	var notifier services.InsightNotifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, log.Named("telegram"))
		if err != nil {
			log.Warn("telegram notifications disabled", zap.Error(err))
		} else {
			notifier = tg
		}
	}

	decomposer := services.NewDecomposer(gen, log.Named("decompose"), services.DecomposerOptions{
		Concurrency: cfg.LLMEnrichConcurrency,
		Temperature: cfg.LLMTemperature,
		Policy:      services.FailurePolicy{RetryFailed: cfg.DecomposeRetryFailed},
	})
	sprints := services.NewSprintService(db, decomposer, log.Named("sprints"))
	analyzer := services.NewAnalyzer(db, gen, log.Named("insights"), services.AnalyzerOptions{
		Temperature: cfg.LLMTemperature,
		Cache:       cache,
		Notifier:    notifier,
	})

	return &app{
		cfg:      cfg,
		db:       db,
		sprints:  sprints,
		progress: services.NewProgressService(db, services.StreakPolicy{Mode: mode, Location: loc}, cache, log.Named("progress")),
		stats:    services.NewStatsService(db, cache, cfg.StatsCacheTTL),
		analyzer: analyzer,
		sweeper: services.NewSweeper(sprints, analyzer, utils.NewLock(rc), services.SweepConfig{
			Interval:      cfg.InsightsInterval,
			SprintTimeout: cfg.InsightsSprintTimeout,
			Concurrency:   cfg.InsightsConcurrency,
			AllowOverlap:  cfg.InsightsAllowOverlap,
		}, log.Named("sweep")),
		llmReady: ready,
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = utils.Logger.Sync() }()
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}

	a, err := buildApp(cfg, utils.Logger)
	if err != nil {
		utils.Logger.Error("startup failed", zap.Error(err))
		return err
	}

	if cfg.InsightsEnabled && a.llmReady {
		if err := a.sweeper.Start(); err != nil {
			return err
		}
	}

	r := routes.SetupRouter(cfg, routes.Services{
		Sprints:  a.sprints,
		Progress: a.progress,
		Stats:    a.stats,
		Analyzer: a.analyzer,
	}, utils.Logger.Named("http"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(ctx, ":"+cfg.AppPort, r, a.sweeper.Stop); err != nil {
		utils.Sugar.Errorf("server stopped with error: %v", err)
		return err
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = utils.Logger.Sync() }()

	a, err := buildApp(cfg, utils.Logger)
	if err != nil {
		return err
	}
	if !a.llmReady {
		return llm.ErrNotConfigured
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	summary, err := a.sweeper.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "attempted=%d succeeded=%d failed=%d skipped=%t duration=%s\n",
		summary.Attempted, summary.Succeeded, summary.Failed, summary.Skipped, summary.Duration.Round(time.Millisecond))
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}
	ttl, err := time.ParseDuration(tokenTTL)
	if err != nil {
		return fmt.Errorf("invalid --ttl: %w", err)
	}
	token, err := utils.GenerateToken(cfg.JWTSecret, tokenUser, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
