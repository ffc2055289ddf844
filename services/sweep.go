package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cppla/learnsprint/models"
	"github.com/cppla/learnsprint/utils"
)

const sweepLockKey = "learnsprint:lock:insight-sweep"

// ActiveSprintLister finds the sprints a sweep should analyze.
type ActiveSprintLister interface {
	ListActive(ctx context.Context) ([]models.Sprint, error)
}

// SprintAnalyzer produces an insight for one sprint.
type SprintAnalyzer interface {
	Analyze(ctx context.Context, sprintID string) (*InsightPayload, error)
}

// SweepConfig tunes the insight sweep.
type SweepConfig struct {
	Interval      time.Duration
	SprintTimeout time.Duration
	// Concurrency bounds parallel analyses within one sweep; <= 1 runs them one by one.
	Concurrency int
	// AllowOverlap lets a new sweep start while the previous one is still running.
	AllowOverlap bool
}

// SweepSummary reports one sweep.
type SweepSummary struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   bool          `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// Sweeper periodically analyzes every active sprint. Start and Stop bound its lifetime.
type Sweeper struct {
	sprints  ActiveSprintLister
	analyzer SprintAnalyzer
	lock     *utils.Lock
	cfg      SweepConfig
	metrics  *Metrics
	log      *zap.Logger

	running atomic.Bool

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a stopped sweeper. lock may be nil, in which case only the in-process
// guard prevents overlapping sweeps.
func NewSweeper(sprints ActiveSprintLister, analyzer SprintAnalyzer, lock *utils.Lock, cfg SweepConfig, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Sweeper{
		sprints:  sprints,
		analyzer: analyzer,
		lock:     lock,
		cfg:      cfg,
		metrics:  NewMetrics(),
		log:      log,
	}
}

// Start runs one sweep right away and then one every interval until Stop.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("sweeper already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(zap.NewStdLog(s.log.Named("cron"))))))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Interval), func() { s.tick(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron = c
	s.cancel = cancel
	c.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tick(ctx)
	}()

	s.log.Info("insight sweeper started", zap.Duration("interval", s.cfg.Interval))
	return nil
}

// Stop cancels in-flight analyses and waits for running sweeps to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	cancel()
	<-c.Stop().Done()
	s.wg.Wait()
	s.log.Info("insight sweeper stopped")
}

func (s *Sweeper) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("insight sweep failed", zap.Error(err))
	}
}

// RunOnce performs a single sweep. Per-sprint failures are counted and logged, never returned;
// the error is only for failing to list sprints.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepSummary, error) {
	var summary SweepSummary

	if !s.cfg.AllowOverlap {
		if !s.running.CompareAndSwap(false, true) {
			return s.skip("previous sweep still running"), nil
		}
		defer s.running.Store(false)

		if s.lock != nil {
			// the lock expires with the interval so a crashed holder never blocks the next tick
			release, ok := s.lock.TryAcquire(ctx, sweepLockKey, s.cfg.Interval)
			if !ok {
				return s.skip("sweep lock held elsewhere"), nil
			}
			defer release()
		}
	}

	start := time.Now()
	sprints, err := s.sprints.ListActive(ctx)
	if err != nil {
		s.metrics.Sweeps.WithLabelValues("failed").Inc()
		return summary, err
	}
	s.log.Info("insight sweep started", zap.Int("active_sprints", len(sprints)))

	var succeeded, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, sprint := range sprints {
		g.Go(func() error {
			if err := s.analyzeOne(ctx, sprint); err != nil {
				failed.Add(1)
				s.metrics.SweepSprints.WithLabelValues("failed").Inc()
				s.log.Warn("sprint analysis failed", zap.String("sprint", sprint.ID), zap.Error(err))
				return nil
			}
			succeeded.Add(1)
			s.metrics.SweepSprints.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	summary.Attempted = len(sprints)
	summary.Succeeded = int(succeeded.Load())
	summary.Failed = int(failed.Load())
	summary.Duration = time.Since(start)

	s.metrics.Sweeps.WithLabelValues("completed").Inc()
	s.metrics.SweepDuration.Observe(summary.Duration.Seconds())
	s.log.Info("insight sweep finished",
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

func (s *Sweeper) skip(reason string) SweepSummary {
	s.metrics.Sweeps.WithLabelValues("skipped").Inc()
	s.log.Info("insight sweep skipped", zap.String("reason", reason))
	return SweepSummary{Skipped: true}
}

func (s *Sweeper) analyzeOne(ctx context.Context, sprint models.Sprint) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("sprint analysis panicked",
				zap.String("sprint", sprint.ID),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
		}
	}()

	if s.cfg.SprintTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SprintTimeout)
		defer cancel()
	}
	_, err = s.analyzer.Analyze(ctx, sprint.ID)
	return err
}
