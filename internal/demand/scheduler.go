package demand

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/healthmap/internal/model"
)

// Runner is the part of Engine the scheduler drives.
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// Scheduler runs recompute passes on a fixed interval until its context is
// cancelled. Failed or skipped passes are logged and the loop continues.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	log        *zap.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(runner Runner, interval time.Duration, runOnStart bool) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runOnStart: runOnStart,
		log:        zap.L().With(zap.String("component", "demand.scheduler")),
	}
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("scheduler started",
		zap.Duration("interval", s.interval),
		zap.Bool("run_on_start", s.runOnStart),
	)
	if s.runOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.runner.Run(ctx)
	switch {
	case err == nil:
	case eris.Is(err, model.ErrRecomputeInProgress):
		s.log.Info("recompute skipped, another pass is running")
	case ctx.Err() != nil:
	default:
		s.log.Error("recompute failed", zap.Error(err))
	}
}
