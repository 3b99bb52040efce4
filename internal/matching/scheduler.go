package matching

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"docrecon/internal/logger"
)

// CycleRunner runs one matching cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (CycleReport, error)
}

// Scheduler triggers a cycle immediately and then on every tick.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	log      zerolog.Logger
}

func NewScheduler(runner CycleRunner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		log:      logger.WithComponent("scheduler"),
	}
}

// Run blocks until ctx is done. Cycle errors are logged, never returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}

	s.log.Info().Dur("interval", s.interval).Msg("Matching scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			s.log.Info().Msg("Matching scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.runner.RunCycle(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrCycleInProgress):
		s.log.Warn().Msg("Previous matching cycle still running, skipping tick")
	case ctx.Err() != nil:
	default:
		s.log.Error().Err(err).Msg("Matching cycle failed")
	}
}
