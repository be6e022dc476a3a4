package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-routing/internal/clock"
	"github.com/spec-kit/ticket-routing/internal/service"
)

// AssignmentFixer is the slice of the assignment service the sweeper needs.
type AssignmentFixer interface {
	FixAssignments(ctx context.Context) (service.FixResult, error)
}

// AssignmentSweeper periodically clears assignments that point at agents
// which no longer exist.
type AssignmentSweeper struct {
	fixer    AssignmentFixer
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger
}

// NewAssignmentSweeper builds a sweeper. A non-positive interval disables it.
func NewAssignmentSweeper(fixer AssignmentFixer, clk clock.Clock, interval time.Duration, logger *zap.Logger) *AssignmentSweeper {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentSweeper{fixer: fixer, clock: clk, interval: interval, logger: logger}
}

// Start registers the ticker and sweeps in the background until ctx is
// done. The returned channel is closed once the loop has exited.
func (s *AssignmentSweeper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if s.interval <= 0 {
		close(done)
		return done
	}

	ticker := s.clock.NewTicker(s.interval)
	s.logger.Info("assignment sweeper started", zap.Duration("interval", s.interval))
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("assignment sweeper stopped")
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
	return done
}

// SweepOnce runs a single pass. Failures are logged and retried on the
// next tick.
func (s *AssignmentSweeper) SweepOnce(ctx context.Context) {
	result, err := s.fixer.FixAssignments(ctx)
	if err != nil {
		s.logger.Warn("fix assignments failed", zap.Error(err))
		return
	}
	if result.FixedCount > 0 {
		s.logger.Info("fix assignments", zap.Int("fixed_count", result.FixedCount))
	}
}
