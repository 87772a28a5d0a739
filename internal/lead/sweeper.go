package lead

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs the auto-park pass on a fixed interval. A pass that is
// still running when the next tick fires is skipped rather than stacked.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	inFlight atomic.Bool
}

// NewSweeper creates a sweeper. Intervals below one minute are raised to
// one minute.
func NewSweeper(manager *Manager, interval time.Duration) *Sweeper {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &Sweeper{manager: manager, interval: interval}
}

// Run blocks until ctx is cancelled, executing a sweep every interval.
// The first sweep runs immediately.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		zap.L().Warn("auto-park sweep still running, skipping tick")
		return
	}
	defer s.inFlight.Store(false)

	if _, err := s.manager.AutoPark(ctx, false); err != nil {
		zap.L().Error("auto-park sweep failed", zap.Error(err))
	}
}
