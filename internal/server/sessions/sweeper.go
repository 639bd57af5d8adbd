package sessions

import (
	"context"
	"time"

	"github.com/gestion-comercial/backend/internal/logging"
)

// Sweeper periodically deletes expired session rows.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	logger   logging.Logger
}

// NewSweeper constructs a Sweeper that runs every interval.
func NewSweeper(registry *Registry, interval time.Duration, logger logging.Logger) *Sweeper {
	return &Sweeper{registry: registry, interval: interval, logger: logger}
}

// Run sweeps on a ticker until the context is cancelled. It blocks, so run
// it on its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.registry.SweepExpired(ctx)
			if err != nil {
				s.logger.Error(ctx, "session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}
