package robot

import (
	"context"
	"time"
)

// TickFunc runs one iteration of a periodic task.
type TickFunc func(ctx context.Context)

// Periodic runs fn every period until ctx is cancelled. Missed ticks are
// dropped rather than replayed so a slow tick never causes a burst.
func Periodic(ctx context.Context, period time.Duration, mon *TickMonitor, fn TickFunc) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			fn(ctx)
			mon.Observe(time.Since(start))
		}
	}
}
