package sim

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/telemetry"
)

// Ensemble repeats a routine across noise seeds. Trajectories and metrics
// carry state, so each run builds its own.
type Ensemble struct {
	base      *Simulator
	numRuns   int
	seedStart int64
	metrics   func() []telemetry.Metric
}

func NewEnsemble(s *Simulator, numRuns int, seedStart int64, metrics func() []telemetry.Metric) *Ensemble {
	return &Ensemble{base: s, numRuns: numRuns, seedStart: seedStart, metrics: metrics}
}

func (e *Ensemble) Run(ctx context.Context, name string, build func() (*path.Trajectory, error), cfg Config) ([]*telemetry.Run, error) {
	results := make([]*telemetry.Run, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			traj, err := build()
			if err != nil {
				errs[idx] = err
				return
			}

			cfgCopy := cfg
			cfgCopy.Seed = e.seedStart + int64(idx)

			sim := New(e.base.odom, e.base.chassis, NewRK4(), e.base.log)
			if e.metrics != nil {
				for _, m := range e.metrics() {
					sim.AddMetric(m)
				}
			}

			results[idx], err = sim.Run(ctx, name, traj, cfgCopy)
			if err != nil {
				errs[idx] = fmt.Errorf("seed %d: %w", cfgCopy.Seed, err)
			}
		}(i)
	}

	wg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}
	return results, nil
}

// Mean averages one metric over runs.
func Mean(runs []*telemetry.Run, metric string) float64 {
	if len(runs) == 0 {
		return 0
	}
	var sum float64
	for _, r := range runs {
		sum += r.Metrics[metric]
	}
	return sum / float64(len(runs))
}
