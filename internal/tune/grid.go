// Package tune searches chassis gains against simulated runs.
package tune

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/chassis"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/telemetry"
)

var (
	ErrUnknownParam = errors.New("tune: unknown parameter")
	ErrBadParam     = errors.New("tune: malformed parameter")
	ErrNoResult     = errors.New("tune: every candidate failed")
)

var setters = map[string]func(*chassis.Config, float64){
	"linear.kp":     func(c *chassis.Config, v float64) { c.Linear.Kp = v },
	"linear.ki":     func(c *chassis.Config, v float64) { c.Linear.Ki = v },
	"linear.kd":     func(c *chassis.Config, v float64) { c.Linear.Kd = v },
	"linear.slew":   func(c *chassis.Config, v float64) { c.Linear.Slew = v },
	"angular.kp":    func(c *chassis.Config, v float64) { c.Angular.Kp = v },
	"angular.ki":    func(c *chassis.Config, v float64) { c.Angular.Ki = v },
	"angular.kd":    func(c *chassis.Config, v float64) { c.Angular.Kd = v },
	"angular.slew":  func(c *chassis.Config, v float64) { c.Angular.Slew = v },
	"stanley_k":     func(c *chassis.Config, v float64) { c.StanleyK = v },
	"settle_radius": func(c *chassis.Config, v float64) { c.SettleRadius = v },
	"close_min":     func(c *chassis.Config, v float64) { c.CloseMin = v },
	"max_angular":   func(c *chassis.Config, v float64) { c.MaxAngular = v },
}

// Names lists the tunable parameters.
func Names() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Param struct {
	Name   string
	Values []float64
}

// ParseParam reads "name=v1,v2,...".
func ParseParam(s string) (Param, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return Param{}, fmt.Errorf("%w: %q", ErrBadParam, s)
	}
	name = strings.TrimSpace(name)
	if _, ok := setters[name]; !ok {
		return Param{}, fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	p := Param{Name: name}
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Param{}, fmt.Errorf("%w: %s: %v", ErrBadParam, name, err)
		}
		p.Values = append(p.Values, v)
	}
	return p, nil
}

// Apply returns base with params set.
func Apply(base chassis.Config, params map[string]float64) (chassis.Config, error) {
	cfg := base
	for name, v := range params {
		set, ok := setters[name]
		if !ok {
			return cfg, fmt.Errorf("%w: %s", ErrUnknownParam, name)
		}
		set(&cfg, v)
	}
	return cfg, nil
}

// Objective scores a run; lower is better.
type Objective func(run *telemetry.Run) float64

// DefaultObjective trades run time against the final pose error and
// penalises runs that timed out.
func DefaultObjective(run *telemetry.Run) float64 {
	score := run.Metrics["duration"] +
		run.Metrics["final_position_error"] +
		10*run.Metrics["final_heading_error"] +
		run.Metrics["cross_track_rms"]
	if !run.Completed {
		score += 100
	}
	return score + 5*float64(run.Forced)
}

// Evaluator runs one candidate configuration.
type Evaluator func(ctx context.Context, cfg chassis.Config) (*telemetry.Run, error)

type Candidate struct {
	Params map[string]float64
	Score  float64
	Run    *telemetry.Run
	Err    error
}

type GridSearch struct {
	params []Param
	// Workers bounds concurrent evaluations; zero means one.
	Workers int
	log     *zap.Logger
}

func NewGridSearch(params []Param, log *zap.Logger) (*GridSearch, error) {
	for _, p := range params {
		if _, ok := setters[p.Name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParam, p.Name)
		}
		if len(p.Values) == 0 {
			return nil, fmt.Errorf("%w: %s has no values", ErrBadParam, p.Name)
		}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GridSearch{params: params, Workers: 1, log: log}, nil
}

// Combinations enumerates every point of the grid.
func (g *GridSearch) Combinations() []map[string]float64 {
	var out []map[string]float64
	g.collect(0, make(map[string]float64), &out)
	return out
}

func (g *GridSearch) collect(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.params) {
		*out = append(*out, current)
		return
	}
	p := g.params[depth]
	for _, val := range p.Values {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[p.Name] = val
		g.collect(depth+1, next, out)
	}
}

// Search evaluates the grid around base and returns every candidate
// sorted best first. Failed candidates sort last with an infinite score.
func (g *GridSearch) Search(ctx context.Context, base chassis.Config, eval Evaluator, objective Objective) ([]Candidate, error) {
	if objective == nil {
		objective = DefaultObjective
	}
	combos := g.Combinations()
	results := make([]Candidate, len(combos))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(g.Workers, 1))
	for i, params := range combos {
		eg.Go(func() error {
			c := Candidate{Params: params, Score: math.Inf(1)}
			cfg, err := Apply(base, params)
			if err == nil {
				c.Run, err = eval(ctx, cfg)
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.Err = err
				g.log.Warn("candidate failed", zap.Any("params", params), zap.Error(err))
			} else {
				c.Score = objective(c.Run)
				g.log.Debug("candidate", zap.Any("params", params), zap.Float64("score", c.Score))
			}
			results[i] = c
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score < results[j].Score })

	if len(results) > 0 && results[0].Err != nil {
		var errs error
		for _, c := range results {
			errs = multierr.Append(errs, c.Err)
		}
		return results, fmt.Errorf("%w: %w", ErrNoResult, errs)
	}
	return results, nil
}
