package chassis

import (
	"time"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/control"
)

// Projection tunes the closest-point search.
type Projection struct {
	Iterations int `yaml:"iterations" json:"iterations"`
	// Window bounds how far one search may move the cursor.
	Window float64 `yaml:"window" json:"window"`
	// FlatTolerance stops the search when the second derivative of the
	// distance is this close to zero.
	FlatTolerance float64 `yaml:"flat_tolerance" json:"flat_tolerance"`
}

type Config struct {
	Linear  control.PIDConfig `yaml:"linear" json:"linear"`
	Angular control.PIDConfig `yaml:"angular" json:"angular"`

	StanleyK float64 `yaml:"stanley_k" json:"stanley_k"`
	// VelocityEpsilon floors the ceiling sample the cross-track term is
	// divided by.
	VelocityEpsilon float64 `yaml:"velocity_epsilon" json:"velocity_epsilon"`

	SettleRadius float64 `yaml:"settle_radius" json:"settle_radius"`
	// CloseMin is the lowest ceiling frozen on entering the settle radius.
	CloseMin   float64 `yaml:"close_min" json:"close_min"`
	MaxAngular float64 `yaml:"max_angular" json:"max_angular"`
	// ChainMinAngular keeps chained terminal turns from stalling.
	ChainMinAngular  float64 `yaml:"chain_min_angular" json:"chain_min_angular"`
	TerminalProgress float64 `yaml:"terminal_progress" json:"terminal_progress"`

	Projection Projection `yaml:"projection" json:"projection"`

	// Period is the dt assumed on the first tick.
	Period time.Duration `yaml:"period" json:"period"`
}

func DefaultProjection() Projection {
	return Projection{Iterations: 5, Window: 0.5, FlatTolerance: 1e-4}
}

func DefaultConfig() Config {
	return Config{
		Linear: control.PIDConfig{
			Kp: 0.06, Kd: 0.3, Slew: 4,
			SmallError: 0.5, SmallTimeout: 100 * time.Millisecond,
			LargeError: 2, LargeTimeout: 500 * time.Millisecond,
		},
		Angular: control.PIDConfig{
			Kp: 0.6, Kd: 1.0, Slew: 8,
			SmallError: 0.02, SmallTimeout: 100 * time.Millisecond,
			LargeError: 0.06, LargeTimeout: 400 * time.Millisecond,
		},
		StanleyK:         2.3,
		VelocityEpsilon:  1e-3,
		SettleRadius:     7.5,
		CloseMin:         4.7 / 12,
		MaxAngular:       1,
		ChainMinAngular:  0.15,
		TerminalProgress: 0.975,
		Projection:       DefaultProjection(),
		Period:           25 * time.Millisecond,
	}
}
