// Package sim runs the motion core against a simulated differential drive
// so routines can be tuned and tested off the robot.
package sim

import (
	"errors"
	"math"
	"time"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/robot"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

type Dynamics interface {
	Derivative(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn Dynamics, x State, u Control, t float64, dt float64) State
}

var (
	// ErrDiverged indicates the plant state became NaN or Inf.
	ErrDiverged = errors.New("sim: plant state diverged")

	// ErrInvalidConfig indicates unusable simulation settings.
	ErrInvalidConfig = errors.New("sim: invalid config")
)

// Faults schedules hardware failures during a run. Zero times disable a
// fault.
type Faults struct {
	IMUDisconnect  time.Duration `yaml:"imu_disconnect" json:"imu_disconnect"`
	IMUReconnect   time.Duration `yaml:"imu_reconnect" json:"imu_reconnect"`
	LeftEncoderOut time.Duration `yaml:"left_encoder_out" json:"left_encoder_out"`
}

type Config struct {
	Dt      time.Duration `yaml:"dt" json:"dt"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	Seed    int64         `yaml:"seed" json:"seed"`

	Plant   PlantConfig  `yaml:"plant" json:"plant"`
	Runtime robot.Config `yaml:"-" json:"-"`

	// IMUNoise and EncoderNoise are standard deviations per reading, in
	// radians.
	IMUNoise     float64 `yaml:"imu_noise" json:"imu_noise"`
	EncoderNoise float64 `yaml:"encoder_noise" json:"encoder_noise"`

	Faults Faults `yaml:"faults" json:"faults"`
}

func DefaultConfig() Config {
	return Config{
		Dt:      5 * time.Millisecond,
		Timeout: 30 * time.Second,
		Seed:    1,
		Plant:   DefaultPlant(),
		Runtime: robot.DefaultConfig(),
	}
}
