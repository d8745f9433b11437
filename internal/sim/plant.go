package sim

import (
	"math"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

// Plant state layout.
const (
	stateX = iota
	stateY
	stateHeading
	stateVL
	stateVR
	stateDistL
	stateDistR
	stateDim
)

type PlantConfig struct {
	// MaxSpeed is wheel surface speed at full command, in/s.
	MaxSpeed float64 `yaml:"max_speed" json:"max_speed"`
	// Tau is the motor time constant in seconds.
	Tau        float64 `yaml:"tau" json:"tau"`
	TrackWidth float64 `yaml:"track_width" json:"track_width"`
}

func DefaultPlant() PlantConfig {
	return PlantConfig{MaxSpeed: 60, Tau: 0.05, TrackWidth: 11.5}
}

// DiffDrive is a tank drive whose side speeds follow their commands with a
// first-order lag.
type DiffDrive struct {
	cfg PlantConfig
}

func NewDiffDrive(cfg PlantConfig) *DiffDrive {
	return &DiffDrive{cfg: cfg}
}

func (d *DiffDrive) StateDim() int   { return stateDim }
func (d *DiffDrive) ControlDim() int { return 2 }

// Initial is a stationary state at p.
func (d *DiffDrive) Initial(p path.Pose) State {
	x := make(State, stateDim)
	x[stateX], x[stateY], x[stateHeading] = p.X, p.Y, p.Heading
	return x
}

func (d *DiffDrive) Derivative(x State, u Control, t float64) State {
	h, vl, vr := x[stateHeading], x[stateVL], x[stateVR]

	var cl, cr float64
	if len(u) >= 2 {
		cl, cr = clampUnit(u[0]), clampUnit(u[1])
	}

	v := (vl + vr) / 2
	w := (vr - vl) / d.cfg.TrackWidth
	sin, cos := math.Sin(h), math.Cos(h)

	dx := make(State, stateDim)
	dx[stateX] = -sin * v
	dx[stateY] = cos * v
	dx[stateHeading] = w
	dx[stateVL] = (cl*d.cfg.MaxSpeed - vl) / d.cfg.Tau
	dx[stateVR] = (cr*d.cfg.MaxSpeed - vr) / d.cfg.Tau
	dx[stateDistL] = vl
	dx[stateDistR] = vr
	return dx
}

// Pose reads the robot pose out of a plant state.
func (d *DiffDrive) Pose(x State) path.Pose {
	return path.Pose{X: x[stateX], Y: x[stateY], Heading: path.NormalizeAngle(x[stateHeading])}
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(v, 1))
}
