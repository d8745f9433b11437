package path

import (
	"math"

	"github.com/golang/geo/r2"
)

// Pose is a field position plus heading.
type Pose struct {
	X       float64 `json:"x" yaml:"x"`
	Y       float64 `json:"y" yaml:"y"`
	Heading float64 `json:"heading" yaml:"heading"`
}

func (p Pose) Position() r2.Point { return r2.Point{X: p.X, Y: p.Y} }

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// Forward is the unit vector the robot faces at heading h.
func Forward(h float64) r2.Point {
	return r2.Point{X: -math.Sin(h), Y: math.Cos(h)}
}

// Bearing is the heading of vector v.
func Bearing(v r2.Point) float64 {
	return math.Atan2(-v.X, v.Y)
}

// Rotate turns a robot-local vector (x right, y forward) into field
// coordinates for heading h.
func Rotate(local r2.Point, h float64) r2.Point {
	s, c := math.Sincos(h)
	return r2.Point{X: local.X*c - local.Y*s, Y: local.X*s + local.Y*c}
}

func Deg(d float64) float64 { return d * math.Pi / 180 }

func ToDeg(r float64) float64 { return r * 180 / math.Pi }
