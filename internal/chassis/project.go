package chassis

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

// Project refines t0 toward the parameter of the point on c closest to
// robot with Newton's method on the squared distance. The result stays
// within Window of t0. It also returns the signed cross-track error,
// positive when the robot is right of the direction of travel.
func Project(c path.Curve, robot r2.Point, t0 float64, p Projection) (float64, float64) {
	t := t0
	for i := 0; i < p.Iterations; i++ {
		diff := c.Sample(t).Sub(robot)
		d := c.Derivative(t)
		f := diff.Dot(d)
		df := d.Dot(d) + diff.Dot(c.Derivative2(t))
		if math.Abs(df) < p.FlatTolerance {
			break
		}
		t -= f / df
	}
	t = math.Max(t0-p.Window, math.Min(t, t0+p.Window))

	return t, CrossTrack(c, robot, t)
}

// CrossTrack is the signed distance from the curve point at t to robot.
func CrossTrack(c path.Curve, robot r2.Point, t float64) float64 {
	off := robot.Sub(c.Sample(t))
	if c.Derivative(t).Cross(off) > 0 {
		return -off.Norm()
	}
	return off.Norm()
}
