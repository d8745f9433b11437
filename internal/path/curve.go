package path

import (
	"math"

	"github.com/golang/geo/r2"
)

type CurveKind int

const (
	KindLinear CurveKind = iota
	KindCubicBezier
	KindCubicPolynomial
)

func (k CurveKind) String() string {
	switch k {
	case KindLinear:
		return "linear"
	case KindCubicBezier:
		return "cubic_bezier"
	case KindCubicPolynomial:
		return "cubic_polynomial"
	default:
		return "unknown"
	}
}

// Curve is a 2D parametric primitive over t in [0, 1]. Implementations do
// not clamp t.
type Curve interface {
	Sample(t float64) r2.Point
	Derivative(t float64) r2.Point
	Derivative2(t float64) r2.Point
	Heading(t float64) float64
	Kind() CurveKind
}

type Linear struct {
	Start r2.Point
	End   r2.Point
}

func NewLinear(start, end r2.Point) *Linear {
	return &Linear{Start: start, End: end}
}

func (l *Linear) Sample(t float64) r2.Point {
	return l.Start.Mul(1 - t).Add(l.End.Mul(t))
}

func (l *Linear) Derivative(float64) r2.Point  { return l.End.Sub(l.Start) }
func (l *Linear) Derivative2(float64) r2.Point { return r2.Point{} }
func (l *Linear) Heading(float64) float64      { return Bearing(l.End.Sub(l.Start)) }
func (l *Linear) Kind() CurveKind              { return KindLinear }

type CubicBezier struct {
	P0, P1, P2, P3 r2.Point
}

func NewCubicBezier(p0, p1, p2, p3 r2.Point) *CubicBezier {
	return &CubicBezier{P0: p0, P1: p1, P2: p2, P3: p3}
}

func (b *CubicBezier) Sample(t float64) r2.Point {
	u := 1 - t
	return b.P0.Mul(u * u * u).
		Add(b.P1.Mul(3 * u * u * t)).
		Add(b.P2.Mul(3 * u * t * t)).
		Add(b.P3.Mul(t * t * t))
}

func (b *CubicBezier) Derivative(t float64) r2.Point {
	u := 1 - t
	return b.P1.Sub(b.P0).Mul(3 * u * u).
		Add(b.P2.Sub(b.P1).Mul(6 * u * t)).
		Add(b.P3.Sub(b.P2).Mul(3 * t * t))
}

func (b *CubicBezier) Derivative2(t float64) r2.Point {
	a := b.P2.Sub(b.P1.Mul(2)).Add(b.P0)
	c := b.P3.Sub(b.P2.Mul(2)).Add(b.P1)
	return a.Mul(6 * (1 - t)).Add(c.Mul(6 * t))
}

func (b *CubicBezier) Heading(t float64) float64 { return Bearing(b.Derivative(t)) }
func (b *CubicBezier) Kind() CurveKind           { return KindCubicBezier }

// Cubic is the monomial A t³ + B t² + C t + D.
type Cubic struct {
	A, B, C, D float64
}

func (c Cubic) At(t float64) float64    { return ((c.A*t+c.B)*t+c.C)*t + c.D }
func (c Cubic) Slope(t float64) float64 { return (3*c.A*t+2*c.B)*t + c.C }
func (c Cubic) Accel(t float64) float64 { return 6*c.A*t + 2*c.B }

// CubicPolynomial is a per-axis cubic, produced by regression over
// recorded driving.
type CubicPolynomial struct {
	X Cubic
	Y Cubic
}

func NewCubicPolynomial(x, y Cubic) *CubicPolynomial {
	return &CubicPolynomial{X: x, Y: y}
}

func (p *CubicPolynomial) Sample(t float64) r2.Point {
	return r2.Point{X: p.X.At(t), Y: p.Y.At(t)}
}

func (p *CubicPolynomial) Derivative(t float64) r2.Point {
	return r2.Point{X: p.X.Slope(t), Y: p.Y.Slope(t)}
}

func (p *CubicPolynomial) Derivative2(t float64) r2.Point {
	return r2.Point{X: p.X.Accel(t), Y: p.Y.Accel(t)}
}

func (p *CubicPolynomial) Heading(t float64) float64 { return Bearing(p.Derivative(t)) }
func (p *CubicPolynomial) Kind() CurveKind           { return KindCubicPolynomial }

func Start(c Curve) r2.Point { return c.Sample(0) }
func End(c Curve) r2.Point   { return c.Sample(1) }

const arcLengthIntervals = 16

// ArcLength integrates |c'(t)| over [t0, t1] with composite Simpson's rule.
func ArcLength(c Curve, t0, t1 float64) float64 {
	if t1 <= t0 {
		return 0
	}
	n := arcLengthIntervals
	h := (t1 - t0) / float64(n)
	sum := c.Derivative(t0).Norm() + c.Derivative(t1).Norm()
	for i := 1; i < n; i++ {
		w := 2.0
		if i%2 == 1 {
			w = 4.0
		}
		sum += w * c.Derivative(t0+float64(i)*h).Norm()
	}
	return math.Abs(sum * h / 3)
}
