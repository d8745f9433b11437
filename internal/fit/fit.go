// Package fit turns a recorded drive into a followable trajectory by
// fitting cubic polynomials over windows of samples.
package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

var (
	ErrTooFewSamples = errors.New("fit: too few samples")
	ErrSingular      = errors.New("fit: singular normal equations")
)

// Cubic fits v ≈ A t³ + B t² + C t + D by least squares, solving the 4x4
// normal equations with an LU factorization.
func Cubic(ts, vs []float64) (path.Cubic, error) {
	if len(ts) != len(vs) {
		return path.Cubic{}, fmt.Errorf("fit: %d times but %d values", len(ts), len(vs))
	}
	if len(ts) < 4 {
		return path.Cubic{}, fmt.Errorf("%w: need 4, got %d", ErrTooFewSamples, len(ts))
	}

	// sums[k] = Σ t^k for k in 0..6, rhs[k] = Σ v t^k for k in 0..3.
	var sums [7]float64
	var rhs [4]float64
	for i, t := range ts {
		p := 1.0
		for k := 0; k < 7; k++ {
			sums[k] += p
			if k < 4 {
				rhs[k] += vs[i] * p
			}
			p *= t
		}
	}

	a := mat.NewDense(4, 4, nil)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			a.Set(r, c, sums[r+c])
		}
	}
	b := mat.NewVecDense(4, rhs[:])

	var lu mat.LU
	lu.Factorize(a)
	if cond := lu.Cond(); math.IsInf(cond, 1) || cond > 1e14 {
		return path.Cubic{}, fmt.Errorf("%w: condition number %.3g", ErrSingular, cond)
	}

	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, b); err != nil {
		return path.Cubic{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	// x holds D, C, B, A.
	return path.Cubic{A: x.AtVec(3), B: x.AtVec(2), C: x.AtVec(1), D: x.AtVec(0)}, nil
}

// Curve fits both axes over ts, which should span [0, 1].
func Curve(ts, xs, ys []float64) (*path.CubicPolynomial, error) {
	cx, err := Cubic(ts, xs)
	if err != nil {
		return nil, fmt.Errorf("x: %w", err)
	}
	cy, err := Cubic(ts, ys)
	if err != nil {
		return nil, fmt.Errorf("y: %w", err)
	}
	return path.NewCubicPolynomial(cx, cy), nil
}
