package fit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

func linspace(n int) []float64 {
	ts := make([]float64, n)
	for i := range ts {
		ts[i] = float64(i) / float64(n-1)
	}
	return ts
}

func TestCubicRecoversExactPolynomial(t *testing.T) {
	want := path.Cubic{A: 2, B: -3, C: 0.5, D: 7}
	ts := linspace(25)
	vs := make([]float64, len(ts))
	for i, tt := range ts {
		vs[i] = want.At(tt)
	}

	got, err := Cubic(ts, vs)
	require.NoError(t, err)
	assert.InDelta(t, want.A, got.A, 1e-8)
	assert.InDelta(t, want.B, got.B, 1e-8)
	assert.InDelta(t, want.C, got.C, 1e-8)
	assert.InDelta(t, want.D, got.D, 1e-8)
}

func TestCubicLeastSquaresOnLine(t *testing.T) {
	ts := linspace(10)
	vs := make([]float64, len(ts))
	for i, tt := range ts {
		vs[i] = 4*tt + 1
	}

	got, err := Cubic(ts, vs)
	require.NoError(t, err)
	assert.InDelta(t, 0, got.A, 1e-8)
	assert.InDelta(t, 0, got.B, 1e-8)
	assert.InDelta(t, 4, got.C, 1e-8)
	assert.InDelta(t, 1, got.D, 1e-8)
}

func TestCubicRejectsBadInput(t *testing.T) {
	_, err := Cubic([]float64{0, 1, 2}, []float64{0, 1, 2})
	assert.ErrorIs(t, err, ErrTooFewSamples)

	_, err = Cubic([]float64{0, 1}, []float64{0})
	assert.Error(t, err)

	// Four samples at only two distinct times cannot pin a cubic.
	_, err = Cubic([]float64{0, 0, 1, 1}, []float64{0, 0, 1, 1})
	assert.ErrorIs(t, err, ErrSingular)
}

// drive records a robot driving an arc of radius r for the given time.
func drive(n int, seconds, r float64) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		tt := seconds * float64(i) / float64(n-1)
		theta := tt / seconds * math.Pi / 2
		// Counter-clockwise arc starting at the origin facing +y.
		samples[i] = Sample{
			T:    tt,
			Pose: path.Pose{X: r*math.Cos(theta) - r, Y: r * math.Sin(theta), Heading: theta},
		}
	}
	return samples
}

func TestTrajectoryFollowsRecording(t *testing.T) {
	samples := drive(101, 2, 24)
	events := []Event{
		{T: 0, Action: path.Spin("intake", 1)},
		{T: 1, Action: path.Toggle("matchload")},
		{T: 2, Action: path.Stop("intake")},
	}

	traj, err := Trajectory(samples, events, Options{Window: 25, Speed: 1, MinSpeed: 0.3})
	require.NoError(t, err)
	require.Equal(t, 4, traj.Len())
	assert.Equal(t, samples[0].Pose, traj.Start)

	for i, seg := range traj.Segments {
		w := samples[(i+1)*25].Pose
		end := path.End(seg.Curve)
		assert.InDelta(t, w.X, end.X, 0.05, "segment %d end x", i)
		assert.InDelta(t, w.Y, end.Y, 0.05, "segment %d end y", i)
		assert.InDelta(t, w.Heading, seg.EndHeading, 1e-9)
		assert.Equal(t, i < 3, seg.Chained, "segment %d chained", i)
		assert.False(t, seg.Reversed)
		assert.Equal(t, path.KindCubicPolynomial, seg.Curve.Kind())
	}

	require.Len(t, traj.Actions, 3)
	assert.InDelta(t, 0, traj.Actions[0].At, 1e-9)
	assert.InDelta(t, 2, traj.Actions[1].At, 1e-9)
	assert.InDelta(t, 4, traj.Actions[2].At, 1e-9)
}

func TestTrajectoryDetectsReverse(t *testing.T) {
	samples := make([]Sample, 20)
	for i := range samples {
		// Facing +y while backing toward -y.
		samples[i] = Sample{T: float64(i) * 0.05, Pose: path.Pose{Y: -float64(i)}}
	}

	traj, err := Trajectory(samples, nil, DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 1, traj.Len())
	assert.True(t, traj.Segments[0].Reversed)
	assert.False(t, traj.Segments[0].Chained)
}

func TestTrajectoryMergesShortTail(t *testing.T) {
	samples := drive(42, 1, 24)
	traj, err := Trajectory(samples, nil, Options{Window: 40, Speed: 1, MinSpeed: 0.3})
	require.NoError(t, err)
	assert.Equal(t, 1, traj.Len())

	end := path.End(traj.Segments[0].Curve)
	last := samples[len(samples)-1].Pose
	assert.InDelta(t, last.X, end.X, 0.1)
	assert.InDelta(t, last.Y, end.Y, 0.1)
}

func TestTrajectoryRejectsBadInput(t *testing.T) {
	_, err := Trajectory(drive(3, 1, 24), nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrTooFewSamples)

	_, err = Trajectory(drive(50, 1, 24), nil, Options{Window: 2})
	assert.Error(t, err)
}
