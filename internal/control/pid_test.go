package control

import (
	"math"
	"testing"
	"time"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/clock"
)

func TestPIDProportional(t *testing.T) {
	pid := NewPID(PIDConfig{Kp: 2}, nil)

	if got := pid.Step(0, 3); got != 6 {
		t.Errorf("expected 6, got %f", got)
	}
	if got := pid.Step(1, 3); got != 4 {
		t.Errorf("expected 4, got %f", got)
	}
}

func TestPIDUpdateUsesPreviousTarget(t *testing.T) {
	pid := NewPID(PIDConfig{Kp: 1}, nil)

	if got := pid.Update(5); got != 5 {
		t.Errorf("first update: expected 5, got %f", got)
	}
	if got := pid.Update(7); got != 2 {
		t.Errorf("second update: expected 2, got %f", got)
	}
	if got := pid.Update(7); got != 0 {
		t.Errorf("repeated target: expected 0, got %f", got)
	}
}

func TestPIDDerivative(t *testing.T) {
	pid := NewPID(PIDConfig{Kd: 10}, nil)

	pid.Step(0, 1)
	if got := pid.Step(0, 1.5); math.Abs(got-5) > 1e-12 {
		t.Errorf("expected derivative term 5, got %f", got)
	}
}

func TestLeakyIntegralConverges(t *testing.T) {
	tests := []float64{1, -0.5, 12}

	for _, e := range tests {
		pid := NewPID(PIDConfig{Ki: 1}, nil)
		var out float64
		for i := 0; i < 500; i++ {
			out = pid.Step(0, e)
		}
		want := e / (1 - IntegralDecay)
		if math.Abs(pid.Integral()-want) > 1e-6*math.Abs(want) {
			t.Errorf("error %.2f: integral %.6f, want %.6f", e, pid.Integral(), want)
		}
		if math.Abs(out-want) > 1e-6*math.Abs(want) {
			t.Errorf("error %.2f: output %.6f, want %.6f", e, out, want)
		}
		if math.Abs(want-20*e) > 1e-9 {
			t.Errorf("expected limit 20*error, got %.6f", want)
		}
	}
}

func TestPIDReset(t *testing.T) {
	pid := NewPID(PIDConfig{Kp: 1, Ki: 1, Kd: 1}, nil)
	pid.Step(0, 4)
	pid.Step(0, 4)
	pid.Reset()

	if pid.Integral() != 0 {
		t.Errorf("expected integral cleared, got %f", pid.Integral())
	}
	if got := pid.Update(2); got != 2+2+2 {
		t.Errorf("expected fresh output 6, got %f", got)
	}
}

func TestUpdateTimeouts(t *testing.T) {
	start := time.Unix(0, 0)
	cfg := PIDConfig{
		SmallError: 1, SmallTimeout: 100 * time.Millisecond,
		LargeError: 3, LargeTimeout: 500 * time.Millisecond,
	}

	tests := []struct {
		name    string
		samples []float64
		step    time.Duration
		want    []bool
	}{
		{
			name:    "small threshold fires at exactly its timeout",
			samples: []float64{0.5, 0.5, 0.5, 0.5, 0.5},
			step:    50 * time.Millisecond,
			want:    []bool{false, false, true, true, true},
		},
		{
			name:    "rising above resets the timer",
			samples: []float64{0.5, 0.5, 5, 0.5, 0.5, 0.5},
			step:    50 * time.Millisecond,
			want:    []bool{false, false, false, false, true, true},
		},
		{
			name:    "large threshold needs more patience",
			samples: []float64{2, 2, 2, 2, 2, 2},
			step:    100 * time.Millisecond,
			want:    []bool{false, false, false, false, false, true},
		},
		{
			name:    "sign does not matter",
			samples: []float64{-0.2, -0.2, -0.2},
			step:    100 * time.Millisecond,
			want:    []bool{false, true, true},
		},
		{
			name:    "never fires above both thresholds",
			samples: []float64{4, 4, 4, 4, 4, 4, 4},
			step:    200 * time.Millisecond,
			want:    []bool{false, false, false, false, false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clock.NewManual(start)
			pid := NewPID(cfg, c)
			for i, v := range tt.samples {
				if got := pid.UpdateTimeouts(v); got != tt.want[i] {
					t.Errorf("sample %d (%.2f at %v): got %v, want %v", i, v, c.Now().Sub(start), got, tt.want[i])
				}
				c.Advance(tt.step)
			}
		})
	}
}

func TestUpdateTimeoutsBoundaryDoesNotFlap(t *testing.T) {
	c := clock.NewManual(time.Unix(0, 0))
	pid := NewPID(PIDConfig{SmallError: 1, SmallTimeout: 250 * time.Millisecond}, c)

	pid.UpdateTimeouts(0.1)
	c.Advance(250 * time.Millisecond)
	for i := 0; i < 5; i++ {
		if !pid.UpdateTimeouts(0.1) {
			t.Fatalf("call %d at the boundary returned false", i)
		}
	}
}

func TestSlew(t *testing.T) {
	tests := []struct {
		proposed, last, rate float64
		dt                   time.Duration
		want                 float64
	}{
		{1, 0, 2, 100 * time.Millisecond, 0.2},
		{-1, 0, 2, 100 * time.Millisecond, -0.2},
		{0.1, 0, 2, 100 * time.Millisecond, 0.1},
		{1, 0, 0, 100 * time.Millisecond, 1},
		{0, 0.5, 4, 25 * time.Millisecond, 0.4},
	}

	for _, tt := range tests {
		if got := Slew(tt.proposed, tt.last, tt.rate, tt.dt); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Slew(%.2f, %.2f, %.2f, %v) = %.4f, want %.4f", tt.proposed, tt.last, tt.rate, tt.dt, got, tt.want)
		}
	}
}

func TestSetParam(t *testing.T) {
	pid := NewPID(PIDConfig{Kp: 1}, nil)
	pid.SetParam("Kp", 3)
	pid.SetParam("Slew", 5)

	params := pid.Params()
	if params["Kp"] != 3 || params["Slew"] != 5 {
		t.Errorf("unexpected params %v", params)
	}
}
