package sim

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/chassis"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/metrics"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/odom"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/telemetry"
)

type testDynamics struct{}

func (t *testDynamics) Derivative(x State, u Control, time float64) State {
	return State{-x[0]}
}

func (t *testDynamics) StateDim() int   { return 1 }
func (t *testDynamics) ControlDim() int { return 0 }

func TestIntegrators(t *testing.T) {
	tests := []struct {
		name  string
		integ Integrator
		tol   float64
	}{
		{"rk4", NewRK4(), 1e-6},
		{"euler", NewEuler(), 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := State{1}
			for i := 0; i < 100; i++ {
				x = tt.integ.Step(&testDynamics{}, x, nil, float64(i)*0.01, 0.01)
			}
			if got, want := x[0], math.Exp(-1); math.Abs(got-want) > tt.tol {
				t.Errorf("x(1) = %.6f, want %.6f", got, want)
			}
		})
	}
}

func TestStateIsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  bool
	}{
		{"finite", State{1, 2, 3}, true},
		{"empty", State{}, true},
		{"nan", State{1, math.NaN()}, false},
		{"inf", State{math.Inf(-1)}, false},
	}
	for _, tt := range tests {
		if got := tt.state.IsValid(); got != tt.want {
			t.Errorf("%s: IsValid() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func integrate(d *DiffDrive, x State, u Control, seconds float64) State {
	rk := NewRK4()
	for t := 0.0; t < seconds; t += 0.005 {
		x = rk.Step(d, x, u, t, 0.005)
	}
	return x
}

func TestDiffDriveForward(t *testing.T) {
	d := NewDiffDrive(DefaultPlant())
	x := integrate(d, d.Initial(path.Pose{}), Control{1, 1}, 1)

	if math.Abs(x[stateX]) > 1e-9 || math.Abs(x[stateHeading]) > 1e-9 {
		t.Errorf("straight drive drifted: x=%.3f heading=%.3f", x[stateX], x[stateHeading])
	}
	if x[stateY] < 50 || x[stateY] > 60 {
		t.Errorf("travelled %.2f in, want between 50 and 60", x[stateY])
	}
	if math.Abs(x[stateVL]-60) > 0.1 {
		t.Errorf("side speed %.2f, want 60", x[stateVL])
	}
}

func TestDiffDriveTurnsCounterClockwise(t *testing.T) {
	d := NewDiffDrive(DefaultPlant())
	x := integrate(d, d.Initial(path.Pose{}), Control{-0.2, 0.2}, 0.5)

	if x[stateHeading] <= 0 {
		t.Errorf("heading %.3f, want positive for right side forward", x[stateHeading])
	}
	if math.Hypot(x[stateX], x[stateY]) > 1e-6 {
		t.Errorf("turn in place moved the center to (%.3f, %.3f)", x[stateX], x[stateY])
	}
}

func TestDiffDriveForwardFollowsHeading(t *testing.T) {
	d := NewDiffDrive(DefaultPlant())
	x := integrate(d, d.Initial(path.Pose{Heading: math.Pi / 2}), Control{0.5, 0.5}, 0.5)

	if x[stateX] >= 0 || math.Abs(x[stateY]) > 1e-6 {
		t.Errorf("heading pi/2 should drive toward -x, got (%.3f, %.3f)", x[stateX], x[stateY])
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	s := New(odom.DefaultConfig(), chassis.DefaultConfig(), nil, nil)
	traj, err := path.NewBuilder(path.Pose{}).MoveTo(path.Pose{Y: 24}, 1).Build()
	if err != nil {
		t.Fatal(err)
	}

	mutate := func(f func(*Config)) Config {
		cfg := DefaultConfig()
		f(&cfg)
		return cfg
	}
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", mutate(func(c *Config) { c.Dt = 0 })},
		{"zero timeout", mutate(func(c *Config) { c.Timeout = 0 })},
		{"odom period not multiple", mutate(func(c *Config) { c.Dt = 3 * time.Millisecond })},
		{"control period below dt", mutate(func(c *Config) { c.Runtime.ControlPeriod = time.Millisecond })},
		{"no lag", mutate(func(c *Config) { c.Plant.Tau = 0 })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Run(context.Background(), "bad", traj, tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func straight(t *testing.T) *path.Trajectory {
	t.Helper()
	traj, err := path.NewBuilder(path.Pose{}).
		MoveTo(path.Pose{Y: 24}, 1).
		ActionHere(path.Spin("intake", 1)).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return traj
}

func newSim() *Simulator {
	s := New(odom.DefaultConfig(), chassis.DefaultConfig(), NewRK4(), nil)
	for _, m := range metrics.Default() {
		s.AddMetric(m)
	}
	return s
}

func TestSimulatorStraightRoutine(t *testing.T) {
	s := newSim()
	var observed int
	s.AddObserver(telemetry.ObserverFunc(func(telemetry.Sample) { observed++ }))

	run, err := s.Run(context.Background(), "straight", straight(t), DefaultConfig())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !run.Completed {
		t.Fatalf("routine did not complete in %v", run.Elapsed)
	}
	if observed != len(run.Samples) {
		t.Errorf("observer saw %d samples, run has %d", observed, len(run.Samples))
	}
	if e := run.Metrics["final_position_error"]; e > 2 {
		t.Errorf("final position error %.2f in", e)
	}
	if run.Last().Y < 20 {
		t.Errorf("robot stopped at y=%.2f", run.Last().Y)
	}
	if _, ok := run.Metrics["cross_track_rms"]; !ok {
		t.Errorf("metrics missing cross_track_rms: %v", run.Metrics)
	}
	if len(run.Actions) != 1 || run.Actions[0].Action != path.Spin("intake", 1).String() {
		t.Errorf("actions = %+v", run.Actions)
	}
	if st := s.Mechanisms.State("intake"); !st.On || st.Power != 1 {
		t.Errorf("intake state = %+v", st)
	}
}

func TestSimulatorSurvivesIMUDropout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Faults.IMUDisconnect = 300 * time.Millisecond

	run, err := newSim().Run(context.Background(), "dropout", straight(t), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !run.Completed {
		t.Fatal("routine did not complete without the IMU")
	}
	if d := run.Metrics["odometry_drift"]; d > 1 {
		t.Errorf("encoder heading drifted %.2f in", d)
	}
}

func TestSimulatorSurvivesEncoderLoss(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Faults.LeftEncoderOut = 200 * time.Millisecond

	run, err := newSim().Run(context.Background(), "encoder", straight(t), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !run.Completed {
		t.Fatal("routine did not complete on the remaining encoder")
	}
}

func TestSimulatorDeterministicWithSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IMUNoise = 0.002
	cfg.EncoderNoise = 0.01
	cfg.Seed = 42

	a, err := newSim().Run(context.Background(), "a", straight(t), cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := newSim().Run(context.Background(), "b", straight(t), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Samples) != len(b.Samples) || a.Last() != b.Last() {
		t.Errorf("same seed produced different runs: %+v vs %+v", a.Last(), b.Last())
	}
}

func TestSimulatorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newSim().Run(ctx, "cancelled", straight(t), DefaultConfig()); err == nil {
		t.Error("expected an error from a cancelled run")
	}
}

func TestEnsemble(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IMUNoise = 0.001

	e := NewEnsemble(newSim(), 3, 10, metrics.Default)
	runs, err := e.Run(context.Background(), "straight", func() (*path.Trajectory, error) {
		return path.NewBuilder(path.Pose{}).MoveTo(path.Pose{Y: 24}, 1).Build()
	}, cfg)
	if err != nil {
		t.Fatalf("ensemble failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	for i, r := range runs {
		if !r.Completed {
			t.Errorf("run %d did not complete", i)
		}
	}
	if m := Mean(runs, "final_position_error"); m > 2 {
		t.Errorf("mean final error %.2f", m)
	}
}

func TestMechanismsRejectUnknown(t *testing.T) {
	m := NewMechanisms("intake")
	if err := m.Toggle("intake"); err != nil {
		t.Fatal(err)
	}
	if err := m.Spin("catapult", 1); !errors.Is(err, ErrUnknownMechanism) {
		t.Errorf("err = %v, want ErrUnknownMechanism", err)
	}
	if got := m.Events(); len(got) != 1 || got[0] != "toggle intake" {
		t.Errorf("events = %v", got)
	}
}
