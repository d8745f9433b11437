package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/chassis"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/clock"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/device"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/odom"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/robot"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/telemetry"
)

// Mechanisms the routines drive.
var DefaultMechanisms = []string{"intake", "indexer", "matchload", "descore", "wing"}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("sim error at t=%.4f (step %d): %s", e.Time, e.Step, e.Message)
}

func (e SimError) Unwrap() error { return ErrDiverged }

// Simulator drives the real odometry tracker and follower against a
// simulated plant, stepping a manual clock so every timeout is
// deterministic.
type Simulator struct {
	odom       odom.Config
	chassis    chassis.Config
	integrator Integrator
	metrics    []telemetry.Metric
	observers  []telemetry.Observer
	log        *zap.Logger

	// Mechanisms is the actuator set of the last run.
	Mechanisms *Mechanisms
}

func New(odomCfg odom.Config, chassisCfg chassis.Config, integrator Integrator, log *zap.Logger) *Simulator {
	if integrator == nil {
		integrator = NewRK4()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{
		odom:       odomCfg,
		chassis:    chassisCfg,
		integrator: integrator,
		metrics:    make([]telemetry.Metric, 0),
		observers:  make([]telemetry.Observer, 0),
		log:        log,
	}
}

func (s *Simulator) AddMetric(m telemetry.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o telemetry.Observer) { s.observers = append(s.observers, o) }

// rig is the simulated robot for one run.
type rig struct {
	plant   *DiffDrive
	x       State
	left    []*Encoder
	right   []*Encoder
	imu     *IMU
	drive   *Drive
	mech    *Mechanisms
	shared  *odom.Shared
	tracker *odom.Tracker
}

func (s *Simulator) build(traj *path.Trajectory, cfg Config) *rig {
	rng := rand.New(rand.NewSource(cfg.Seed))
	r := &rig{plant: NewDiffDrive(cfg.Plant)}
	r.x = r.plant.Initial(traj.Start)

	scale := s.odom.WheelDiameter / 2 * s.odom.GearRatio
	readL := func() float64 { return r.x[stateDistL] }
	readR := func() float64 { return r.x[stateDistR] }
	for i := 0; i < 2; i++ {
		r.left = append(r.left, NewEncoder(readL, scale, cfg.EncoderNoise, rng))
		r.right = append(r.right, NewEncoder(readR, scale, cfg.EncoderNoise, rng))
	}
	r.imu = NewIMU(func() float64 { return r.x[stateHeading] }, cfg.IMUNoise, rng)
	r.drive = &Drive{}
	r.mech = NewMechanisms(DefaultMechanisms...)

	sensors := odom.Sensors{IMU: r.imu}
	for i := range r.left {
		sensors.Left = append(sensors.Left, device.Encoder(r.left[i]))
		sensors.Right = append(sensors.Right, device.Encoder(r.right[i]))
	}
	r.shared = odom.NewShared(traj.Start)
	r.tracker = odom.NewTracker(s.odom, sensors, r.shared, s.log.Named("odom"))
	return r
}

func (r *rig) applyFaults(f Faults, elapsed time.Duration) {
	if f.IMUDisconnect > 0 {
		out := elapsed >= f.IMUDisconnect && (f.IMUReconnect <= f.IMUDisconnect || elapsed < f.IMUReconnect)
		r.imu.SetConnected(!out)
	}
	if f.LeftEncoderOut > 0 && elapsed >= f.LeftEncoderOut {
		r.left[0].SetConnected(false)
	}
}

// Run follows traj from its start pose until it completes, cfg.Timeout
// elapses or ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, name string, traj *path.Trajectory, cfg Config) (*telemetry.Run, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	r := s.build(traj, cfg)
	s.Mechanisms = r.mech
	clk := clock.NewManual(time.Unix(0, 0))
	start := clk.Now()

	if err := r.tracker.Calibrate(ctx); err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	r.shared.RequestReset(traj.Start)

	ch := chassis.New(s.chassis, clk, s.log.Named("chassis"))
	f := robot.NewFollower(ch, r.shared, clk, r.drive, r.mech, s.log.Named("follower"))
	f.Load(traj)

	result := &telemetry.Run{
		Routine: name,
		Samples: make([]telemetry.Sample, 0, int(cfg.Timeout/cfg.Runtime.ControlPeriod)+1),
		Metrics: make(map[string]float64),
	}
	f.OnAction = func(ta path.TimedAction) {
		result.Actions = append(result.Actions, telemetry.ActionEvent{
			T:        clk.Now().Sub(start).Seconds(),
			Progress: traj.Progress,
			Action:   ta.Action.String(),
		})
	}

	dt := cfg.Dt.Seconds()
	steps := int(cfg.Timeout / cfg.Dt)
	for i := 0; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		elapsed := time.Duration(i) * cfg.Dt
		r.applyFaults(cfg.Faults, elapsed)

		if elapsed%cfg.Runtime.OdomPeriod == 0 {
			if err := r.tracker.Tick(ctx); err != nil {
				s.log.Debug("odometry skipped", zap.Error(err), zap.Duration("t", elapsed))
			}
		}

		if elapsed%cfg.Runtime.ControlPeriod == 0 {
			cmd, err := f.Tick()
			if err != nil {
				s.log.Warn("control tick", zap.Error(err))
			}
			sample := s.sample(r, ch, traj, cmd, elapsed)
			result.Samples = append(result.Samples, sample)
			for _, m := range s.metrics {
				m.Observe(sample)
			}
			for _, obs := range s.observers {
				obs.OnSample(sample)
			}
			if f.Done() {
				result.Completed = true
				break
			}
		}

		next := s.integrator.Step(r.plant, r.x, r.drive.Control(), elapsed.Seconds(), dt)
		if !next.IsValid() {
			return result, SimError{Time: elapsed.Seconds(), Step: i, Message: "invalid state (NaN/Inf)"}
		}
		r.x = next
		clk.Advance(cfg.Dt)
	}

	result.Elapsed = clk.Now().Sub(start)
	result.Forced = f.Forced()
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	s.finalMetrics(result, traj, r)
	return result, nil
}

func (s *Simulator) sample(r *rig, ch *chassis.Chassis, traj *path.Trajectory, cmd chassis.Command, elapsed time.Duration) telemetry.Sample {
	truth := r.plant.Pose(r.x)
	est := r.shared.Pose()
	diag := ch.Diagnostics()
	return telemetry.Sample{
		T:          elapsed.Seconds(),
		X:          truth.X,
		Y:          truth.Y,
		Heading:    truth.Heading,
		EstX:       est.X,
		EstY:       est.Y,
		EstHeading: est.Heading,
		Left:       cmd.Left,
		Right:      cmd.Right,
		Segment:    traj.Index(),
		Progress:   traj.Progress,
		CrossTrack: diag.CrossTrack,
		Mode:       diag.Mode.String(),
	}
}

// finalMetrics scores the resting pose against the last segment's end.
func (s *Simulator) finalMetrics(result *telemetry.Run, traj *path.Trajectory, r *rig) {
	result.Metrics["duration"] = result.Elapsed.Seconds()
	if traj.Len() == 0 {
		return
	}
	last := traj.Segments[traj.Len()-1]
	end := path.End(last.Curve)
	truth := r.plant.Pose(r.x)
	result.Metrics["final_position_error"] = math.Hypot(truth.X-end.X, truth.Y-end.Y)
	result.Metrics["final_heading_error"] = math.Abs(path.NormalizeAngle(last.EndHeading - truth.Heading))
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %v", ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidConfig, cfg.Timeout)
	}
	if cfg.Runtime.OdomPeriod < cfg.Dt || cfg.Runtime.OdomPeriod%cfg.Dt != 0 {
		return fmt.Errorf("%w: odometry period %v is not a multiple of dt %v", ErrInvalidConfig, cfg.Runtime.OdomPeriod, cfg.Dt)
	}
	if cfg.Runtime.ControlPeriod < cfg.Dt || cfg.Runtime.ControlPeriod%cfg.Dt != 0 {
		return fmt.Errorf("%w: control period %v is not a multiple of dt %v", ErrInvalidConfig, cfg.Runtime.ControlPeriod, cfg.Dt)
	}
	if cfg.Plant.Tau <= 0 || cfg.Plant.MaxSpeed <= 0 || cfg.Plant.TrackWidth <= 0 {
		return fmt.Errorf("%w: plant constants must be positive", ErrInvalidConfig)
	}
	return nil
}
