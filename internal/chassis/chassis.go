// Package chassis turns a pose estimate and an active trajectory into
// per-side drive commands.
package chassis

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/clock"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/control"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

// Command is a normalized drive output, each side in [-1, 1].
type Command struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

type Mode int

const (
	ModeIdle Mode = iota
	ModeTracking
	ModeClose
	ModeTerminal
)

func (m Mode) String() string {
	switch m {
	case ModeTracking:
		return "tracking"
	case ModeClose:
		return "close"
	case ModeTerminal:
		return "terminal"
	default:
		return "idle"
	}
}

// Diagnostics describes the last control tick.
type Diagnostics struct {
	Mode         Mode
	Segment      int
	Progress     float64
	CrossTrack   float64
	HeadingError float64
	LinearError  float64
	Linear       float64
	Angular      float64
}

// Chassis owns the linear and angular controllers. It is driven by the
// control task only.
type Chassis struct {
	cfg     Config
	clock   clock.Clock
	log     *zap.Logger
	linear  *control.PID
	angular *control.PID

	lastLinear  float64
	lastAngular float64
	lastTick    time.Time

	traj     *path.Trajectory
	segment  int
	terminal bool

	diag Diagnostics
}

func New(cfg Config, c clock.Clock, log *zap.Logger) *Chassis {
	if c == nil {
		c = clock.Real{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Chassis{
		cfg:     cfg,
		clock:   c,
		log:     log,
		linear:  control.NewPID(cfg.Linear, c),
		angular: control.NewPID(cfg.Angular, c),
		segment: -1,
	}
}

func (c *Chassis) Config() Config { return c.cfg }

func (c *Chassis) Diagnostics() Diagnostics { return c.diag }

// Linear and Angular expose the controllers for live tuning.
func (c *Chassis) Linear() *control.PID  { return c.linear }
func (c *Chassis) Angular() *control.PID { return c.angular }

// Reset clears controller state. Used when the robot changes phase.
func (c *Chassis) Reset() {
	c.linear.Reset()
	c.angular.Reset()
	c.lastLinear = 0
	c.lastAngular = 0
	c.lastTick = time.Time{}
	c.traj = nil
	c.segment = -1
	c.terminal = false
	c.diag = Diagnostics{}
}

// Update runs one control tick and moves the trajectory cursor.
func (c *Chassis) Update(pose path.Pose, traj *path.Trajectory) Command {
	now := c.clock.Now()
	dt := c.cfg.Period
	if !c.lastTick.IsZero() {
		dt = now.Sub(c.lastTick)
	}
	c.lastTick = now

	if traj == nil || traj.Done() {
		return c.hold(ModeIdle)
	}
	if traj != c.traj || traj.Index() != c.segment {
		c.beginSegment(traj)
	}

	seg := traj.Segment()
	pos := pose.Position()
	u, cte := Project(seg.Curve, pos, traj.Local(), c.cfg.Projection)
	traj.SetLocal(u)
	u = traj.Local()

	c.diag = Diagnostics{
		Segment:    traj.Index(),
		Progress:   traj.Progress,
		CrossTrack: cte,
	}

	if u > c.cfg.TerminalProgress || traj.Exit != path.ExitNone {
		return c.turnToHeading(pose, traj, seg, dt)
	}

	if seg.Curve.Kind() == path.KindLinear {
		return c.pointToPoint(pose, traj, seg, u, dt)
	}
	return c.stanley(pose, traj, seg, u, cte, dt)
}

func (c *Chassis) beginSegment(traj *path.Trajectory) {
	c.traj = traj
	c.segment = traj.Index()
	c.terminal = false
	c.linear.Reset()
	c.angular.Reset()
	c.log.Debug("segment started", zap.Int("segment", c.segment), zap.Float64("progress", traj.Progress))
}

func (c *Chassis) hold(mode Mode) Command {
	c.lastLinear = 0
	c.lastAngular = 0
	c.diag.Mode = mode
	c.diag.Linear = 0
	c.diag.Angular = 0
	return Command{}
}

// Hold zeroes the outputs for a tick the follower skips, keeping the slew
// memory consistent with what the drive actually received.
func (c *Chassis) Hold() Command {
	c.lastTick = c.clock.Now()
	return c.hold(ModeIdle)
}

// turnToHeading rotates in place toward the segment's end heading.
func (c *Chassis) turnToHeading(pose path.Pose, traj *path.Trajectory, seg *path.Segment, dt time.Duration) Command {
	if traj.Exit == path.ExitNone {
		traj.Exit = path.ExitArrived
	}
	if !c.terminal {
		c.terminal = true
		c.angular.Reset()
	}

	err := path.NormalizeAngle(seg.EndHeading - pose.Heading)
	out := c.angular.Step(0, err)
	if seg.Chained && math.Abs(out) < c.cfg.ChainMinAngular {
		out = math.Copysign(c.cfg.ChainMinAngular, out)
	}
	out = c.angular.Slew(out, c.lastAngular, dt)
	out = clamp(out, -c.cfg.MaxAngular, c.cfg.MaxAngular)

	var settled bool
	if seg.Chained {
		settled = math.Abs(err) <= seg.HeadingTolerance
	} else {
		settled = c.angular.UpdateTimeouts(err)
	}
	if settled {
		traj.Exit = path.ExitSettled
	}

	c.lastLinear = 0
	c.lastAngular = out
	c.diag.Mode = ModeTerminal
	c.diag.HeadingError = err
	c.diag.Linear = 0
	c.diag.Angular = out
	return Desaturate(0, out)
}

// bounds returns the speed floor and ceiling at u, entering the close
// state when the robot is inside the settle radius of an unchained
// segment.
func (c *Chassis) bounds(traj *path.Trajectory, seg *path.Segment, u, dist float64) (float64, float64) {
	ceiling := seg.Ceiling.Sample(u)
	floor := 0.0
	if seg.Chained {
		floor = seg.Floor.Sample(u)
	}
	if !seg.Chained && !traj.Close && dist < c.cfg.SettleRadius {
		traj.Close = true
		traj.CloseSpeed = math.Max(math.Abs(c.lastLinear), c.cfg.CloseMin)
		c.log.Debug("inside settle radius", zap.Int("segment", traj.Index()), zap.Float64("ceiling", traj.CloseSpeed))
	}
	if traj.Close {
		ceiling = math.Min(ceiling, traj.CloseSpeed)
	}
	return floor, ceiling
}

// pointToPoint drives straight at the end of a linear segment.
func (c *Chassis) pointToPoint(pose path.Pose, traj *path.Trajectory, seg *path.Segment, u float64, dt time.Duration) Command {
	target := path.End(seg.Curve)
	toTarget := target.Sub(pose.Position())
	dist := toTarget.Norm()
	dir := direction(seg)

	floor, ceiling := c.bounds(traj, seg, u, dist)

	var headErr float64
	if dist > 1e-9 {
		bearing := path.Bearing(toTarget)
		if seg.Reversed {
			bearing += math.Pi
		}
		headErr = path.NormalizeAngle(bearing - pose.Heading)
	}
	linErr := dist * math.Cos(headErr) * dir

	return c.drive(pose, traj, seg, linErr, headErr, floor, ceiling, true, dt)
}

// stanley follows a curved segment, steering by heading error plus a
// cross-track correction.
func (c *Chassis) stanley(pose path.Pose, traj *path.Trajectory, seg *path.Segment, u, cte float64, dt time.Duration) Command {
	target := path.End(seg.Curve)
	dist := target.Sub(pose.Position()).Norm()
	dir := direction(seg)

	floor, ceiling := c.bounds(traj, seg, u, dist)

	tangent := seg.Curve.Heading(u)
	if seg.Reversed {
		tangent += math.Pi
	}
	headErr := path.NormalizeAngle(tangent - pose.Heading)
	// StanleyK is tuned against profile units, not inches per second.
	vel := math.Max(seg.Ceiling.Sample(u), c.cfg.VelocityEpsilon)
	sigma := path.NormalizeAngle(headErr + math.Atan(c.cfg.StanleyK*cte/vel))

	remaining := math.Max(path.ArcLength(seg.Curve, u, 1), dist)
	linErr := remaining * math.Cos(sigma) * dir

	// Early in a curve the end point can sit behind the robot.
	canExit := u >= 0.5 || traj.Close
	return c.drive(pose, traj, seg, linErr, sigma, floor, ceiling, canExit, dt)
}

// drive runs both controllers, limits them, and applies the exit test.
func (c *Chassis) drive(pose path.Pose, traj *path.Trajectory, seg *path.Segment, linErr, headErr, floor, ceiling float64, canExit bool, dt time.Duration) Command {
	dir := direction(seg)

	lin := c.linear.Step(0, linErr)
	ang := 0.0
	if !traj.Close {
		ang = c.angular.Step(0, headErr)
	}
	lin = c.linear.Slew(lin, c.lastLinear, dt)
	ang = c.angular.Slew(ang, c.lastAngular, dt)
	lin = clamp(lin*dir, floor, ceiling) * dir
	limit := math.Min(ceiling, c.cfg.MaxAngular)
	ang = clamp(ang, -limit, limit)

	c.diag.HeadingError = headErr
	c.diag.LinearError = linErr
	c.diag.Mode = ModeTracking
	if traj.Close {
		c.diag.Mode = ModeClose
	}

	target := path.End(seg.Curve)
	forward := path.Forward(pose.Heading).Mul(dir)
	passed := forward.Dot(pose.Position().Sub(target)) > 0
	timedOut := c.linear.UpdateTimeouts(linErr)
	if canExit && (passed || timedOut) {
		traj.Exit = path.ExitArrived
		c.log.Debug("segment arrived",
			zap.Int("segment", traj.Index()),
			zap.Bool("passed", passed),
			zap.Bool("timeout", timedOut))
		return c.hold(c.diag.Mode)
	}

	c.lastLinear = lin
	c.lastAngular = ang
	c.diag.Linear = lin
	c.diag.Angular = ang
	return Desaturate(lin, ang)
}

// Desaturate mixes linear and angular effort into side commands, scaling
// both sides by the same factor when their combined magnitude exceeds 1.
func Desaturate(linear, angular float64) Command {
	left := linear - angular
	right := linear + angular
	if sum := math.Abs(left) + math.Abs(right); sum > 1 {
		left /= sum
		right /= sum
	}
	return Command{Left: left, Right: right}
}

func direction(seg *path.Segment) float64 {
	if seg.Reversed {
		return -1
	}
	return 1
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
