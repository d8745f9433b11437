// Package odom estimates the robot pose from drive encoders and a heading
// sensor, and owns the reset and calibration protocol.
package odom

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r2"
	"go.uber.org/zap"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/device"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

type Config struct {
	TrackWidth    float64 `yaml:"track_width" json:"track_width"`
	WheelDiameter float64 `yaml:"wheel_diameter" json:"wheel_diameter"`
	// GearRatio is wheel turns per encoder turn.
	GearRatio float64 `yaml:"gear_ratio" json:"gear_ratio"`

	TrackerDiameter float64 `yaml:"tracker_diameter" json:"tracker_diameter"`
	// TrackerOffset is the distance of the horizontal tracking wheel from
	// the turning center.
	TrackerOffset  float64 `yaml:"tracker_offset" json:"tracker_offset"`
	VerticalOffset float64 `yaml:"vertical_offset" json:"vertical_offset"`

	// HeadingMargin is the largest per-tick disagreement between the IMU
	// and the encoder heading before the encoders win.
	HeadingMargin    float64       `yaml:"heading_margin" json:"heading_margin"`
	CalibrateTimeout time.Duration `yaml:"calibrate_timeout" json:"calibrate_timeout"`
}

func DefaultConfig() Config {
	return Config{
		TrackWidth:       11.5,
		WheelDiameter:    3.25,
		GearRatio:        0.75,
		TrackerDiameter:  2,
		TrackerOffset:    0,
		VerticalOffset:   0,
		HeadingMargin:    0.05,
		CalibrateTimeout: 3 * time.Second,
	}
}

// Sensors groups the devices the tracker reads. Horizontal may be nil.
type Sensors struct {
	Left       []device.Encoder
	Right      []device.Encoder
	Horizontal device.Encoder
	IMU        device.IMU
}

// Tracker integrates sensor deltas into the shared pose. Tick must only be
// called from one goroutine.
type Tracker struct {
	cfg     Config
	sensors Sensors
	shared  *Shared
	log     *zap.Logger

	pose     Pose
	prevL    float64
	prevR    float64
	prevH    float64
	prevIMU  float64
	fallback bool

	calibrating atomic.Bool
	wg          sync.WaitGroup
}

func NewTracker(cfg Config, sensors Sensors, shared *Shared, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tracker{
		cfg:     cfg,
		sensors: sensors,
		shared:  shared,
		log:     log,
		pose:    shared.Pose(),
	}
	t.zeroBaselines()
	return t
}

func (t *Tracker) wheelScale() float64 {
	return t.cfg.WheelDiameter / 2 * t.cfg.GearRatio
}

func (t *Tracker) trackerScale() float64 {
	return t.cfg.TrackerDiameter / 2
}

// Tick runs one odometry update. It returns ErrCalibrating or
// ErrSideDisconnected when it skipped the update.
func (t *Tracker) Tick(ctx context.Context) error {
	if t.calibrating.Load() {
		return ErrCalibrating
	}

	req := t.shared.take()
	if req.calibrate {
		t.startCalibration(ctx)
		return ErrCalibrating
	}
	if req.reset {
		t.applyReset(req.pose)
		return nil
	}

	left, okL := average(t.sensors.Left)
	right, okR := average(t.sensors.Right)
	if !okL || !okR {
		return ErrSideDisconnected
	}

	dl := (left - t.prevL) * t.wheelScale()
	dr := (right - t.prevR) * t.wheelScale()
	t.prevL, t.prevR = left, right

	var dh float64
	hasTracker := t.sensors.Horizontal != nil && t.sensors.Horizontal.Connected()
	if hasTracker {
		h := t.sensors.Horizontal.Position()
		dh = (h - t.prevH) * t.trackerScale()
		t.prevH = h
	}

	dTheta := t.headingDelta(dl, dr)

	local := r2.Point{Y: chord(dl/2+dr/2, dTheta, t.cfg.VerticalOffset)}
	if hasTracker {
		local.X = chord(dh, dTheta, t.cfg.TrackerOffset)
	}
	d := path.Rotate(local, t.pose.Heading+dTheta/2)

	t.pose.X += d.X
	t.pose.Y += d.Y
	t.pose.Heading = path.NormalizeAngle(t.pose.Heading + dTheta)
	t.shared.set(t.pose)
	return nil
}

// headingDelta prefers the IMU and falls back to the encoder differential
// when the IMU is disconnected or disagrees by more than the margin.
func (t *Tracker) headingDelta(dl, dr float64) float64 {
	enc := (dr - dl) / t.cfg.TrackWidth

	imu := t.sensors.IMU
	useIMU := false
	var delta float64
	if imu != nil && imu.Connected() {
		h := imu.Heading()
		delta = path.NormalizeAngle(h - t.prevIMU)
		t.prevIMU = h
		useIMU = math.Abs(delta-enc) <= t.cfg.HeadingMargin
	}

	if useIMU == t.fallback {
		t.fallback = !useIMU
		if t.fallback {
			t.log.Warn("heading from encoders", zap.Float64("imu_delta", delta), zap.Float64("encoder_delta", enc))
		} else {
			t.log.Info("heading from imu")
		}
	}
	if useIMU {
		return delta
	}
	return enc
}

// UsingFallback reports whether the last tick took heading from encoders.
func (t *Tracker) UsingFallback() bool { return t.fallback }

// chord is the straight-line displacement of a point offset from the
// turning center that travelled arc while the robot turned dTheta.
func chord(arc, dTheta, offset float64) float64 {
	if math.Abs(dTheta) < 1e-9 {
		return arc
	}
	return 2 * math.Sin(dTheta/2) * (arc/dTheta + offset)
}

func average(encs []device.Encoder) (float64, bool) {
	var sum float64
	n := 0
	for _, e := range encs {
		if !e.Connected() {
			continue
		}
		sum += e.Position()
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func (t *Tracker) zeroBaselines() {
	t.prevL, _ = average(t.sensors.Left)
	t.prevR, _ = average(t.sensors.Right)
	if h := t.sensors.Horizontal; h != nil && h.Connected() {
		t.prevH = h.Position()
	}
	if imu := t.sensors.IMU; imu != nil && imu.Connected() {
		t.prevIMU = imu.Heading()
	}
}

func (t *Tracker) applyReset(p Pose) {
	for _, group := range [][]device.Encoder{t.sensors.Left, t.sensors.Right} {
		for _, e := range group {
			e.Reset()
		}
	}
	if t.sensors.Horizontal != nil {
		t.sensors.Horizontal.Reset()
	}
	t.zeroBaselines()
	t.pose = p
	t.shared.set(p)
	t.log.Info("pose reset", zap.Float64("x", p.X), zap.Float64("y", p.Y), zap.Float64("heading", p.Heading))
}

func (t *Tracker) startCalibration(ctx context.Context) {
	t.calibrating.Store(true)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		// Failure is logged inside; the robot keeps running on encoder
		// heading.
		_ = t.Calibrate(ctx)
		t.calibrating.Store(false)
		t.shared.finishCalibration()
	}()
}

// Calibrate recalibrates the heading sensor, retrying once.
func (t *Tracker) Calibrate(ctx context.Context) error {
	imu := t.sensors.IMU
	if imu == nil {
		return nil
	}

	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		err = t.calibrateOnce(ctx, imu)
		if err == nil {
			t.log.Info("heading sensor calibrated", zap.Int("attempt", attempt))
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		t.log.Warn("heading calibration failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	t.log.Error("heading calibration gave up", zap.Error(err))
	return fmt.Errorf("%w: %v", ErrCalibrationFailed, err)
}

func (t *Tracker) calibrateOnce(ctx context.Context, imu device.IMU) error {
	if t.cfg.CalibrateTimeout <= 0 {
		return imu.Calibrate(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, t.cfg.CalibrateTimeout)
	defer cancel()
	return imu.Calibrate(cctx)
}

// Wait blocks until any background calibration has finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) Calibrating() bool {
	return t.calibrating.Load()
}
