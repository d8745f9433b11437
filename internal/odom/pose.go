package odom

import (
	"sync"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

type Pose = path.Pose

// Shared is the pose written by the odometry task and read by everyone
// else. It also carries reset and calibration requests from the phase
// logic to the odometry task.
type Shared struct {
	mu          sync.RWMutex
	pose        Pose
	resetPose   Pose
	reset       bool
	calibrate   bool
	calibrating bool
	version     uint64
}

func NewShared(p Pose) *Shared {
	return &Shared{pose: p}
}

// Snapshot returns the current pose. ok is false while a reset or
// calibration is pending, when the pose must not be used for control.
func (s *Shared) Snapshot() (Pose, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose, !s.reset && !s.calibrate && !s.calibrating
}

// Pose returns the current pose regardless of pending requests, for
// telemetry.
func (s *Shared) Pose() Pose {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose
}

// Version increments on every pose write.
func (s *Shared) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// RequestReset asks the odometry task to zero its baselines and jump to p.
func (s *Shared) RequestReset(p Pose) {
	s.mu.Lock()
	s.resetPose = p
	s.reset = true
	s.mu.Unlock()
}

// RequestCalibrate asks for a heading recalibration followed by a reset
// to p.
func (s *Shared) RequestCalibrate(p Pose) {
	s.mu.Lock()
	s.resetPose = p
	s.reset = true
	s.calibrate = true
	s.mu.Unlock()
}

func (s *Shared) Calibrating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calibrate || s.calibrating
}

type request struct {
	pose      Pose
	reset     bool
	calibrate bool
}

// take hands pending requests to the odometry task. A calibrate request
// stays visible as calibrating until finishCalibration.
func (s *Shared) take() request {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := request{pose: s.resetPose, reset: s.reset, calibrate: s.calibrate}
	if s.calibrate {
		s.calibrating = true
		s.calibrate = false
		r.reset = false
		return r
	}
	s.reset = false
	return r
}

func (s *Shared) finishCalibration() {
	s.mu.Lock()
	s.calibrating = false
	s.mu.Unlock()
}

func (s *Shared) set(p Pose) {
	s.mu.Lock()
	s.pose = p
	s.version++
	s.mu.Unlock()
}
