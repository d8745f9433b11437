package control

import (
	"math"
	"time"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/clock"
)

// IntegralDecay is the factor the integral is multiplied by each update.
// A constant error drives the integral toward error/(1-IntegralDecay).
const IntegralDecay = 0.95

type PIDConfig struct {
	Kp float64 `yaml:"kp" json:"kp"`
	Ki float64 `yaml:"ki" json:"ki"`
	Kd float64 `yaml:"kd" json:"kd"`
	// Slew is the largest output change per second.
	Slew float64 `yaml:"slew" json:"slew"`

	SmallError   float64       `yaml:"small_error" json:"small_error"`
	SmallTimeout time.Duration `yaml:"small_timeout" json:"small_timeout"`
	LargeError   float64       `yaml:"large_error" json:"large_error"`
	LargeTimeout time.Duration `yaml:"large_timeout" json:"large_timeout"`
}

type PID struct {
	cfg   PIDConfig
	clock clock.Clock

	integral  float64
	lastError float64
	fedBack   float64

	smallSince time.Time
	largeSince time.Time
}

func NewPID(cfg PIDConfig, c clock.Clock) *PID {
	if c == nil {
		c = clock.Real{}
	}
	return &PID{cfg: cfg, clock: c}
}

// Update treats the previous call's target as the current value.
func (p *PID) Update(target float64) float64 {
	return p.Step(p.fedBack, target)
}

// Step runs the control law on error = target - value.
func (p *PID) Step(value, target float64) float64 {
	err := target - value
	p.fedBack = target

	p.integral = err + IntegralDecay*p.integral
	out := p.cfg.Kp*err + p.cfg.Kd*(err-p.lastError) + p.cfg.Ki*p.integral
	p.lastError = err
	return out
}

// UpdateTimeouts reports whether |value| has stayed under the small
// threshold for SmallTimeout, or under the large threshold for
// LargeTimeout. A zero threshold disables that pair.
func (p *PID) UpdateTimeouts(value float64) bool {
	now := p.clock.Now()
	v := math.Abs(value)

	small := expired(v, p.cfg.SmallError, p.cfg.SmallTimeout, &p.smallSince, now)
	large := expired(v, p.cfg.LargeError, p.cfg.LargeTimeout, &p.largeSince, now)
	return small || large
}

func expired(v, threshold float64, timeout time.Duration, since *time.Time, now time.Time) bool {
	if threshold <= 0 {
		return false
	}
	if v >= threshold || since.IsZero() {
		*since = now
	}
	if v >= threshold {
		return false
	}
	return now.Sub(*since) >= timeout
}

// Slew limits the move from last toward proposed to the configured rate
// over dt.
func (p *PID) Slew(proposed, last float64, dt time.Duration) float64 {
	return Slew(proposed, last, p.cfg.Slew, dt)
}

// Slew clamps the change from last to proposed to rate*dt. A non-positive
// rate disables limiting.
func Slew(proposed, last, rate float64, dt time.Duration) float64 {
	if rate <= 0 {
		return proposed
	}
	step := rate * dt.Seconds()
	return math.Max(last-step, math.Min(proposed, last+step))
}

// Reset clears integral, derivative and timeout state.
func (p *PID) Reset() {
	p.integral = 0
	p.lastError = 0
	p.fedBack = 0
	p.smallSince = time.Time{}
	p.largeSince = time.Time{}
}

func (p *PID) Integral() float64 { return p.integral }

func (p *PID) Config() PIDConfig { return p.cfg }

// Params returns tunable parameters for live adjustment.
func (p *PID) Params() map[string]float64 {
	return map[string]float64{
		"Kp":   p.cfg.Kp,
		"Ki":   p.cfg.Ki,
		"Kd":   p.cfg.Kd,
		"Slew": p.cfg.Slew,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) {
	switch name {
	case "Kp":
		p.cfg.Kp = value
	case "Ki":
		p.cfg.Ki = value
	case "Kd":
		p.cfg.Kd = value
	case "Slew":
		p.cfg.Slew = value
	}
}
