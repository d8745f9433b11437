package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

var ErrUnknownMechanism = errors.New("sim: unknown mechanism")

// Encoder reads one side's travelled distance from the plant and reports it
// as motor rotation.
type Encoder struct {
	read  func() float64
	scale float64
	noise float64
	rng   *rand.Rand

	zero      float64
	connected bool
}

func NewEncoder(read func() float64, wheelScale, noise float64, rng *rand.Rand) *Encoder {
	return &Encoder{read: read, scale: wheelScale, noise: noise, rng: rng, connected: true}
}

func (e *Encoder) Connected() bool { return e.connected }

func (e *Encoder) SetConnected(ok bool) { e.connected = ok }

func (e *Encoder) Position() float64 {
	p := e.read()/e.scale - e.zero
	if e.noise > 0 && e.rng != nil {
		p += e.rng.NormFloat64() * e.noise
	}
	return p
}

func (e *Encoder) Reset() {
	e.zero = e.read() / e.scale
}

// IMU reads the plant heading plus a fixed mounting bias.
type IMU struct {
	read  func() float64
	bias  float64
	noise float64
	rng   *rand.Rand

	connected  bool
	calibrated bool
	failures   int

	// Calibrations counts calibration attempts.
	Calibrations int
}

func NewIMU(read func() float64, noise float64, rng *rand.Rand) *IMU {
	bias := 0.0
	if rng != nil {
		bias = rng.Float64() * 6
	}
	return &IMU{read: read, bias: bias, noise: noise, rng: rng, connected: true}
}

func (m *IMU) Connected() bool { return m.connected }

func (m *IMU) SetConnected(ok bool) { m.connected = ok }

// FailCalibrations makes the next n calibrations fail.
func (m *IMU) FailCalibrations(n int) { m.failures = n }

func (m *IMU) Heading() float64 {
	h := m.read() + m.bias
	if m.noise > 0 && m.rng != nil {
		h += m.rng.NormFloat64() * m.noise
	}
	return h
}

func (m *IMU) Calibrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.Calibrations++
	if m.failures > 0 {
		m.failures--
		return fmt.Errorf("sim imu: calibration %d failed", m.Calibrations)
	}
	m.calibrated = true
	return nil
}

// Drive latches the last side commands for the plant to consume.
type Drive struct {
	mu          sync.Mutex
	left, right float64
}

func (d *Drive) Set(left, right float64) error {
	d.mu.Lock()
	d.left, d.right = clampUnit(left), clampUnit(right)
	d.mu.Unlock()
	return nil
}

func (d *Drive) Control() Control {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Control{d.left, d.right}
}

// MechanismState is the last command a mechanism received.
type MechanismState struct {
	On    bool
	Power float64
}

// Mechanisms records actuator commands. A non-empty known set rejects
// other names.
type Mechanisms struct {
	mu     sync.Mutex
	known  map[string]bool
	state  map[string]MechanismState
	events []string
}

func NewMechanisms(names ...string) *Mechanisms {
	m := &Mechanisms{known: make(map[string]bool), state: make(map[string]MechanismState)}
	for _, n := range names {
		m.known[n] = true
	}
	return m
}

func (m *Mechanisms) check(name string) error {
	if len(m.known) > 0 && !m.known[name] {
		return fmt.Errorf("%w: %q", ErrUnknownMechanism, name)
	}
	return nil
}

func (m *Mechanisms) Toggle(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(name); err != nil {
		return err
	}
	s := m.state[name]
	s.On = !s.On
	m.state[name] = s
	m.events = append(m.events, "toggle "+name)
	return nil
}

func (m *Mechanisms) Spin(name string, power float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(name); err != nil {
		return err
	}
	m.state[name] = MechanismState{On: power != 0, Power: power}
	m.events = append(m.events, fmt.Sprintf("spin %s %.2f", name, power))
	return nil
}

func (m *Mechanisms) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(name); err != nil {
		return err
	}
	m.state[name] = MechanismState{}
	m.events = append(m.events, "stop "+name)
	return nil
}

func (m *Mechanisms) State(name string) MechanismState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state[name]
}

// Events returns the command log in dispatch order.
func (m *Mechanisms) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

// Names lists mechanisms that have received a command.
func (m *Mechanisms) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.state))
	for n := range m.state {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
