package metrics

import (
	"math"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/telemetry"
)

// ControlEffort is the mean absolute side command.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(s telemetry.Sample) {
	c.sum += (math.Abs(s.Left) + math.Abs(s.Right)) / 2
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
