package metrics

import (
	"math"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/telemetry"
)

// CrossTrackRMS is the root-mean-square cross-track error over samples
// where the follower was tracking a path.
type CrossTrackRMS struct {
	sumSq   float64
	samples int
}

func NewCrossTrackRMS() *CrossTrackRMS { return &CrossTrackRMS{} }

func (c *CrossTrackRMS) Name() string { return "cross_track_rms" }

func (c *CrossTrackRMS) Observe(s telemetry.Sample) {
	if s.Mode != "tracking" && s.Mode != "close" {
		return
	}
	c.sumSq += s.CrossTrack * s.CrossTrack
	c.samples++
}

func (c *CrossTrackRMS) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return math.Sqrt(c.sumSq / float64(c.samples))
}

func (c *CrossTrackRMS) Reset() {
	c.sumSq = 0
	c.samples = 0
}

// OdometryDrift is the largest distance between the true and estimated
// position.
type OdometryDrift struct {
	max float64
}

func NewOdometryDrift() *OdometryDrift { return &OdometryDrift{} }

func (o *OdometryDrift) Name() string { return "odometry_drift" }

func (o *OdometryDrift) Observe(s telemetry.Sample) {
	if d := math.Hypot(s.X-s.EstX, s.Y-s.EstY); d > o.max {
		o.max = d
	}
}

func (o *OdometryDrift) Value() float64 { return o.max }

func (o *OdometryDrift) Reset() { o.max = 0 }

// PathLength is the distance the robot actually drove.
type PathLength struct {
	total      float64
	lastX      float64
	lastY      float64
	hasSamples bool
}

func NewPathLength() *PathLength { return &PathLength{} }

func (p *PathLength) Name() string { return "path_length" }

func (p *PathLength) Observe(s telemetry.Sample) {
	if p.hasSamples {
		p.total += math.Hypot(s.X-p.lastX, s.Y-p.lastY)
	}
	p.lastX, p.lastY = s.X, s.Y
	p.hasSamples = true
}

func (p *PathLength) Value() float64 { return p.total }

func (p *PathLength) Reset() {
	p.total = 0
	p.hasSamples = false
}

// Default returns the metrics recorded for every simulated run.
func Default() []telemetry.Metric {
	return []telemetry.Metric{
		NewControlEffort(),
		NewCrossTrackRMS(),
		NewOdometryDrift(),
		NewPathLength(),
	}
}
