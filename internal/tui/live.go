// Package tui replays a simulated routine on a braille field in the
// terminal.
package tui

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/golang/geo/r2"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/sim"
	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/telemetry"
)

const (
	frame     = 16 * time.Millisecond
	robotSide = 15.0
	trailCap  = 4000
	sparkLen  = 40
)

// Result is the outcome of the streamed run.
type Result struct {
	Run *telemetry.Run
	Err error
}

// Feed carries the samples of a run that is executing in the background.
type Feed struct {
	Name     string
	Start    path.Pose
	Segments []path.Segment

	samples chan telemetry.Sample
	done    chan Result
	cancel  context.CancelFunc
}

// Stream runs traj on s in a goroutine. The simulator blocks on each
// sample until the view consumes it, so playback paces the run.
func Stream(ctx context.Context, s *sim.Simulator, name string, traj *path.Trajectory, cfg sim.Config) *Feed {
	ctx, cancel := context.WithCancel(ctx)
	f := &Feed{
		Name:     name,
		Start:    traj.Start,
		Segments: append([]path.Segment(nil), traj.Segments...),
		samples:  make(chan telemetry.Sample, 64),
		done:     make(chan Result, 1),
		cancel:   cancel,
	}
	s.AddObserver(telemetry.ObserverFunc(func(sample telemetry.Sample) {
		select {
		case f.samples <- sample:
		case <-ctx.Done():
		}
	}))
	go func() {
		run, err := s.Run(ctx, name, traj, cfg)
		close(f.samples)
		f.done <- Result{Run: run, Err: err}
	}()
	return f
}

// Stop cancels the background run.
func (f *Feed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frame, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is the bubbletea model of the live view.
type Model struct {
	feed   *Feed
	speed  float64
	clock  float64
	paused bool

	pending *telemetry.Sample
	drained bool
	last    telemetry.Sample
	seen    int
	trail   []r2.Point
	est     []r2.Point
	cross   []float64
	result  *Result

	width  int
	height int
}

func NewModel(feed *Feed) Model {
	return Model{
		feed:   feed,
		speed:  1,
		trail:  make([]r2.Point, 0, 256),
		est:    make([]r2.Point, 0, 256),
		cross:  make([]float64, 0, sparkLen),
		width:  100,
		height: 40,
	}
}

func (m Model) Init() tea.Cmd { return tick() }

// Result returns the run outcome once the feed has finished.
func (m Model) Result() *Result { return m.result }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if !m.paused {
			m.clock += frame.Seconds() * m.speed
			m.consume()
		}
		if m.result != nil && m.pending == nil {
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.feed.Stop()
		return m, tea.Quit
	case " ":
		m.paused = !m.paused
	case "+", "=":
		m.speed = math.Min(m.speed*2, 64)
	case "-", "_":
		m.speed = math.Max(m.speed/2, 0.125)
	case "s":
		// Skip to the end.
		m.clock = math.Inf(1)
		m.consume()
	}
	return m, nil
}

// consume takes every available sample up to the playback clock.
func (m *Model) consume() {
	for {
		if m.pending == nil {
			if m.drained {
				break
			}
			s, ok, wait := m.next()
			if wait {
				break
			}
			if !ok {
				m.drained = true
				break
			}
			m.pending = &s
		}
		if m.pending.T > m.clock {
			return
		}
		m.observe(*m.pending)
		m.pending = nil
	}
	if m.drained && m.result == nil {
		select {
		case r := <-m.feed.done:
			m.result = &r
		default:
		}
	}
}

func (m *Model) next() (telemetry.Sample, bool, bool) {
	if math.IsInf(m.clock, 1) {
		s, ok := <-m.feed.samples
		return s, ok, false
	}
	select {
	case s, ok := <-m.feed.samples:
		return s, ok, false
	default:
		return telemetry.Sample{}, false, true
	}
}

func (m *Model) observe(s telemetry.Sample) {
	m.last = s
	m.seen++
	if len(m.trail) < trailCap {
		m.trail = append(m.trail, r2.Point{X: s.X, Y: s.Y})
		m.est = append(m.est, r2.Point{X: s.EstX, Y: s.EstY})
	}
	m.cross = append(m.cross, s.CrossTrack)
	if len(m.cross) > sparkLen {
		m.cross = m.cross[1:]
	}
}

func (m Model) fieldSize() (int, int) {
	h := m.height - 14
	if w := m.width/2 - 4; w < h {
		h = w
	}
	if h < 10 {
		h = 10
	}
	return 2 * h, h
}

// Field renders the authored path, the driven trail and the robot.
func (m Model) Field() []string {
	w, h := m.fieldSize()
	paths := NewField(w, h)
	for _, s := range m.feed.Segments {
		paths.DrawCurve(s.Curve, 24)
	}
	est := NewField(w, h)
	for _, p := range m.est {
		est.Plot(p)
	}
	trail := NewField(w, h)
	for i := 1; i < len(m.trail); i++ {
		trail.Line(m.trail[i-1], m.trail[i])
	}
	robot := NewField(w, h)
	if m.seen > 0 {
		robot.DrawRobot(path.Pose{X: m.last.X, Y: m.last.Y, Heading: m.last.Heading}, robotSide)
	} else {
		robot.DrawRobot(m.feed.Start, robotSide)
	}
	return Layers(
		[]*Canvas{paths.Canvas, est.Canvas, trail.Canvas, robot.Canvas},
		[]lipgloss.Style{PathStyle, StatusPaused, TrailStyle, RobotStyle},
	)
}

func (m Model) View() string {
	var b strings.Builder

	status := StatusRunning.Render("● running")
	switch {
	case m.result != nil && m.result.Err != nil:
		status = StatusFailed.Render("✕ " + m.result.Err.Error())
	case m.result != nil && m.pending == nil:
		status = StatusRunning.Render("✓ done")
	case m.paused:
		status = StatusPaused.Render("○ paused")
	}
	b.WriteString(fmt.Sprintf("\n   %s  %s  %s\n",
		Title.Render(m.feed.Name), status, Subtle.Render(fmt.Sprintf("%gx", m.speed))))

	total := len(m.feed.Segments)
	pct := 0.0
	if total > 0 {
		pct = m.last.Progress / float64(total)
	}
	b.WriteString(fmt.Sprintf("   %s %s\n\n", ProgressBar(pct, 36),
		Subtle.Render(fmt.Sprintf("segment %d/%d  t=%.2fs", min(m.last.Segment+1, total), total, m.last.T))))

	field := FieldPanel.Render(strings.Join(m.Field(), "\n"))
	for _, line := range strings.Split(field, "\n") {
		b.WriteString("   " + line + "\n")
	}

	b.WriteString(fmt.Sprintf("\n   %s %s %s\n", MetricLabel.Render("L"), PowerBar(m.last.Left, 20), MetricValue.Render(fmt.Sprintf("%+.2f", m.last.Left))))
	b.WriteString(fmt.Sprintf("   %s %s %s\n", MetricLabel.Render("R"), PowerBar(m.last.Right, 20), MetricValue.Render(fmt.Sprintf("%+.2f", m.last.Right))))
	b.WriteString(fmt.Sprintf("   %s %s  %s %s  %s %s\n",
		MetricLabel.Render("mode"), MetricValue.Render(m.last.Mode),
		MetricLabel.Render("heading"), MetricValue.Render(fmt.Sprintf("%.1f°", path.ToDeg(m.last.Heading))),
		MetricLabel.Render("odom err"), MetricValue.Render(fmt.Sprintf("%.2f", math.Hypot(m.last.X-m.last.EstX, m.last.Y-m.last.EstY)))))
	b.WriteString(fmt.Sprintf("   %s %s\n", MetricLabel.Render("xtrack"), Sparkline(m.cross, sparkLen)))

	if m.result != nil && m.result.Run != nil && m.pending == nil {
		b.WriteString("\n" + m.summary(m.result.Run))
	}

	b.WriteString("\n" + KeyHint.Render("   space pause  ± speed  s skip  q quit") + "\n")
	return b.String()
}

func (m Model) summary(run *telemetry.Run) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("   %s %v  %s %d  %s %s  %s %d\n",
		MetricLabel.Render("completed"), MetricValue.Render(fmt.Sprint(run.Completed)),
		MetricLabel.Render("forced"), run.Forced,
		MetricLabel.Render("elapsed"), MetricValue.Render(run.Elapsed.String()),
		MetricLabel.Render("actions"), len(run.Actions)))

	names := make([]string, 0, len(run.Metrics))
	for name := range run.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(fmt.Sprintf("   %s %s\n", MetricLabel.Render(fmt.Sprintf("%-22s", name)), MetricValue.Render(fmt.Sprintf("%.4f", run.Metrics[name]))))
	}
	return b.String()
}

// Run shows feed until the user quits and returns the run outcome, if it
// finished.
func Run(feed *Feed) (*Result, error) {
	p := tea.NewProgram(NewModel(feed), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		feed.Stop()
		return nil, err
	}
	return final.(Model).Result(), nil
}
