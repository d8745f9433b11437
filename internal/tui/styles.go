package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00ffff"))

	Subtle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688"))

	StatusRunning = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88"))

	StatusPaused = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00"))

	StatusFailed = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444"))

	MetricValue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	MetricLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))

	KeyHint = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666688")).
		Italic(true)

	FieldPanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466"))

	// Field layers, painted path first and robot last.
	PathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#444466"))
	TrailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ccff"))
	RobotStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)

	SparkHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	SparkMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffcc00"))
	SparkLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff4444"))
)

// ProgressBar fills width cells in proportion to percent.
func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return Title.Render(strings.Repeat("━", filled)) + Subtle.Render(strings.Repeat("─", width-filled))
}

// PowerBar draws a signed drive power in [-1, 1] around a center mark.
func PowerBar(power float64, width int) string {
	half := width / 2
	n := int(math.Round(math.Min(math.Abs(power), 1) * float64(half)))
	left := strings.Repeat(" ", half)
	right := strings.Repeat(" ", half)
	style := SparkHigh
	if power < 0 {
		style = SparkLow
		left = strings.Repeat(" ", half-n) + style.Render(strings.Repeat("█", n))
	} else {
		right = style.Render(strings.Repeat("█", n)) + strings.Repeat(" ", half-n)
	}
	return left + Subtle.Render("│") + right
}

// Sparkline renders magnitudes: small values read green, large red.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return Subtle.Render(strings.Repeat("─", width))
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	maxVal := 0.0
	for _, v := range values {
		maxVal = math.Max(maxVal, math.Abs(v))
	}
	if maxVal == 0 {
		maxVal = 1
	}

	if len(values) > width {
		values = values[len(values)-width:]
	}

	var b strings.Builder
	for _, v := range values {
		norm := math.Abs(v) / maxVal
		idx := int(norm * float64(len(chars)-1))
		if idx >= len(chars) {
			idx = len(chars) - 1
		}
		c := string(chars[idx])
		switch {
		case norm > 0.7:
			b.WriteString(SparkLow.Render(c))
		case norm > 0.3:
			b.WriteString(SparkMid.Render(c))
		default:
			b.WriteString(SparkHigh.Render(c))
		}
	}
	return b.String()
}

// Layers paints stacked canvases of equal size: for each cell the topmost
// non-empty layer picks the style, and the dots of all layers are merged.
func Layers(canvases []*Canvas, styles []lipgloss.Style) []string {
	if len(canvases) == 0 {
		return nil
	}
	rows := make([]string, canvases[0].Height)
	for r := range rows {
		var b strings.Builder
		for col := 0; col < canvases[0].Width; col++ {
			cell := rune(blank)
			top := -1
			for i, c := range canvases {
				if c.Grid[r][col] != blank {
					cell |= c.Grid[r][col]
					top = i
				}
			}
			if top < 0 {
				b.WriteRune(cell)
				continue
			}
			b.WriteString(styles[top].Render(string(cell)))
		}
		rows[r] = b.String()
	}
	return rows
}
