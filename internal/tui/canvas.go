package tui

import (
	"math"
	"strings"

	"github.com/golang/geo/r2"

	"github.com/Towson-High-Robotics/934Z-Push-Back/internal/path"
)

// Braille cells hold 2x4 dots:
// 1 4
// 2 5
// 3 6
// 7 8
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a braille grid of Width x Height cells, so Width*2 x Height*4
// dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
	return c
}

// Set lights the dot at (x, y) in dot coordinates. Out of range dots are
// ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 {
		return false
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return false
	}
	return c.Grid[row][col]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine uses Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// FieldSize is the side of the square field in inches, centered on the
// origin.
const FieldSize = 144.0

// Field maps field inches onto a canvas. +y points up the screen.
type Field struct {
	*Canvas
	half float64
}

func NewField(w, h int) *Field {
	return &Field{Canvas: NewCanvas(w, h), half: FieldSize / 2}
}

// Dot returns the dot coordinates of a field point.
func (f *Field) Dot(p r2.Point) (int, int) {
	dw := float64(f.Width*2 - 1)
	dh := float64(f.Height*4 - 1)
	x := (p.X + f.half) / (2 * f.half) * dw
	y := (f.half - p.Y) / (2 * f.half) * dh
	return int(math.Round(x)), int(math.Round(y))
}

func (f *Field) Plot(p r2.Point) {
	f.Set(f.Dot(p))
}

func (f *Field) Line(a, b r2.Point) {
	x0, y0 := f.Dot(a)
	x1, y1 := f.Dot(b)
	f.DrawLine(x0, y0, x1, y1)
}

// DrawCurve draws c as a polyline of n chords.
func (f *Field) DrawCurve(c path.Curve, n int) {
	if n < 1 {
		n = 1
	}
	prev := c.Sample(0)
	for i := 1; i <= n; i++ {
		p := c.Sample(float64(i) / float64(n))
		f.Line(prev, p)
		prev = p
	}
}

func (f *Field) DrawTrajectory(t *path.Trajectory) {
	for _, s := range t.Segments {
		f.DrawCurve(s.Curve, 24)
	}
}

// DrawRobot draws a square chassis of the given side with a nose line
// along its heading.
func (f *Field) DrawRobot(p path.Pose, side float64) {
	c := p.Position()
	h := side / 2
	corners := []r2.Point{{X: -h, Y: -h}, {X: h, Y: -h}, {X: h, Y: h}, {X: -h, Y: h}}
	for i := range corners {
		corners[i] = c.Add(path.Rotate(corners[i], p.Heading))
	}
	for i := range corners {
		f.Line(corners[i], corners[(i+1)%len(corners)])
	}
	f.Line(c, c.Add(path.Forward(p.Heading).Mul(h)))
}
