package ops

import (
	"math"

	"github.com/wippyai/cffi"
)

func NewPoint(x, y float64) cffi.Point {
	return cffi.Point{X: x, Y: y}
}

// Distance returns the Euclidean distance between p1 and p2.
func Distance(p1, p2 cffi.Point) float64 {
	dx := p1.X - p2.X
	dy := p1.Y - p2.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Midpoint returns the point halfway between p1 and p2.
func Midpoint(p1, p2 cffi.Point) cffi.Point {
	return cffi.Point{
		X: (p1.X + p2.X) / 2,
		Y: (p1.Y + p2.Y) / 2,
	}
}

// Translate moves p by (dx, dy). A nil p is a no-op.
func Translate(p *cffi.Point, dx, dy float64) {
	if p == nil {
		return
	}
	p.X += dx
	p.Y += dy
}
