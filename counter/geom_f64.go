package counter

import (
	"image"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Rectangle is a bounding box given by its top-left corner and size
type Rectangle struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func NewRect(x, y, width, height float64) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

func NewRectFrom(rect image.Rectangle) Rectangle {
	return Rectangle{
		X:      float64(rect.Min.X),
		Y:      float64(rect.Min.Y),
		Width:  float64(rect.Dx()),
		Height: float64(rect.Dy()),
	}
}

// Center returns center of the rectangle
func (rect Rectangle) Center() Point {
	return Point{
		X: rect.X + rect.Width/2.0,
		Y: rect.Y + rect.Height/2.0,
	}
}

// Anchor returns representative point of the rectangle for given anchor.
// Unknown anchors fall back to center.
func (rect Rectangle) Anchor(anchor Anchor) Point {
	left, top := rect.X, rect.Y
	right, bottom := rect.X+rect.Width, rect.Y+rect.Height
	cx, cy := rect.X+rect.Width/2.0, rect.Y+rect.Height/2.0
	switch anchor {
	case AnchorBottomCenter:
		return Point{X: cx, Y: bottom}
	case AnchorTopCenter:
		return Point{X: cx, Y: top}
	case AnchorCenterLeft:
		return Point{X: left, Y: cy}
	case AnchorCenterRight:
		return Point{X: right, Y: cy}
	case AnchorTopLeft:
		return Point{X: left, Y: top}
	case AnchorTopRight:
		return Point{X: right, Y: top}
	case AnchorBottomLeft:
		return Point{X: left, Y: bottom}
	case AnchorBottomRight:
		return Point{X: right, Y: bottom}
	default:
		return Point{X: cx, Y: cy}
	}
}

type Point struct {
	X float64
	Y float64
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

func NewPointFrom(point image.Point) Point {
	return Point{
		X: float64(point.X),
		Y: float64(point.Y),
	}
}

// IsFinite reports whether both coordinates are neither NaN nor infinite
func (p Point) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

func (p Point) vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

func euclideanDistance(p1, p2 Point) float64 {
	return r2.Norm(r2.Sub(p1.vec(), p2.vec()))
}

// crossProduct returns (b - a) × (p - a)
func crossProduct(a, b, p Point) float64 {
	return r2.Cross(r2.Sub(b.vec(), a.vec()), r2.Sub(p.vec(), a.vec()))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
