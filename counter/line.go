package counter

import (
	"math"

	"github.com/pkg/errors"
)

// DefaultEpsilonRatio is the on-line tolerance as a fraction of the line length
const DefaultEpsilonRatio = 1e-6

// Side is a half-plane defined by an oriented line
type Side int8

const (
	SideUnknown Side = iota
	SidePositive
	SideNegative
)

func (side Side) String() string {
	switch side {
	case SidePositive:
		return "positive"
	case SideNegative:
		return "negative"
	default:
		return "unknown"
	}
}

// Line is an oriented segment from Start to End.
// For image coordinates (Y grows downwards) and a line going left to right
// the positive side is below the line.
type Line struct {
	Start Point
	End   Point
}

// NewLine creates line and checks it is not degenerate
func NewLine(start, end Point) (Line, error) {
	if !start.IsFinite() || !end.IsFinite() {
		return Line{}, errors.Wrapf(ErrInvalidConfiguration, "line endpoints must be finite: %v, %v", start, end)
	}
	if start == end {
		return Line{}, errors.Wrapf(ErrInvalidConfiguration, "line endpoints coincide: %v", start)
	}
	return Line{Start: start, End: end}, nil
}

// Length returns length of the segment
func (line Line) Length() float64 {
	return euclideanDistance(line.Start, line.End)
}

// Midpoint returns middle of the segment
func (line Line) Midpoint() Point {
	return Point{
		X: (line.Start.X + line.End.X) / 2.0,
		Y: (line.Start.Y + line.End.Y) / 2.0,
	}
}

// Side returns side of the point. Points with perpendicular distance to the line
// not greater than epsilon are SideUnknown. So are points too far away to be
// classified in float64 (cross product overflows to NaN).
func (line Line) Side(p Point, epsilon float64) Side {
	cross := crossProduct(line.Start, line.End, p)
	if math.IsNaN(cross) || math.Abs(cross) <= epsilon*line.Length() {
		return SideUnknown
	}
	if cross > 0 {
		return SidePositive
	}
	return SideNegative
}
