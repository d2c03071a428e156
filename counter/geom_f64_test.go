package counter

import (
	"image"
	"math"
	"testing"
)

const (
	eps = 0.00001
)

func TestEuclideanDistance(t *testing.T) {
	p1 := Point{X: 341, Y: 264}
	p2 := Point{X: 421, Y: 427}
	correnctAnswer := 181.57367
	answer := euclideanDistance(p1, p2)
	if math.Abs(answer-correnctAnswer) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, correnctAnswer)
	}
}

func TestCrossProduct(t *testing.T) {
	a := Point{X: 0, Y: 100}
	b := Point{X: 200, Y: 100}
	// (200, 0) x (50, 50) = 200*50 - 0*50
	answer := crossProduct(a, b, Point{X: 50, Y: 150})
	if math.Abs(answer-10000) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, 10000.0)
	}
	answer = crossProduct(a, b, Point{X: 50, Y: 50})
	if math.Abs(answer+10000) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, -10000.0)
	}
}

func TestRectangleAnchor(t *testing.T) {
	rect := NewRect(10, 20, 30, 40)
	cases := []struct {
		anchor Anchor
		want   Point
	}{
		{AnchorCenter, Point{X: 25, Y: 40}},
		{AnchorBottomCenter, Point{X: 25, Y: 60}},
		{AnchorTopCenter, Point{X: 25, Y: 20}},
		{AnchorCenterLeft, Point{X: 10, Y: 40}},
		{AnchorCenterRight, Point{X: 40, Y: 40}},
		{AnchorTopLeft, Point{X: 10, Y: 20}},
		{AnchorTopRight, Point{X: 40, Y: 20}},
		{AnchorBottomLeft, Point{X: 10, Y: 60}},
		{AnchorBottomRight, Point{X: 40, Y: 60}},
	}
	for _, c := range cases {
		if got := rect.Anchor(c.anchor); got != c.want {
			t.Errorf("Anchor %s: expected %v, got %v", c.anchor, c.want, got)
		}
	}
	if rect.Center() != rect.Anchor(AnchorCenter) {
		t.Errorf("Center should match center anchor")
	}
}

func TestNewRectFrom(t *testing.T) {
	rect := NewRectFrom(image.Rect(5, 6, 15, 26))
	expected := Rectangle{X: 5, Y: 6, Width: 10, Height: 20}
	if rect != expected {
		t.Errorf("Expected %v, got %v", expected, rect)
	}
	if p := NewPointFrom(image.Pt(3, 4)); p != NewPoint(3, 4) {
		t.Errorf("Expected (3, 4), got %v", p)
	}
}

func TestParseAnchor(t *testing.T) {
	anchor, err := ParseAnchor(" Bottom_Center ")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if anchor != AnchorBottomCenter {
		t.Errorf("Expected %s, got %s", AnchorBottomCenter, anchor)
	}
	if _, err := ParseAnchor("middle"); err == nil {
		t.Error("Expected error for unknown anchor")
	}
}

func TestLineSide(t *testing.T) {
	line, err := NewLine(Point{X: 0, Y: 100}, Point{X: 200, Y: 100})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if side := line.Side(Point{X: 10, Y: 150}, 0.5); side != SidePositive {
		t.Errorf("Expected %s, got %s", SidePositive, side)
	}
	if side := line.Side(Point{X: 10, Y: 50}, 0.5); side != SideNegative {
		t.Errorf("Expected %s, got %s", SideNegative, side)
	}
	if side := line.Side(Point{X: 10, Y: 100.4}, 0.5); side != SideUnknown {
		t.Errorf("Expected %s within tolerance, got %s", SideUnknown, side)
	}
	// Side test is done against the infinite line, not only the segment
	if side := line.Side(Point{X: 500, Y: 150}, 0.5); side != SidePositive {
		t.Errorf("Expected %s beyond segment end, got %s", SidePositive, side)
	}
	if mid := line.Midpoint(); mid != (Point{X: 100, Y: 100}) {
		t.Errorf("Wrong midpoint: %v", mid)
	}
}

func TestLineSideOverflow(t *testing.T) {
	line, err := NewLine(Point{X: 0, Y: 0}, Point{X: 200, Y: 200})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Finite coordinates, but 200*1e307 overflows and the cross product is Inf-Inf
	if side := line.Side(Point{X: 1e307, Y: 1e307}, 0.5); side != SideUnknown {
		t.Errorf("Expected %s for unclassifiable point, got %s", SideUnknown, side)
	}
}

func TestNewLineDegenerate(t *testing.T) {
	if _, err := NewLine(Point{X: 1, Y: 1}, Point{X: 1, Y: 1}); err == nil {
		t.Error("Expected error for coincident endpoints")
	}
	if _, err := NewLine(Point{X: math.NaN(), Y: 1}, Point{X: 1, Y: 1}); err == nil {
		t.Error("Expected error for NaN endpoint")
	}
}
