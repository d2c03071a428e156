// Package overlay draws the reference line and the counts panel onto frames.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/LdDl/linecounter/counter"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

var (
	Yellow     = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	Green      = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Black      = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	Background = color.RGBA{R: 30, G: 30, B: 30, A: 255}
)

const (
	lineThickness  = 4
	arrowThickness = 3
	arrowLength    = 100
	arrowShift     = 150
	labelGap       = 6
	traceThickness = 2
	panelX         = 10
	panelY         = 10
	panelWidth     = 250
	panelHeight    = 130
	panelBorder    = 2
)

// Blank returns canvas of given size filled with background color
func Blank(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)
	return img
}

// Draw draws line with IN / OUT direction arrows and the counts panel
func Draw(img *image.RGBA, line counter.Line, convention counter.DirectionConvention, tally counter.Tally) {
	DrawLine(img, line.Start, line.End, lineThickness, Yellow)
	drawDirections(img, line, convention)
	DrawPanel(img, tally)
}

// DrawLine strokes segment from a to b
func DrawLine(img *image.RGBA, a, b counter.Point, thickness float64, clr color.Color) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	// Half-thickness normal
	nx, ny := -dy/length*thickness/2, dx/length*thickness/2
	bounds := img.Bounds()
	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	ox, oy := float64(bounds.Min.X), float64(bounds.Min.Y)
	z.MoveTo(float32(a.X+nx-ox), float32(a.Y+ny-oy))
	z.LineTo(float32(b.X+nx-ox), float32(b.Y+ny-oy))
	z.LineTo(float32(b.X-nx-ox), float32(b.Y-ny-oy))
	z.LineTo(float32(a.X-nx-ox), float32(a.Y-ny-oy))
	z.ClosePath()
	z.Draw(img, bounds, image.NewUniform(clr), image.Point{})
}

// drawArrow draws arrow from tail to tip with a head of 30% of its length
func drawArrow(img *image.RGBA, tail, tip counter.Point, clr color.Color) {
	DrawLine(img, tail, tip, arrowThickness, clr)
	dx, dy := tip.X-tail.X, tip.Y-tail.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	head := 0.3 * length
	ux, uy := dx/length, dy/length
	for _, angle := range []float64{math.Pi / 6, -math.Pi / 6} {
		cos, sin := math.Cos(angle), math.Sin(angle)
		wing := counter.Point{
			X: tip.X - head*(ux*cos-uy*sin),
			Y: tip.Y - head*(ux*sin+uy*cos),
		}
		DrawLine(img, tip, wing, arrowThickness, clr)
	}
}

// directionArrows returns tail and tip of IN and OUT arrows. Both arrows go across
// the line along its normal, shifted from the midpoint along the line in opposite ways.
func directionArrows(line counter.Line, convention counter.DirectionConvention) (in, out [2]counter.Point) {
	dx, dy := line.End.X-line.Start.X, line.End.Y-line.Start.Y
	length := math.Hypot(dx, dy)
	ux, uy := dx/length, dy/length
	// Normal pointing to the positive side
	nx, ny := -uy, ux
	if convention == counter.PositiveToNegativeIn {
		nx, ny = -nx, -ny
	}
	shift := math.Min(arrowShift, length/4)
	mid := line.Midpoint()
	half := arrowLength / 2.0
	inCenter := counter.Point{X: mid.X - shift*ux, Y: mid.Y - shift*uy}
	outCenter := counter.Point{X: mid.X + shift*ux, Y: mid.Y + shift*uy}
	in = [2]counter.Point{
		{X: inCenter.X - half*nx, Y: inCenter.Y - half*ny},
		{X: inCenter.X + half*nx, Y: inCenter.Y + half*ny},
	}
	out = [2]counter.Point{
		{X: outCenter.X + half*nx, Y: outCenter.Y + half*ny},
		{X: outCenter.X - half*nx, Y: outCenter.Y - half*ny},
	}
	return in, out
}

// drawDirections draws labelled arrows showing which crossing counts as IN and which as OUT
func drawDirections(img *image.RGBA, line counter.Line, convention counter.DirectionConvention) {
	if line.Length() == 0 {
		return
	}
	in, out := directionArrows(line, convention)
	drawArrow(img, in[0], in[1], Yellow)
	drawArrow(img, out[0], out[1], Yellow)
	drawLabel(img, "IN", int(in[0].X)+labelGap, int(in[0].Y)+labelGap, Yellow)
	drawLabel(img, "OUT", int(out[0].X)+labelGap, int(out[0].Y)+labelGap, Yellow)
}

// DrawTraces draws recent positions of every track as polylines
func DrawTraces(img *image.RGBA, traces *Traces) {
	for _, points := range traces.All() {
		for i := 1; i < len(points); i++ {
			DrawLine(img, points[i-1], points[i], traceThickness, Green)
		}
	}
}

// DrawPanel draws black box with yellow border listing counts
func DrawPanel(img *image.RGBA, tally counter.Tally) {
	outer := image.Rect(panelX, panelY, panelX+panelWidth, panelY+panelHeight)
	draw.Draw(img, outer, image.NewUniform(Yellow), image.Point{}, draw.Src)
	draw.Draw(img, outer.Inset(panelBorder), image.NewUniform(Black), image.Point{}, draw.Src)

	rows := []struct {
		label string
		value int
	}{
		{"Cars IN:", tally.In},
		{"Cars OUT:", tally.Out},
		{"TOTAL:", tally.Total()},
	}
	for i, row := range rows {
		baseline := panelY + 30 + i*40
		drawLabel(img, row.label, panelX+10, baseline, Yellow)
		drawLabel(img, strconv.Itoa(row.value), panelX+150, baseline, Green)
	}
}

func drawLabel(img *image.RGBA, text string, x, baseline int, clr color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(clr),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}
