package compositor

import (
	"math"
	"time"
)

const (
	// FrameRate is the fixed drawing cadence.
	FrameRate = 30

	// BubbleRatio is the camera bubble diameter as a fraction of the
	// shorter surface side.
	BubbleRatio = 0.2

	// BubbleMargin is the gap in pixels between the bubble and the
	// left and bottom edges.
	BubbleMargin = 24

	// RingWidth is the stroke width of the ring drawn around the bubble.
	RingWidth = 8

	// DefaultRingColor is the ring stroke colour.
	DefaultRingColor = "#8b5cf6"
)

// FrameInterval is the ticker period for FrameRate.
var FrameInterval = time.Second / FrameRate

// Circle is a circle in surface pixels.
type Circle struct {
	CX float64
	CY float64
	R  float64
}

// Diameter returns the circle's diameter rounded to whole pixels.
func (c Circle) Diameter() int {
	return int(math.Round(2 * c.R))
}

// BubbleLayout returns where the camera bubble sits on a surface of the
// given size: bottom-left, BubbleMargin from both edges.
func BubbleLayout(width, height int) Circle {
	short := math.Min(float64(width), float64(height))
	d := math.Round(short * BubbleRatio)
	r := d / 2
	return Circle{
		CX: BubbleMargin + r,
		CY: float64(height) - BubbleMargin - r,
		R:  r,
	}
}
