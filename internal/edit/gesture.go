package edit

import (
	"errors"
	"fmt"
	"math"
)

// GestureKind names a pointer manipulation of an overlay.
type GestureKind string

const (
	GestureMove    GestureKind = "move"
	GestureResize  GestureKind = "resize"
	GestureRotate  GestureKind = "rotate"
	GestureStretch GestureKind = "stretch"
)

// resizeFactor converts pointer travel in pixels to scale units.
const resizeFactor = 0.01

var ErrEmptyBox = errors.New("frame box has no area")

// Point is a pointer position in screen pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is the rendered frame rectangle in screen pixels.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Gesture is an active manipulation. Every update is computed from the
// pointer position and the overlay value captured when the gesture began,
// so a burst of events cannot accumulate drift.
type Gesture struct {
	Kind      GestureKind
	OverlayID string
	Start     Point
	Box       Box

	initial Overlay
}

// BeginGesture captures the starting state of a manipulation of o.
func BeginGesture(kind GestureKind, o Overlay, at Point, box Box) (*Gesture, error) {
	switch kind {
	case GestureMove:
		if box.Width <= 0 || box.Height <= 0 {
			return nil, ErrEmptyBox
		}
	case GestureStretch:
		if !o.IsArrow() {
			return nil, ErrNotArrow
		}
	case GestureResize, GestureRotate:
	default:
		return nil, fmt.Errorf("unknown gesture %q", kind)
	}
	return &Gesture{Kind: kind, OverlayID: o.ID, Start: at, Box: box, initial: o}, nil
}

// Apply returns the overlay as it is with the pointer at p.
func (g *Gesture) Apply(p Point) Overlay {
	o := g.initial
	dx, dy := p.X-g.Start.X, p.Y-g.Start.Y

	switch g.Kind {
	case GestureMove:
		o.X = ClampPercent((p.X - g.Box.Left) / g.Box.Width * 100)
		o.Y = ClampPercent((p.Y - g.Box.Top) / g.Box.Height * 100)
	case GestureResize:
		o.Scale = ClampScale(g.initial.Scale + math.Hypot(dx, dy)*resizeFactor*direction(dx, dy))
	case GestureStretch:
		width := g.initial.Width
		if width == 0 {
			width = DefaultArrowWidth
		}
		o.Width = ClampWidth(width + math.Hypot(dx, dy)*direction(dx, dy))
	case GestureRotate:
		o.Rotation = NormalizeRotation(g.initial.Rotation + dx)
	}
	return o
}

// direction grows the overlay when the pointer moves right or down.
func direction(dx, dy float64) float64 {
	if dx > 0 || dy > 0 {
		return 1
	}
	return -1
}
