// Package edit holds the annotation and trim model applied to uploaded
// recordings, the pointer gesture math used by the editor, and a renderer
// that reproduces overlays from their persisted values.
package edit

import (
	"errors"
	"math"

	"github.com/google/uuid"
)

// Kind is the persisted overlay type.
type Kind string

const (
	// KindText overlays carry their visible text in Content.
	KindText Kind = "text"
	// KindEmoji overlays carry a fixed tag in Content: ContentArrow,
	// ContentPencil or a literal marker glyph.
	KindEmoji Kind = "emoji"
)

// Fixed content tags for non-text overlays.
const (
	ContentArrow  = "arrow"
	ContentPencil = "pencil"
)

// Overlay limits and defaults.
const (
	MinScale          = 0.2
	MaxScale          = 5.0
	ScaleStep         = 0.1
	MinArrowWidth     = 20.0
	DefaultArrowWidth = 100.0
	DefaultText       = "Double click to edit"

	ArrowColor  = "#8b5cf6"
	PencilColor = "#10b981"
	TextColor   = "#f59e0b"
	MarkerColor = "#ef4444"
)

// Palette is the set of colors offered by the editor.
var Palette = []string{"#ffffff", "#ef4444", "#f59e0b", "#10b981", "#3b82f6", "#8b5cf6", "#ec4899"}

var (
	ErrOverlayNotFound = errors.New("overlay not found")
	ErrNotArrow        = errors.New("only arrow overlays can be stretched")
)

// Overlay is one annotation placed on a recording. X and Y are the centre
// of the overlay as a percentage of the frame box.
type Overlay struct {
	ID       string  `json:"id" validate:"required,max=64"`
	Type     Kind    `json:"type" validate:"required,oneof=text emoji"`
	Content  string  `json:"content" validate:"max=500"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
	Color    string  `json:"color" validate:"omitempty,hexcolor"`
	Width    float64 `json:"width,omitempty"`
}

func newOverlay(kind Kind, content, color string) Overlay {
	return Overlay{
		ID:      uuid.NewString(),
		Type:    kind,
		Content: content,
		X:       50,
		Y:       50,
		Scale:   1,
		Color:   color,
	}
}

// NewArrow returns an arrow at the centre of the frame.
func NewArrow() Overlay {
	o := newOverlay(KindEmoji, ContentArrow, ArrowColor)
	o.Width = DefaultArrowWidth
	return o
}

// NewPencil returns a pencil marker at the centre of the frame.
func NewPencil() Overlay {
	return newOverlay(KindEmoji, ContentPencil, PencilColor)
}

// NewText returns an editable text box at the centre of the frame.
func NewText() Overlay {
	return newOverlay(KindText, DefaultText, TextColor)
}

// NewMarker returns a glyph marker such as a check or a star.
func NewMarker(glyph string) Overlay {
	return newOverlay(KindEmoji, glyph, MarkerColor)
}

// IsArrow reports whether the overlay has a stretchable width.
func (o Overlay) IsArrow() bool {
	return o.Type == KindEmoji && o.Content == ContentArrow
}

// defaultColor is the color a kind is created with.
func (o Overlay) defaultColor() string {
	switch {
	case o.Type == KindText:
		return TextColor
	case o.IsArrow():
		return ArrowColor
	case o.Content == ContentPencil:
		return PencilColor
	default:
		return MarkerColor
	}
}

// Normalize brings every field into its valid range so the overlay renders
// the same wherever it is read back.
func (o *Overlay) Normalize() {
	o.X = ClampPercent(o.X)
	o.Y = ClampPercent(o.Y)
	if o.Scale == 0 || !finite(o.Scale) {
		o.Scale = 1
	}
	o.Scale = ClampScale(o.Scale)
	o.Rotation = NormalizeRotation(o.Rotation)
	if o.Color == "" {
		o.Color = o.defaultColor()
	}
	if o.IsArrow() {
		if o.Width == 0 || !finite(o.Width) {
			o.Width = DefaultArrowWidth
		}
		o.Width = ClampWidth(o.Width)
	} else {
		o.Width = 0
	}
}

// ClampScale bounds s to [MinScale, MaxScale].
func ClampScale(s float64) float64 {
	return math.Max(MinScale, math.Min(s, MaxScale))
}

// ClampWidth enforces the minimum arrow width.
func ClampWidth(w float64) float64 {
	return math.Max(MinArrowWidth, w)
}

// ClampPercent bounds p to [0, 100]. NaN becomes the centre.
func ClampPercent(p float64) float64 {
	if math.IsNaN(p) {
		return 50
	}
	return math.Max(0, math.Min(p, 100))
}

// NormalizeRotation wraps degrees into [0, 360).
func NormalizeRotation(deg float64) float64 {
	if !finite(deg) {
		return 0
	}
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		r = 0
	}
	return r
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
