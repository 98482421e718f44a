package edit

import (
	"slices"
	"strings"
)

// Editor holds the overlays of one recording while they are being edited.
// It is not safe for concurrent use.
type Editor struct {
	overlays []Overlay
	selected string
	gesture  *Gesture
}

// NewEditor starts from persisted overlays, normalised.
func NewEditor(overlays []Overlay) *Editor {
	e := &Editor{overlays: make([]Overlay, 0, len(overlays))}
	for _, o := range overlays {
		o.Normalize()
		e.overlays = append(e.overlays, o)
	}
	return e
}

// Overlays returns a copy of the current overlays in stacking order.
func (e *Editor) Overlays() []Overlay {
	return slices.Clone(e.overlays)
}

// Selected returns the id of the selected overlay, or "".
func (e *Editor) Selected() string { return e.selected }

// Add appends o on top and selects it.
func (e *Editor) Add(o Overlay) Overlay {
	o.Normalize()
	e.overlays = append(e.overlays, o)
	e.selected = o.ID
	return o
}

// Get returns the overlay with id.
func (e *Editor) Get(id string) (Overlay, bool) {
	i := e.index(id)
	if i < 0 {
		return Overlay{}, false
	}
	return e.overlays[i], true
}

// Remove deletes the overlay with id.
func (e *Editor) Remove(id string) error {
	i := e.index(id)
	if i < 0 {
		return ErrOverlayNotFound
	}
	e.overlays = slices.Delete(e.overlays, i, i+1)
	if e.selected == id {
		e.selected = ""
	}
	if e.gesture != nil && e.gesture.OverlayID == id {
		e.gesture = nil
	}
	return nil
}

// Select marks id as selected; "" clears the selection.
func (e *Editor) Select(id string) error {
	if id != "" && e.index(id) < 0 {
		return ErrOverlayNotFound
	}
	e.selected = id
	return nil
}

// SetColor recolors an overlay.
func (e *Editor) SetColor(id, color string) error {
	return e.update(id, func(o *Overlay) { o.Color = color })
}

// SetText replaces the content of a text overlay. Surrounding whitespace
// is dropped.
func (e *Editor) SetText(id, text string) error {
	return e.update(id, func(o *Overlay) {
		if o.Type == KindText {
			o.Content = strings.TrimSpace(text)
		}
	})
}

// StepScale nudges the scale by delta, as the +/- buttons do.
func (e *Editor) StepScale(id string, delta float64) error {
	return e.update(id, func(o *Overlay) { o.Scale = ClampScale(o.Scale + delta) })
}

// BeginGesture starts a manipulation of id. Any gesture in progress is
// committed first.
func (e *Editor) BeginGesture(kind GestureKind, id string, at Point, box Box) error {
	i := e.index(id)
	if i < 0 {
		return ErrOverlayNotFound
	}
	g, err := BeginGesture(kind, e.overlays[i], at, box)
	if err != nil {
		return err
	}
	e.gesture = g
	e.selected = id
	return nil
}

// MoveGesture updates the active gesture to the pointer at p and returns
// the overlay's new value. It reports false when no gesture is active.
func (e *Editor) MoveGesture(p Point) (Overlay, bool) {
	if e.gesture == nil {
		return Overlay{}, false
	}
	i := e.index(e.gesture.OverlayID)
	if i < 0 {
		e.gesture = nil
		return Overlay{}, false
	}
	e.overlays[i] = e.gesture.Apply(p)
	return e.overlays[i], true
}

// EndGesture commits the last value and ends the gesture.
func (e *Editor) EndGesture() (Overlay, bool) {
	if e.gesture == nil {
		return Overlay{}, false
	}
	id := e.gesture.OverlayID
	e.gesture = nil
	return e.Get(id)
}

// Active reports whether a gesture is in progress.
func (e *Editor) Active() bool { return e.gesture != nil }

func (e *Editor) update(id string, fn func(*Overlay)) error {
	i := e.index(id)
	if i < 0 {
		return ErrOverlayNotFound
	}
	fn(&e.overlays[i])
	e.overlays[i].Normalize()
	return nil
}

func (e *Editor) index(id string) int {
	return slices.IndexFunc(e.overlays, func(o Overlay) bool { return o.ID == id })
}
