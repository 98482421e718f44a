package edit

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MaxOverlays bounds how many annotations one recording may carry.
const MaxOverlays = 100

// Document is the editable state of a recording as saved by the editor.
type Document struct {
	Title     string    `json:"title" validate:"required,max=200"`
	StartTime float64   `json:"startTime" validate:"gte=0"`
	EndTime   float64   `json:"endTime" validate:"gte=0"`
	IsMuted   bool      `json:"isMuted"`
	Overlays  []Overlay `json:"overlays" validate:"max=100,dive"`
}

// Normalize clamps the trim window to a recording of the given duration
// and normalises every overlay. The result renders identically wherever it
// is read back.
func (d *Document) Normalize(duration float64) {
	d.Title = strings.TrimSpace(d.Title)
	t := RestoreTrim(d.StartTime, d.EndTime, duration)
	d.StartTime, d.EndTime = t.Start, t.End
	if d.Overlays == nil {
		d.Overlays = []Overlay{}
	}
	for i := range d.Overlays {
		d.Overlays[i].Normalize()
	}
}

// Trim returns the document's trim window for a recording of duration.
func (d Document) Trim(duration float64) Trim {
	return RestoreTrim(d.StartTime, d.EndTime, duration)
}

// MarshalOverlays encodes overlays for storage. A nil slice encodes as an
// empty list.
func MarshalOverlays(overlays []Overlay) (string, error) {
	if overlays == nil {
		overlays = []Overlay{}
	}
	b, err := json.Marshal(overlays)
	if err != nil {
		return "", fmt.Errorf("encode overlays: %w", err)
	}
	return string(b), nil
}

// UnmarshalOverlays decodes stored overlays and normalises them. An empty
// string is an empty list.
func UnmarshalOverlays(s string) ([]Overlay, error) {
	overlays := []Overlay{}
	if strings.TrimSpace(s) == "" {
		return overlays, nil
	}
	if err := json.Unmarshal([]byte(s), &overlays); err != nil {
		return nil, fmt.Errorf("decode overlays: %w", err)
	}
	for i := range overlays {
		overlays[i].Normalize()
	}
	return overlays, nil
}
