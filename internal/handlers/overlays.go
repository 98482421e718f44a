package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"screen-recorder/internal/database"
	"screen-recorder/internal/edit"
	"screen-recorder/internal/logging"
)

var (
	errTooManyOverlays = errors.New("too many overlays")
	errNoChange        = errors.New("nothing to change")
)

type addOverlayRequest struct {
	Kind  string `json:"kind" validate:"required,oneof=arrow pencil text marker"`
	Glyph string `json:"glyph" validate:"required_if=Kind marker,max=16"`
}

type gestureRequest struct {
	Kind edit.GestureKind `json:"kind" validate:"required,oneof=move resize rotate stretch"`
	From edit.Point       `json:"from"`
	To   edit.Point       `json:"to"`
	Box  edit.Box         `json:"box"`
}

// overlayChange edits one overlay. Fields are applied in order: color,
// text, scale step, gesture.
type overlayChange struct {
	Color   *string         `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Text    *string         `json:"text,omitempty" validate:"omitempty,max=500"`
	Step    *float64        `json:"step,omitempty" validate:"omitempty,gte=-5,lte=5"`
	Gesture *gestureRequest `json:"gesture,omitempty"`
}

type playbackRequest struct {
	Action   string  `json:"action" validate:"required,oneof=play pause toggle timeupdate seek"`
	Position float64 `json:"position"`
	Playing  bool    `json:"playing"`
	Time     float64 `json:"time"`
}

type playbackState struct {
	Position  float64 `json:"position"`
	Playing   bool    `json:"playing"`
	Muted     bool    `json:"muted"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// AddOverlay places a new annotation with its kind's defaults.
func (h *Handlers) AddOverlay(w http.ResponseWriter, r *http.Request) {
	var req addOverlayRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeDecodeError(w, err)
		return
	}

	var added edit.Overlay
	rec, ok := h.changeOverlays(w, r, func(e *edit.Editor) error {
		if len(e.Overlays()) >= edit.MaxOverlays {
			return errTooManyOverlays
		}
		added = e.Add(newOverlayOf(req))
		return nil
	})
	if !ok {
		return
	}
	logging.Debug("Overlay %s (%s) added to %s", added.ID, req.Kind, rec.ID)
	h.writeOverlay(w, rec, added.ID)
}

func newOverlayOf(req addOverlayRequest) edit.Overlay {
	switch req.Kind {
	case "arrow":
		return edit.NewArrow()
	case "pencil":
		return edit.NewPencil()
	case "text":
		return edit.NewText()
	default:
		return edit.NewMarker(req.Glyph)
	}
}

// ChangeOverlay recolors, retexts, steps the scale of or applies a pointer
// gesture to one overlay and persists the result.
func (h *Handlers) ChangeOverlay(w http.ResponseWriter, r *http.Request) {
	var req overlayChange
	if err := decodeJSON(r, &req, false); err != nil {
		writeDecodeError(w, err)
		return
	}
	id := mux.Vars(r)["overlayId"]

	rec, ok := h.changeOverlays(w, r, func(e *edit.Editor) error {
		if req.Color == nil && req.Text == nil && req.Step == nil && req.Gesture == nil {
			return errNoChange
		}
		if req.Color != nil {
			if err := e.SetColor(id, *req.Color); err != nil {
				return err
			}
		}
		if req.Text != nil {
			if err := e.SetText(id, *req.Text); err != nil {
				return err
			}
		}
		if req.Step != nil {
			if err := e.StepScale(id, *req.Step); err != nil {
				return err
			}
		}
		if g := req.Gesture; g != nil {
			if err := e.BeginGesture(g.Kind, id, g.From, g.Box); err != nil {
				return err
			}
			e.MoveGesture(g.To)
			e.EndGesture()
		}
		return nil
	})
	if !ok {
		return
	}
	h.writeOverlay(w, rec, id)
}

// DeleteOverlay removes one overlay.
func (h *Handlers) DeleteOverlay(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["overlayId"]
	if _, ok := h.changeOverlays(w, r, func(e *edit.Editor) error {
		return e.Remove(id)
	}); !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Playback applies a player action inside the recording's trim window and
// returns the resulting play-head. Nothing is persisted.
func (h *Handlers) Playback(w http.ResponseWriter, r *http.Request) {
	var req playbackRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeDecodeError(w, err)
		return
	}
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}

	p := edit.NewPlayer(rec.Document().Trim(rec.Duration), rec.IsMuted)
	p.Position = req.Position
	p.Playing = req.Playing
	switch req.Action {
	case "play":
		p.Play()
	case "pause":
		p.Pause()
	case "toggle":
		p.Toggle()
	case "timeupdate":
		p.TimeUpdate(req.Time)
	case "seek":
		p.Seek(req.Time)
	}

	writeJSONValue(w, playbackState{
		Position:  p.Position,
		Playing:   p.Playing,
		Muted:     p.Muted,
		StartTime: p.Trim.Start,
		EndTime:   p.Trim.End,
	})
}

// changeOverlays runs fn on an editor over the recording's overlays and
// saves the outcome. Overlay edits are serialised.
func (h *Handlers) changeOverlays(w http.ResponseWriter, r *http.Request, fn func(*edit.Editor) error) (*database.Recording, bool) {
	h.editMu.Lock()
	defer h.editMu.Unlock()

	rec, ok := h.lookup(w, r)
	if !ok {
		return nil, false
	}
	editor := edit.NewEditor(rec.Overlays)
	if err := fn(editor); err != nil {
		writeOverlayError(w, err)
		return nil, false
	}

	doc := rec.Document()
	doc.Overlays = editor.Overlays()
	saved, err := h.db.SaveEdit(r.Context(), rec.ID, doc)
	if err != nil {
		h.writeRecordingError(w, "edit", err)
		return nil, false
	}
	return saved, true
}

func (h *Handlers) writeOverlay(w http.ResponseWriter, rec *database.Recording, id string) {
	for _, o := range rec.Overlays {
		if o.ID == id {
			writeJSONValue(w, o)
			return
		}
	}
	writeJSONError(w, "Overlay not found", http.StatusNotFound)
}

func writeOverlayError(w http.ResponseWriter, err error) {
	if errors.Is(err, edit.ErrOverlayNotFound) {
		writeJSONError(w, "Overlay not found", http.StatusNotFound)
		return
	}
	writeJSONError(w, err.Error(), http.StatusBadRequest)
}
