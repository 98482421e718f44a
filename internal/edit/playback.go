package edit

// Player is the play-head model of the editor preview. Playback stays
// inside the trim window: reaching the end pauses and clamps, it never
// wraps.
type Player struct {
	Trim     Trim
	Position float64
	Playing  bool
	Muted    bool
}

// NewPlayer parks the play-head at the trim start.
func NewPlayer(trim Trim, muted bool) *Player {
	return &Player{Trim: trim, Position: trim.Start, Muted: muted}
}

// Play starts playback, rewinding to the trim start when the play-head is
// at or past the end.
func (p *Player) Play() {
	if p.Position >= p.Trim.End || p.Position < p.Trim.Start {
		p.Position = p.Trim.Start
	}
	p.Playing = true
}

// Pause stops playback where it is.
func (p *Player) Pause() {
	p.Playing = false
}

// Toggle switches between Play and Pause.
func (p *Player) Toggle() {
	if p.Playing {
		p.Pause()
	} else {
		p.Play()
	}
}

// TimeUpdate reports the media clock. At or past the trim end playback
// pauses and the play-head is clamped to the end. It returns the position
// the media element should be set to.
func (p *Player) TimeUpdate(t float64) float64 {
	if !finite(t) {
		return p.Position
	}
	p.Position = t
	if p.Trim.End > 0 && t >= p.Trim.End {
		p.Playing = false
		p.Position = p.Trim.End
	}
	return p.Position
}

// Seek moves the play-head, clamped into the trim window.
func (p *Player) Seek(t float64) float64 {
	if !finite(t) {
		return p.Position
	}
	switch {
	case t < p.Trim.Start:
		t = p.Trim.Start
	case t > p.Trim.End:
		t = p.Trim.End
	}
	p.Position = t
	return t
}

// SetTrim applies new bounds and keeps the play-head inside them.
func (p *Player) SetTrim(t Trim) {
	p.Trim = t
	p.Seek(p.Position)
}
