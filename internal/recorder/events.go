package recorder

import (
	"math"

	"screen-recorder/internal/capture"
)

// subscriberBuffer is how many snapshots a slow subscriber may lag behind.
const subscriberBuffer = 16

// Snapshot is the externally visible state of the current session.
type Snapshot struct {
	ID             string          `json:"id"`
	Phase          Phase           `json:"phase"`
	Countdown      int             `json:"countdown"`
	Duration       float64         `json:"duration"`
	Progress       float64         `json:"progress"`
	Title          string          `json:"title"`
	Error          string          `json:"error,omitempty"`
	ErrorClass     ErrorClass      `json:"errorClass,omitempty"`
	RemediationURL string          `json:"remediationUrl,omitempty"`
	Link           string          `json:"link,omitempty"`
	RemoteID       string          `json:"remoteId,omitempty"`
	RecordingID    string          `json:"recordingId,omitempty"`
	Options        capture.Options `json:"options"`
	Warnings       []string        `json:"warnings,omitempty"`
	Camera         bool            `json:"camera"`
	Audio          bool            `json:"audio"`
	Chunks         int             `json:"chunks"`
	Bytes          int64           `json:"bytes"`
	Acquiring      bool            `json:"acquiring"`
	Stopping       bool            `json:"stopping"`
	AwaitingAuth   bool            `json:"awaitingAuth"`
	Actions        []Action        `json:"actions"`
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	s := m.s
	chunks, size := s.chunkStats()
	snap := Snapshot{
		ID:             s.ID,
		Phase:          s.phase,
		Countdown:      s.countdown,
		Duration:       math.Round(s.elapsed(m.now()).Seconds()*10) / 10,
		Progress:       math.Round(s.progress*10) / 10,
		Title:          s.title,
		Error:          errorMessage(s.err),
		ErrorClass:     s.errClass,
		RemediationURL: s.remediation,
		RecordingID:    s.recordingID,
		Options:        s.options,
		Warnings:       append([]string(nil), s.warnings...),
		Camera:         s.sources != nil && s.sources.Camera != nil,
		Audio:          s.stream != nil && s.stream.HasAudio(),
		Chunks:         chunks,
		Bytes:          size,
		Acquiring:      m.acquiring,
		Stopping:       s.stopping,
		AwaitingAuth:   s.awaitingAuth,
		Actions:        actions(s.phase, s.errClass),
	}
	if s.result != nil {
		snap.Link = s.result.Link
		snap.RemoteID = s.result.RemoteID
	}
	if m.acquiring || s.stopping {
		snap.Actions = nil
	}
	return snap
}

// Subscribe returns a channel that receives the current snapshot and then
// one snapshot per change. Slow subscribers skip intermediate snapshots but
// always see the latest. Call the returned function to unsubscribe.
func (m *Machine) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Snapshot, subscriberBuffer)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.snapshotLocked()

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			close(c)
			delete(m.subs, id)
		}
	}
}

func (m *Machine) notifyLocked() {
	if len(m.subs) == 0 {
		return
	}
	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest so the latest always gets through.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
