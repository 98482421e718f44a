package edit

import "math"

// MinTrimGap is the smallest allowed distance between the trim bounds.
const MinTrimGap = 0.1

// Trim is the kept window [Start, End] of a recording of length Duration,
// all in seconds.
type Trim struct {
	Start    float64 `json:"startTime"`
	End      float64 `json:"endTime"`
	Duration float64 `json:"duration"`
}

// NewTrim keeps the whole recording.
func NewTrim(duration float64) Trim {
	if !finite(duration) || duration < 0 {
		duration = 0
	}
	return Trim{Start: 0, End: duration, Duration: duration}
}

// RestoreTrim rebuilds a trim from persisted bounds. An end of zero means
// the recording was never trimmed.
func RestoreTrim(start, end, duration float64) Trim {
	t := NewTrim(duration)
	if end > 0 {
		t.SetEnd(end)
	}
	t.SetStart(start)
	return t
}

// SetStart moves the start bound, keeping it at least MinTrimGap before
// End. Non-finite values are ignored.
func (t *Trim) SetStart(v float64) {
	if !finite(v) {
		return
	}
	t.Start = math.Max(0, math.Min(v, t.End-MinTrimGap))
}

// SetEnd moves the end bound, keeping it at least MinTrimGap after Start
// and no later than Duration. Non-finite values are ignored.
func (t *Trim) SetEnd(v float64) {
	if !finite(v) {
		return
	}
	t.End = math.Min(t.Duration, math.Max(v, t.Start+MinTrimGap))
}

// Length is the kept duration.
func (t Trim) Length() float64 {
	return t.End - t.Start
}

// Valid reports whether the bounds satisfy
// 0 <= Start <= End-MinTrimGap <= Duration.
func (t Trim) Valid() bool {
	const eps = 1e-9
	return t.Start >= 0 &&
		t.Start <= t.End-MinTrimGap+eps &&
		t.End <= t.Duration+eps
}
