package upload

import (
	"io"
	"math"
	"sync"
)

// Progress is one progress report for an upload.
type Progress struct {
	Loaded     int64   `json:"loaded"`
	Total      int64   `json:"total"`
	Percentage float64 `json:"percentage"`
}

// ProgressFunc receives progress reports. Reports never decrease.
type ProgressFunc func(Progress)

// progressReader counts bytes read from a seekable body. Re-reading after a
// seek, as request signing and retries do, never lowers the reported value.
type progressReader struct {
	r     io.ReadSeeker
	total int64
	fn    ProgressFunc

	mu       sync.Mutex
	pos      int64
	reported int64
	done     bool
}

func newProgressReader(r io.ReadSeeker, total int64, fn ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, fn: fn, reported: -1}
}

// Read implements io.Reader.
func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.mu.Lock()
	p.pos += int64(n)
	p.mu.Unlock()
	if n > 0 {
		p.report(p.position())
	}
	return n, err
}

// Seek implements io.Seeker.
func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.r.Seek(offset, whence)
	if err != nil {
		return pos, err
	}
	p.mu.Lock()
	p.pos = pos
	p.mu.Unlock()
	return pos, nil
}

func (p *progressReader) position() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// report emits loaded bytes if it advances the high-water mark. The final
// 100 is held back for complete so it is sent only once the store accepted
// the object.
func (p *progressReader) report(loaded int64) {
	if p.fn == nil {
		return
	}
	if loaded >= p.total {
		loaded = p.total - 1
	}
	p.mu.Lock()
	if loaded <= p.reported || p.done {
		p.mu.Unlock()
		return
	}
	p.reported = loaded
	p.mu.Unlock()

	p.fn(Progress{Loaded: loaded, Total: p.total, Percentage: percentage(loaded, p.total)})
}

// complete emits the terminal 100% report exactly once.
func (p *progressReader) complete() {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.done = true
	p.mu.Unlock()

	p.fn(Progress{Loaded: p.total, Total: p.total, Percentage: 100})
}

func percentage(loaded, total int64) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(loaded) / float64(total) * 100
	return math.Min(100, math.Round(pct*10)/10)
}
