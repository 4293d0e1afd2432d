package timecode

import "sync"

// Playhead tracks the current timeline position in ticks so repeated seeks
// never accumulate floating error. Safe for concurrent use; the zero value
// is a playhead at zero.
type Playhead struct {
	mu    sync.Mutex
	ticks int64
}

// Seek moves the playhead to the given position, clamped to >= 0.
func (p *Playhead) Seek(seconds float64) {
	t := ToTicks(seconds)
	if t < 0 {
		t = 0
	}
	p.mu.Lock()
	p.ticks = t
	p.mu.Unlock()
}

// Ticks returns the current position in ticks.
func (p *Playhead) Ticks() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticks
}

// Seconds returns the current position as derived seconds.
func (p *Playhead) Seconds() float64 {
	return ToSeconds(p.Ticks())
}
