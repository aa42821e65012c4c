// Package drain extracts the most recent frame from an output's event
// stream.
//
// Engines may produce frames faster or slower than a consumer renders them.
// A Drainer favors freshness over completeness: every call consumes all
// pending events and returns only the newest frame. Older pending frames are
// dropped, never queued for later retrieval.
package drain

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/compositor"
)

// Stats reports what a Drainer has consumed so far.
type Stats struct {
	// Delivered counts frames returned to callers.
	Delivered uint64

	// Dropped counts frames superseded by a newer frame before delivery.
	Dropped uint64

	// LastSeq is the sequence number of the last delivered frame.
	LastSeq uint64

	// Closed reports whether the stream has ended.
	Closed bool
}

// Drainer reads one output's event stream.
//
// TryLatest and AwaitLatest may be called from different goroutines (for
// example a display loop and a snapshot request). Frames returned by a
// Drainer are monotonically fresh: a frame is never older than one the
// Drainer returned before.
type Drainer struct {
	events compositor.Events

	mu      sync.Mutex
	last    compositor.Frame
	hasLast bool
	closed  bool
	stats   Stats
}

// New creates a Drainer for events. A nil stream is treated as an already
// ended stream.
func New(events compositor.Events) *Drainer {
	return &Drainer{
		events: events,
		closed: events == nil,
	}
}

// TryLatest consumes every pending event without blocking and returns the
// newest frame among them. It returns false when no new frame was pending.
func (d *Drainer) TryLatest() (compositor.Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	candidate, found := d.takeLocked()
	if !found {
		return compositor.Frame{}, false
	}
	return d.deliverLocked(candidate), true
}

// AwaitLatest blocks until at least one frame arrives, then returns the
// newest of every pending frame. It fails with compositor.ErrChannelClosed
// if the stream ends first, or with the context's error if ctx is done.
func (d *Drainer) AwaitLatest(ctx context.Context) (compositor.Frame, error) {
	for {
		d.mu.Lock()
		candidate, found := d.takeLocked()
		if found {
			f := d.deliverLocked(candidate)
			d.mu.Unlock()
			return f, nil
		}
		closed := d.closed
		d.mu.Unlock()
		if closed {
			return compositor.Frame{}, fmt.Errorf("await latest frame: %w", compositor.ErrChannelClosed)
		}

		// Wait without the lock so TryLatest callers are not stalled
		// behind a waiting snapshot.
		select {
		case <-ctx.Done():
			return compositor.Frame{}, ctx.Err()
		case <-d.events.Ready():
		}
	}
}

// Stats returns a snapshot of the drainer's counters.
func (d *Drainer) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Closed reports whether the stream has ended.
func (d *Drainer) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// takeLocked empties the stream and returns the newest frame in it. Frames
// after an EndOfStream are ignored. The caller must hold d.mu.
func (d *Drainer) takeLocked() (candidate compositor.Frame, found bool) {
	if d.closed {
		return candidate, false
	}
	events, open := d.events.TakeAll()
	for _, ev := range events {
		if ev.EOS {
			d.markClosedLocked()
			break
		}
		if found {
			d.stats.Dropped++
		}
		candidate, found = ev.Frame, true
	}
	if !open {
		d.markClosedLocked()
	}
	return candidate, found
}

func (d *Drainer) markClosedLocked() {
	d.closed = true
	d.stats.Closed = true
}

// deliverLocked records f as delivered and returns it, unless a concurrent
// caller already delivered a newer frame, in which case that one is
// returned again. The caller must hold d.mu.
func (d *Drainer) deliverLocked(f compositor.Frame) compositor.Frame {
	if d.hasLast && f.Seq <= d.last.Seq {
		d.stats.Dropped++
		return d.last
	}
	if d.stats.Dropped > 0 && d.stats.Delivered > 0 {
		compositor.Logger().Debug("drain: delivering latest frame",
			"output", f.Output, "seq", f.Seq, "dropped_total", d.stats.Dropped)
	}
	d.last, d.hasLast = f, true
	d.stats.Delivered++
	d.stats.LastSeq = f.Seq
	return f
}
