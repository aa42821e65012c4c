// Package schedule alternates the active scene of an output on a timer.
//
// A Scheduler holds an ordered list of candidate scenes. Every tick it
// advances to the next candidate (wrapping around), applies it through the
// output multiplexer, and waits one interval. Scenes are whole candidates;
// nothing is blended between them.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/output"
	"github.com/gogpu/compositor/scene"
)

var (
	// ErrTooManyFailures is returned when swaps fail more often in a row
	// than WithMaxFailures allows.
	ErrTooManyFailures = errors.New("schedule: too many consecutive swap failures")

	// ErrNoScenes is returned by Run when the scene list is empty.
	ErrNoScenes = errors.New("schedule: no scenes")
)

// Target applies scenes to outputs. *output.Multiplexer implements it.
type Target interface {
	UpdateScene(ctx context.Context, id compositor.OutputID, s *scene.Scene) error
}

type handleLookup interface {
	Handle(id compositor.OutputID) (*output.Handle, bool)
}

// Scheduler alternates the scenes of one output.
type Scheduler struct {
	target Target
	id     compositor.OutputID
	scenes []*scene.Scene
	opts   options

	index atomic.Int64
	swaps atomic.Int64
}

// New creates a scheduler for output id. If target can look up output
// handles (as *output.Multiplexer can), the loop also stops when the
// output is unregistered.
func New(target Target, id compositor.OutputID, scenes []*scene.Scene, opts ...Option) *Scheduler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Scheduler{
		target: target,
		id:     id,
		scenes: append([]*scene.Scene(nil), scenes...),
		opts:   o,
	}
	if n := len(s.scenes); n > 0 {
		s.index.Store(int64(((o.index % n) + n) % n))
	}
	return s
}

// Index returns the index of the scene applied last.
func (s *Scheduler) Index() int { return int(s.index.Load()) }

// Swaps returns how many swaps succeeded.
func (s *Scheduler) Swaps() int { return int(s.swaps.Load()) }

// Next returns the index after i, wrapping around n scenes.
func Next(i, n int) int {
	return (i + 1) % n
}

// Run swaps scenes until ctx is cancelled, the bound output is
// unregistered, or the configured duration has elapsed.
//
// Failed swaps are logged and retried on the next tick. Run returns
// compositor.ErrUnknownOutput at once if the output no longer exists and
// ErrTooManyFailures after the configured number of consecutive failures.
// It returns ctx.Err() on cancellation and nil otherwise.
func (s *Scheduler) Run(ctx context.Context) error {
	n := len(s.scenes)
	if n == 0 {
		return ErrNoScenes
	}

	done := s.opts.done
	if done == nil {
		if hl, ok := s.target.(handleLookup); ok {
			if h, ok := hl.Handle(s.id); ok {
				done = h.Done()
			}
		}
	}

	log := compositor.Logger()
	clock := s.opts.clock
	start := clock.Now()
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		default:
		}

		next := Next(s.Index(), n)
		if err := s.target.UpdateScene(ctx, s.id, s.scenes[next]); err != nil {
			if errors.Is(err, compositor.ErrUnknownOutput) {
				log.Warn("schedule: output gone", "output", s.id)
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			log.Warn("schedule: swap failed", "output", s.id, "index", next, "failures", failures, "error", err)
			if failures >= s.opts.maxFailures {
				return fmt.Errorf("%w: %d swaps on %q: %w", ErrTooManyFailures, failures, s.id, err)
			}
		} else {
			failures = 0
			s.index.Store(int64(next))
			s.swaps.Add(1)
			log.Debug("schedule: swapped", "output", s.id, "index", next)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case <-clock.After(s.opts.interval):
		}

		if s.opts.duration > 0 && clock.Now().Sub(start) >= s.opts.duration {
			return nil
		}
	}
}

// Run is a scheduler loop running in its own goroutine.
type Run struct {
	sched   *Scheduler
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	stopped atomic.Bool
	once    sync.Once
}

// Start runs the loop in a new goroutine.
func (s *Scheduler) Start(ctx context.Context) *Run {
	ctx, cancel := context.WithCancel(ctx)
	r := &Run{
		sched:  s,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		defer cancel()
		r.err = s.Run(ctx)
	}()
	return r
}

// Stop cancels the loop and waits for it to return.
func (r *Run) Stop() {
	r.once.Do(func() {
		r.stopped.Store(true)
		r.cancel()
	})
	<-r.done
}

// Wait blocks until the loop returns and reports its error. A loop ended
// by Stop reports nil.
func (r *Run) Wait() error {
	<-r.done
	if r.stopped.Load() && errors.Is(r.err, context.Canceled) {
		return nil
	}
	return r.err
}

// Done is closed when the loop has returned.
func (r *Run) Done() <-chan struct{} { return r.done }

// Swaps returns how many swaps succeeded so far.
func (r *Run) Swaps() int { return r.sched.Swaps() }
