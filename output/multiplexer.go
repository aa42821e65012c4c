// Package output serializes access to a compositing engine.
//
// A Multiplexer owns its engine. Every registration, scene swap and
// unregistration is a request handled in order by one actor goroutine, so
// callers on any goroutine can drive outputs without sharing a lock with the
// engine's render loop. Requests never wait on a render tick; the engine
// reads the active scene through its own atomic state.
package output

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/drain"
	"github.com/gogpu/compositor/scene"
)

type request struct {
	op   func() error
	resp chan error
}

// Multiplexer owns an Engine and the outputs registered on it.
type Multiplexer struct {
	engine compositor.Engine
	reqs   chan request
	quit   chan struct{}
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error

	// handles is written only by the actor; readers take the read lock.
	mu      sync.RWMutex
	handles map[compositor.OutputID]*Handle
}

// New starts a Multiplexer that owns engine.
func New(engine compositor.Engine, opts ...Option) *Multiplexer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	m := &Multiplexer{
		engine:  engine,
		reqs:    make(chan request, o.requestBuffer),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		handles: make(map[compositor.OutputID]*Handle),
	}
	go m.loop()
	return m
}

func (m *Multiplexer) loop() {
	defer close(m.done)
	for {
		select {
		case r := <-m.reqs:
			r.resp <- r.op()
		case <-m.quit:
			m.shutdown()
			return
		}
	}
}

// shutdown runs on the actor after quit. Requests already queued are
// answered with ErrClosed.
func (m *Multiplexer) shutdown() {
drained:
	for {
		select {
		case r := <-m.reqs:
			r.resp <- compositor.ErrClosed
		default:
			break drained
		}
	}

	m.mu.RLock()
	ids := make([]compositor.OutputID, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var firstErr error
	for _, id := range ids {
		if err := m.unregister(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.engine.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	m.closeErr = firstErr
}

// do submits op to the actor and waits for its result. If ctx ends after
// op was accepted, op still runs but its result is discarded.
func (m *Multiplexer) do(ctx context.Context, op func() error) error {
	return m.submit(ctx, op, false)
}

// commit is do for requests that change which outputs exist. Once op was
// accepted it waits for the result even if ctx ends, so a registration is
// never left in place without the caller learning of it.
func (m *Multiplexer) commit(ctx context.Context, op func() error) error {
	return m.submit(ctx, op, true)
}

func (m *Multiplexer) submit(ctx context.Context, op func() error, wait bool) error {
	r := request{op: op, resp: make(chan error, 1)}
	select {
	case <-m.quit:
		return compositor.ErrClosed
	default:
	}
	select {
	case m.reqs <- r:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.quit:
		return compositor.ErrClosed
	}
	cancelled := ctx.Done()
	if wait {
		cancelled = nil
	}
	select {
	case err := <-r.resp:
		return err
	case <-cancelled:
		return ctx.Err()
	case <-m.done:
		select {
		case err := <-r.resp:
			return err
		default:
			return compositor.ErrClosed
		}
	}
}

// RegisterOutput registers an output and returns its handle. The engine
// renders initial (or the placeholder scene when nil) on every subsequent
// tick until UpdateScene replaces it.
//
// It fails with compositor.ErrRegistration when id is already registered,
// a dimension is zero, or a file output has no path.
func (m *Multiplexer) RegisterOutput(ctx context.Context, id compositor.OutputID, kind compositor.OutputKind,
	res compositor.Resolution, initial *scene.Scene, opts ...RegisterOption) (*Handle, error) {
	if initial == nil {
		initial = scene.Empty()
	}
	spec := compositor.OutputSpec{
		Kind:       kind,
		Resolution: res,
		Initial:    initial,
		End:        compositor.EndNever,
	}
	for _, opt := range opts {
		opt(&spec)
	}

	var h *Handle
	err := m.commit(ctx, func() error {
		var err error
		h, err = m.register(id, spec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (m *Multiplexer) register(id compositor.OutputID, spec compositor.OutputSpec) (*Handle, error) {
	if id == "" {
		return nil, fmt.Errorf("register output: empty id: %w", compositor.ErrRegistration)
	}
	if !spec.Resolution.Valid() {
		return nil, fmt.Errorf("register output %q: resolution %s: %w", id, spec.Resolution, compositor.ErrRegistration)
	}
	if spec.Kind == compositor.OutputFile && spec.Path == "" {
		return nil, fmt.Errorf("register output %q: file output without path: %w", id, compositor.ErrRegistration)
	}
	if err := spec.Initial.Validate(); err != nil {
		return nil, fmt.Errorf("register output %q: initial scene: %w: %w", id, compositor.ErrRegistration, err)
	}

	m.mu.RLock()
	_, exists := m.handles[id]
	m.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("register output %q: already registered: %w", id, compositor.ErrRegistration)
	}

	events, err := m.engine.RegisterOutput(id, spec)
	if err != nil {
		return nil, fmt.Errorf("register output %q: %w", id, err)
	}

	h := newHandle(id, spec, events)
	m.mu.Lock()
	m.handles[id] = h
	m.mu.Unlock()

	compositor.Logger().Info("output registered",
		"output", id, "kind", spec.Kind, "resolution", spec.Resolution, "scene", spec.Initial)
	return h, nil
}

// UpdateScene replaces the active scene of id. Swaps on one output take
// effect in the order they were issued. A nil scene selects the placeholder.
//
// It fails with compositor.ErrUnknownOutput for ids that were never
// registered or were already unregistered.
func (m *Multiplexer) UpdateScene(ctx context.Context, id compositor.OutputID, s *scene.Scene) error {
	if s == nil {
		s = scene.Empty()
	}
	return m.do(ctx, func() error {
		h, ok := m.lookup(id)
		if !ok {
			return fmt.Errorf("update scene of %q: %w", id, compositor.ErrUnknownOutput)
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("update scene of %q: %w", id, err)
		}
		if err := m.engine.UpdateScene(id, s); err != nil {
			return fmt.Errorf("update scene of %q: %w", id, err)
		}
		h.setScene(s)
		compositor.Logger().Debug("scene swapped", "output", id, "scene", s)
		return nil
	})
}

// UnregisterOutput stops frame production for id, finalizes file outputs
// and closes the handle's Done channel.
//
// It fails with compositor.ErrUnknownOutput when id is not registered.
func (m *Multiplexer) UnregisterOutput(ctx context.Context, id compositor.OutputID) error {
	return m.commit(ctx, func() error {
		return m.unregister(id)
	})
}

func (m *Multiplexer) unregister(id compositor.OutputID) error {
	m.mu.Lock()
	h, ok := m.handles[id]
	delete(m.handles, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unregister output %q: %w", id, compositor.ErrUnknownOutput)
	}
	defer h.finish()

	if err := m.engine.UnregisterOutput(id); err != nil {
		compositor.Logger().Warn("output unregister failed", "output", id, "error", err)
		return fmt.Errorf("unregister output %q: %w", id, err)
	}
	compositor.Logger().Info("output unregistered", "output", id, "swaps", h.Swaps())
	return nil
}

func (m *Multiplexer) lookup(id compositor.OutputID) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[id]
	return h, ok
}

// Handle returns the handle of a registered output.
func (m *Multiplexer) Handle(id compositor.OutputID) (*Handle, bool) {
	return m.lookup(id)
}

// Outputs returns the registered output ids in sorted order.
func (m *Multiplexer) Outputs() []compositor.OutputID {
	m.mu.RLock()
	ids := make([]compositor.OutputID, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TryLatest returns the newest pending frame of id without blocking.
func (m *Multiplexer) TryLatest(id compositor.OutputID) (compositor.Frame, bool) {
	h, ok := m.lookup(id)
	if !ok {
		return compositor.Frame{}, false
	}
	return h.Drainer().TryLatest()
}

// AwaitLatest waits for the next frame of id and returns the newest one
// pending at that point.
func (m *Multiplexer) AwaitLatest(ctx context.Context, id compositor.OutputID) (compositor.Frame, error) {
	h, ok := m.lookup(id)
	if !ok {
		return compositor.Frame{}, fmt.Errorf("await latest of %q: %w", id, compositor.ErrUnknownOutput)
	}
	return h.Drainer().AwaitLatest(ctx)
}

// Stats returns the drain statistics of id.
func (m *Multiplexer) Stats(id compositor.OutputID) (drain.Stats, bool) {
	h, ok := m.lookup(id)
	if !ok {
		return drain.Stats{}, false
	}
	return h.Drainer().Stats(), true
}

// Done is closed once the multiplexer has shut down.
func (m *Multiplexer) Done() <-chan struct{} {
	return m.done
}

// Close unregisters every remaining output, closes the engine and stops the
// actor. Subsequent requests fail with compositor.ErrClosed. Close is
// idempotent and returns the first error met during shutdown.
func (m *Multiplexer) Close() error {
	m.closeOnce.Do(func() {
		close(m.quit)
		<-m.done
	})
	return m.closeErr
}
