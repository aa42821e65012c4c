// Package enginetest provides an in-memory compositor.Engine for tests.
package enginetest

import (
	"fmt"
	"sync"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/internal/queue"
	"github.com/gogpu/compositor/scene"
)

// Call records one engine method invocation.
type Call struct {
	Method string
	Output compositor.OutputID
	Scene  *scene.Scene
}

type output struct {
	spec  compositor.OutputSpec
	scene *scene.Scene
	q     *queue.Unbounded[compositor.FrameEvent]
	seq   uint64
}

// Engine is a fake engine. It produces frames only when Emit is called.
type Engine struct {
	mu         sync.Mutex
	outputs    map[compositor.OutputID]*output
	sources    map[scene.SourceID]string
	calls      []Call
	updateErrs []error
	closed     bool

	// NoEvents makes RegisterOutput return a nil stream.
	NoEvents bool
}

// New returns an empty fake engine.
func New() *Engine {
	return &Engine{
		outputs: make(map[compositor.OutputID]*output),
		sources: make(map[scene.SourceID]string),
	}
}

// RegisterImage implements compositor.Engine.
func (e *Engine) RegisterImage(id scene.SourceID, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sources[id] = path
	return nil
}

// RegisterVideo implements compositor.Engine.
func (e *Engine) RegisterVideo(id scene.SourceID, path string, _ bool) error {
	return e.RegisterImage(id, path)
}

// RegisterOutput implements compositor.Engine.
func (e *Engine) RegisterOutput(id compositor.OutputID, spec compositor.OutputSpec) (compositor.Events, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, compositor.ErrClosed
	}
	if _, ok := e.outputs[id]; ok {
		return nil, fmt.Errorf("fake: %q: %w", id, compositor.ErrRegistration)
	}
	o := &output{spec: spec, scene: spec.Initial}
	e.calls = append(e.calls, Call{Method: "RegisterOutput", Output: id, Scene: spec.Initial})
	e.outputs[id] = o
	if e.NoEvents {
		return nil, nil
	}
	o.q = queue.New[compositor.FrameEvent]()
	return o.q, nil
}

// UpdateScene implements compositor.Engine. Errors queued with FailUpdates
// are returned first, one per call.
func (e *Engine) UpdateScene(id compositor.OutputID, s *scene.Scene) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.outputs[id]
	if !ok {
		return fmt.Errorf("fake: %q: %w", id, compositor.ErrUnknownOutput)
	}
	if len(e.updateErrs) > 0 {
		err := e.updateErrs[0]
		e.updateErrs = e.updateErrs[1:]
		return err
	}
	o.scene = s
	e.calls = append(e.calls, Call{Method: "UpdateScene", Output: id, Scene: s})
	return nil
}

// UnregisterOutput implements compositor.Engine.
func (e *Engine) UnregisterOutput(id compositor.OutputID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.outputs[id]
	if !ok {
		return fmt.Errorf("fake: %q: %w", id, compositor.ErrUnknownOutput)
	}
	delete(e.outputs, id)
	e.calls = append(e.calls, Call{Method: "UnregisterOutput", Output: id})
	if o.q != nil {
		o.q.Push(compositor.EndOfStream())
		o.q.Close()
	}
	return nil
}

// Close implements compositor.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Emit produces one frame on id. It returns false if id is not registered
// or has no event stream.
func (e *Engine) Emit(id compositor.OutputID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.outputs[id]
	if !ok || o.q == nil {
		return false
	}
	o.seq++
	res := o.spec.Resolution
	o.q.Push(compositor.Data(compositor.Frame{
		Output: id,
		Seq:    o.seq,
		Width:  res.Width,
		Height: res.Height,
		Pixels: make([]byte, res.Width*res.Height*4),
	}))
	return true
}

// FailUpdates queues errors returned by the next UpdateScene calls.
func (e *Engine) FailUpdates(errs ...error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateErrs = append(e.updateErrs, errs...)
}

// Scene returns the active scene of id.
func (e *Engine) Scene(id compositor.OutputID) (*scene.Scene, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.outputs[id]
	if !ok {
		return nil, false
	}
	return o.scene, true
}

// Calls returns the recorded calls in order.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Updates returns the scenes applied to id in order.
func (e *Engine) Updates(id compositor.OutputID) []*scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*scene.Scene
	for _, c := range e.calls {
		if c.Method == "UpdateScene" && c.Output == id {
			out = append(out, c.Scene)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Sources returns the registered source paths.
func (e *Engine) Sources() map[scene.SourceID]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[scene.SourceID]string, len(e.sources))
	for k, v := range e.sources {
		out[k] = v
	}
	return out
}
