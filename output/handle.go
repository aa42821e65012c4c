package output

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/drain"
	"github.com/gogpu/compositor/scene"
)

// Handle is the caller's view of a registered output.
//
// A Handle stays valid after its output is unregistered: Done is closed,
// Scene reports the last active scene, and the Drainer still returns frames
// that were produced before the end of the stream.
type Handle struct {
	id   compositor.OutputID
	spec compositor.OutputSpec

	drainer *drain.Drainer
	current atomic.Pointer[scene.Scene]
	swaps   atomic.Uint64

	done     chan struct{}
	doneOnce sync.Once
}

func newHandle(id compositor.OutputID, spec compositor.OutputSpec, events compositor.Events) *Handle {
	h := &Handle{
		id:      id,
		spec:    spec,
		drainer: drain.New(events),
		done:    make(chan struct{}),
	}
	h.current.Store(spec.Initial)
	return h
}

// ID returns the output identifier.
func (h *Handle) ID() compositor.OutputID { return h.id }

// Kind returns the output kind.
func (h *Handle) Kind() compositor.OutputKind { return h.spec.Kind }

// Resolution returns the output size.
func (h *Handle) Resolution() compositor.Resolution { return h.spec.Resolution }

// Path returns the destination file of a file output.
func (h *Handle) Path() string { return h.spec.Path }

// Scene returns the scene most recently applied to the output.
func (h *Handle) Scene() *scene.Scene { return h.current.Load() }

// Swaps returns how many scene updates have been applied.
func (h *Handle) Swaps() uint64 { return h.swaps.Load() }

// Drainer returns the frame drainer for the output's event stream.
func (h *Handle) Drainer() *drain.Drainer { return h.drainer }

// Done is closed when the output is unregistered.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) setScene(s *scene.Scene) {
	h.current.Store(s)
	h.swaps.Add(1)
}

func (h *Handle) finish() {
	h.doneOnce.Do(func() { close(h.done) })
}
