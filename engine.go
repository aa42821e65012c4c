package compositor

import (
	"fmt"

	"github.com/gogpu/compositor/scene"
)

// OutputID names an output registered with an Engine.
type OutputID string

// OutputKind selects where an output's frames go.
type OutputKind uint8

const (
	// OutputRaw delivers frames in memory on the output's event stream.
	OutputRaw OutputKind = iota

	// OutputFile encodes frames to a file. The file is finalized when the
	// output is unregistered.
	OutputFile
)

// String returns the string representation of OutputKind.
func (k OutputKind) String() string {
	switch k {
	case OutputRaw:
		return "raw"
	case OutputFile:
		return "file"
	default:
		return fmt.Sprintf("OutputKind(%d)", int(k))
	}
}

// Resolution is an output size in pixels.
type Resolution struct {
	Width, Height int
}

// Valid reports whether both dimensions are positive.
func (r Resolution) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// String returns the resolution as "WxH".
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// EndCondition decides when an output stops on its own.
type EndCondition uint8

const (
	// EndNever keeps the output alive until it is unregistered.
	EndNever EndCondition = iota
)

// OutputSpec describes an output to register.
type OutputSpec struct {
	Kind       OutputKind
	Resolution Resolution

	// Initial is the scene active from the first tick. Nil means the
	// placeholder scene.
	Initial *scene.Scene

	// Path is the destination file for OutputFile. An existing file is
	// replaced.
	Path string

	End EndCondition
}

// Events is the receive side of an output's frame stream: an unbounded FIFO
// of FrameEvents that a consumer empties in one step.
type Events interface {
	// TakeAll removes and returns every pending event in order without
	// blocking. open is false once the producer has closed the stream.
	TakeAll() (events []FrameEvent, open bool)

	// Ready receives a value after new events are pushed and is closed
	// when the stream is closed. Wake-ups may be spurious.
	Ready() <-chan struct{}
}

// Engine is the compositing engine driven by this module. Implementations
// evaluate scenes, decode sources and encode file outputs; the compositor
// packages only orchestrate them.
//
// Engine methods are called from a single goroutine (the output
// multiplexer's actor), while the engine's own render loop runs
// concurrently. UpdateScene must therefore be safe against concurrent reads
// by the render loop.
type Engine interface {
	// RegisterImage registers a still image source.
	RegisterImage(id scene.SourceID, path string) error

	// RegisterVideo registers a video source, optionally looping forever.
	RegisterVideo(id scene.SourceID, path string, loop bool) error

	// RegisterOutput starts producing frames for id on every subsequent
	// render tick. The returned stream is unbounded from the producer's
	// side and ends with EndOfStream when the output is unregistered. It
	// may be nil for outputs that do not expose frames.
	RegisterOutput(id OutputID, spec OutputSpec) (Events, error)

	// UpdateScene atomically replaces the active scene of id.
	UpdateScene(id OutputID, s *scene.Scene) error

	// UnregisterOutput stops production for id and releases its resources,
	// finalizing file outputs.
	UnregisterOutput(id OutputID) error

	// Close stops the render loop and releases every output.
	Close() error
}
