package compositor

import (
	"image"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Texture is an opaque GPU render target together with the metadata needed
// to read it back. hal textures do not report their own format or size.
type Texture struct {
	Raw    hal.Texture
	Format gputypes.TextureFormat
	Width  uint32
	Height uint32
}

// Frame is one rendered result for one output at one point in time.
//
// A frame carries either a tightly packed RGBA8 pixel buffer (Pixels) or a
// GPU texture (Texture). Frames are not mutated after creation; ownership
// transfers to the consumer on receipt.
type Frame struct {
	// Output is the output that produced the frame.
	Output OutputID

	// Seq increases by one for every frame produced on Output.
	Seq uint64

	// PTS is the presentation time relative to the output's registration.
	PTS time.Duration

	// Width and Height are the frame dimensions in pixels.
	Width, Height int

	// Pixels holds Width*Height*4 bytes of row-major RGBA8 when the frame
	// was produced on the CPU.
	Pixels []byte

	// Texture is set when the frame lives on the GPU.
	Texture *Texture
}

// IsZero reports whether f is the zero Frame.
func (f Frame) IsZero() bool {
	return f.Pixels == nil && f.Texture == nil && f.Seq == 0 && f.Output == ""
}

// OnGPU reports whether the frame must be read back before CPU access.
func (f Frame) OnGPU() bool {
	return f.Texture != nil && f.Pixels == nil
}

// Image wraps the frame's CPU pixels without copying. It returns false for
// GPU frames and for pixel buffers whose length does not match the size.
func (f Frame) Image() (*image.RGBA, bool) {
	if f.Pixels == nil || len(f.Pixels) != f.Width*f.Height*4 {
		return nil, false
	}
	return &image.RGBA{
		Pix:    f.Pixels,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}, true
}

// FrameEvent is delivered on an output's event stream: either a frame or
// the end of the stream.
type FrameEvent struct {
	Frame Frame
	EOS   bool
}

// Data returns a FrameEvent carrying f.
func Data(f Frame) FrameEvent {
	return FrameEvent{Frame: f}
}

// EndOfStream returns the event that terminates an output's stream.
func EndOfStream() FrameEvent {
	return FrameEvent{EOS: true}
}
