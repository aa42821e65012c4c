package readback

import (
	"time"

	"github.com/gogpu/gputypes"
)

// Option configures a Converter.
type Option func(*options)

type options struct {
	target  gputypes.TextureFormat
	timeout time.Duration
	spirv   bool
}

func defaultOptions() options {
	return options{
		target:  gputypes.TextureFormatRGBA8UnormSrgb,
		timeout: 5 * time.Second,
	}
}

// WithTargetFormat sets the format non-copyable textures are converted to.
// Formats that are not copyable are ignored. Default: RGBA8UnormSrgb.
func WithTargetFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		if IsCopyable(f) {
			o.target = f
		}
	}
}

// WithFenceTimeout bounds how long a submission may take. Default: 5s.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithSPIRV compiles the conversion shader to SPIR-V with naga instead of
// handing WGSL to the backend.
func WithSPIRV(enabled bool) Option {
	return func(o *options) {
		o.spirv = enabled
	}
}
