package display

import "github.com/gogpu/gpucontext"

// DeviceHook receives the window's GPU device provider once it exists.
type DeviceHook func(gpucontext.DeviceProvider)

// Option configures a Window.
type Option func(*options)

type options struct {
	title         string
	width, height int
	toImage       ImageFunc
	onDevice      DeviceHook
	onClose       func()
}

func defaultOptions() options {
	return options{
		title:  "composer",
		width:  1280,
		height: 720,
	}
}

// WithTitle sets the window title.
func WithTitle(title string) Option {
	return func(o *options) {
		o.title = title
	}
}

// WithSize sets the initial window size. Default: 1280x720.
func WithSize(width, height int) Option {
	return func(o *options) {
		if width > 0 && height > 0 {
			o.width, o.height = width, height
		}
	}
}

// WithImageFunc sets how frames are turned into pixels. Use it to read GPU
// frames back, for example with pipeline.Pipeline.FrameImage.
func WithImageFunc(fn ImageFunc) Option {
	return func(o *options) {
		o.toImage = fn
	}
}

// WithDeviceHook registers a callback run once the window's GPU device is
// available, for example to create a readback.Converter from it.
func WithDeviceHook(fn DeviceHook) Option {
	return func(o *options) {
		o.onDevice = fn
	}
}

// WithOnClose registers a callback run when the window closes.
func WithOnClose(fn func()) Option {
	return func(o *options) {
		o.onClose = fn
	}
}
