package soft

import "time"

// Option configures an Engine.
type Option func(*options)

type options struct {
	framerate int
	manual    bool
	hotReload bool
	timecode  bool
	workers   int
}

func defaultOptions() options {
	return options{
		framerate: 10,
		hotReload: true,
		workers:   1,
	}
}

// WithFramerate sets how many frames per second every output produces.
// Default: 10.
func WithFramerate(fps int) Option {
	return func(o *options) {
		if fps > 0 {
			o.framerate = fps
		}
	}
}

// WithManualTick disables the internal render loop. Frames are produced
// only when Tick is called.
func WithManualTick() Option {
	return func(o *options) {
		o.manual = true
	}
}

// WithHotReload reloads still images when their files change on disk.
// Default: true.
func WithHotReload(enabled bool) Option {
	return func(o *options) {
		o.hotReload = enabled
	}
}

// WithTimecode draws each frame's presentation time in the bottom-left
// corner.
func WithTimecode(enabled bool) Option {
	return func(o *options) {
		o.timecode = enabled
	}
}

// WithWorkers sets how many outputs are composed in parallel on each tick.
// n <= 0 means GOMAXPROCS. Default: 1.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

func (o options) interval() time.Duration {
	return time.Second / time.Duration(o.framerate)
}
