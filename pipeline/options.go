package pipeline

import (
	"time"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/readback"
	"github.com/gogpu/compositor/schedule"
)

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	resolution compositor.Resolution
	interval   time.Duration
	loop       bool
	clock      schedule.Clock
	converter  *readback.Converter
}

func defaultOptions() options {
	return options{
		resolution: compositor.Resolution{Width: 1920, Height: 1080},
		interval:   time.Second,
		loop:       true,
		clock:      schedule.SystemClock(),
	}
}

// WithResolution sets the size of the preview and recording outputs.
// Default: 1920x1080.
func WithResolution(res compositor.Resolution) Option {
	return func(o *options) {
		if res.Valid() {
			o.resolution = res
		}
	}
}

// WithInterval sets how long each scene stays active before the next swap.
// Default: 1s.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithLoop controls whether the video source restarts when it ends.
// Default: true.
func WithLoop(loop bool) Option {
	return func(o *options) {
		o.loop = loop
	}
}

// WithClock sets the clock used by the scene schedulers.
func WithClock(c schedule.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithConverter sets the converter used to read back GPU frames for
// snapshots. Without one, snapshots of GPU frames fail.
func WithConverter(c *readback.Converter) Option {
	return func(o *options) {
		o.converter = c
	}
}
