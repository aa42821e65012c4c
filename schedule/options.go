package schedule

import "time"

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	interval    time.Duration
	duration    time.Duration
	index       int
	maxFailures int
	clock       Clock
	done        <-chan struct{}
}

func defaultOptions() options {
	return options{
		interval:    time.Second,
		maxFailures: 5,
		clock:       systemClock{},
	}
}

// WithInterval sets the time between swaps. Default: 1s.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithDuration stops the loop once d has elapsed. Zero runs until
// cancelled, which is the default.
func WithDuration(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.duration = d
		}
	}
}

// WithInitialIndex sets the index of the scene considered active before the
// first swap. The first swap applies the scene after it. Default: 0.
func WithInitialIndex(i int) Option {
	return func(o *options) {
		o.index = i
	}
}

// WithMaxFailures sets how many consecutive failed swaps end the loop.
// Values below 1 are ignored. Default: 5.
func WithMaxFailures(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFailures = n
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithDone stops the loop when done is closed, typically an output
// handle's Done channel.
func WithDone(done <-chan struct{}) Option {
	return func(o *options) {
		o.done = done
	}
}
