package output

import "github.com/gogpu/compositor"

// Option configures a Multiplexer.
type Option func(*options)

type options struct {
	requestBuffer int
}

func defaultOptions() options {
	return options{requestBuffer: 16}
}

// WithRequestBuffer sets how many requests may wait for the actor before
// callers block. Default: 16.
func WithRequestBuffer(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.requestBuffer = n
		}
	}
}

// RegisterOption configures a single output registration.
type RegisterOption func(*compositor.OutputSpec)

// WithPath sets the destination file of a file output.
func WithPath(path string) RegisterOption {
	return func(s *compositor.OutputSpec) {
		s.Path = path
	}
}

// WithEnd sets the output's end condition. Default: compositor.EndNever.
func WithEnd(end compositor.EndCondition) RegisterOption {
	return func(s *compositor.OutputSpec) {
		s.End = end
	}
}
