package compositor

import "errors"

// Errors shared by the compositor packages. Callers compare with errors.Is;
// operations wrap them with the offending output or format.
var (
	// ErrRegistration is returned when an output cannot be registered:
	// the id is already in use or the resolution has a zero dimension.
	ErrRegistration = errors.New("compositor: output registration failed")

	// ErrUnknownOutput is returned for operations on an output id that was
	// never registered or has already been unregistered.
	ErrUnknownOutput = errors.New("compositor: unknown output")

	// ErrChannelClosed is returned when an output's event stream ended
	// before any frame arrived.
	ErrChannelClosed = errors.New("compositor: frame channel closed")

	// ErrUnsupportedFormat is returned when a texture format is neither
	// directly copyable nor convertible by a shader pass.
	ErrUnsupportedFormat = errors.New("compositor: unsupported texture format")

	// ErrMapping is returned when the host-visible mapping of a staging
	// buffer could not be completed.
	ErrMapping = errors.New("compositor: staging buffer mapping failed")

	// ErrFileIO is returned when an output file could not be removed,
	// created or written.
	ErrFileIO = errors.New("compositor: file i/o failed")

	// ErrClosed is returned by a multiplexer or engine after Close.
	ErrClosed = errors.New("compositor: closed")
)
