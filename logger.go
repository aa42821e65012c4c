package compositor

import (
	"log/slog"
	"sync/atomic"
)

var (
	discard   = slog.New(slog.DiscardHandler)
	loggerPtr atomic.Pointer[slog.Logger]
)

func init() {
	loggerPtr.Store(discard)
}

// SetLogger routes the diagnostics of every compositor package to l. The
// default discards everything; nil restores it. SetLogger may be called
// while outputs are running.
//
// Info records output registration and unregistration, finalized
// recordings and written snapshots. Debug adds every scene swap and the
// frames a drainer skipped. Warn reports swap failures the scheduler
// retries, file outputs that failed to write a frame and images that
// cannot be watched for reload.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = discard
	}
	loggerPtr.Store(l)
}

// Logger returns the logger set with SetLogger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
