package texbridge

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/texbridge/resource"
)

// logger is swapped atomically so SetLogger may race with publishing
// goroutines and the resource thread.
var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(silentLogger())
}

func silentLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// SetLogger routes texbridge diagnostics to l, including those of the
// resource thread. Nothing is logged until SetLogger is called; nil makes
// texbridge silent again.
//
// Levels:
//   - [slog.LevelDebug]: per-frame events (allocation requests, stale
//     uploads dropped, failed publishes)
//   - [slog.LevelInfo]: resource threads, capture sources and loops
//     starting and stopping
//   - [slog.LevelWarn]: device failures and failed image operations
//
// The handler sees every record, so pick its level to taste:
//
//	texbridge.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = silentLogger()
	}
	logger.Store(l)
	resource.SetLogger(l)
}

// Logger returns the logger installed with SetLogger. The imageops and
// capture packages log through it.
func Logger() *slog.Logger {
	return logger.Load()
}
