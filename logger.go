package bindgen

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/winrt-bindgen/generic"
	"github.com/wippyai/winrt-bindgen/graph"
	"github.com/wippyai/winrt-bindgen/synth"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the engine's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the engine's logger and the loggers of the
// resolver, instantiator and synthesizer, each under its own name.
// This must be called before Generate or Validate.
func SetLogger(l *zap.Logger) {
	logger = l
	graph.SetLogger(l.Named("graph"))
	generic.SetLogger(l.Named("generic"))
	synth.SetLogger(l.Named("synth"))
}
