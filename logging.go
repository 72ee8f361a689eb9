package experiments

import "time"

// ResolutionLogEvent describes one resolution attempt for logging.
type ResolutionLogEvent struct {
	Experiment string
	Variant    string
	Source     ResolutionSource
	Duration   time.Duration
	Err        error
}

// ResolutionLogger records engine resolution events.
type ResolutionLogger interface {
	LogResolution(ResolutionLogEvent)
}

// ResolutionLoggerFunc adapts a function to ResolutionLogger.
type ResolutionLoggerFunc func(ResolutionLogEvent)

// LogResolution implements ResolutionLogger.
func (f ResolutionLoggerFunc) LogResolution(event ResolutionLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopResolutionLogger struct{}

func (noopResolutionLogger) LogResolution(ResolutionLogEvent) {}

// RefreshLogEvent describes one provider refresh for logging.
type RefreshLogEvent struct {
	Source      string
	Experiments int
	Duration    time.Duration
	Err         error
}

// RefreshLogger records provider refresh events, including the partial-load
// errors that never propagate to resolution callers.
type RefreshLogger interface {
	LogRefresh(RefreshLogEvent)
}

// RefreshLoggerFunc adapts a function to RefreshLogger.
type RefreshLoggerFunc func(RefreshLogEvent)

// LogRefresh implements RefreshLogger.
func (f RefreshLoggerFunc) LogRefresh(event RefreshLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopRefreshLogger struct{}

func (noopRefreshLogger) LogRefresh(RefreshLogEvent) {}
