package log

// Logger receives protocol events. Implementations must be safe for
// concurrent use and should not block.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

// MultiLogger fans events out to several loggers.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Nil loggers are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log sends the event to every logger in order.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// OrNoop returns l, or NoopLogger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}

// Compile-time interface checks.
var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
	_ Logger = (*MultiLogger)(nil)
)
