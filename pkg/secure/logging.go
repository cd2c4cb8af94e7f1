package secure

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// LevelTrace sits below slog.LevelDebug for pion's trace output.
const LevelTrace = slog.LevelDebug - 4

// loggerFactory routes pion/dtls logging into slog.
type loggerFactory struct {
	logger *slog.Logger
}

// NewLoggerFactory returns a pion LoggerFactory writing to logger.
// A nil logger discards everything.
func NewLoggerFactory(logger *slog.Logger) logging.LoggerFactory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &loggerFactory{logger: logger}
}

func (f *loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &scopedLogger{logger: f.logger.With("scope", "pion/"+scope)}
}

type scopedLogger struct {
	logger *slog.Logger
}

func (l *scopedLogger) log(level slog.Level, msg string) {
	l.logger.Log(context.Background(), level, msg)
}

func (l *scopedLogger) Trace(msg string) { l.log(LevelTrace, msg) }
func (l *scopedLogger) Tracef(format string, args ...any) {
	l.log(LevelTrace, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Debug(msg string) { l.log(slog.LevelDebug, msg) }
func (l *scopedLogger) Debugf(format string, args ...any) {
	l.log(slog.LevelDebug, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Info(msg string) { l.log(slog.LevelInfo, msg) }
func (l *scopedLogger) Infof(format string, args ...any) {
	l.log(slog.LevelInfo, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Warn(msg string) { l.log(slog.LevelWarn, msg) }
func (l *scopedLogger) Warnf(format string, args ...any) {
	l.log(slog.LevelWarn, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Error(msg string) { l.log(slog.LevelError, msg) }
func (l *scopedLogger) Errorf(format string, args ...any) {
	l.log(slog.LevelError, fmt.Sprintf(format, args...))
}

var _ logging.LeveledLogger = (*scopedLogger)(nil)
