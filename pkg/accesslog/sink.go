package accesslog

import (
	"log"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the severity of a log line.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "unknown"
}

// Sink receives access log lines as a printf format string plus raw
// arguments, so downstream processors can still see individual fields.
type Sink interface {
	Logf(level Level, format string, args ...any)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(level Level, format string, args ...any)

// Logf calls f(level, format, args...).
func (f SinkFunc) Logf(level Level, format string, args ...any) {
	f(level, format, args...)
}

type zapSink struct {
	logger *zap.SugaredLogger
}

// NewZapSink returns a Sink writing to a zap SugaredLogger.
func NewZapSink(logger *zap.SugaredLogger) Sink {
	return zapSink{logger: logger}
}

func (s zapSink) Logf(level Level, format string, args ...any) {
	switch level {
	case LevelDebug:
		s.logger.Debugf(format, args...)
	case LevelWarn:
		s.logger.Warnf(format, args...)
	case LevelError:
		s.logger.Errorf(format, args...)
	default:
		s.logger.Infof(format, args...)
	}
}

type zerologSink struct {
	logger zerolog.Logger
}

// NewZerologSink returns a Sink writing to a zerolog Logger.
func NewZerologSink(logger zerolog.Logger) Sink {
	return zerologSink{logger: logger}
}

func (s zerologSink) Logf(level Level, format string, args ...any) {
	var zl zerolog.Level
	switch level {
	case LevelDebug:
		zl = zerolog.DebugLevel
	case LevelWarn:
		zl = zerolog.WarnLevel
	case LevelError:
		zl = zerolog.ErrorLevel
	default:
		zl = zerolog.InfoLevel
	}
	s.logger.WithLevel(zl).Msgf(format, args...)
}

type stdSink struct {
	logger *log.Logger
}

// NewStdSink returns a Sink writing to a standard library logger. The level
// is not rendered.
func NewStdSink(logger *log.Logger) Sink {
	return stdSink{logger: logger}
}

func (s stdSink) Logf(_ Level, format string, args ...any) {
	s.logger.Printf(format, args...)
}

var (
	defaultMu   sync.Mutex
	defaultSink Sink
)

// DefaultSink returns the process-wide sink used by loggers built without
// WithSink. Unless replaced with SetDefaultSink it is a zap logger named
// "access" that writes bare messages at info level to stderr.
func DefaultSink() Sink {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultSink == nil {
		defaultSink = newStderrSink()
	}
	return defaultSink
}

// SetDefaultSink replaces the process-wide default sink. Loggers already
// constructed keep the sink they were built with. A nil sink restores the
// built-in default.
func SetDefaultSink(s Sink) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	defaultSink = s
}

func newStderrSink() Sink {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
	})
	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zapcore.InfoLevel)
	return NewZapSink(zap.New(core).Named("access").Sugar())
}
