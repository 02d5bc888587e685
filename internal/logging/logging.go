// Package logging builds the loggers used by accesslogd.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/airyra/accesslog/internal/config"
	"github.com/airyra/accesslog/pkg/accesslog"
)

// Writer returns the stream named by a config output.
func Writer(output string) (io.Writer, error) {
	switch output {
	case config.OutputStderr, "":
		return os.Stderr, nil
	case config.OutputStdout:
		return os.Stdout, nil
	}
	return nil, fmt.Errorf("unknown log output %q", output)
}

// NewSink builds the access log sink described by cfg.
func NewSink(cfg config.AccessLogConfig) (accesslog.Sink, error) {
	w, err := Writer(cfg.Output)
	if err != nil {
		return nil, err
	}
	return NewSinkTo(cfg.Backend, w)
}

// NewSinkTo builds a sink for backend writing to w.
func NewSinkTo(backend string, w io.Writer) (accesslog.Sink, error) {
	switch backend {
	case config.BackendZap, "":
		enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			MessageKey: "msg",
			LineEnding: zapcore.DefaultLineEnding,
		})
		core := zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.InfoLevel)
		return accesslog.NewZapSink(zap.New(core).Named("access").Sugar()), nil

	case config.BackendZerolog:
		return accesslog.NewZerologSink(zerolog.New(w).With().Timestamp().Logger()), nil

	case config.BackendStd:
		return accesslog.NewStdSink(log.New(w, "", log.LstdFlags)), nil
	}
	return nil, fmt.Errorf("unknown log backend %q", backend)
}

// NewServerLogger returns the logger for server lifecycle messages.
func NewServerLogger(w io.Writer) *zap.SugaredLogger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), zapcore.InfoLevel)
	return zap.New(core).Named("accesslogd").Sugar()
}
