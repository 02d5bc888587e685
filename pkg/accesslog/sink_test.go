package accesslog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/airyra/accesslog/pkg/accesslog"
	"github.com/airyra/accesslog/pkg/event"
)

const wantLine = `127.0.0.1:5000 - "GET / HTTP/1.1" 200 OK`

func TestZapSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := accesslog.NewZapSink(zap.New(core).Sugar())

	l := accesslog.MustNew(event.HandlerFunc(successApp), accesslog.WithSink(sink))
	require.NoError(t, l.Serve(context.Background(), httpScope(), emptyRequest, discard))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, wantLine, entries[0].Message)
}

func TestZapSink_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := accesslog.NewZapSink(zap.New(core).Sugar())

	sink.Logf(accesslog.LevelDebug, "d %d", 1)
	sink.Logf(accesslog.LevelWarn, "w %d", 2)
	sink.Logf(accesslog.LevelError, "e %d", 3)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "d 1", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestZerologSink(t *testing.T) {
	var buf bytes.Buffer
	sink := accesslog.NewZerologSink(zerolog.New(&buf))

	l := accesslog.MustNew(event.HandlerFunc(successApp), accesslog.WithSink(sink))
	require.NoError(t, l.Serve(context.Background(), httpScope(), emptyRequest, discard))

	var line struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line.Level)
	assert.Equal(t, wantLine, line.Message)
}

func TestStdSink(t *testing.T) {
	var buf bytes.Buffer
	sink := accesslog.NewStdSink(log.New(&buf, "", 0))

	l := accesslog.MustNew(event.HandlerFunc(successApp), accesslog.WithSink(sink))
	require.NoError(t, l.Serve(context.Background(), httpScope(), emptyRequest, discard))

	assert.Equal(t, wantLine+"\n", buf.String())
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "debug", accesslog.LevelDebug.String())
	assert.Equal(t, "info", accesslog.LevelInfo.String())
	assert.Equal(t, "warn", accesslog.LevelWarn.String())
	assert.Equal(t, "error", accesslog.LevelError.String())
	assert.Equal(t, "unknown", accesslog.Level(42).String())
}
