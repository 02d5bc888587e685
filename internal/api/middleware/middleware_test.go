package middleware_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/airyra/accesslog/internal/api/middleware"
	"github.com/airyra/accesslog/internal/api/response"
	"github.com/airyra/accesslog/pkg/accesslog"
)

type lines struct {
	mu  sync.Mutex
	got []string
}

func (l *lines) Logf(_ accesslog.Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, fmt.Sprintf(format, args...))
}

func TestRecovery_PanicReturns500(t *testing.T) {
	// Handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("something went wrong!")
	})

	handler := middleware.Recovery(zap.NewNop().Sugar())(panicHandler)

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var resp response.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, response.CodeInternalError, resp.Error.Code)
}

func TestRecovery_KeepsStartedResponse(t *testing.T) {
	handler := middleware.Recovery(zap.NewNop().Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late failure")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	handler := middleware.Recovery(zap.NewNop().Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))
	})
}

func TestRequestID_Extracted(t *testing.T) {
	var extracted string

	captureHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		extracted = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(middleware.RequestIDHeader, "my-request")
	rr := httptest.NewRecorder()

	middleware.RequestID(captureHandler).ServeHTTP(rr, req)

	assert.Equal(t, "my-request", extracted)
	assert.Equal(t, "my-request", rr.Header().Get(middleware.RequestIDHeader))
}

func TestRequestID_Generated(t *testing.T) {
	var extracted, header string

	captureHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		extracted = middleware.GetRequestID(r.Context())
		header = r.Header.Get(middleware.RequestIDHeader)
	})

	rr := httptest.NewRecorder()
	middleware.RequestID(captureHandler).ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	_, err := uuid.Parse(extracted)
	require.NoError(t, err)
	assert.Equal(t, extracted, header)
	assert.Equal(t, extracted, rr.Header().Get(middleware.RequestIDHeader))
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, middleware.GetRequestID(httptest.NewRequest("GET", "/", nil).Context()))
}

func TestAccessLog_CapturesStatus(t *testing.T) {
	sink := &lines{}
	mw, err := middleware.AccessLog(accesslog.WithSink(sink))
	require.NoError(t, err)

	// Handler that returns 201
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	rr := httptest.NewRecorder()
	mw(handler).ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, []string{`192.0.2.1:1234 - "GET /test HTTP/1.1" 201 Created`}, sink.got)
}

func TestAccessLog_PanicLoggedThenRecovered(t *testing.T) {
	sink := &lines{}
	mw, err := middleware.AccessLog(accesslog.WithSink(sink))
	require.NoError(t, err)

	handler := middleware.Recovery(zap.NewNop().Sugar())(mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/crash", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, []string{`192.0.2.1:1234 - "GET /crash HTTP/1.1" 500 Internal Server Error`}, sink.got)
}

func TestAccessLog_InvalidFormat(t *testing.T) {
	_, err := middleware.AccessLog(accesslog.WithFormat("%(bogus)s"))
	assert.ErrorIs(t, err, accesslog.ErrUnknownPlaceholder)
}
