package middleware

import (
	"bufio"
	"net"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/airyra/accesslog/internal/api/response"
)

// responseWriter tracks whether a response has been started, so Recovery
// does not write a second status line.
type responseWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *responseWriter) WriteHeader(code int) {
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(p []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(p)
}

func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		w.wrote = true
		f.Flush()
	}
}

// Hijack delegates to the underlying writer so websocket upgrades still work.
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		w.wrote = true
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Recovery middleware catches panics and returns a 500 error if no response
// was started yet.
func Recovery(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w}
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Errorf("panic recovered: %v\n%s", err, debug.Stack())
					if !wrapped.wrote {
						response.InternalError(wrapped.ResponseWriter)
					}
				}
			}()
			next.ServeHTTP(wrapped, r)
		})
	}
}
