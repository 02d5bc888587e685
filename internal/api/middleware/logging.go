package middleware

import (
	"net/http"

	"github.com/airyra/accesslog/pkg/accesslog"
	"github.com/airyra/accesslog/pkg/event"
)

// AccessLog returns middleware writing one access log line per request.
// Options are checked up front so a bad format fails at startup rather than
// on the first request.
func AccessLog(opts ...accesslog.Option) (func(http.Handler) http.Handler, error) {
	if _, err := accesslog.New(event.FromHTTP(http.NotFoundHandler()), opts...); err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return event.ToHTTP(accesslog.MustNew(event.FromHTTP(next), opts...))
	}, nil
}
