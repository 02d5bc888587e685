// Package accesslog provides middleware that writes one access log line per
// HTTP request served by an event.Handler.
//
// # Basic Usage
//
//	logged, err := accesslog.New(app)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(addr, event.ToHTTP(logged))
//
// # Format
//
// Lines are described by a template of %(name)s placeholders:
//
//	client_addr     remote host:port, or "-"
//	request_line    method, path, query string and protocol
//	status_code     response status as sent, or "-" if none was sent
//	status_phrase   reason phrase, or "-" for unregistered codes
//	elapsed         wall-clock seconds (float)
//	cpu_time        process CPU seconds (float)
//
// The gunicorn atoms (h, r, s, T, D, {header}i, {header}o and so on) are
// accepted as well. See DefaultFormat.
//
// # Failures
//
// If the wrapped handler returns an error or panics, the line is still
// written, and the error is returned or the panic resumed unchanged. When no
// response was started the line reports 500 Internal Server Error; nothing
// is sent to the client on that account.
package accesslog

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/airyra/accesslog/pkg/event"
)

// ErrNilHandler is returned by New when no handler is given.
var ErrNilHandler = errors.New("accesslog: nil handler")

// Option configures a Logger.
type Option func(*config)

type config struct {
	sink   Sink
	format string
	clock  Clock
	cpu    CPUClock
}

// WithSink sets the sink lines are written to. Defaults to DefaultSink().
func WithSink(s Sink) Option {
	return func(c *config) {
		c.sink = s
	}
}

// WithFormat sets the line template. Defaults to DefaultFormat.
func WithFormat(format string) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithClock sets the wall clock.
func WithClock(clock Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithCPUClock sets the CPU clock. Defaults to ProcessCPUClock().
func WithCPUClock(cpu CPUClock) Option {
	return func(c *config) {
		c.cpu = cpu
	}
}

// Logger is an event.Handler that logs every HTTP request passing through
// it. It is safe for concurrent use.
type Logger struct {
	next     event.Handler
	sink     Sink
	template *Template
	clock    Clock
	cpu      CPUClock
}

// New wraps next with access logging.
func New(next event.Handler, opts ...Option) (*Logger, error) {
	if next == nil {
		return nil, ErrNilHandler
	}

	cfg := &config{format: DefaultFormat}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.sink == nil {
		cfg.sink = DefaultSink()
	}
	if cfg.clock == nil {
		cfg.clock = SystemClock
	}
	if cfg.cpu == nil {
		cfg.cpu = ProcessCPUClock()
	}

	tmpl, err := Compile(cfg.format)
	if err != nil {
		return nil, err
	}

	return &Logger{
		next:     next,
		sink:     cfg.sink,
		template: tmpl,
		clock:    cfg.clock,
		cpu:      cfg.cpu,
	}, nil
}

// MustNew is like New but panics on error.
func MustNew(next event.Handler, opts ...Option) *Logger {
	l, err := New(next, opts...)
	if err != nil {
		panic(err)
	}
	return l
}

// Template returns the compiled line template.
func (l *Logger) Template() *Template {
	return l.template
}

// Serve implements event.Handler. Scopes other than HTTP are handed to the
// wrapped handler without being timed or logged.
func (l *Logger) Serve(ctx context.Context, scope *event.Scope, receive event.Receiver, send event.Sender) (err error) {
	switch scope.Type {
	case event.ScopeHTTP:
	default:
		return l.next.Serve(ctx, scope, receive, send)
	}

	rec := &recorder{next: send}
	start := l.mark()

	defer func() {
		p := recover()
		l.write(scope, rec, start, err != nil || p != nil)
		if p != nil {
			panic(p)
		}
	}()

	return l.next.Serve(ctx, scope, receive, rec)
}

// timing is a wall and CPU clock reading taken together.
type timing struct {
	wall  time.Time
	cpu   time.Duration
	cpuOK bool
}

func (l *Logger) mark() timing {
	t := timing{wall: l.clock.Now()}
	if cpu, err := l.cpu.CPUTime(); err == nil {
		t.cpu, t.cpuOK = cpu, true
	}
	return t
}

func (l *Logger) write(scope *event.Scope, rec *recorder, start timing, failed bool) {
	end := l.mark()

	r := &record{
		scope:   scope,
		elapsed: max(end.wall.Sub(start.wall), 0),
	}
	switch {
	case rec.started:
		r.status, r.hasStatus, r.response = rec.start.Status, true, rec.start
	case failed:
		r.status, r.hasStatus = http.StatusInternalServerError, true
	}
	if start.cpuOK && end.cpuOK {
		r.cpu = max(end.cpu-start.cpu, 0)
	}

	l.sink.Logf(LevelInfo, l.template.format, l.template.args(r)...)
}

// recorder forwards outbound events and remembers the first response start.
type recorder struct {
	next    event.Sender
	started bool
	start   event.Event
}

func (r *recorder) Send(ctx context.Context, ev event.Event) error {
	if ev.Type == event.ResponseStart && !r.started {
		r.started = true
		r.start = ev
	}
	return r.next.Send(ctx, ev)
}
