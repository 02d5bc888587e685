package event

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// chunkSize bounds a single Request event built from a net/http body.
const chunkSize = 64 << 10

// NewScope builds a Scope describing r.
func NewScope(r *http.Request) *Scope {
	scope := &Scope{
		Type:        ScopeHTTP,
		HTTPVersion: httpVersion(r),
		Method:      r.Method,
		Scheme:      "http",
		Path:        r.URL.Path,
		QueryString: r.URL.RawQuery,
		Headers:     requestHeaders(r),
		Client:      parseClient(r.RemoteAddr),
	}
	if r.TLS != nil {
		scope.Scheme = "https"
	}
	if isWebSocketUpgrade(r) {
		scope.Type = ScopeWebSocket
		scope.Scheme = strings.Replace(scope.Scheme, "http", "ws", 1)
	}
	return scope
}

func httpVersion(r *http.Request) string {
	if r.ProtoMajor >= 2 {
		return strconv.Itoa(r.ProtoMajor)
	}
	if r.ProtoMajor == 0 {
		return "1.1"
	}
	return fmt.Sprintf("%d.%d", r.ProtoMajor, r.ProtoMinor)
}

func requestHeaders(r *http.Request) []Header {
	headers := make([]Header, 0, len(r.Header)+1)
	if r.Host != "" {
		headers = append(headers, Header{Name: "Host", Value: r.Host})
	}
	return append(headers, flatten(r.Header)...)
}

func flatten(h http.Header) []Header {
	headers := make([]Header, 0, len(h))
	for _, name := range slices.Sorted(maps.Keys(h)) {
		for _, v := range h[name] {
			headers = append(headers, Header{Name: name, Value: v})
		}
	}
	return headers
}

func parseClient(remoteAddr string) *Client {
	if remoteAddr == "" {
		return nil
	}
	host, port, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// chi's RealIP leaves a bare address behind
		return &Client{Host: remoteAddr}
	}
	p, _ := strconv.Atoi(port)
	return &Client{Host: host, Port: p}
}

func isWebSocketUpgrade(r *http.Request) bool {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}
	for _, v := range r.Header.Values("Connection") {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
				return true
			}
		}
	}
	return false
}

// ToHTTP serves h over net/http. If h fails before starting a response, a
// plain 500 is written in its place. Panics are not recovered.
func ToHTTP(h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := NewScope(r)
		scope.req, scope.w = r, w

		sender := &responseSender{w: w}
		err := h.Serve(r.Context(), scope, &bodyReceiver{body: r.Body}, sender)
		if err != nil && scope.Type == ScopeHTTP && !sender.started {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})
}

// bodyReceiver turns a request body into Request events, then blocks until
// the request context ends and reports Disconnect.
type bodyReceiver struct {
	body io.Reader
	buf  []byte
	done bool
}

func (b *bodyReceiver) Receive(ctx context.Context) (Event, error) {
	if b.done {
		<-ctx.Done()
		return Event{Type: Disconnect}, nil
	}
	if b.body == nil || b.body == http.NoBody {
		b.done = true
		return Event{Type: Request}, nil
	}
	if b.buf == nil {
		b.buf = make([]byte, chunkSize)
	}

	n, err := b.body.Read(b.buf)
	switch {
	case err == io.EOF:
		b.done = true
		return Event{Type: Request, Body: bytes.Clone(b.buf[:n])}, nil
	case err != nil:
		return Event{}, fmt.Errorf("read request body: %w", err)
	}
	return Event{Type: Request, Body: bytes.Clone(b.buf[:n]), MoreBody: true}, nil
}

// responseSender applies response events to a ResponseWriter.
type responseSender struct {
	w       http.ResponseWriter
	started bool
}

func (s *responseSender) Send(ctx context.Context, ev Event) error {
	switch ev.Type {
	case ResponseStart:
		if s.started {
			return ErrResponseStarted
		}
		if ev.Status < 100 || ev.Status > 999 {
			return fmt.Errorf("%w: %d", ErrInvalidStatus, ev.Status)
		}
		s.started = true
		header := s.w.Header()
		for _, h := range ev.Headers {
			header.Add(h.Name, h.Value)
		}
		s.w.WriteHeader(ev.Status)
		return nil

	case ResponseBody:
		if !s.started {
			return ErrResponseNotStarted
		}
		if len(ev.Body) > 0 {
			if _, err := s.w.Write(ev.Body); err != nil {
				return err
			}
		}
		if ev.MoreBody {
			if f, ok := s.w.(http.Flusher); ok {
				f.Flush()
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnexpectedEvent, ev.Type)
}

// FromHTTP runs a net/http handler inside the event contract. Websocket
// scopes built by ToHTTP are handed the original connection untouched.
func FromHTTP(h http.Handler) Handler {
	return HandlerFunc(func(ctx context.Context, scope *Scope, receive Receiver, send Sender) error {
		switch scope.Type {
		case ScopeHTTP:
		case ScopeWebSocket:
			if scope.req == nil {
				return fmt.Errorf("%w: %s scope without a connection", ErrUnsupportedScope, scope.Type)
			}
			h.ServeHTTP(scope.w, scope.req.WithContext(ctx))
			return nil
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedScope, scope.Type)
		}

		req, err := scope.request(ctx)
		if err != nil {
			return err
		}
		req.Body = &eventBody{ctx: ctx, receive: receive}

		w := &eventWriter{ctx: ctx, send: send, header: make(http.Header)}
		h.ServeHTTP(w, req)
		return w.finish()
	})
}

// request returns a copy of the originating request, or rebuilds one from
// the scope fields when the scope was not made by ToHTTP.
func (s *Scope) request(ctx context.Context) (*http.Request, error) {
	if s.req != nil {
		return s.req.Clone(ctx), nil
	}

	target := s.RootPath + s.Path
	if target == "" {
		target = "/"
	}
	if s.QueryString != "" {
		target += "?" + s.QueryString
	}
	req, err := http.NewRequestWithContext(ctx, s.Method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Proto = "HTTP/" + s.HTTPVersion
	if major, minor, ok := http.ParseHTTPVersion(req.Proto); ok {
		req.ProtoMajor, req.ProtoMinor = major, minor
	}
	for _, h := range s.Headers {
		if strings.EqualFold(h.Name, "Host") {
			req.Host = h.Value
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}
	if s.Client != nil {
		req.RemoteAddr = s.Client.String()
	}
	return req, nil
}

// eventBody reads a request body from Request events.
type eventBody struct {
	ctx     context.Context
	receive Receiver
	buf     []byte
	eof     bool
}

func (b *eventBody) Read(p []byte) (int, error) {
	for len(b.buf) == 0 {
		if b.eof {
			return 0, io.EOF
		}
		ev, err := b.receive.Receive(b.ctx)
		if err != nil {
			return 0, err
		}
		switch ev.Type {
		case Request:
			b.buf = ev.Body
			b.eof = !ev.MoreBody
		case Disconnect:
			return 0, io.ErrUnexpectedEOF
		}
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

func (b *eventBody) Close() error {
	return nil
}

// eventWriter turns ResponseWriter calls into response events. Every Write
// is sent immediately, so Flush has nothing left to do.
type eventWriter struct {
	ctx     context.Context
	send    Sender
	header  http.Header
	started bool
	err     error
}

func (w *eventWriter) Header() http.Header {
	return w.header
}

func (w *eventWriter) WriteHeader(code int) {
	if w.started {
		return
	}
	w.started = true
	w.err = w.send.Send(w.ctx, Event{Type: ResponseStart, Status: code, Headers: flatten(w.header)})
}

func (w *eventWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.WriteHeader(http.StatusOK)
	}
	if w.err != nil {
		return 0, w.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := w.send.Send(w.ctx, Event{Type: ResponseBody, Body: bytes.Clone(p), MoreBody: true}); err != nil {
		w.err = err
		return 0, err
	}
	return len(p), nil
}

func (w *eventWriter) Flush() {}

func (w *eventWriter) finish() error {
	if !w.started {
		w.WriteHeader(http.StatusOK)
	}
	if w.err != nil {
		return w.err
	}
	return w.send.Send(w.ctx, Event{Type: ResponseBody})
}
