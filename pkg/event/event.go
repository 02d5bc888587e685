// Package event defines an event-driven HTTP handler contract.
//
// A Handler receives a read-only Scope describing the connection, a Receiver
// it pulls inbound events from and a Sender it pushes outbound events to. An
// HTTP response is one ResponseStart event followed by one or more
// ResponseBody events, the last of which has MoreBody set to false.
//
// ToHTTP and FromHTTP bridge the contract to and from net/http.
package event

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ScopeType identifies the kind of connection a Scope describes.
type ScopeType string

const (
	ScopeHTTP      ScopeType = "http"
	ScopeWebSocket ScopeType = "websocket"
	ScopeLifespan  ScopeType = "lifespan"
)

// Type identifies an event.
type Type string

const (
	// Request carries a chunk of the request body.
	Request Type = "http.request"
	// Disconnect is delivered once the client has gone away.
	Disconnect Type = "http.disconnect"
	// ResponseStart carries the response status and headers.
	ResponseStart Type = "http.response.start"
	// ResponseBody carries a chunk of the response body.
	ResponseBody Type = "http.response.body"
)

var (
	// ErrResponseStarted is returned when a second ResponseStart is sent.
	ErrResponseStarted = errors.New("response already started")
	// ErrResponseNotStarted is returned when a body is sent before ResponseStart.
	ErrResponseNotStarted = errors.New("response not started")
	// ErrUnsupportedScope is returned for scopes a bridge cannot serve.
	ErrUnsupportedScope = errors.New("unsupported scope")
	// ErrUnexpectedEvent is returned for events a sender does not understand.
	ErrUnexpectedEvent = errors.New("unexpected event")
	// ErrInvalidStatus is returned for status codes outside 100-999.
	ErrInvalidStatus = errors.New("invalid status code")
)

// Header is a single header field.
type Header struct {
	Name  string
	Value string
}

// Client is the remote end of the connection.
type Client struct {
	Host string
	Port int
}

// String returns host:port, or just the host when the port is unknown.
func (c *Client) String() string {
	if c.Port == 0 {
		return c.Host
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Scope describes one connection. Handlers must not modify it.
type Scope struct {
	Type        ScopeType
	HTTPVersion string
	Method      string
	Scheme      string
	RootPath    string
	Path        string
	QueryString string
	Headers     []Header
	Client      *Client

	// set by ToHTTP so FromHTTP can reuse the original request and connection
	req *http.Request
	w   http.ResponseWriter
}

// Header returns the first request header matching name, case-insensitively.
func (s *Scope) Header(name string) (string, bool) {
	return lookup(s.Headers, name)
}

// Event is a single inbound or outbound message.
type Event struct {
	Type     Type
	Status   int
	Headers  []Header
	Body     []byte
	MoreBody bool
}

// Header returns the first header of the event matching name, case-insensitively.
func (e Event) Header(name string) (string, bool) {
	return lookup(e.Headers, name)
}

func lookup(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Receiver yields inbound events.
type Receiver interface {
	Receive(ctx context.Context) (Event, error)
}

// Sender accepts outbound events.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(ctx context.Context) (Event, error)

// Receive calls f(ctx).
func (f ReceiverFunc) Receive(ctx context.Context) (Event, error) {
	return f(ctx)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, ev Event) error

// Send calls f(ctx, ev).
func (f SenderFunc) Send(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Handler serves one connection end to end.
type Handler interface {
	Serve(ctx context.Context, scope *Scope, receive Receiver, send Sender) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, scope *Scope, receive Receiver, send Sender) error

// Serve calls f(ctx, scope, receive, send).
func (f HandlerFunc) Serve(ctx context.Context, scope *Scope, receive Receiver, send Sender) error {
	return f(ctx, scope, receive, send)
}
