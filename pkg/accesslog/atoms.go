package accesslog

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/airyra/accesslog/pkg/event"
)

// missing renders any value that is not available for a request.
const missing = "-"

// absent stands in for a missing numeric value. It renders as "-" under
// every verb, so %(status_code)d stays readable when no status is known.
type absent struct{}

func (absent) String() string { return missing }

func (absent) Format(f fmt.State, _ rune) {
	s := missing
	if w, ok := f.Width(); ok && w > len(s) {
		pad := strings.Repeat(" ", w-len(s))
		if f.Flag('-') {
			s += pad
		} else {
			s = pad + s
		}
	}
	io.WriteString(f, s)
}

// record is everything known about a finished request.
type record struct {
	scope *event.Scope
	// status is meaningful only when hasStatus is set; a captured 0 is
	// logged as is.
	status    int
	hasStatus bool
	// response is the captured response start, zero if none was sent.
	response event.Event
	elapsed  time.Duration
	cpu      time.Duration
}

type atom func(*record) any

// atoms holds every named placeholder. The single-letter names follow the
// gunicorn access log atoms.
var atoms = map[string]atom{
	"client_addr":   clientAddr,
	"request_line":  fullRequestLine,
	"status_code":   statusCode,
	"status_phrase": statusPhrase,
	"elapsed":       func(r *record) any { return r.elapsed.Seconds() },
	"cpu_time":      func(r *record) any { return r.cpu.Seconds() },

	"h":  clientAddr,
	"r":  requestLine,
	"R":  fullRequestLine,
	"m":  func(r *record) any { return r.scope.Method },
	"U":  func(r *record) any { return r.scope.Path },
	"q":  func(r *record) any { return r.scope.QueryString },
	"H":  func(r *record) any { return protocol(r.scope) },
	"s":  statusCode,
	"st": statusPhrase,
	"b":  contentLength,
	"B":  responseBytes,
	"f":  func(r *record) any { return requestHeader(r, "Referer") },
	"a":  func(r *record) any { return requestHeader(r, "User-Agent") },
	"T":  func(r *record) any { return int64(r.elapsed / time.Second) },
	"M":  func(r *record) any { return r.elapsed.Milliseconds() },
	"D":  func(r *record) any { return r.elapsed.Microseconds() },
	"L":  func(r *record) any { return fmt.Sprintf("%.6f", r.elapsed.Seconds()) },
	"p":  func(*record) any { return "<" + strconv.Itoa(os.Getpid()) + ">" },
}

// field is one compiled placeholder.
type field struct {
	name  string
	value atom
}

// parseField resolves a placeholder name. Besides the names in atoms it
// accepts {header}i for request headers and {header}o for response headers.
func parseField(name string) (field, error) {
	if a, ok := atoms[name]; ok {
		return field{name: name, value: a}, nil
	}

	if len(name) > 3 && name[0] == '{' && name[len(name)-2] == '}' {
		header := name[1 : len(name)-2]
		switch name[len(name)-1] {
		case 'i':
			return field{name: name, value: func(r *record) any { return requestHeader(r, header) }}, nil
		case 'o':
			return field{name: name, value: func(r *record) any { return responseHeader(r, header) }}, nil
		}
	}

	return field{}, fmt.Errorf("%w: %q", ErrUnknownPlaceholder, name)
}

func clientAddr(r *record) any {
	if r.scope.Client == nil {
		return missing
	}
	return r.scope.Client.String()
}

func protocol(s *event.Scope) string {
	return "HTTP/" + s.HTTPVersion
}

func requestLine(r *record) any {
	return r.scope.Method + " " + r.scope.RootPath + r.scope.Path + " " + protocol(r.scope)
}

// fullRequestLine is requestLine with the query string, e.g.
// "GET /foo?x=1 HTTP/1.1".
func fullRequestLine(r *record) any {
	path := r.scope.RootPath + r.scope.Path
	if r.scope.QueryString != "" {
		path += "?" + r.scope.QueryString
	}
	return r.scope.Method + " " + path + " " + protocol(r.scope)
}

func statusCode(r *record) any {
	if !r.hasStatus {
		return absent{}
	}
	return r.status
}

func statusPhrase(r *record) any {
	if !r.hasStatus {
		return missing
	}
	return phrase(r.status)
}

// phrase returns the registered reason phrase for code, or "-".
func phrase(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return missing
}

func contentLength(r *record) any {
	n, ok := responseLength(r)
	if !ok {
		return absent{}
	}
	return n
}

func responseBytes(r *record) any {
	n, _ := responseLength(r)
	return n
}

func responseLength(r *record) (int64, bool) {
	v, ok := r.response.Header("Content-Length")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func requestHeader(r *record, name string) string {
	if v, ok := r.scope.Header(name); ok {
		return v
	}
	return missing
}

func responseHeader(r *record, name string) string {
	if v, ok := r.response.Header(name); ok {
		return v
	}
	return missing
}
