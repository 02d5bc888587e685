package accesslog

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultFormat is the template used when none is configured.
const DefaultFormat = `%(client_addr)s - "%(request_line)s" %(status_code)s %(status_phrase)s`

var (
	// ErrMalformedTemplate is returned for templates that cannot be parsed.
	ErrMalformedTemplate = errors.New("malformed log format")
	// ErrUnknownPlaceholder is returned for placeholder names with no atom.
	ErrUnknownPlaceholder = errors.New("unknown log format placeholder")
)

// conversions maps a template conversion character to the fmt verb that
// renders it.
var conversions = map[byte]byte{
	's': 'v',
	'r': 'q',
	'd': 'd',
	'i': 'd',
	'f': 'f',
	'F': 'f',
	'e': 'e',
	'E': 'E',
	'g': 'g',
	'G': 'G',
	'x': 'x',
	'X': 'X',
	'o': 'o',
}

const flagChars = "#0- +.123456789"

// Template is a compiled log line format. Placeholders are written as
// %(name)s, optionally with printf flags, width and precision before the
// conversion character, e.g. %(elapsed).3f. A literal percent is %%.
//
// A compiled Template yields a printf format string plus one argument per
// placeholder, so sinks receive raw values rather than a rendered line.
type Template struct {
	source string
	format string
	fields []field
}

// Compile parses source into a Template.
func Compile(source string) (*Template, error) {
	var (
		b      strings.Builder
		fields []field
	)

	for i := 0; i < len(source); {
		if source[i] != '%' {
			b.WriteByte(source[i])
			i++
			continue
		}
		if i+1 >= len(source) {
			return nil, fmt.Errorf("%w: dangling %% at offset %d", ErrMalformedTemplate, i)
		}
		if source[i+1] == '%' {
			b.WriteString("%%")
			i += 2
			continue
		}
		if source[i+1] != '(' {
			return nil, fmt.Errorf("%w: expected %%(name) at offset %d", ErrMalformedTemplate, i)
		}

		end := strings.IndexByte(source[i+2:], ')')
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated placeholder at offset %d", ErrMalformedTemplate, i)
		}
		name := source[i+2 : i+2+end]

		specStart := i + 2 + end + 1
		k := specStart
		for k < len(source) && strings.IndexByte(flagChars, source[k]) >= 0 {
			k++
		}
		if k >= len(source) {
			return nil, fmt.Errorf("%w: placeholder %q has no conversion", ErrMalformedTemplate, name)
		}
		verb, ok := conversions[source[k]]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported conversion %q for %q", ErrMalformedTemplate, source[k], name)
		}

		f, err := parseField(name)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)

		b.WriteByte('%')
		b.WriteString(source[specStart:k])
		b.WriteByte(verb)
		i = k + 1
	}

	return &Template{source: source, format: b.String(), fields: fields}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(source string) *Template {
	t, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the template source.
func (t *Template) String() string {
	return t.source
}

// Format returns the printf format string handed to sinks.
func (t *Template) Format() string {
	return t.format
}

// Fields returns the placeholder names in argument order.
func (t *Template) Fields() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.name
	}
	return names
}

// args resolves one value per placeholder for rec.
func (t *Template) args(rec *record) []any {
	args := make([]any, len(t.fields))
	for i, f := range t.fields {
		args[i] = f.value(rec)
	}
	return args
}
