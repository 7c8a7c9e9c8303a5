package protocol

import (
	"fmt"
	"strings"
)

// Request is one decoded request line: a command token followed by key:value pairs
type Request struct {
	raw     string
	command string
}

// NewRequest wraps a raw request line. Parameters are parsed lazily by Params.
func NewRequest(line string) Request {
	return Request{raw: line, command: CommandOf(line)}
}

// Command returns the first whitespace-separated token, or "" for a blank line
func (r Request) Command() string {
	return r.command
}

// Raw returns the line as received
func (r Request) Raw() string {
	return r.raw
}

// Params parses the key:value pairs that follow the command
func (r Request) Params() (Params, error) {
	return ParseParams(r.raw)
}

// Params maps parameter keys to values for one request
type Params map[string]string

// Get returns the value for key and whether it was present
func (p Params) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// CommandOf extracts the command token from a request line
func CommandOf(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// AddrKey is the one parameter whose value may contain colons (host:port)
const AddrKey = "addr"

// ParseParams parses every token after the command as key:value. A token
// without a colon, with an empty key, or with more than one colon is an
// ErrBadRequestParam, except that AddrKey values keep everything after the
// first colon (addr:127.0.0.1:9000). Repeated keys keep the last value.
func ParseParams(line string) (Params, error) {
	fields := strings.Fields(line)
	params := make(Params, len(fields))
	if len(fields) < 2 {
		return params, nil
	}

	for _, token := range fields[1:] {
		key, value, found := strings.Cut(token, ":")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: %q is not key:value", ErrBadRequestParam, token)
		}
		if key != AddrKey && strings.Contains(value, ":") {
			return nil, fmt.Errorf("%w: %q has more than one colon", ErrBadRequestParam, token)
		}
		params[key] = value
	}

	return params, nil
}

// FormatRequest builds a request line from a command and ordered key/value pairs.
// It panics if kv has an odd length.
func FormatRequest(command string, kv ...string) string {
	if len(kv)%2 != 0 {
		panic("protocol: FormatRequest needs key/value pairs")
	}
	var b strings.Builder
	b.WriteString(command)
	for i := 0; i < len(kv); i += 2 {
		b.WriteByte(' ')
		b.WriteString(kv[i])
		b.WriteByte(':')
		b.WriteString(kv[i+1])
	}
	return b.String()
}
