package headers

import (
	"bytes"
	"errors"
	"maps"
	"strings"
)

var ErrLineFolding = errors.New("obsolete line folding not supported")

// Headers holds request header fields keyed by lower-cased name. A repeated
// name keeps the last value seen.
type Headers struct {
	headers map[string]string
}

func NewHeaders() *Headers {
	return &Headers{
		headers: make(map[string]string),
	}
}

// Get returns the value for a header
func (h *Headers) Get(key string) (string, bool) {
	v, ok := h.headers[strings.ToLower(key)]
	return v, ok
}

// Set replaces the value for a header
func (h *Headers) Set(key, value string) {
	h.headers[strings.ToLower(key)] = value
}

// Del removes a header
func (h *Headers) Del(key string) {
	delete(h.headers, strings.ToLower(key))
}

func (h *Headers) Len() int {
	return len(h.headers)
}

// All returns a copy of every header, keyed by lower-cased name
func (h *Headers) All() map[string]string {
	return maps.Clone(h.headers)
}

// SplitLine returns the first line of data without its terminator, accepting
// both CRLF and bare LF. n is the number of bytes the line occupies including
// the terminator, or 0 when no complete line is buffered yet.
func SplitLine(data []byte) (line []byte, n int) {
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		return nil, 0
	}
	return bytes.TrimSuffix(data[:idx], []byte("\r")), idx + 1
}

// Parse parses header lines from raw bytes until the empty line that ends the
// header block. It returns the bytes consumed and whether the block ended.
func (h *Headers) Parse(data []byte) (int, bool, error) {
	read := 0

	for {
		line, n := SplitLine(data[read:])
		if n == 0 {
			// Need more data
			return read, false, nil
		}
		read += n

		if len(line) == 0 {
			return read, true, nil
		}

		if line[0] == ' ' || line[0] == '\t' {
			return read, false, ErrLineFolding
		}

		name, value, ok := parseHeader(line)
		if !ok {
			// Lines without a colon carry nothing usable
			continue
		}
		h.headers[name] = value
	}
}

func parseHeader(line []byte) (string, string, bool) {
	name, value, ok := bytes.Cut(line, []byte(":"))
	if !ok {
		return "", "", false
	}

	name = bytes.TrimSpace(name)
	if len(name) == 0 {
		return "", "", false
	}

	return strings.ToLower(string(name)), string(bytes.TrimSpace(value)), true
}
