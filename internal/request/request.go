package request

import (
	"errors"
	"io"

	"github.com/Brownie44l1/minihttp/internal/headers"
	"github.com/Brownie44l1/minihttp/internal/session"
)

var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrHeaderTooLarge   = errors.New("request header too large")
	ErrBodyTooLarge     = errors.New("request body too large")
	ErrRequestTimeout   = errors.New("request read timed out")
)

// Request is one parsed HTTP request. Middleware may mutate it before
// dispatch; after that it is read-only.
type Request struct {
	Method  string // upper case
	Target  string // request-target as received, query included
	Path    string // Target without the query component
	Version string // empty when the request line carried only two tokens
	Raw     string // request line and header block, for diagnostics
	Headers *headers.Headers
	Query   map[string]string
	Body    []byte

	// RemoteAddr is the peer address of the connection, set by the server.
	RemoteAddr string

	// Session is bound by the server once the session identifier has been
	// resolved. It is nil before that point.
	Session *session.Session
}

// New returns an empty request for the given method and target. It is used by
// the server for synthesized exchanges and by tests.
func New(method, target string) *Request {
	r := &Request{
		Headers: headers.NewHeaders(),
		Query:   make(map[string]string),
	}
	r.setRequestLine(method, target, "")
	return r
}

// RequestFromReader parses a single request using the default limits
func RequestFromReader(reader io.Reader) (*Request, error) {
	return Parse(reader, Limits{})
}

// Parse reads and parses a single request from reader. When parsing fails
// after the request line was read, the partially parsed request is returned
// along with the error; its headers hold whatever arrived before the failure.
func Parse(reader io.Reader, limits Limits) (*Request, error) {
	req := &Request{
		Headers: headers.NewHeaders(),
		Query:   make(map[string]string),
	}
	p := newParser(limits.withDefaults())
	if err := p.parseFromReader(reader, req); err != nil {
		if req.Method == "" {
			return nil, err
		}
		return req, err
	}
	return req, nil
}

// Header returns a header value, "" when absent
func (r *Request) Header(name string) string {
	v, _ := r.Headers.Get(name)
	return v
}

// QueryParam returns a query parameter and whether it was present
func (r *Request) QueryParam(key string) (string, bool) {
	v, ok := r.Query[key]
	return v, ok
}

// ContentLength returns the declared body length, or -1 when the header is
// missing or not a non-negative integer.
func (r *Request) ContentLength() int64 {
	v, ok := r.Headers.Get("content-length")
	if !ok {
		return -1
	}
	return parseContentLength(v)
}
