package request

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleGETRequest(t *testing.T) {
	data := "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/index.html", req.Path)
	assert.Equal(t, "HTTP/1.1", req.Version)
	assert.Equal(t, data, req.Raw)

	host, ok := req.Headers.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)
	assert.Len(t, req.Body, 0)
}

func TestMethodIsUpperCased(t *testing.T) {
	req, err := RequestFromReader(strings.NewReader("get / HTTP/1.1\r\n\r\n"))

	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
}

func TestTwoTokenRequestLine(t *testing.T) {
	req, err := RequestFromReader(strings.NewReader("GET /path\r\n\r\n"))

	require.NoError(t, err)
	assert.Equal(t, "/path", req.Path)
	assert.Equal(t, "", req.Version)
}

func TestQueryParsing(t *testing.T) {
	data := "GET /search?q=go&page=2&flag&q=second&empty= HTTP/1.1\r\n\r\n"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, "/search", req.Path)
	assert.Equal(t, "/search?q=go&page=2&flag&q=second&empty=", req.Target)
	assert.Equal(t, map[string]string{"q": "go", "page": "2", "empty": ""}, req.Query)

	v, ok := req.QueryParam("q")
	assert.True(t, ok)
	assert.Equal(t, "go", v)
	_, ok = req.QueryParam("flag")
	assert.False(t, ok)
}

func TestQueryValueKeepsSecondEquals(t *testing.T) {
	req, err := RequestFromReader(strings.NewReader("GET /?expr=a=b HTTP/1.1\r\n\r\n"))

	require.NoError(t, err)
	assert.Equal(t, "a=b", req.Query["expr"])
}

func TestDuplicateHeadersLastWins(t *testing.T) {
	data := "GET / HTTP/1.1\r\nX-Trace: one\r\nx-trace: two\r\n\r\n"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, "two", req.Header("X-Trace"))
}

func TestPOSTWithContentLength(t *testing.T) {
	data := "POST /api/data HTTP/1.1\r\n" +
		"Host: api.example.com\r\n" +
		"Content-Length: 13\r\n" +
		"\r\n" +
		"Hello, World!"

	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/api/data", req.Path)
	assert.Equal(t, int64(13), req.ContentLength())
	assert.Equal(t, "Hello, World!", string(req.Body))
}

func TestBodyBeyondContentLengthIsIgnored(t *testing.T) {
	data := "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nHelloTrailing"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, "Hello", string(req.Body))
}

func TestNonNumericContentLengthYieldsEmptyBody(t *testing.T) {
	data := "POST / HTTP/1.1\r\nContent-Length: abc\r\n\r\nHello"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Empty(t, req.Body)
	assert.Equal(t, int64(-1), req.ContentLength())
}

func TestNoContentLengthYieldsEmptyBody(t *testing.T) {
	data := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nHello\r\n0\r\n\r\n"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Empty(t, req.Body)
}

func TestBareLFRequest(t *testing.T) {
	data := "POST /echo HTTP/1.1\nContent-Length: 2\n\nhi"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, "/echo", req.Path)
	assert.Equal(t, "hi", string(req.Body))
}

func TestMalformedRequestLine(t *testing.T) {
	data := "GET\r\nHost: example.com\r\n\r\n"
	_, err := RequestFromReader(strings.NewReader(data))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestEmptyRequestLine(t *testing.T) {
	_, err := RequestFromReader(strings.NewReader("\r\n\r\n"))

	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestLineFoldingIsMalformed(t *testing.T) {
	data := "GET / HTTP/1.1\r\nX-A: 1\r\n folded\r\n\r\n"
	_, err := RequestFromReader(strings.NewReader(data))

	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestHeaderTooLarge(t *testing.T) {
	data := "GET / HTTP/1.1\r\nX-Big: " + strings.Repeat("a", 200) + "\r\n\r\n"
	_, err := Parse(strings.NewReader(data), Limits{MaxHeaderBytes: 64})

	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestHeaderTooLargeWithoutTerminator(t *testing.T) {
	reader := &slowReader{data: []byte("GET /" + strings.Repeat("a", 10000)), chunkSize: 512}
	_, err := Parse(reader, Limits{MaxHeaderBytes: 1024})

	assert.ErrorIs(t, err, ErrHeaderTooLarge)
}

func TestHeaderAtExactLimit(t *testing.T) {
	data := "GET / HTTP/1.1\r\n\r\n"
	_, err := Parse(strings.NewReader(data), Limits{MaxHeaderBytes: len(data)})

	assert.NoError(t, err)
}

func TestBodyTooLarge(t *testing.T) {
	data := "POST / HTTP/1.1\r\nContent-Length: 100\r\n\r\n"
	_, err := Parse(strings.NewReader(data), Limits{MaxBodyBytes: 10})

	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestFailureAfterRequestLineReturnsPartialRequest(t *testing.T) {
	data := "POST /upload?x=1 HTTP/1.1\r\nCookie: SESSIONID=abc123\r\nContent-Length: 100\r\n\r\n"
	req, err := Parse(strings.NewReader(data), Limits{MaxBodyBytes: 10})

	assert.ErrorIs(t, err, ErrBodyTooLarge)
	require.NotNil(t, req)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/upload", req.Path)
	assert.Equal(t, "1", req.Query["x"])
	assert.Equal(t, "SESSIONID=abc123", req.Header("Cookie"))
}

func TestShortBodyReturnsPartialRequest(t *testing.T) {
	data := "POST /echo HTTP/1.1\r\nCookie: SESSIONID=abc123\r\nContent-Length: 10\r\n\r\nabc"
	req, err := RequestFromReader(strings.NewReader(data))

	assert.ErrorIs(t, err, ErrMalformedRequest)
	require.NotNil(t, req)
	assert.Equal(t, "/echo", req.Path)
	assert.Equal(t, "SESSIONID=abc123", req.Header("Cookie"))
	assert.Empty(t, req.Body)
}

func TestBadRequestLineReturnsNoRequest(t *testing.T) {
	req, err := RequestFromReader(strings.NewReader("GET\r\nCookie: SESSIONID=abc123\r\n\r\n"))

	assert.ErrorIs(t, err, ErrMalformedRequest)
	assert.Nil(t, req)
}

func TestContentLengthMustBeDigits(t *testing.T) {
	tests := []struct {
		value string
		want  int64
	}{
		{"5", 5},
		{" 5 ", 5},
		{"0", 0},
		{"+5", -1},
		{"-5", -1},
		{"5a", -1},
		{"0x5", -1},
		{"", -1},
		{"1 000", -1},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			data := "POST / HTTP/1.1\r\nContent-Length: " + tt.value + "\r\n\r\nHello"
			req, err := RequestFromReader(strings.NewReader(data))

			require.NoError(t, err)
			assert.Equal(t, tt.want, req.ContentLength())
			if tt.want < 0 {
				assert.Empty(t, req.Body)
			}
		})
	}
}

func TestOverflowingContentLengthIsTooLarge(t *testing.T) {
	data := "POST / HTTP/1.1\r\nContent-Length: 99999999999999999999\r\n\r\n"
	_, err := RequestFromReader(strings.NewReader(data))

	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestIncrementalParsing(t *testing.T) {
	// Simulate slow reader that returns data in small pieces
	data := []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	reader := &slowReader{data: data, chunkSize: 5}

	req, err := RequestFromReader(reader)

	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/", req.Path)
	assert.Equal(t, "example.com", req.Header("host"))
}

func TestPartialBodyRead(t *testing.T) {
	// Body arrives in multiple reads
	data := "POST / HTTP/1.1\r\n" +
		"Content-Length: 20\r\n" +
		"\r\n" +
		"12345"

	reader := &slowReader{
		data:      []byte(data + "67890" + "1234567890"),
		chunkSize: len(data),
	}

	req, err := RequestFromReader(reader)

	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890", string(req.Body))
}

func TestLargeBodyAcrossManyReads(t *testing.T) {
	body := strings.Repeat("x", 50000)
	data := "PUT /upload HTTP/1.1\r\nContent-Length: 50000\r\n\r\n" + body
	reader := &slowReader{data: []byte(data), chunkSize: 1000}

	req, err := RequestFromReader(reader)

	require.NoError(t, err)
	assert.Equal(t, body, string(req.Body))
}

func TestUnexpectedEOFInBody(t *testing.T) {
	// Content-Length says 100 bytes, but we only have 10
	data := "POST / HTTP/1.1\r\n" +
		"Content-Length: 100\r\n" +
		"\r\n" +
		"0123456789"

	_, err := RequestFromReader(strings.NewReader(data))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRequest)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestUnexpectedEOFInHeaders(t *testing.T) {
	_, err := RequestFromReader(strings.NewReader("GET / HTTP/1.1\r\nHost: a"))

	assert.ErrorIs(t, err, ErrMalformedRequest)
}

func TestRequestDeliveredWithEOF(t *testing.T) {
	data := "GET /x HTTP/1.1\r\nHost: a\r\n\r\n"
	reader := &eofReader{data: []byte(data)}

	req, err := RequestFromReader(reader)

	require.NoError(t, err)
	assert.Equal(t, "/x", req.Path)
}

func TestEmptyConnection(t *testing.T) {
	_, err := RequestFromReader(strings.NewReader(""))

	assert.ErrorIs(t, err, io.EOF)
	assert.NotErrorIs(t, err, ErrMalformedRequest)
}

func TestReadTimeout(t *testing.T) {
	reader := &errReader{data: []byte("GET / HTTP/1.1\r\n"), err: os.ErrDeadlineExceeded}

	_, err := RequestFromReader(reader)

	assert.ErrorIs(t, err, ErrRequestTimeout)
}

func TestOtherReadError(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := RequestFromReader(&errReader{err: boom})

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrRequestTimeout)
}

func TestMultipleMethods(t *testing.T) {
	methods := []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

	for _, method := range methods {
		data := method + " / HTTP/1.1\r\nHost: example.com\r\n\r\n"
		req, err := RequestFromReader(strings.NewReader(data))

		require.NoError(t, err, "Method %s should be valid", method)
		assert.Equal(t, method, req.Method)
	}
}

func TestFormData(t *testing.T) {
	data := "POST /form HTTP/1.1\r\nContent-Length: 20\r\n\r\nname=ada&lang=go&bad"
	req, err := RequestFromReader(strings.NewReader(data))

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "ada", "lang": "go"}, req.FormData())
}

func TestNew(t *testing.T) {
	req := New("post", "/a/b?x=1")

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/a/b", req.Path)
	assert.Equal(t, "1", req.Query["x"])
	assert.NotNil(t, req.Headers)
}

// slowReader simulates a network connection that provides data slowly
type slowReader struct {
	data      []byte
	chunkSize int
	offset    int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.offset >= len(r.data) {
		return 0, io.EOF
	}

	n := r.chunkSize
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data)-r.offset {
		n = len(r.data) - r.offset
	}

	copy(p, r.data[r.offset:r.offset+n])
	r.offset += n
	return n, nil
}

// errReader yields data once, then fails with err
type errReader struct {
	data []byte
	err  error
	done bool
}

func (r *errReader) Read(p []byte) (int, error) {
	if !r.done && len(r.data) > 0 {
		r.done = true
		return copy(p, r.data), nil
	}
	return 0, r.err
}

// eofReader returns all of its data together with io.EOF
type eofReader struct {
	data []byte
}

func (r *eofReader) Read(p []byte) (int, error) {
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, io.EOF
}
