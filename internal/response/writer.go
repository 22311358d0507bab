package response

import (
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// CR and LF would let a header value start a new header or end the block
var headerSanitizer = strings.NewReplacer("\r", " ", "\n", " ")

// AppendWire appends the wire form of r to dst: the status line, Content-Type
// and Content-Length, the remaining headers, a blank line and the body.
func (r *Response) AppendWire(dst []byte) []byte {
	dst = append(dst, "HTTP/1.1 "...)
	dst = strconv.AppendInt(dst, int64(r.StatusCode), 10)
	dst = append(dst, ' ')
	dst = append(dst, reasonPhrase...)
	dst = append(dst, "\r\n"...)

	dst = appendHeader(dst, "Content-Type", r.ContentType)
	dst = appendHeader(dst, "Content-Length", strconv.Itoa(len(r.Body)))

	for _, name := range slices.Sorted(maps.Keys(r.Headers)) {
		if strings.EqualFold(name, "Content-Type") || strings.EqualFold(name, "Content-Length") {
			continue
		}
		dst = appendHeader(dst, name, r.Headers[name])
	}

	dst = append(dst, "\r\n"...)
	return append(dst, r.Body...)
}

func appendHeader(dst []byte, name, value string) []byte {
	dst = append(dst, headerSanitizer.Replace(name)...)
	dst = append(dst, ": "...)
	dst = append(dst, headerSanitizer.Replace(value)...)
	return append(dst, "\r\n"...)
}

// Bytes returns the wire form of r
func (r *Response) Bytes() []byte {
	return r.AppendWire(make([]byte, 0, 256+len(r.Body)))
}

// Writer writes serialized responses to a connection and remembers what
// was sent, for logging and metrics.
type Writer struct {
	w          io.Writer
	statusCode StatusCode
	written    int64
}

// NewWriter creates a new response writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write serializes resp and writes it in a single call
func (w *Writer) Write(resp *Response) error {
	n, err := w.w.Write(resp.Bytes())
	w.written += int64(n)
	w.statusCode = resp.StatusCode
	return err
}

func (w *Writer) StatusCode() StatusCode {
	return w.statusCode
}

func (w *Writer) BytesWritten() int64 {
	return w.written
}
