package request

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/Brownie44l1/minihttp/internal/headers"
)

// Size limits
const (
	DefaultMaxHeaderBytes = 8 << 10  // request line plus header block
	DefaultMaxBodyBytes   = 10 << 20 // declared Content-Length
)

const readChunkSize = 4096

// Limits bounds what the parser accepts. Zero fields take the defaults.
type Limits struct {
	MaxHeaderBytes int
	MaxBodyBytes   int64
}

func (l Limits) withDefaults() Limits {
	if l.MaxHeaderBytes <= 0 {
		l.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if l.MaxBodyBytes <= 0 {
		l.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return l
}

// parserState represents the current state of the request parser
type parserState int

const (
	stateRequestLine parserState = iota
	stateHeaders
	stateBody
	stateDone
)

// parser accumulates reads until the header block is complete, then reads
// exactly the declared body length.
type parser struct {
	state  parserState
	buffer []byte // bytes read but not yet consumed
	limits Limits

	headerBytes int // bytes consumed by the request line and headers
	raw         []byte
	bodyLen     int64
}

func newParser(limits Limits) *parser {
	return &parser{
		state:  stateRequestLine,
		buffer: make([]byte, 0, readChunkSize),
		limits: limits,
	}
}

func (p *parser) parseFromReader(reader io.Reader, req *Request) error {
	readBuf := make([]byte, readChunkSize)
	received := 0

	for p.state != stateBody && p.state != stateDone {
		consumed, err := p.parse(p.buffer, req)
		if err != nil {
			return err
		}
		if consumed > 0 {
			p.buffer = p.buffer[consumed:]
			continue
		}

		// An unterminated line already past the bound can only grow
		if p.headerBytes+len(p.buffer) > p.limits.MaxHeaderBytes {
			return ErrHeaderTooLarge
		}

		n, err := reader.Read(readBuf)
		if n > 0 {
			p.buffer = append(p.buffer, readBuf[:n]...)
			received += n
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if n > 0 {
					// Parse what arrived alongside the EOF first
					continue
				}
				if received == 0 {
					// Peer closed without sending anything
					return io.EOF
				}
				return fmt.Errorf("%w: %w", ErrMalformedRequest, io.ErrUnexpectedEOF)
			}
			return readError(err)
		}
	}

	if p.state == stateBody {
		if err := p.readBody(reader, req); err != nil {
			return err
		}
	}

	req.Raw = string(p.raw)
	return nil
}

// parse advances the header state machine over buffered data and returns
// the number of bytes consumed.
func (p *parser) parse(data []byte, req *Request) (int, error) {
	switch p.state {
	case stateRequestLine:
		line, n := headers.SplitLine(data)
		if n == 0 {
			return 0, nil
		}
		if err := req.parseRequestLine(string(line)); err != nil {
			return 0, err
		}
		if err := p.account(data[:n]); err != nil {
			return 0, err
		}
		p.state = stateHeaders
		return n, nil

	case stateHeaders:
		n, done, err := req.Headers.Parse(data)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
		}
		if err := p.account(data[:n]); err != nil {
			return 0, err
		}
		if done {
			return n, p.headersDone(req)
		}
		return n, nil

	default:
		return 0, nil
	}
}

func (p *parser) account(consumed []byte) error {
	p.headerBytes += len(consumed)
	if p.headerBytes > p.limits.MaxHeaderBytes {
		return ErrHeaderTooLarge
	}
	p.raw = append(p.raw, consumed...)
	return nil
}

// headersDone decides whether a body follows. Only a numeric Content-Length
// announces one; anything else yields an empty body.
func (p *parser) headersDone(req *Request) error {
	cl := req.ContentLength()
	if cl > p.limits.MaxBodyBytes {
		return ErrBodyTooLarge
	}
	if cl > 0 {
		p.bodyLen = cl
		p.state = stateBody
		return nil
	}
	p.state = stateDone
	return nil
}

// readBody takes whatever body bytes arrived with the headers and reads the
// remainder of the declared length directly from the connection.
func (p *parser) readBody(reader io.Reader, req *Request) error {
	body := make([]byte, p.bodyLen)
	n := copy(body, p.buffer)
	p.buffer = p.buffer[n:]

	if int64(n) < p.bodyLen {
		if _, err := io.ReadFull(reader, body[n:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: body shorter than Content-Length: %w", ErrMalformedRequest, io.ErrUnexpectedEOF)
			}
			return readError(err)
		}
	}

	req.Body = body
	p.state = stateDone
	return nil
}

func readError(err error) error {
	var netErr net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrRequestTimeout, err)
	}
	return fmt.Errorf("read error: %w", err)
}
