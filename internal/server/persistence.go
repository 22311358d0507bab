package server

import (
	"io"
	"net"
	"time"

	"github.com/Brownie44l1/minihttp/internal/response"
)

const (
	// lingerTimeout bounds how long unread request bytes are drained after
	// the response has been written
	lingerTimeout  = 500 * time.Millisecond
	lingerMaxBytes = 256 << 10
)

// markClose tells the client that the connection ends with this response.
// Every connection carries exactly one exchange.
func markClose(resp *response.Response) {
	resp.SetHeader("Connection", "close")
}

type closeWriter interface {
	CloseWrite() error
}

// lingerClose half-closes conn and discards what the client is still sending,
// so that closing a socket with unread data does not reset the connection
// before the client has read the response.
func lingerClose(conn net.Conn) {
	cw, ok := conn.(closeWriter)
	if !ok {
		return
	}
	if err := cw.CloseWrite(); err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	_, _ = io.CopyN(io.Discard, conn, lingerMaxBytes)
}
