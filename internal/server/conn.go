package server

import (
	"errors"
	"io"
	"net"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/Brownie44l1/minihttp/internal/request"
	"github.com/Brownie44l1/minihttp/internal/response"
)

// serveConn handles the single exchange carried by conn
func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	s.metrics.activeConnections.Inc()
	defer s.metrics.activeConnections.Dec()

	logger := s.logger.With(zap.Stringer("remoteAddr", conn.RemoteAddr()))
	defer func() {
		if p := recover(); p != nil {
			s.metrics.panics.Inc()
			logger.Error("Connection handler panicked",
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	started := time.Now()
	req, err := s.readRequest(conn)
	if errors.Is(err, io.EOF) {
		logger.Debug("Connection closed before a request was sent")
		return
	}
	if err != nil {
		logger.Debug("Failed to read request", zap.Error(err))
	}
	if req == nil {
		req = request.New("", "")
	}
	req.RemoteAddr = conn.RemoteAddr().String()

	resp := s.dispatch(req, err)

	elapsed := time.Since(started)
	s.metrics.RecordRequest(resp.StatusCode, elapsed)

	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	w := response.NewWriter(conn)
	if err := w.Write(resp); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
		return
	}
	logger.Debug("Exchange complete",
		zap.Int("requestHeaders", req.Headers.Len()),
		zap.Int("status", int(w.StatusCode())),
		zap.Int64("bytesWritten", w.BytesWritten()),
		zap.Duration("elapsed", elapsed))

	lingerClose(conn)
}

// readRequest parses one request from conn. The idle timeout applies until
// the first byte arrives, the read timeout from then on.
func (s *Server) readRequest(conn net.Conn) (*request.Request, error) {
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	r := &deadlineReader{conn: conn, timeout: s.cfg.ReadTimeout}
	return request.Parse(r, request.Limits{
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
		MaxBodyBytes:   s.cfg.MaxBodyBytes,
	})
}

// deadlineReader moves the read deadline from the idle timeout to the read
// timeout once the request starts arriving
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
	armed   bool
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	n, err := r.conn.Read(p)
	if n > 0 && !r.armed {
		r.armed = true
		_ = r.conn.SetReadDeadline(time.Now().Add(r.timeout))
	}
	return n, err
}
