package server

import (
	"errors"

	"github.com/ridge/parallel"
	"go.uber.org/zap"

	"github.com/Brownie44l1/minihttp/internal/request"
	"github.com/Brownie44l1/minihttp/internal/response"
	"github.com/Brownie44l1/minihttp/internal/router"
	"github.com/Brownie44l1/minihttp/internal/session"
)

// dispatch turns a parsed request, or the error that prevented parsing, into
// the response to write. It always returns a response.
func (s *Server) dispatch(req *request.Request, parseErr error) *response.Response {
	var resp *response.Response

	if parseErr != nil {
		s.bindSession(req)
		resp = s.errorResponse(req, parseErrorStatus(parseErr))
	} else {
		var err error
		resp, err = s.pipeline.RunBefore(req)
		if err != nil {
			s.reportPanic("before-step", req, err)
			resp = s.errorResponse(req, response.StatusInternalServerError)
		}
		bound := s.bindSession(req)
		switch {
		case resp != nil:
		case bound:
			resp = s.route(req)
		default:
			resp = s.errorResponse(req, response.StatusInternalServerError)
		}
	}

	s.decorate(req, resp)
	s.pipeline.RunAfter(req, resp, func(err error) {
		s.reportPanic("after-step", req, err)
		*resp = *s.errorResponse(req, response.StatusInternalServerError)
	})
	s.decorate(req, resp)
	return resp
}

// route resolves the request against the routes, then the static mappings
func (s *Server) route(req *request.Request) *response.Response {
	handler, params, err := s.router.Resolve(req.Method, req.Path)
	if err == nil {
		return s.invoke(handler, req, params)
	}

	body, mime, err := s.static.Resolve(req.Path)
	if err == nil {
		return response.New(response.StatusOK, body, mime)
	}

	return s.errorResponse(req, response.StatusNotFound)
}

func (s *Server) invoke(handler router.Handler, req *request.Request, params router.Params) *response.Response {
	var resp *response.Response
	if err := protect(func() { resp = handler(req, params) }); err != nil {
		s.reportPanic("handler", req, err)
		return s.errorResponse(req, response.StatusInternalServerError)
	}
	if resp == nil {
		s.logger.Error("Handler returned no response", zap.String("path", truncate(req.Path)))
		return s.errorResponse(req, response.StatusInternalServerError)
	}
	return resp
}

// errorResponse builds the response for code through the registered error
// handler, falling back to the default body
func (s *Server) errorResponse(req *request.Request, code response.StatusCode) *response.Response {
	handler, ok := s.errorHandlers[code]
	if !ok {
		return response.Error(code)
	}

	var resp *response.Response
	if err := protect(func() { resp = handler(req, code) }); err != nil {
		s.reportPanic("error handler", req, err)
		return response.Error(response.StatusInternalServerError)
	}
	if resp == nil {
		return response.Error(code)
	}
	return resp
}

// bindSession attaches the client's session to req, creating it when the
// client presents no identifier or one the store does not know. It is a no-op
// once a session is bound. It reports false if no session could be bound.
func (s *Server) bindSession(req *request.Request) bool {
	if req.Session != nil {
		return true
	}

	id, issued, err := s.sessions.Identify(req.Header("Cookie"))
	if err != nil {
		s.logger.Error("Failed to issue session identifier", zap.Error(err))
		return false
	}
	sess, created := s.sessions.Ensure(id)
	if created {
		s.logger.Debug("Session created", zap.String("session", truncate(id)), zap.Bool("issued", issued))
	}
	req.Session = sess
	return true
}

// decorate adds the headers every response carries
func (s *Server) decorate(req *request.Request, resp *response.Response) {
	if req.Session != nil {
		resp.SetHeader("Set-Cookie", session.SetCookie(req.Session.ID))
	}
	markClose(resp)
}

func (s *Server) reportPanic(where string, req *request.Request, err error) {
	s.metrics.panics.Inc()

	var p parallel.ErrPanic
	if errors.As(err, &p) {
		s.logger.Error("Recovered from panic",
			zap.String("in", where),
			zap.String("method", truncate(req.Method)),
			zap.String("path", truncate(req.Path)),
			zap.Any("panic", p.Value),
			zap.ByteString("stack", p.Stack),
		)
		return
	}
	s.logger.Error("Step failed", zap.String("in", where), zap.Error(err))
}

// parseErrorStatus maps a parse failure to the status sent to the client
func parseErrorStatus(err error) response.StatusCode {
	switch {
	case errors.Is(err, request.ErrHeaderTooLarge):
		return response.StatusRequestHeaderFieldsTooLarge
	case errors.Is(err, request.ErrBodyTooLarge):
		return response.StatusRequestEntityTooLarge
	case errors.Is(err, request.ErrRequestTimeout):
		return response.StatusRequestTimeout
	default:
		return response.StatusBadRequest
	}
}
