package router

import (
	"errors"
	"strings"

	"github.com/Brownie44l1/minihttp/internal/request"
	"github.com/Brownie44l1/minihttp/internal/response"
)

var ErrNoMatch = errors.New("no matching route")

// Params holds placeholder values bound by a match, keyed by placeholder name
type Params map[string]string

// Handler produces the response for a matched request
type Handler func(req *request.Request, params Params) *response.Response

// Route represents a single route
type Route struct {
	Method  string
	Pattern string
	Handler Handler

	segments []segment
}

// segment is either a literal or a <name> placeholder
type segment struct {
	text    string
	isParam bool
}

// Router maps (method, path pattern) to handlers. Routes are registered
// before serving starts; Resolve only reads and is safe for concurrent use.
type Router struct {
	routes []*Route
}

// New creates a new router
func New() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

// Handle registers a new route. Patterns are tried in registration order.
func (r *Router) Handle(method, pattern string, handler Handler) {
	if handler == nil {
		panic("router: nil handler for " + method + " " + pattern)
	}

	r.routes = append(r.routes, &Route{
		Method:   strings.ToUpper(method),
		Pattern:  pattern,
		Handler:  handler,
		segments: compile(pattern),
	})
}

// GET is a shortcut for Handle("GET", ...)
func (r *Router) GET(pattern string, handler Handler) {
	r.Handle("GET", pattern, handler)
}

// POST is a shortcut for Handle("POST", ...)
func (r *Router) POST(pattern string, handler Handler) {
	r.Handle("POST", pattern, handler)
}

// PUT is a shortcut for Handle("PUT", ...)
func (r *Router) PUT(pattern string, handler Handler) {
	r.Handle("PUT", pattern, handler)
}

// DELETE is a shortcut for Handle("DELETE", ...)
func (r *Router) DELETE(pattern string, handler Handler) {
	r.Handle("DELETE", pattern, handler)
}

// PATCH is a shortcut for Handle("PATCH", ...)
func (r *Router) PATCH(pattern string, handler Handler) {
	r.Handle("PATCH", pattern, handler)
}

// Resolve returns the handler of the first registered route matching method
// and path, with the placeholder values it bound.
func (r *Router) Resolve(method, path string) (Handler, Params, error) {
	method = strings.ToUpper(method)
	parts := split(path)

	for _, route := range r.routes {
		if route.Method != method {
			continue
		}
		if params, ok := match(route.segments, parts); ok {
			return route.Handler, params, nil
		}
	}

	return nil, nil, ErrNoMatch
}

// Routes returns the registered routes in registration order
func (r *Router) Routes() []Route {
	routes := make([]Route, len(r.routes))
	for i, route := range r.routes {
		routes[i] = *route
	}
	return routes
}

func split(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// compile turns "/users/<id>/posts" into its segments. A placeholder needs a
// name; "<>" is matched literally.
func compile(pattern string) []segment {
	parts := split(pattern)
	segments := make([]segment, len(parts))

	for i, part := range parts {
		if len(part) > 2 && part[0] == '<' && part[len(part)-1] == '>' {
			segments[i] = segment{text: part[1 : len(part)-1], isParam: true}
		} else {
			segments[i] = segment{text: part}
		}
	}

	return segments
}

// match requires equal segment counts; placeholders bind one non-empty
// segment each and literals compare exactly.
func match(segments []segment, parts []string) (Params, bool) {
	if len(segments) != len(parts) {
		return nil, false
	}

	params := make(Params)
	for i, seg := range segments {
		switch {
		case seg.isParam:
			if parts[i] == "" {
				return nil, false
			}
			params[seg.text] = parts[i]
		case seg.text != parts[i]:
			return nil, false
		}
	}

	return params, true
}
