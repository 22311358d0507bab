package server

import (
	"runtime/debug"

	"github.com/ridge/parallel"

	"github.com/Brownie44l1/minihttp/internal/request"
	"github.com/Brownie44l1/minihttp/internal/response"
)

// BeforeFunc runs before routing. It may modify the request. Returning a
// non-nil response skips the remaining before-steps and routing.
type BeforeFunc func(req *request.Request) *response.Response

// AfterFunc runs once a response exists, before it is written. It may modify
// the response in place.
type AfterFunc func(req *request.Request, resp *response.Response)

// Middleware bundles a before-step and an after-step that belong together.
// Either may be nil.
type Middleware struct {
	Before BeforeFunc
	After  AfterFunc
}

// Pipeline is the ordered list of steps wrapped around dispatch
type Pipeline struct {
	before []BeforeFunc
	after  []AfterFunc
}

func (p *Pipeline) Before(step BeforeFunc) {
	p.before = append(p.before, step)
}

func (p *Pipeline) After(step AfterFunc) {
	p.after = append(p.after, step)
}

// RunBefore runs the before-steps in order until one produces a response. A
// panicking step stops the chain and is reported through the error.
func (p *Pipeline) RunBefore(req *request.Request) (resp *response.Response, err error) {
	for _, step := range p.before {
		err = protect(func() {
			resp = step(req)
		})
		if err != nil || resp != nil {
			return resp, err
		}
	}
	return nil, nil
}

// RunAfter runs every after-step in order. A panicking step does not prevent
// the following ones from running; onPanic is called for each panic before
// the next step starts.
func (p *Pipeline) RunAfter(req *request.Request, resp *response.Response, onPanic func(error)) {
	for _, step := range p.after {
		if err := protect(func() { step(req, resp) }); err != nil {
			onPanic(err)
		}
	}
}

// protect runs fn, turning a panic into parallel.ErrPanic
func protect(fn func()) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = parallel.ErrPanic{Value: p, Stack: debug.Stack()}
		}
	}()
	fn()
	return nil
}
