package response

import "strings"

// Response is a complete HTTP response. Content-Type and Content-Length are
// derived from ContentType and Body when serialized; Headers holds every
// other field.
type Response struct {
	StatusCode  StatusCode
	ContentType string
	Headers     map[string]string
	Body        []byte
}

// New creates a response with the given status, body and content type
func New(code StatusCode, body []byte, contentType string) *Response {
	return &Response{
		StatusCode:  code,
		ContentType: contentType,
		Headers:     make(map[string]string),
		Body:        body,
	}
}

// WithHeader sets a header and returns the response, for chaining
func (r *Response) WithHeader(name, value string) *Response {
	r.SetHeader(name, value)
	return r
}

// SetHeader replaces any header with the same case-insensitive name
func (r *Response) SetHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	for k := range r.Headers {
		if strings.EqualFold(k, name) {
			delete(r.Headers, k)
		}
	}
	r.Headers[name] = value
}

// Header looks a header up by case-insensitive name
func (r *Response) Header(name string) (string, bool) {
	if v, ok := r.Headers[name]; ok {
		return v, true
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
