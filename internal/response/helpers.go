package response

import (
	"encoding/json"
	"fmt"
)

const (
	ContentTypeText = "text/plain"
	ContentTypeHTML = "text/html"
	ContentTypeJSON = "application/json"
)

// Text creates a plain text response
func Text(code StatusCode, body string) *Response {
	return New(code, []byte(body), ContentTypeText)
}

// HTML creates an HTML response
func HTML(code StatusCode, body string) *Response {
	return New(code, []byte(body), ContentTypeHTML)
}

// JSON creates a JSON response from an already encoded body
func JSON(code StatusCode, body string) *Response {
	return New(code, []byte(body), ContentTypeJSON)
}

// MarshalJSON encodes v and wraps it in a JSON response
func MarshalJSON(code StatusCode, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return New(code, body, ContentTypeJSON), nil
}

// Error creates the default error response: a plain text "<code> Error" body
func Error(code StatusCode) *Response {
	return Text(code, fmt.Sprintf("%d Error", code))
}

// Redirect creates a redirect response to location
func Redirect(code StatusCode, location string) *Response {
	return Text(code, "").WithHeader("Location", location)
}
