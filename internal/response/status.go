package response

// StatusCode represents HTTP status codes
type StatusCode int

const (
	// 2xx Success
	StatusOK        StatusCode = 200
	StatusCreated   StatusCode = 201
	StatusAccepted  StatusCode = 202
	StatusNoContent StatusCode = 204

	// 3xx Redirection
	StatusMovedPermanently  StatusCode = 301
	StatusFound             StatusCode = 302
	StatusSeeOther          StatusCode = 303
	StatusNotModified       StatusCode = 304
	StatusTemporaryRedirect StatusCode = 307
	StatusPermanentRedirect StatusCode = 308

	// 4xx Client Error
	StatusBadRequest                  StatusCode = 400
	StatusUnauthorized                StatusCode = 401
	StatusForbidden                   StatusCode = 403
	StatusNotFound                    StatusCode = 404
	StatusMethodNotAllowed            StatusCode = 405
	StatusRequestTimeout              StatusCode = 408
	StatusConflict                    StatusCode = 409
	StatusRequestEntityTooLarge       StatusCode = 413
	StatusUnsupportedMediaType        StatusCode = 415
	StatusTeapot                      StatusCode = 418 // RFC 2324
	StatusTooManyRequests             StatusCode = 429
	StatusRequestHeaderFieldsTooLarge StatusCode = 431

	// 5xx Server Error
	StatusInternalServerError StatusCode = 500
	StatusNotImplemented      StatusCode = 501
	StatusServiceUnavailable  StatusCode = 503
)

// reasonPhrase is sent for every status code. Clients are expected to act on
// the numeric code only.
const reasonPhrase = "OK"

func (c StatusCode) IsClientError() bool {
	return c >= 400 && c < 500
}

func (c StatusCode) IsServerError() bool {
	return c >= 500
}
