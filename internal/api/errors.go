package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// APIError is a non-2xx response from the backend
type APIError struct {
	Method   string
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return e.Message
}

// TransportError wraps a failure to reach the backend or read its response
type TransportError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is an APIError with status 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// newAPIError builds the error for a failed response. The body's "message"
// field wins, then a FastAPI "detail" string, then a synthesized message.
func newAPIError(method, endpoint string, status int, body []byte) *APIError {
	msg := ""
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		if m := parsed.Get("message"); m.Type == gjson.String && m.String() != "" {
			msg = m.String()
		} else if d := parsed.Get("detail"); d.Type == gjson.String && d.String() != "" {
			msg = d.String()
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP error! status: %d", status)
	}
	return &APIError{Method: method, Endpoint: endpoint, Status: status, Message: msg}
}
