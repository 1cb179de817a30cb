package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when the remote request outlives its deadline.
	ErrTimeout = errors.New("remote request timed out")

	// ErrMalformedResponse is returned when the response body is not a decodable activity list.
	ErrMalformedResponse = errors.New("malformed remote response")

	// ErrUnavailable is returned when the remote service cannot be reached.
	ErrUnavailable = errors.New("remote service unavailable")
)

// ServerError is a decoded error payload returned by the remote service.
type ServerError struct {
	Code        string
	Description string
	HTTPStatus  int
}

func (e *ServerError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("remote error %s (http %d): %s", e.Code, e.HTTPStatus, e.Description)
	}
	return fmt.Sprintf("remote error %s: %s", e.Code, e.Description)
}
