package ollama

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse is returned when a body or stream line cannot be decoded.
	ErrMalformedResponse = errors.New("ollama: malformed response")
	// ErrStreamConsumed is returned when a stream is ranged over a second time.
	ErrStreamConsumed = errors.New("ollama: stream already consumed")
)

// TransportError covers connection failures, timeouts and non-2xx statuses.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ollama: %s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("ollama: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err (or anything it wraps) is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
