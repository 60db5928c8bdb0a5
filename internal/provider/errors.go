package provider

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the caller cancels a completion before it resolves.
var ErrCancelled = errors.New("completion cancelled")

// TimeoutError reports that every attempt ran out of time.
type TimeoutError struct {
	Agent    string
	Attempts int
	Timeout  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: agent %s did not answer within %s (%d attempts)", e.Agent, e.Timeout, e.Attempts)
}

// UpstreamError reports a response the agent sent but that could not be used.
type UpstreamError struct {
	Agent  string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream error: agent %s returned status %d", e.Agent, e.Status)
	}
	return fmt.Sprintf("upstream error: agent %s returned status %d: %s", e.Agent, e.Status, e.Body)
}

// TransportError reports a failure below HTTP, such as a refused connection.
type TransportError struct {
	Agent  string
	Detail string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: agent %s: %s", e.Agent, e.Detail)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
