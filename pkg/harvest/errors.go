package harvest

import (
	"errors"
	"fmt"
)

// Common errors returned by the harvester.
var (
	// ErrInvalidPageSize is returned by New when the page size is not positive.
	ErrInvalidPageSize = errors.New("page size must be positive")

	// ErrInterrupted is the abort cause when the run context is cancelled.
	ErrInterrupted = errors.New("harvest interrupted")
)

// ErrorClass classifies a fatal page error.
type ErrorClass string

const (
	// ErrorClassTransport covers connectivity, timeouts and non-2xx responses.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassProtocol covers well-formed error payloads from the source.
	ErrorClassProtocol ErrorClass = "protocol"

	// ErrorClassShape covers responses that do not match the page contract.
	ErrorClassShape ErrorClass = "shape"

	// ErrorClassInterrupted marks a cancelled run.
	ErrorClassInterrupted ErrorClass = "interrupted"
)

// TransportError is a connectivity or HTTP-layer failure.
type TransportError struct {
	// StatusCode is 0 when no response was received.
	StatusCode int
	Timeout    bool
	// Body is the (truncated) response body, if any.
	Body string
	Err  error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("transport error: request timed out: %v", e.Err)
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("transport error (status %d): %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("transport error (status %d): %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError means the source answered with an application-level error.
type ProtocolError struct {
	// Payload is the raw error payload as returned by the source.
	Payload []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("source protocol error: %s", e.Payload)
}

// ShapeError means the response did not carry the expected page fields.
type ShapeError struct {
	Detail  string
	Payload []byte
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape error: %s", e.Detail)
}

// AbortError is the reason a run aborted. It records the cursor of the page
// that could not be fetched.
type AbortError struct {
	Cursor int
	Class  ErrorClass
	Err    error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("aborted at cursor %d: %v", e.Cursor, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

// Classify returns the class of a page error. Unknown errors count as
// transport failures.
func Classify(err error) ErrorClass {
	var (
		transportErr *TransportError
		protocolErr  *ProtocolError
		shapeErr     *ShapeError
	)
	switch {
	case errors.Is(err, ErrInterrupted):
		return ErrorClassInterrupted
	case errors.As(err, &protocolErr):
		return ErrorClassProtocol
	case errors.As(err, &shapeErr):
		return ErrorClassShape
	case errors.As(err, &transportErr):
		return ErrorClassTransport
	default:
		return ErrorClassTransport
	}
}
