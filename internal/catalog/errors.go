package catalog

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for the failure classes of FetchProduct. Use errors.Is
// against these; the concrete types carry details.
var (
	ErrNetwork    = errors.New("catalog: network error")
	ErrHTTPStatus = errors.New("catalog: unexpected http status")
	ErrDecode     = errors.New("catalog: decode error")
)

// NetworkError indicates the request never produced an HTTP response
// (DNS, connection reset, timeout, cancellation).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("catalog: network: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// StatusError indicates a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: http status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrHTTPStatus }

// DecodeError indicates a response body that is not a catalog envelope.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("catalog: decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
