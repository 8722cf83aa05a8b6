package crm

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a record the CRM reported as absent.
var ErrNotFound = errors.New("crm: record not found")

// APIError is a non-success response from the CRM.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("crm api error: status %d (%s)", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("crm api error: status %d", e.StatusCode)
}

// UpstreamError wraps any failure of a gateway operation. Callers must not assume partial success.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("crm %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Operation names the gateway call that failed.
func (e *UpstreamError) Operation() string {
	return e.Op
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
