package cosclient

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// ServiceError is a failure reported by the remote service itself, such
// as a missing object or a bucket-level access denial.
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("COS service error: %s: %s (HTTP %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("COS service error: %s: %s", e.Code, e.Message)
}

// wrapRemote converts SDK failures into the error taxonomy: API errors
// from the service become *ServiceError, everything else is surfaced as
// a client-side transport error.
func wrapRemote(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, &ServiceError{
			Code:    apiErr.ErrorCode(),
			Message: apiErr.ErrorMessage(),
		})
	}
	return fmt.Errorf("%s: COS client error: %w", op, err)
}
