package errors

import (
	"fmt"
	"net/http"

	"github.com/Hewenz/pastee/clipview/internal/types"
)

// ClassifyHTTPError determines whether an HTTP error should be retried.
// 4xx client errors (except 408 and 429) are irrecoverable, 5xx and
// network-level errors are recoverable.
func ClassifyHTTPError(statusCode int, body string, underlyingErr error) *ClassifiedError {
	return &ClassifiedError{
		Category:   getHTTPErrorCategory(statusCode),
		StatusCode: statusCode,
		Body:       body,
		Underlying: underlyingErr,
	}
}

// getHTTPErrorCategory maps HTTP status codes to error categories.
func getHTTPErrorCategory(statusCode int) ErrorCategory {
	switch {
	case statusCode >= 400 && statusCode < 500:
		switch statusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return Recoverable
		default:
			return Irrecoverable
		}
	case statusCode >= 500 && statusCode < 600:
		return Recoverable
	default:
		// Unexpected status codes - be conservative
		return Recoverable
	}
}

// NewHTTPError creates a classified error for a non-success response.
// A 404 wraps types.ErrNotFound so callers can match it with errors.Is.
func NewHTTPError(op string, statusCode int, body string) *ClassifiedError {
	var underlying error
	if statusCode == http.StatusNotFound {
		underlying = fmt.Errorf("%s: %w", op, types.ErrNotFound)
	} else {
		underlying = fmt.Errorf("%s failed: HTTP %d", op, statusCode)
	}
	ce := ClassifyHTTPError(statusCode, body, underlying)
	ce.Op = op
	return ce
}

// NewNetworkError creates a classified error for network-level failures.
// The result matches both types.ErrUnavailable and err under errors.Is.
func NewNetworkError(op string, err error) *ClassifiedError {
	return &ClassifiedError{
		Category:   Recoverable,
		Op:         op,
		Underlying: fmt.Errorf("%s network error: %w: %w", op, types.ErrUnavailable, err),
	}
}
