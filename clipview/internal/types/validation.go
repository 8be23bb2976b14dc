package types

import (
	"errors"
	"fmt"
	"strings"
)

// ------------------------------
// Shared Errors
// ------------------------------

var (
	// ErrNotFound is returned when the backend has no record for the id.
	ErrNotFound = errors.New("clip not found")
	// ErrUnavailable wraps transport-level failures talking to the backend.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrInvalidFilter is returned for filters outside the content type set.
	ErrInvalidFilter = errors.New("invalid content type filter")
	// ErrUnknownContentType is returned by ParseContentType.
	ErrUnknownContentType = errors.New("unknown content type")
	// ErrInvalidEntry reports a placeholder/persisted invariant violation.
	ErrInvalidEntry = errors.New("invalid entry")
	// ErrInvalidArgument is returned by the Validate helpers.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ------------------------------
// Validation helpers
// ------------------------------

// ValidateID requires a persisted (positive) entry id.
func ValidateID(id int64) error {
	if id <= PlaceholderID {
		return fmt.Errorf("%w: id must be positive, got %d", ErrInvalidArgument, id)
	}
	return nil
}

// ValidateQuery requires a non-blank search query.
func ValidateQuery(q string) error {
	if IsBlank(q) {
		return fmt.Errorf("%w: query must not be blank", ErrInvalidArgument)
	}
	return nil
}

// ValidatePage checks list pagination arguments.
func ValidatePage(limit, offset int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be > 0, got %d", ErrInvalidArgument, limit)
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0, got %d", ErrInvalidArgument, offset)
	}
	return nil
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool { return strings.TrimSpace(s) == "" }
