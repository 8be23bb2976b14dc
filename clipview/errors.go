package clipview

import (
	"errors"

	"github.com/Hewenz/pastee/clipview/internal/dispatch"
	apierrors "github.com/Hewenz/pastee/clipview/internal/errors"
	"github.com/Hewenz/pastee/clipview/internal/events"
	"github.com/Hewenz/pastee/clipview/internal/store"
	"github.com/Hewenz/pastee/clipview/internal/types"
)

// ErrSessionClosed is returned by every intent after Close.
var ErrSessionClosed = errors.New("session closed")

// Re-export shared errors so callers compare against a single symbol.
var (
	ErrNotFound        = types.ErrNotFound
	ErrUnavailable     = types.ErrUnavailable
	ErrInvalidFilter   = types.ErrInvalidFilter
	ErrInvalidArgument = types.ErrInvalidArgument
	ErrDeclined        = store.ErrDeclined
	ErrAlreadyStarted  = events.ErrAlreadyStarted
	ErrBackPressure    = dispatch.ErrQueueFull
)

// IsRetryable reports whether a failed backend call may succeed if repeated.
func IsRetryable(err error) bool {
	var ce *apierrors.ClassifiedError
	return errors.As(err, &ce) && !apierrors.IsIrrecoverable(err)
}
