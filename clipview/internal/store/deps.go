package store

import (
	"context"
	"errors"

	"github.com/Hewenz/pastee/clipview/internal/types"
)

// ErrDeclined is returned by Delete when the confirmer says no.
var ErrDeclined = errors.New("deletion declined")

// Accessor is the subset of the remote request layer the store drives.
type Accessor interface {
	ListPage(ctx context.Context, limit, offset int) ([]types.Entry, error)
	Search(ctx context.Context, query string) ([]types.Entry, error)
	TotalCount(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id int64) error
	TogglePin(ctx context.Context, id int64) (bool, error)
	ClearUnpinned(ctx context.Context) (int64, error)
}

// Confirmer gates destructive intents. A nil Confirmer approves everything.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to a Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Notice is a transient, user-facing failure report.
type Notice struct {
	Op      string
	ID      int64 // zero for bulk operations
	Message string
	Err     error
}

// Notifier receives notices for failed user-initiated mutations.
type Notifier interface {
	Notify(Notice)
}

// NotifyFunc adapts a function to a Notifier.
type NotifyFunc func(Notice)

// Notify implements Notifier.
func (f NotifyFunc) Notify(n Notice) { f(n) }

// Invalidator drops cached derived data for a deleted entry.
type Invalidator interface {
	Invalidate(id int64)
}
