package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrExecutorClosed is returned by Submit after Stop.
	ErrExecutorClosed = errors.New("dispatch: executor closed")
	// ErrQueueFull is matched by *QueueFullError.
	ErrQueueFull = errors.New("dispatch: queue full")
)

// QueueFullError reports which shard rejected a job.
type QueueFullError struct {
	Shard    int
	Length   int
	Capacity int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("dispatch: shard %d queue full (%d/%d)", e.Shard, e.Length, e.Capacity)
}

// Is lets errors.Is(err, ErrQueueFull) match.
func (e *QueueFullError) Is(target error) bool { return target == ErrQueueFull }
