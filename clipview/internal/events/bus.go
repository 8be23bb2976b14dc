package events

import (
	"sync"

	"github.com/Hewenz/pastee/clipview/internal/types"
)

// Bus is an in-process Source backed by a buffered channel. Envelopes are
// delivered in publish order by a single goroutine.
type Bus struct {
	registry

	ch        chan types.Envelope
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewBus creates a bus with the given buffer size and starts delivery.
func NewBus(buffer int) *Bus {
	b := &Bus{
		ch:   make(chan types.Envelope, buffer),
		done: make(chan struct{}),
	}
	b.wg.Add(1)
	go b.loop()
	return b
}

// Publish attempts to enqueue the envelope without blocking.
// Returns true if published, false if the buffer is full or the bus closed.
func (b *Bus) Publish(env types.Envelope) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.ch <- env:
		return true
	default:
		return false
	}
}

// PublishJSON marshals payload and publishes it on ch.
func (b *Bus) PublishJSON(ch types.Channel, payload any) (bool, error) {
	env, err := types.NewEnvelope(ch, payload)
	if err != nil {
		return false, err
	}
	return b.Publish(env), nil
}

// Listen implements Source.
func (b *Bus) Listen(ch types.Channel, h Handler) (func(), error) {
	select {
	case <-b.done:
		return nil, ErrSourceClosed
	default:
	}
	return b.add(ch, h), nil
}

// Close stops delivery. Envelopes still buffered are dropped.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	b.wg.Wait()
	return nil
}

func (b *Bus) loop() {
	defer b.wg.Done()
	for {
		select {
		case env := <-b.ch:
			b.deliver(env)
		case <-b.done:
			return
		}
	}
}
