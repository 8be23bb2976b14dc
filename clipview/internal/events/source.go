// Package events subscribes a view session to the backend's push
// notification channels and feeds them into the store.
package events

import (
	"errors"
	"sync"

	"github.com/Hewenz/pastee/clipview/internal/types"
)

// ErrSourceClosed is returned by Listen once a source has been closed.
var ErrSourceClosed = errors.New("events: source closed")

// Handler receives one notification envelope.
type Handler func(types.Envelope)

// Source delivers push notifications per channel. Listen returns a function
// that removes the handler; calling it more than once is harmless.
type Source interface {
	Listen(ch types.Channel, h Handler) (unlisten func(), err error)
}

// registry tracks handlers per channel. Both sources embed it.
type registry struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[types.Channel]map[uint64]Handler
}

func (r *registry) add(ch types.Channel, h Handler) func() {
	r.mu.Lock()
	if r.handlers == nil {
		r.handlers = make(map[types.Channel]map[uint64]Handler)
	}
	r.next++
	id := r.next
	if r.handlers[ch] == nil {
		r.handlers[ch] = make(map[uint64]Handler)
	}
	r.handlers[ch][id] = h
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.handlers[ch], id)
			r.mu.Unlock()
		})
	}
}

// deliver calls every handler registered for env.Event.
func (r *registry) deliver(env types.Envelope) int {
	r.mu.RLock()
	hs := make([]Handler, 0, len(r.handlers[env.Event]))
	for _, h := range r.handlers[env.Event] {
		hs = append(hs, h)
	}
	r.mu.RUnlock()
	for _, h := range hs {
		h(env)
	}
	return len(hs)
}

func (r *registry) listeners(ch types.Channel) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[ch])
}
