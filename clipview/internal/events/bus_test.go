package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hewenz/pastee/clipview/internal/types"
)

func TestBus_DeliversInOrder(t *testing.T) {
	bus := NewBus(16)
	defer bus.Close()

	var (
		mu  sync.Mutex
		got []types.Channel
	)
	for _, ch := range types.Channels() {
		_, err := bus.Listen(ch, func(env types.Envelope) {
			mu.Lock()
			got = append(got, env.Event)
			mu.Unlock()
		})
		require.NoError(t, err)
	}

	for _, ch := range types.Channels() {
		require.True(t, bus.Publish(types.Envelope{Event: ch}))
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 4
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, types.Channels(), got)
}

func TestBus_UnlistenIsIdempotent(t *testing.T) {
	bus := NewBus(4)
	defer bus.Close()

	un, err := bus.Listen(types.ChannelNewEntry, func(types.Envelope) {})
	require.NoError(t, err)
	assert.Equal(t, 1, bus.listeners(types.ChannelNewEntry))
	un()
	un()
	assert.Zero(t, bus.listeners(types.ChannelNewEntry))
}

func TestBus_Closed(t *testing.T) {
	bus := NewBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	_, err := bus.Listen(types.ChannelNewEntry, func(types.Envelope) {})
	assert.ErrorIs(t, err, ErrSourceClosed)
	assert.False(t, bus.Publish(types.Envelope{Event: types.ChannelNewEntry}))
}
