package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hewenz/pastee/clipview/internal/dispatch"
	apierrors "github.com/Hewenz/pastee/clipview/internal/errors"
	"github.com/Hewenz/pastee/clipview/internal/store"
	"github.com/Hewenz/pastee/clipview/internal/thumbcache"
	"github.com/Hewenz/pastee/clipview/internal/types"
)

// pageAccessor serves a mutable page and count; everything else is unused.
type pageAccessor struct {
	mu    sync.Mutex
	page  []types.Entry
	count int64
	lists int

	// listFailures makes that many upcoming ListPage calls fail.
	listFailures int
}

func (a *pageAccessor) failLists(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listFailures = n
}

func (a *pageAccessor) setPage(p []types.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.page = p
}

func (a *pageAccessor) listCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lists
}

func (a *pageAccessor) ListPage(context.Context, int, int) ([]types.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lists++
	if a.listFailures > 0 {
		a.listFailures--
		return nil, apierrors.NewNetworkError("list page", errors.New("connection refused"))
	}
	return append([]types.Entry(nil), a.page...), nil
}

func (a *pageAccessor) Search(context.Context, string) ([]types.Entry, error) {
	return []types.Entry{}, nil
}

func (a *pageAccessor) TotalCount(context.Context) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count, nil
}

func (a *pageAccessor) Delete(context.Context, int64) error          { return nil }
func (a *pageAccessor) TogglePin(context.Context, int64) (bool, error) { return false, nil }
func (a *pageAccessor) ClearUnpinned(context.Context) (int64, error)   { return 0, nil }

type harness struct {
	bus   *Bus
	api   *pageAccessor
	store *store.Store
	cache *thumbcache.Cache
	mgr   *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, Config{})
}

func newHarnessWith(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		bus: NewBus(64),
		api: &pageAccessor{count: 10},
	}
	h.cache = thumbcache.New(nil, thumbcache.DefaultCapacity)
	h.store = store.New(h.api, store.Config{Thumbnails: h.cache})
	require.NoError(t, h.store.RefreshTotalCount(context.Background()))
	h.mgr = NewManager(h.bus, h.store, h.cache, cfg)
	require.NoError(t, h.mgr.Start(context.Background()))
	t.Cleanup(func() {
		h.mgr.Stop()
		_ = h.bus.Close()
		h.store.Dispose()
	})
	return h
}

func (h *harness) publish(t *testing.T, ch types.Channel, payload any) {
	t.Helper()
	ok, err := h.bus.PublishJSON(ch, payload)
	require.NoError(t, err)
	require.True(t, ok)
}

func hasKey(entries []types.Entry, key int64) bool {
	for _, e := range entries {
		if e.IsProcessing && e.ProvisionalKey == key {
			return true
		}
	}
	return false
}

func TestPendingReadyScenario(t *testing.T) {
	h := newHarness(t)

	h.publish(t, types.ChannelImagePending, types.ImagePending{ProvisionalKey: 7})
	require.Eventually(t, func() bool {
		return hasKey(h.store.Snapshot().FullList, 7)
	}, time.Second, time.Millisecond)

	head := h.store.Snapshot().FullList[0]
	assert.True(t, head.IsProcessing)
	assert.EqualValues(t, 7, head.ProvisionalKey)
	assert.Equal(t, types.PlaceholderID, head.ID)

	h.api.setPage([]types.Entry{{ID: 101, ContentType: types.ContentImage, Preview: "Image"}})
	h.publish(t, types.ChannelImageReady, types.ImageReady{ProvisionalKey: 7, ID: 101, Thumbnail: "AAA"})

	require.Eventually(t, func() bool {
		snap := h.store.Snapshot()
		return !hasKey(snap.FullList, 7) && len(snap.FullList) == 1
	}, time.Second, time.Millisecond)

	got, ok := h.cache.Get(101)
	require.True(t, ok)
	assert.Equal(t, "data:image/webp;base64,AAA", got)
	assert.EqualValues(t, 11, h.store.Snapshot().TotalCount)
}

func TestPendingErrorKeepsCount(t *testing.T) {
	h := newHarness(t)

	h.publish(t, types.ChannelImagePending, types.ImagePending{ProvisionalKey: 8})
	require.Eventually(t, func() bool {
		return hasKey(h.store.Snapshot().FullList, 8)
	}, time.Second, time.Millisecond)

	h.publish(t, types.ChannelImageError, types.ImageError{ProvisionalKey: 8, Error: "encode failed"})
	require.Eventually(t, func() bool {
		return !hasKey(h.store.Snapshot().FullList, 8)
	}, time.Second, time.Millisecond)

	snap := h.store.Snapshot()
	assert.False(t, hasKey(snap.FullList, 8))
	assert.EqualValues(t, 10, snap.TotalCount)
	assert.Zero(t, h.api.listCalls())
}

func TestNewEntryRefreshes(t *testing.T) {
	h := newHarness(t)
	h.api.setPage([]types.Entry{{ID: 1, ContentType: types.ContentText, Preview: "hi"}})

	h.publish(t, types.ChannelNewEntry, types.NewEntryPayload{Type: "text", Preview: "hi"})
	require.Eventually(t, func() bool {
		return len(h.store.DisplayList()) == 1
	}, time.Second, time.Millisecond)
	assert.EqualValues(t, 11, h.store.Snapshot().TotalCount)
}

func retryingConfig() Config {
	return Config{Dispatch: dispatch.Config{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxInterval: 5 * time.Millisecond,
	}}
}

func TestReadyRetriesRefreshWithoutRecounting(t *testing.T) {
	h := newHarnessWith(t, retryingConfig())

	h.publish(t, types.ChannelImagePending, types.ImagePending{ProvisionalKey: 7})
	require.Eventually(t, func() bool {
		return hasKey(h.store.Snapshot().FullList, 7)
	}, time.Second, time.Millisecond)

	h.api.failLists(100)
	h.publish(t, types.ChannelImageReady, types.ImageReady{ProvisionalKey: 7, ID: 101, Thumbnail: "AAA"})

	require.Eventually(t, func() bool { return h.api.listCalls() == 3 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, h.api.listCalls(), "attempts stop at MaxAttempts")

	snap := h.store.Snapshot()
	assert.EqualValues(t, 11, snap.TotalCount)
	assert.False(t, hasKey(snap.FullList, 7))
	got, ok := h.cache.Get(101)
	require.True(t, ok)
	assert.Equal(t, "data:image/webp;base64,AAA", got)
}

func TestNewEntryRetryRecoversList(t *testing.T) {
	h := newHarnessWith(t, retryingConfig())
	h.api.setPage([]types.Entry{{ID: 1, ContentType: types.ContentText, Preview: "hi"}})
	h.api.failLists(1)

	h.publish(t, types.ChannelNewEntry, types.NewEntryPayload{Type: "text", Preview: "hi"})
	require.Eventually(t, func() bool {
		return len(h.store.DisplayList()) == 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, 2, h.api.listCalls())
	assert.EqualValues(t, 11, h.store.Snapshot().TotalCount)
}

func TestMalformedPayloadDropped(t *testing.T) {
	h := newHarness(t)

	ok := h.bus.Publish(types.Envelope{Event: types.ChannelImagePending, Payload: []byte(`{"temp_id":"x"}`)})
	require.True(t, ok)
	h.publish(t, types.ChannelImagePending, types.ImagePending{})
	h.publish(t, types.ChannelImagePending, types.ImagePending{ProvisionalKey: 3})

	require.Eventually(t, func() bool {
		return hasKey(h.store.Snapshot().FullList, 3)
	}, time.Second, time.Millisecond)
	assert.Len(t, h.store.Snapshot().FullList, 1)
}

func TestImageErrorWithoutKeyDropped(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.mgr.jobFor(types.ChannelImageError, []byte(`{"error":"boom"}`))
	require.Error(t, err)
	_, _, err = h.mgr.jobFor(types.ChannelImageError, []byte(`{"temp_id":0,"error":"boom"}`))
	require.Error(t, err)

	key, job, err := h.mgr.jobFor(types.ChannelImageError, []byte(`{"temp_id":5,"error":"boom"}`))
	require.NoError(t, err)
	assert.Equal(t, "image:5", key)
	assert.NotNil(t, job)
}

func TestReadyAcceptsFullDataURI(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,AA", thumbnailURI("data:image/png;base64,AA"))
	assert.Equal(t, "data:image/webp;base64,AA", thumbnailURI("AA"))
}

// flakySource fails Listen for one channel.
type flakySource struct {
	*Bus
	failOn types.Channel
}

func (f *flakySource) Listen(ch types.Channel, h Handler) (func(), error) {
	if ch == f.failOn {
		return nil, errors.New("listen refused")
	}
	return f.Bus.Listen(ch, h)
}

func TestStartRollsBackOnFailure(t *testing.T) {
	bus := NewBus(8)
	defer bus.Close()
	src := &flakySource{Bus: bus, failOn: types.ChannelImageReady}
	st := store.New(&pageAccessor{}, store.Config{})
	defer st.Dispose()

	mgr := NewManager(src, st, nil, Config{})
	err := mgr.Start(context.Background())
	require.Error(t, err)
	assert.False(t, mgr.Running())
	for _, ch := range types.Channels() {
		assert.Zero(t, bus.listeners(ch), "channel %s still subscribed", ch)
	}

	src.failOn = ""
	require.NoError(t, mgr.Start(context.Background()))
	for _, ch := range types.Channels() {
		assert.Equal(t, 1, bus.listeners(ch))
	}
	mgr.Stop()
}

func TestStopUnsubscribesAndIsIdempotent(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.mgr.Start(context.Background()), ErrAlreadyStarted)
	h.mgr.Stop()
	h.mgr.Stop()
	assert.False(t, h.mgr.Running())
	for _, ch := range types.Channels() {
		assert.Zero(t, h.bus.listeners(ch))
	}
	assert.ErrorIs(t, h.mgr.Start(context.Background()), ErrStopped)

	h.publish(t, types.ChannelImagePending, types.ImagePending{ProvisionalKey: 4})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.store.Snapshot().FullList)
}

func TestStopBeforeStart(t *testing.T) {
	mgr := NewManager(NewBus(1), nil, nil, Config{})
	mgr.Stop()
	assert.ErrorIs(t, mgr.Start(context.Background()), ErrStopped)
}
