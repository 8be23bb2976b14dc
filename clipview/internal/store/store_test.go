package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hewenz/pastee/clipview/internal/types"
)

func newStore(t *testing.T, api Accessor, cfg Config) *Store {
	t.Helper()
	s := New(api, cfg)
	t.Cleanup(s.Dispose)
	return s
}

func TestDisplayList_BlankQueryUsesFullList(t *testing.T) {
	api := newFakeAccessor()
	api.page = []types.Entry{text(3, "c"), image(2), text(1, "a")}
	s := newStore(t, api, Config{})
	ctx := context.Background()

	require.NoError(t, s.RefreshFullList(ctx))
	assert.Equal(t, api.page, s.DisplayList())

	require.NoError(t, s.SetFilter(types.Filter(types.ContentImage)))
	got := s.DisplayList()
	require.Len(t, got, 1)
	assert.EqualValues(t, 2, got[0].ID)

	require.NoError(t, s.SetFilter(types.FilterAll))
	assert.Len(t, s.DisplayList(), 3)
}

func TestDisplayList_QueryUsesSearchResultsIgnoringPagination(t *testing.T) {
	api := newFakeAccessor()
	api.page = []types.Entry{text(9, "page only")}
	api.results["foo"] = []types.Entry{text(4, "foo"), image(5), text(6, "food")}
	s := newStore(t, api, Config{Limit: 1})
	ctx := context.Background()

	require.NoError(t, s.RefreshFullList(ctx))
	require.NoError(t, s.SetQuery(ctx, "  foo "))
	assert.Equal(t, []string{"foo"}, api.searches())
	assert.Len(t, s.DisplayList(), 3)

	require.NoError(t, s.SetFilter(types.Filter(types.ContentText)))
	got := s.DisplayList()
	require.Len(t, got, 2)
	for _, e := range got {
		assert.Equal(t, types.ContentText, e.ContentType)
	}

	require.NoError(t, s.SetQuery(ctx, "   "))
	assert.Len(t, api.searches(), 1, "blank query must not issue a request")
	assert.Empty(t, s.Snapshot().SearchResults)
	got = s.DisplayList()
	require.Len(t, got, 1)
	assert.EqualValues(t, 9, got[0].ID)
}

func TestDisplayList_ReturnsCopy(t *testing.T) {
	api := newFakeAccessor()
	api.page = []types.Entry{image(1)}
	s := newStore(t, api, Config{})
	require.NoError(t, s.RefreshFullList(context.Background()))

	got := s.DisplayList()
	got[0].Preview = "mutated"
	got[0].Tags[0] = "mutated"

	again := s.DisplayList()
	assert.Equal(t, "Image", again[0].Preview)
	assert.Equal(t, "image", again[0].Tags[0])
}

func TestSetFilter_RejectsUnknown(t *testing.T) {
	s := newStore(t, newFakeAccessor(), Config{})
	err := s.SetFilter(types.Filter("Video"))
	assert.ErrorIs(t, err, types.ErrInvalidFilter)
	assert.Equal(t, types.FilterAll, s.Snapshot().Filter)
}

func TestSetOffset_PaginationScenario(t *testing.T) {
	api := newFakeAccessor()
	api.count = 45
	api.results["q"] = []types.Entry{text(1, "q")}
	s := newStore(t, api, Config{Limit: 20})
	ctx := context.Background()

	require.NoError(t, s.RefreshTotalCount(ctx))
	require.NoError(t, s.SetQuery(ctx, "q"))
	before := s.Snapshot()

	require.NoError(t, s.SetOffset(ctx, 20))
	assert.Equal(t, []listCall{{20, 20}}, api.lists())

	require.NoError(t, s.SetOffset(ctx, 40))
	assert.Equal(t, []listCall{{20, 20}, {20, 40}}, api.lists())

	after := s.Snapshot()
	assert.Equal(t, before.Query, after.Query)
	assert.Equal(t, before.SearchResults, after.SearchResults)
	assert.Len(t, api.searches(), 1)

	assert.Equal(t, 3, after.Page())
	assert.Equal(t, 3, after.PageCount())
	assert.False(t, after.HasNext())
	assert.True(t, after.HasPrev())
}

func TestSetOffset_ClampsNegative(t *testing.T) {
	api := newFakeAccessor()
	s := newStore(t, api, Config{})
	require.NoError(t, s.SetOffset(context.Background(), -5))
	assert.Equal(t, []listCall{{DefaultLimit, 0}}, api.lists())
	assert.Equal(t, 0, s.Snapshot().Offset)
}

func TestNextPrevPage(t *testing.T) {
	api := newFakeAccessor()
	api.count = 45
	s := newStore(t, api, Config{Limit: 20})
	ctx := context.Background()
	require.NoError(t, s.RefreshTotalCount(ctx))

	require.NoError(t, s.PrevPage(ctx))
	assert.Empty(t, api.lists(), "no previous page on the first page")

	require.NoError(t, s.NextPage(ctx))
	require.NoError(t, s.NextPage(ctx))
	require.NoError(t, s.NextPage(ctx))
	assert.Equal(t, []listCall{{20, 20}, {20, 40}}, api.lists())

	require.NoError(t, s.PrevPage(ctx))
	assert.Equal(t, 20, s.Snapshot().Offset)
}

func TestPageCount_EmptyHistory(t *testing.T) {
	snap := newStore(t, newFakeAccessor(), Config{}).Snapshot()
	assert.Equal(t, 1, snap.Page())
	assert.Equal(t, 1, snap.PageCount())
	assert.False(t, snap.HasNext())
}

func TestSearch_StaleResponseDiscarded(t *testing.T) {
	api := newFakeAccessor()
	api.results["h"] = []types.Entry{text(1, "h old")}
	api.results["he"] = []types.Entry{text(2, "he new")}
	gate := make(chan struct{})
	api.gates["h"] = gate
	s := newStore(t, api, Config{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.SetQuery(ctx, "h") }()
	require.Eventually(t, func() bool { return len(api.searches()) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.SetQuery(ctx, "he"))
	close(gate)
	require.NoError(t, <-done)

	got := s.DisplayList()
	require.Len(t, got, 1)
	assert.EqualValues(t, 2, got[0].ID)
}

func TestSearch_ClearedQueryDiscardsInFlight(t *testing.T) {
	api := newFakeAccessor()
	api.results["slow"] = []types.Entry{text(1, "slow")}
	gate := make(chan struct{})
	api.gates["slow"] = gate
	s := newStore(t, api, Config{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.SetQuery(ctx, "slow") }()
	require.Eventually(t, func() bool { return len(api.searches()) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.SetQuery(ctx, ""))
	close(gate)
	require.NoError(t, <-done)
	assert.Empty(t, s.Snapshot().SearchResults)
}

func TestRefreshFailureKeepsState(t *testing.T) {
	api := newFakeAccessor()
	api.page = []types.Entry{text(1, "a")}
	api.count = 1
	var notices []Notice
	s := newStore(t, api, Config{Notifier: NotifyFunc(func(n Notice) { notices = append(notices, n) })})
	ctx := context.Background()
	require.NoError(t, s.RefreshFullList(ctx))
	require.NoError(t, s.RefreshTotalCount(ctx))

	api.failOn["list"] = errBackend
	api.failOn["count"] = errBackend
	assert.ErrorIs(t, s.RefreshFullList(ctx), errBackend)
	assert.ErrorIs(t, s.RefreshTotalCount(ctx), errBackend)

	snap := s.Snapshot()
	assert.Len(t, snap.FullList, 1)
	assert.EqualValues(t, 1, snap.TotalCount)
	assert.Empty(t, notices, "background refreshes do not notify")
}

func TestDelete_ConfirmedRefreshes(t *testing.T) {
	api := newFakeAccessor()
	api.page = []types.Entry{text(1, "a"), text(2, "b")}
	api.count = 2
	api.results["a"] = []types.Entry{text(1, "a")}
	thumbs := &invalidations{}
	s := newStore(t, api, Config{
		Confirmer:  ConfirmFunc(func(context.Context, string) bool { return true }),
		Thumbnails: thumbs,
	})
	ctx := context.Background()
	require.NoError(t, s.RefreshFullList(ctx))
	require.NoError(t, s.SetQuery(ctx, "a"))

	api.page = []types.Entry{text(2, "b")}
	api.count = 1
	api.results["a"] = nil
	require.NoError(t, s.Delete(ctx, 1))

	assert.Equal(t, []int64{1}, api.deleted)
	assert.Len(t, api.lists(), 2, "delete triggers a full list refresh")
	assert.Len(t, api.searches(), 2, "active search is re-issued")
	assert.Equal(t, []int64{1}, thumbs.ids)

	snap := s.Snapshot()
	assert.EqualValues(t, 1, snap.TotalCount)
	require.Len(t, snap.FullList, 1)
	assert.EqualValues(t, 2, snap.FullList[0].ID)
	assert.Empty(t, snap.SearchResults)
}

func TestDelete_Declined(t *testing.T) {
	api := newFakeAccessor()
	s := newStore(t, api, Config{
		Confirmer: ConfirmFunc(func(context.Context, string) bool { return false }),
	})
	err := s.Delete(context.Background(), 1)
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Empty(t, api.deleted)
	assert.Empty(t, api.lists())
}

func TestDelete_FailureNotifies(t *testing.T) {
	api := newFakeAccessor()
	api.page = []types.Entry{text(1, "a")}
	api.failOn["delete"] = errBackend
	var notices []Notice
	s := newStore(t, api, Config{Notifier: NotifyFunc(func(n Notice) { notices = append(notices, n) })})
	ctx := context.Background()
	require.NoError(t, s.RefreshFullList(ctx))

	err := s.Delete(ctx, 1)
	assert.ErrorIs(t, err, errBackend)
	require.Len(t, notices, 1)
	assert.Equal(t, "delete", notices[0].Op)
	assert.EqualValues(t, 1, notices[0].ID)
	assert.Len(t, s.Snapshot().FullList, 1, "no optimistic removal")
	assert.Len(t, api.lists(), 1)
}

func TestDelete_RejectsPlaceholderID(t *testing.T) {
	s := newStore(t, newFakeAccessor(), Config{})
	assert.ErrorIs(t, s.Delete(context.Background(), types.PlaceholderID), types.ErrInvalidArgument)
}

func TestTogglePin(t *testing.T) {
	api := newFakeAccessor()
	api.results["x"] = []types.Entry{text(1, "x")}
	s := newStore(t, api, Config{})
	ctx := context.Background()
	require.NoError(t, s.SetQuery(ctx, "x"))

	pinned, err := s.TogglePin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, pinned)
	assert.Len(t, api.lists(), 1)
	assert.Len(t, api.searches(), 2)
	assert.Zero(t, api.countCalls)

	api.failOn["pin"] = errBackend
	var notices []Notice
	s.notifier = NotifyFunc(func(n Notice) { notices = append(notices, n) })
	_, err = s.TogglePin(ctx, 1)
	assert.ErrorIs(t, err, errBackend)
	assert.Len(t, notices, 1)
}

func TestClearUnpinned(t *testing.T) {
	api := newFakeAccessor()
	api.cleared = 3
	s := newStore(t, api, Config{})
	ctx := context.Background()

	n, err := s.ClearUnpinned(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Len(t, api.lists(), 1)
	assert.Equal(t, 1, api.countCalls)
	assert.Empty(t, api.searches(), "no active query, no search")
}

func TestPendingThenReady(t *testing.T) {
	api := newFakeAccessor()
	api.count = 10
	s := newStore(t, api, Config{})
	ctx := context.Background()
	require.NoError(t, s.RefreshTotalCount(ctx))

	require.True(t, s.InsertPlaceholder(7))
	assert.False(t, s.InsertPlaceholder(7), "duplicate pending is ignored")

	head := s.Snapshot().FullList[0]
	assert.True(t, head.IsProcessing)
	assert.EqualValues(t, 7, head.ProvisionalKey)
	assert.Equal(t, types.PlaceholderID, head.ID)
	assert.Equal(t, types.ContentImage, head.ContentType)
	assert.Equal(t, []string{"image"}, head.Tags)
	assert.NoError(t, head.Valid())

	s.CompleteImage(7)
	snap := s.Snapshot()
	assert.EqualValues(t, 11, snap.TotalCount)
	assert.Empty(t, snap.FullList)
	assert.Empty(t, api.lists(), "completion is local; the caller refetches")

	api.page = []types.Entry{image(101)}
	require.NoError(t, s.RefreshFullList(ctx))
	snap = s.Snapshot()
	assert.EqualValues(t, 11, snap.TotalCount)
	require.Len(t, snap.FullList, 1)
	assert.EqualValues(t, 101, snap.FullList[0].ID)
	assert.Zero(t, snap.FullList[0].ProvisionalKey)
}

func TestPendingThenError(t *testing.T) {
	api := newFakeAccessor()
	api.count = 10
	s := newStore(t, api, Config{})
	require.NoError(t, s.RefreshTotalCount(context.Background()))

	s.InsertPlaceholder(7)
	assert.True(t, s.FailImage(7))
	assert.False(t, s.FailImage(7), "missing placeholder is a no-op")

	snap := s.Snapshot()
	assert.Empty(t, snap.FullList)
	assert.EqualValues(t, 10, snap.TotalCount)
	assert.Empty(t, api.lists())
}

func TestReadyWithoutPendingStillCounts(t *testing.T) {
	api := newFakeAccessor()
	s := newStore(t, api, Config{})
	s.InsertPlaceholder(3)

	s.CompleteImage(99)
	snap := s.Snapshot()
	assert.EqualValues(t, 1, snap.TotalCount)
	require.Len(t, snap.FullList, 1, "other placeholders are untouched")
	assert.EqualValues(t, 3, snap.FullList[0].ProvisionalKey)
}

func TestEntryAdded(t *testing.T) {
	api := newFakeAccessor()
	api.page = []types.Entry{text(1, "new")}
	api.results["n"] = []types.Entry{text(1, "new")}
	s := newStore(t, api, Config{})
	ctx := context.Background()
	require.NoError(t, s.SetQuery(ctx, "n"))

	s.EntryAdded()
	assert.Empty(t, api.lists())
	require.NoError(t, s.RefreshListAndSearch(ctx))
	snap := s.Snapshot()
	assert.EqualValues(t, 1, snap.TotalCount)
	assert.Len(t, api.lists(), 1)
	assert.Len(t, api.searches(), 2)
}

func TestChangesSignalledAndClosedOnDispose(t *testing.T) {
	s := New(newFakeAccessor(), Config{})
	s.InsertPlaceholder(1)
	s.InsertPlaceholder(2)

	select {
	case _, ok := <-s.Changes():
		assert.True(t, ok)
	default:
		t.Fatal("expected a change signal")
	}

	s.Dispose()
	s.Dispose()
	_, ok := <-s.Changes()
	assert.False(t, ok)
}

func TestDisposedStoreIgnoresLateResponses(t *testing.T) {
	api := newFakeAccessor()
	api.page = []types.Entry{text(1, "late")}
	s := New(api, Config{})
	s.Dispose()

	require.NoError(t, s.RefreshFullList(context.Background()))
	assert.False(t, s.InsertPlaceholder(3))
	s.CompleteImage(3)
	s.EntryAdded()
	assert.Empty(t, s.DisplayList())
	assert.Zero(t, s.Snapshot().TotalCount)
}

func TestDisposeDuringRequestDropsResponse(t *testing.T) {
	api := newFakeAccessor()
	api.results["q"] = []types.Entry{text(1, "q")}
	gate := make(chan struct{})
	api.gates["q"] = gate
	s := New(api, Config{})

	done := make(chan error, 1)
	go func() { done <- s.SetQuery(context.Background(), "q") }()
	require.Eventually(t, func() bool { return len(api.searches()) == 1 }, time.Second, time.Millisecond)
	s.Dispose()
	close(gate)
	require.NoError(t, <-done)
	assert.Empty(t, s.Snapshot().SearchResults)
}

func TestResync(t *testing.T) {
	api := newFakeAccessor()
	api.page = []types.Entry{text(1, "a")}
	api.count = 1
	api.results["a"] = []types.Entry{text(1, "a")}
	s := newStore(t, api, Config{})
	ctx := context.Background()
	require.NoError(t, s.SetQuery(ctx, "a"))

	api.failOn["list"] = errBackend
	err := s.Resync(ctx)
	assert.ErrorIs(t, err, errBackend)
	assert.Len(t, api.searches(), 2, "search and count still run after a list failure")
	assert.Equal(t, 1, api.countCalls)
	assert.EqualValues(t, 1, s.Snapshot().TotalCount)
}
