package store

import (
	"context"
	"errors"
	"sync"

	"github.com/Hewenz/pastee/clipview/internal/types"
)

type listCall struct{ limit, offset int }

// fakeAccessor records calls and serves canned responses. A non-nil gate
// for a query blocks that search until the channel is closed.
type fakeAccessor struct {
	mu sync.Mutex

	page    []types.Entry
	results map[string][]types.Entry
	gates   map[string]chan struct{}
	count   int64
	pinned  bool
	cleared int64
	failOn  map[string]error

	listCalls   []listCall
	searchCalls []string
	countCalls  int
	deleted     []int64
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{
		results: map[string][]types.Entry{},
		gates:   map[string]chan struct{}{},
		failOn:  map[string]error{},
	}
}

func (f *fakeAccessor) fail(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failOn[op]
}

func (f *fakeAccessor) ListPage(_ context.Context, limit, offset int) ([]types.Entry, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, listCall{limit, offset})
	page := append([]types.Entry(nil), f.page...)
	f.mu.Unlock()
	if err := f.fail("list"); err != nil {
		return nil, err
	}
	return page, nil
}

func (f *fakeAccessor) Search(_ context.Context, q string) ([]types.Entry, error) {
	f.mu.Lock()
	f.searchCalls = append(f.searchCalls, q)
	gate := f.gates[q]
	res := append([]types.Entry(nil), f.results[q]...)
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err := f.fail("search"); err != nil {
		return nil, err
	}
	return res, nil
}

func (f *fakeAccessor) TotalCount(context.Context) (int64, error) {
	f.mu.Lock()
	f.countCalls++
	n := f.count
	f.mu.Unlock()
	if err := f.fail("count"); err != nil {
		return 0, err
	}
	return n, nil
}

func (f *fakeAccessor) Delete(_ context.Context, id int64) error {
	if err := f.fail("delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAccessor) TogglePin(context.Context, int64) (bool, error) {
	if err := f.fail("pin"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = !f.pinned
	return f.pinned, nil
}

func (f *fakeAccessor) ClearUnpinned(context.Context) (int64, error) {
	if err := f.fail("clear"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared, nil
}

func (f *fakeAccessor) lists() []listCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]listCall(nil), f.listCalls...)
}

func (f *fakeAccessor) searches() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searchCalls...)
}

type invalidations struct {
	mu  sync.Mutex
	ids []int64
}

func (i *invalidations) Invalidate(id int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, id)
}

var errBackend = errors.New("backend exploded")

func text(id int64, preview string) types.Entry {
	return types.Entry{ID: id, ContentType: types.ContentText, Preview: preview, CreatedAt: id}
}

func image(id int64) types.Entry {
	return types.Entry{ID: id, ContentType: types.ContentImage, Preview: "Image", CreatedAt: id, Tags: []string{"image"}}
}
