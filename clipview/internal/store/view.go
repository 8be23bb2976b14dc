package store

import (
	"github.com/Hewenz/pastee/clipview/internal/types"
)

// Snapshot is a consistent copy of the store state taken under one lock.
type Snapshot struct {
	Query         string
	Filter        types.Filter
	Offset        int
	Limit         int
	TotalCount    int64
	FullList      []types.Entry
	SearchResults []types.Entry
	DisplayList   []types.Entry
}

// Searching reports whether the display list comes from search results.
func (s Snapshot) Searching() bool { return !types.IsBlank(s.Query) }

// Page is the 1-based page number of the current offset.
func (s Snapshot) Page() int { return s.Offset/s.Limit + 1 }

// PageCount is the number of pages needed for TotalCount, at least one.
func (s Snapshot) PageCount() int {
	n := int((s.TotalCount + int64(s.Limit) - 1) / int64(s.Limit))
	if n < 1 {
		return 1
	}
	return n
}

// HasNext reports whether another page follows the current one.
func (s Snapshot) HasNext() bool { return int64(s.Offset+s.Limit) < s.TotalCount }

// HasPrev reports whether the current page is past the first.
func (s Snapshot) HasPrev() bool { return s.Offset > 0 }

// DisplayList derives what the UI should render: search results when the
// query is non-blank, otherwise the full list page, restricted to the
// filter. The returned slice is a copy.
func (s *Store) DisplayList() []types.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayLocked()
}

func (s *Store) displayLocked() []types.Entry {
	src := s.fullList
	if !types.IsBlank(s.query) {
		src = s.searchResults
	}
	return cloneEntries(s.filter.Apply(src))
}

// Snapshot copies the whole view state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Query:         s.query,
		Filter:        s.filter,
		Offset:        s.offset,
		Limit:         s.limit,
		TotalCount:    s.totalCount,
		FullList:      cloneEntries(s.fullList),
		SearchResults: cloneEntries(s.searchResults),
		DisplayList:   s.displayLocked(),
	}
}

func cloneEntries(in []types.Entry) []types.Entry {
	out := make([]types.Entry, len(in))
	for i, e := range in {
		if e.Tags != nil {
			e.Tags = append([]string(nil), e.Tags...)
		}
		out[i] = e
	}
	return out
}
