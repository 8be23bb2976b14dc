// Package store holds the canonical view state of a clipboard history
// session and derives the display list from it.
//
// All mutations happen under one mutex and are either whole-field replaces
// or id/key matched removals. Remote calls run outside the lock. Each request
// kind carries a sequence number and only the response to the latest request
// of a kind is applied.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Hewenz/pastee/clipview/internal/metrics"
	"github.com/Hewenz/pastee/clipview/internal/types"
)

// DefaultLimit is the page size used when Config.Limit is unset.
const DefaultLimit = 20

type requestKind int

const (
	kindList requestKind = iota
	kindSearch
	kindCount
	numKinds
)

var kindNames = [...]string{kindList: "list", kindSearch: "search", kindCount: "count"}

// Config wires the store's collaborators.
type Config struct {
	Limit      int
	Offset     int // starting page cursor; negative clamps to 0
	Confirmer  Confirmer
	Notifier   Notifier
	Thumbnails Invalidator
	Logger     *zerolog.Logger
	Now        func() time.Time
}

// Store is safe for concurrent use.
type Store struct {
	api        Accessor
	confirmer  Confirmer
	notifier   Notifier
	thumbnails Invalidator
	now        func() time.Time
	log        zerolog.Logger

	mu            sync.Mutex
	active        bool
	fullList      []types.Entry
	searchResults []types.Entry
	query         string
	filter        types.Filter
	offset        int
	limit         int
	totalCount    int64
	seq           [numKinds]uint64
	changes       chan struct{}
}

// New creates an empty, active store.
func New(api Accessor, cfg Config) *Store {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Offset < 0 {
		cfg.Offset = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Store{
		api:        api,
		confirmer:  cfg.Confirmer,
		notifier:   cfg.Notifier,
		thumbnails: cfg.Thumbnails,
		now:        cfg.Now,
		log:        logger.With().Str("component", "store").Logger(),
		active:     true,
		fullList:   []types.Entry{},
		limit:      cfg.Limit,
		offset:     cfg.Offset,
		changes:    make(chan struct{}, 1),
	}
}

// ------------------------------------------------------------------
// Sequencing
// ------------------------------------------------------------------

// issue reserves the next sequence number for kind. Caller holds mu.
func (s *Store) issue(k requestKind) uint64 {
	s.seq[k]++
	return s.seq[k]
}

// apply runs fn under the lock if seq is still the latest for kind and the
// store has not been disposed.
func (s *Store) apply(k requestKind, seq uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	if seq != s.seq[k] {
		metrics.StaleResponsesTotal.WithLabelValues(kindNames[k]).Inc()
		s.log.Debug().Str("kind", kindNames[k]).Uint64("seq", seq).Uint64("latest", s.seq[k]).Msg("discarding stale response")
		return false
	}
	fn()
	s.signal()
	return true
}

// signal coalesces change notifications. Caller holds mu.
func (s *Store) signal() {
	if !s.active {
		return
	}
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Changes delivers a value whenever the display list may have changed. It
// is closed by Dispose.
func (s *Store) Changes() <-chan struct{} { return s.changes }

// Dispose marks the store inactive. Responses and notifications arriving
// afterwards are ignored.
func (s *Store) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	close(s.changes)
}

func (s *Store) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Store) remoteFailed(op string, err error) {
	metrics.RemoteFailuresTotal.WithLabelValues(op).Inc()
	s.log.Warn().Err(err).Str("op", op).Msg("remote call failed")
}

// ------------------------------------------------------------------
// Pull-based refreshes
// ------------------------------------------------------------------

// RefreshFullList fetches the current page and replaces the full list page
// wholesale.
func (s *Store) RefreshFullList(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	seq := s.issue(kindList)
	limit, offset := s.limit, s.offset
	s.mu.Unlock()

	page, err := s.api.ListPage(ctx, limit, offset)
	if err != nil {
		s.remoteFailed("list page", err)
		return fmt.Errorf("refresh list: %w", err)
	}
	s.apply(kindList, seq, func() { s.fullList = page })
	return nil
}

// RefreshTotalCount replaces the total count wholesale.
func (s *Store) RefreshTotalCount(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	seq := s.issue(kindCount)
	s.mu.Unlock()

	n, err := s.api.TotalCount(ctx)
	if err != nil {
		s.remoteFailed("total count", err)
		return fmt.Errorf("refresh count: %w", err)
	}
	s.apply(kindCount, seq, func() { s.totalCount = n })
	return nil
}

// Resync refetches everything the view derives from: the current page, the
// active search and the total count. Failures are logged and the first one
// is returned.
func (s *Store) Resync(ctx context.Context) error {
	var first error
	for _, refresh := range []func(context.Context) error{s.RefreshFullList, s.runSearch, s.RefreshTotalCount} {
		if err := refresh(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RefreshListAndSearch refetches the current page and re-issues the active
// search, if any. The total count is left alone.
func (s *Store) RefreshListAndSearch(ctx context.Context) error {
	err := s.RefreshFullList(ctx)
	if serr := s.runSearch(ctx); err == nil {
		err = serr
	}
	return err
}

// SetQuery records the search text. A non-blank query issues a search whose
// results replace the previous ones; a blank query clears them without a
// request.
func (s *Store) SetQuery(ctx context.Context, text string) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.query = text
	if types.IsBlank(text) {
		// Invalidate any in-flight search.
		s.issue(kindSearch)
		s.searchResults = nil
		s.signal()
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.runSearch(ctx)
}

// runSearch issues the current query if it is non-blank.
func (s *Store) runSearch(ctx context.Context) error {
	s.mu.Lock()
	if !s.active || types.IsBlank(s.query) {
		s.mu.Unlock()
		return nil
	}
	seq := s.issue(kindSearch)
	q := strings.TrimSpace(s.query)
	s.mu.Unlock()

	results, err := s.api.Search(ctx, q)
	if err != nil {
		s.remoteFailed("search", err)
		return fmt.Errorf("search %q: %w", q, err)
	}
	s.apply(kindSearch, seq, func() { s.searchResults = results })
	return nil
}

// SetFilter restricts the display list to one content type. It is local
// only and never issues a request.
func (s *Store) SetFilter(f types.Filter) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidFilter, string(f))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}
	s.filter = f
	s.signal()
	return nil
}

// SetOffset moves the page window, clamping negatives to zero, and
// refetches the full list exactly once.
func (s *Store) SetOffset(ctx context.Context, n int) error {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.offset = n
	s.mu.Unlock()
	return s.RefreshFullList(ctx)
}

// NextPage advances one page if there is one.
func (s *Store) NextPage(ctx context.Context) error {
	snap := s.Snapshot()
	if !snap.HasNext() {
		return nil
	}
	return s.SetOffset(ctx, snap.Offset+snap.Limit)
}

// PrevPage steps back one page if not already on the first.
func (s *Store) PrevPage(ctx context.Context) error {
	snap := s.Snapshot()
	if !snap.HasPrev() {
		return nil
	}
	return s.SetOffset(ctx, snap.Offset-snap.Limit)
}

// ------------------------------------------------------------------
// User-initiated mutations
// ------------------------------------------------------------------

// Delete removes an entry after confirmation. Nothing is removed locally;
// the view converges through the refreshes that follow.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := types.ValidateID(id); err != nil {
		return err
	}
	if !s.isActive() {
		return nil
	}
	if s.confirmer != nil && !s.confirmer.Confirm(ctx, fmt.Sprintf("Delete clip %d?", id)) {
		s.log.Debug().Int64("id", id).Msg("delete declined")
		return ErrDeclined
	}
	if err := s.api.Delete(ctx, id); err != nil {
		s.remoteFailed("delete", err)
		s.notify(Notice{Op: "delete", ID: id, Message: "Failed to delete clip", Err: err})
		return fmt.Errorf("delete %d: %w", id, err)
	}
	s.log.Info().Int64("id", id).Msg("clip deleted")

	_ = s.RefreshListAndSearch(ctx)
	_ = s.RefreshTotalCount(ctx)
	if s.thumbnails != nil {
		s.thumbnails.Invalidate(id)
	}
	return nil
}

// TogglePin flips the pinned flag of id and returns the new state.
func (s *Store) TogglePin(ctx context.Context, id int64) (bool, error) {
	if err := types.ValidateID(id); err != nil {
		return false, err
	}
	if !s.isActive() {
		return false, nil
	}
	pinned, err := s.api.TogglePin(ctx, id)
	if err != nil {
		s.remoteFailed("toggle pin", err)
		s.notify(Notice{Op: "pin", ID: id, Message: "Failed to toggle pin", Err: err})
		return false, fmt.Errorf("toggle pin %d: %w", id, err)
	}
	s.log.Info().Int64("id", id).Bool("pinned", pinned).Msg("pin toggled")

	_ = s.RefreshListAndSearch(ctx)
	return pinned, nil
}

// ClearUnpinned deletes every unpinned entry and returns how many went.
func (s *Store) ClearUnpinned(ctx context.Context) (int64, error) {
	if !s.isActive() {
		return 0, nil
	}
	n, err := s.api.ClearUnpinned(ctx)
	if err != nil {
		s.remoteFailed("clear unpinned", err)
		s.notify(Notice{Op: "clear", Message: "Failed to clear history", Err: err})
		return 0, fmt.Errorf("clear unpinned: %w", err)
	}
	s.log.Info().Int64("deleted", n).Msg("unpinned clips cleared")

	_ = s.RefreshListAndSearch(ctx)
	_ = s.RefreshTotalCount(ctx)
	return n, nil
}

func (s *Store) notify(n Notice) {
	if s.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("notifier panicked")
		}
	}()
	s.notifier.Notify(n)
}

// ------------------------------------------------------------------
// Push notification handlers
// ------------------------------------------------------------------

// InsertPlaceholder prepends a processing entry for key unless one is
// already present. It reports whether a placeholder was inserted.
func (s *Store) InsertPlaceholder(key int64) bool {
	if key == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || indexOfKey(s.fullList, key) >= 0 {
		return false
	}
	next := make([]types.Entry, 0, len(s.fullList)+1)
	next = append(next, types.NewPlaceholder(key, s.now()))
	next = append(next, s.fullList...)
	s.fullList = next
	s.signal()
	return true
}

// CompleteImage retires the placeholder for key and counts the new entry.
// The persisted row arrives with the next RefreshFullList.
func (s *Store) CompleteImage(key int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.fullList = withoutKey(s.fullList, key)
	s.totalCount++
	s.signal()
}

// FailImage removes the placeholder for key. The total count is unchanged.
func (s *Store) FailImage(key int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || indexOfKey(s.fullList, key) < 0 {
		return false
	}
	s.fullList = withoutKey(s.fullList, key)
	s.signal()
	return true
}

// EntryAdded accounts for a newly captured non-image entry.
func (s *Store) EntryAdded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.totalCount++
	s.signal()
}

func indexOfKey(entries []types.Entry, key int64) int {
	for i, e := range entries {
		if e.IsProcessing && e.ProvisionalKey == key {
			return i
		}
	}
	return -1
}

// withoutKey returns a new slice without the placeholder for key.
func withoutKey(entries []types.Entry, key int64) []types.Entry {
	out := make([]types.Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsProcessing && e.ProvisionalKey == key {
			continue
		}
		out = append(out, e)
	}
	return out
}
