// Package clipview is a live, locally responsive view over a clipboard
// history owned by a backend process. A Session keeps one consistent display
// list while pull-based refreshes race with push notifications.
package clipview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Hewenz/pastee/clipview/internal/api"
	"github.com/Hewenz/pastee/clipview/internal/dispatch"
	"github.com/Hewenz/pastee/clipview/internal/events"
	"github.com/Hewenz/pastee/clipview/internal/store"
	"github.com/Hewenz/pastee/clipview/internal/thumbcache"
	"github.com/Hewenz/pastee/clipview/internal/types"
)

// --------------------------------------------------------------------
// Session core
// --------------------------------------------------------------------

// Session owns the store, thumbnail cache and push subscriptions of one
// view. Sessions are independent; nothing is process-wide.
type Session struct {
	id  string
	cfg Config
	log zerolog.Logger

	http   *http.Client
	api    *api.Client
	cache  *thumbcache.Cache
	store  *store.Store
	events *events.Manager

	source      Source
	ownedSource *events.WebSocketSource
	confirmer   Confirmer
	notifier    Notifier
	dispatchCfg dispatch.Config
	offset      int

	closed uint32 // ensures Close is idempotent
}

// New constructs a session against baseURL. Nothing talks to the backend
// until Start.
func New(baseURL string, opts ...Option) (*Session, error) {
	s := &Session{
		id:  uuid.NewString(),
		cfg: DefaultConfig(),
		log: log.Logger,
	}

	// Auto-enable debug via env variable without changing code.
	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if baseURL != "" {
		s.cfg.BaseURL = baseURL
	}
	if s.cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidArgument)
	}
	s.log = s.log.With().Str("session", s.id).Logger()

	s.http = &http.Client{Timeout: s.cfg.HTTPTimeout}
	if s.cfg.Debug {
		s.http.Transport = newDebugTransport(nil, s.log)
	}
	s.api = api.New(s.http, s.cfg.BaseURL).WithSession(s.id)
	s.cache = thumbcache.New(s.api, s.cfg.ThumbnailCacheSize, thumbcache.WithLogger(s.log))
	s.store = store.New(s.api, store.Config{
		Limit:      s.cfg.PageSize,
		Offset:     s.offset,
		Confirmer:  s.confirmer,
		Notifier:   s.notifier,
		Thumbnails: s.cache,
		Logger:     &s.log,
	})

	if s.source == nil {
		ws := events.NewWebSocketSource(s.cfg.BaseURL,
			events.WithHTTPClient(&http.Client{Transport: s.http.Transport}),
			events.WithHeader("X-Session-ID", s.id),
			events.WithOnConnect(s.onConnect),
			events.WithSourceLogger(s.log),
		)
		s.source = ws
		s.ownedSource = ws
	}
	s.events = events.NewManager(s.source, s.store, s.cache, events.Config{
		Dispatch: s.dispatchCfg,
		Logger:   &s.log,
	})
	return s, nil
}

// NewFromEnv builds a session from LoadConfig and the PASTEE_DISPATCH_*
// handler settings. Options apply on top.
func NewFromEnv(opts ...Option) (*Session, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	dcfg, err := dispatch.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load dispatch config: %w", err)
	}
	base := []Option{WithConfig(cfg), WithDispatchConfig(dcfg)}
	return New(cfg.BaseURL, append(base, opts...)...)
}

// ID identifies the session in logs and in the X-Session-ID header.
func (s *Session) ID() string { return s.id }

// Config returns the effective settings.
func (s *Session) Config() Config { return s.cfg }

func (s *Session) isClosed() bool { return atomic.LoadUint32(&s.closed) == 1 }

// Start subscribes to push notifications and loads the first page and the
// total count. A failed initial load is returned but the subscriptions stay
// live, so the view still converges on the next notification.
func (s *Session) Start(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if err := s.events.Start(ctx); err != nil {
		return err
	}
	return errors.Join(s.store.RefreshFullList(ctx), s.store.RefreshTotalCount(ctx))
}

// onConnect resyncs after the push connection comes back, since
// notifications sent while it was down are lost.
func (s *Session) onConnect(reconnect bool) {
	if !reconnect || s.isClosed() {
		return
	}
	go func() {
		if err := s.store.Resync(context.Background()); err != nil {
			s.log.Warn().Err(err).Msg("resync after reconnect failed")
		}
	}()
}

// Close unsubscribes, stops handler dispatch and disposes the store. Safe to
// call multiple times.
func (s *Session) Close() error {
	if !atomic.CompareAndSwapUint32(&s.closed, 0, 1) {
		return nil
	}
	s.events.Stop()
	if s.ownedSource != nil {
		_ = s.ownedSource.Close()
	}
	s.store.Dispose()
	s.log.Debug().Msg("session closed")
	return nil
}

// --------------------------------------------------------------------
// View state
// --------------------------------------------------------------------

// DisplayList returns what the UI should render right now.
func (s *Session) DisplayList() []Entry { return s.store.DisplayList() }

// Snapshot returns a consistent copy of the view state.
func (s *Session) Snapshot() Snapshot { return s.store.Snapshot() }

// Changes delivers a value whenever the display list may have changed and
// is closed by Close.
func (s *Session) Changes() <-chan struct{} { return s.store.Changes() }

// --------------------------------------------------------------------
// Intents - delegated to the store
// --------------------------------------------------------------------

// SetQuery searches for text; blank text returns to the full list.
func (s *Session) SetQuery(ctx context.Context, text string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.store.SetQuery(ctx, text)
}

// SetFilter restricts the display list to one content type.
func (s *Session) SetFilter(f Filter) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.store.SetFilter(f)
}

// SetOffset moves the page window.
func (s *Session) SetOffset(ctx context.Context, n int) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.store.SetOffset(ctx, n)
}

// NextPage advances one page if there is one.
func (s *Session) NextPage(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.store.NextPage(ctx)
}

// PrevPage steps back one page.
func (s *Session) PrevPage(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.store.PrevPage(ctx)
}

// Refresh refetches the page, the active search and the total count.
func (s *Session) Refresh(ctx context.Context) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.store.Resync(ctx)
}

// Delete removes id after confirmation.
func (s *Session) Delete(ctx context.Context, id int64) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.store.Delete(ctx, id)
}

// TogglePin flips the pinned flag of id and returns the new state.
func (s *Session) TogglePin(ctx context.Context, id int64) (bool, error) {
	if s.isClosed() {
		return false, ErrSessionClosed
	}
	return s.store.TogglePin(ctx, id)
}

// ClearUnpinned deletes every unpinned entry.
func (s *Session) ClearUnpinned(ctx context.Context) (int64, error) {
	if s.isClosed() {
		return 0, ErrSessionClosed
	}
	return s.store.ClearUnpinned(ctx)
}

// --------------------------------------------------------------------
// Content - delegated to the cache and the request layer
// --------------------------------------------------------------------

// Thumbnail returns the data URI preview of an image entry, fetching it at
// most once.
func (s *Session) Thumbnail(ctx context.Context, id int64) (string, error) {
	if s.isClosed() {
		return "", ErrSessionClosed
	}
	return s.cache.Resolve(ctx, id)
}

// CachedThumbnail returns a thumbnail only if it is already cached.
func (s *Session) CachedThumbnail(id int64) (string, bool) { return s.cache.Get(id) }

// Content fetches the full payload of an entry for pasting.
func (s *Session) Content(ctx context.Context, id int64) (ClipContent, error) {
	if s.isClosed() {
		return types.ClipContent{}, ErrSessionClosed
	}
	return s.api.FetchContent(ctx, id)
}
