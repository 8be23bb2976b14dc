package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Hewenz/pastee/clipview/internal/dispatch"
	"github.com/Hewenz/pastee/clipview/internal/metrics"
	"github.com/Hewenz/pastee/clipview/internal/types"
)

var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("events: manager already started")
	// ErrStopped is returned by Start after Stop.
	ErrStopped = errors.New("events: manager stopped")
)

// newEntryKey orders new-entry notifications among themselves.
const newEntryKey = "new-entry"

// Store is the view state the manager mutates.
type Store interface {
	InsertPlaceholder(key int64) bool
	CompleteImage(key int64)
	FailImage(key int64) bool
	EntryAdded()
	RefreshFullList(ctx context.Context) error
	RefreshListAndSearch(ctx context.Context) error
}

// ThumbnailSink accepts thumbnails delivered inline with image-ready.
type ThumbnailSink interface {
	Put(id int64, content string)
}

// Config tunes the manager.
type Config struct {
	Dispatch dispatch.Config
	Logger   *zerolog.Logger
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// Manager owns the four channel subscriptions of a session and routes each
// notification to the store. Handlers for one provisional key run in
// arrival order.
type Manager struct {
	src    Source
	store  Store
	thumbs ThumbnailSink
	cfg    Config
	log    zerolog.Logger

	mu       sync.Mutex
	state    state
	unlisten []func()
	exec     *dispatch.Executor
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewManager wires a manager. Nothing is subscribed until Start.
func NewManager(src Source, store Store, thumbs ThumbnailSink, cfg Config) *Manager {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Manager{
		src:    src,
		store:  store,
		thumbs: thumbs,
		cfg:    cfg,
		log:    logger.With().Str("component", "events").Logger(),
	}
}

// Start subscribes all four channels as one operation. If any subscription
// fails the ones already made are undone and the manager can be started
// again.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrStopped
	}

	dcfg := m.cfg.Dispatch
	dcfg.Logger = &m.log
	if dcfg.ErrorHandler == nil {
		dcfg.ErrorHandler = m.handlerFailed
	}
	exec := dispatch.NewExecutor(dcfg)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	m.exec = exec
	m.ctx = runCtx
	unlisten := make([]func(), 0, len(types.Channels()))
	for _, ch := range types.Channels() {
		un, err := m.src.Listen(ch, m.route(ch))
		if err != nil {
			for _, u := range unlisten {
				u()
			}
			cancel()
			exec.Stop()
			m.exec, m.ctx = nil, nil
			m.log.Error().Err(err).Str("channel", string(ch)).Msg("subscription failed, rolled back")
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
		unlisten = append(unlisten, un)
	}

	m.unlisten = unlisten
	m.cancel = cancel
	m.state = stateRunning
	m.log.Debug().Int("channels", len(unlisten)).Msg("subscribed")
	return nil
}

// Stop unsubscribes every channel and stops handler dispatch. It is
// idempotent; a manager that was never started simply becomes stopped.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.state != stateRunning {
		m.state = stateStopped
		m.mu.Unlock()
		return
	}
	m.state = stateStopped
	unlisten, exec, cancel := m.unlisten, m.exec, m.cancel
	m.unlisten = nil
	m.mu.Unlock()

	for _, u := range unlisten {
		u()
	}
	cancel()
	exec.Stop()
	m.log.Debug().Msg("unsubscribed")
}

// Running reports whether the subscriptions are live.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateRunning
}

func (m *Manager) handlerFailed(err error) {
	if errors.Is(err, context.Canceled) {
		m.log.Debug().Err(err).Msg("notification handler cancelled")
		return
	}
	m.log.Error().Err(err).Msg("notification handler failed")
}

func (m *Manager) route(ch types.Channel) Handler {
	return func(env types.Envelope) {
		metrics.NotificationsTotal.WithLabelValues(string(ch)).Inc()

		key, job, err := m.jobFor(ch, env.Payload)
		if err != nil {
			metrics.NotificationDecodeFailuresTotal.WithLabelValues(string(ch)).Inc()
			m.log.Warn().Err(err).Str("channel", string(ch)).Msg("dropping malformed notification")
			return
		}

		m.mu.Lock()
		exec, ctx := m.exec, m.ctx
		running := m.state == stateRunning
		m.mu.Unlock()
		if !running || exec == nil {
			return
		}
		if err := exec.Submit(ctx, key, job); err != nil {
			if errors.Is(err, dispatch.ErrExecutorClosed) {
				return
			}
			m.log.Error().Err(err).Str("channel", string(ch)).Str("key", key).Msg("failed to dispatch notification")
		}
	}
}

// jobFor decodes a payload and builds the store mutation for it.
func (m *Manager) jobFor(ch types.Channel, payload json.RawMessage) (string, dispatch.Job, error) {
	switch ch {
	case types.ChannelNewEntry:
		return newEntryKey, &applyThenRefresh{
			apply:   m.store.EntryAdded,
			refresh: m.store.RefreshListAndSearch,
		}, nil

	case types.ChannelImagePending:
		var p types.ImagePending
		if err := decode(payload, &p); err != nil {
			return "", nil, err
		}
		if p.ProvisionalKey == 0 {
			return "", nil, errors.New("missing temp_id")
		}
		return imageKey(p.ProvisionalKey), dispatch.JobFunc(func(context.Context) error {
			if !m.store.InsertPlaceholder(p.ProvisionalKey) {
				m.log.Debug().Int64("temp_id", p.ProvisionalKey).Msg("placeholder already present")
			}
			return nil
		}), nil

	case types.ChannelImageReady:
		var p types.ImageReady
		if err := decode(payload, &p); err != nil {
			return "", nil, err
		}
		if p.ProvisionalKey == 0 {
			return "", nil, errors.New("missing temp_id")
		}
		return imageKey(p.ProvisionalKey), &applyThenRefresh{
			apply: func() {
				if p.Thumbnail != "" && p.ID > types.PlaceholderID && m.thumbs != nil {
					m.thumbs.Put(p.ID, thumbnailURI(p.Thumbnail))
				}
				m.log.Debug().Int64("temp_id", p.ProvisionalKey).Int64("id", p.ID).Msg("image ready")
				m.store.CompleteImage(p.ProvisionalKey)
			},
			refresh: m.store.RefreshFullList,
		}, nil

	case types.ChannelImageError:
		var p types.ImageError
		if err := decode(payload, &p); err != nil {
			return "", nil, err
		}
		if p.ProvisionalKey == 0 {
			return "", nil, errors.New("missing temp_id")
		}
		return imageKey(p.ProvisionalKey), dispatch.JobFunc(func(context.Context) error {
			m.log.Warn().Int64("temp_id", p.ProvisionalKey).Str("error", p.Error).Msg("image processing failed")
			m.store.FailImage(p.ProvisionalKey)
			return nil
		}), nil
	}
	return "", nil, fmt.Errorf("unknown channel %q", ch)
}

// applyThenRefresh mutates local state on the first attempt only. When the
// executor retries a failed job, just the refetch runs again.
type applyThenRefresh struct {
	apply   func()
	refresh func(context.Context) error
	applied bool
}

// Run implements dispatch.Job. Attempts of one job run sequentially on a
// single shard worker.
func (j *applyThenRefresh) Run(ctx context.Context) error {
	if !j.applied {
		j.applied = true
		j.apply()
	}
	return j.refresh(ctx)
}

func decode(payload json.RawMessage, out any) error {
	if len(payload) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(payload, out)
}

func imageKey(k int64) string { return "image:" + strconv.FormatInt(k, 10) }

// thumbnailURI accepts either bare base64 or a complete data URI.
func thumbnailURI(thumb string) string {
	if strings.HasPrefix(thumb, "data:") {
		return thumb
	}
	return types.DataURI(types.DefaultImageMIME, thumb)
}
