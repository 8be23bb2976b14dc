package events

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Hewenz/pastee/clipview/internal/metrics"
	"github.com/Hewenz/pastee/clipview/internal/types"
)

// EventsPath is where the backend serves its push endpoint.
const EventsPath = "/api/events"

// readLimit leaves room for inline thumbnails in image-ready payloads.
const readLimit = 8 << 20

// WebSocketSource reads notification envelopes from the backend's push
// endpoint and reconnects with exponential backoff when the connection drops.
// The connection is opened lazily by the first Listen.
type WebSocketSource struct {
	registry

	url        string
	httpClient *http.Client
	header     http.Header
	onConnect  func(reconnect bool)
	log        zerolog.Logger

	initialInterval time.Duration
	maxInterval     time.Duration

	startOnce sync.Once
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// WebSocketOption configures a WebSocketSource.
type WebSocketOption func(*WebSocketSource)

// WithHTTPClient sets the client used for the handshake.
func WithHTTPClient(c *http.Client) WebSocketOption {
	return func(s *WebSocketSource) { s.httpClient = c }
}

// WithHeader adds a header to every handshake request.
func WithHeader(key, value string) WebSocketOption {
	return func(s *WebSocketSource) { s.header.Set(key, value) }
}

// WithOnConnect registers a hook run after every successful handshake.
// reconnect is false for the first connection.
func WithOnConnect(fn func(reconnect bool)) WebSocketOption {
	return func(s *WebSocketSource) { s.onConnect = fn }
}

// WithReconnectBackoff overrides the reconnect interval bounds.
func WithReconnectBackoff(initial, maxInterval time.Duration) WebSocketOption {
	return func(s *WebSocketSource) {
		s.initialInterval = initial
		s.maxInterval = maxInterval
	}
}

// WithSourceLogger overrides the package-global zerolog logger.
func WithSourceLogger(l zerolog.Logger) WebSocketOption {
	return func(s *WebSocketSource) { s.log = l }
}

// NewWebSocketSource targets baseURL + EventsPath. http and https URLs are
// accepted as is.
func NewWebSocketSource(baseURL string, opts ...WebSocketOption) *WebSocketSource {
	ctx, cancel := context.WithCancel(context.Background())
	s := &WebSocketSource{
		url:             strings.TrimRight(baseURL, "/") + EventsPath,
		httpClient:      http.DefaultClient,
		header:          http.Header{},
		log:             log.Logger,
		initialInterval: 250 * time.Millisecond,
		maxInterval:     10 * time.Second,
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "events.websocket").Logger()
	return s
}

// Listen implements Source.
func (s *WebSocketSource) Listen(ch types.Channel, h Handler) (func(), error) {
	if s.ctx.Err() != nil {
		return nil, ErrSourceClosed
	}
	unlisten := s.add(ch, h)
	s.startOnce.Do(func() { go s.run() })
	return unlisten, nil
}

// Close drops the connection and stops reconnecting. It is idempotent.
func (s *WebSocketSource) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		started := true
		s.startOnce.Do(func() { started = false })
		if started {
			<-s.done
		}
	})
	return nil
}

func (s *WebSocketSource) run() {
	defer close(s.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initialInterval
	bo.MaxInterval = s.maxInterval
	bo.MaxElapsedTime = 0 // retry until closed
	bo.Reset()

	connected := false
	for s.ctx.Err() == nil {
		conn, _, err := websocket.Dial(s.ctx, s.url, &websocket.DialOptions{
			HTTPClient: s.httpClient,
			HTTPHeader: s.header,
		})
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			wait := bo.NextBackOff()
			s.log.Warn().Err(err).Dur("retry_in", wait).Msg("push connection failed")
			if !s.sleep(wait) {
				return
			}
			continue
		}

		bo.Reset()
		conn.SetReadLimit(readLimit)
		if connected {
			metrics.ReconnectsTotal.Inc()
			s.log.Info().Msg("push connection re-established")
		} else {
			s.log.Debug().Str("url", s.url).Msg("push connection established")
		}
		if s.onConnect != nil {
			s.onConnect(connected)
		}
		connected = true

		err = s.read(conn)
		_ = conn.Close(websocket.StatusNormalClosure, "")
		if s.ctx.Err() != nil {
			return
		}
		s.log.Warn().Err(err).Msg("push connection lost")
		if !s.sleep(bo.NextBackOff()) {
			return
		}
	}
}

func (s *WebSocketSource) read(conn *websocket.Conn) error {
	for {
		var env types.Envelope
		if err := wsjson.Read(s.ctx, conn, &env); err != nil {
			return err
		}
		if s.deliver(env) == 0 {
			s.log.Debug().Str("channel", string(env.Event)).Msg("no listener for notification")
		}
	}
}

func (s *WebSocketSource) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}
