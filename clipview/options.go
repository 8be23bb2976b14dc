package clipview

// This file defines functional options that configure a Session during
// construction. Options only record settings; New builds the components
// after every option has been applied.

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hewenz/pastee/clipview/internal/dispatch"
)

// Option configures a Session during construction in New.
type Option func(*Session) error

// WithConfig replaces every environment-backed setting at once. The base URL
// passed to New still wins when non-empty.
func WithConfig(cfg Config) Option {
	return func(s *Session) error {
		s.cfg = cfg
		return nil
	}
}

// WithHTTPTimeout bounds a single HTTP request. The value must be greater
// than zero.
func WithHTTPTimeout(d time.Duration) Option {
	return func(s *Session) error {
		if d <= 0 {
			return fmt.Errorf("http timeout must be > 0")
		}
		s.cfg.HTTPTimeout = d
		return nil
	}
}

// WithDebugLogging dumps every HTTP request and response at debug level when
// enabled is true. It may log clipboard contents; keep it out of production.
func WithDebugLogging(enabled bool) Option {
	return func(s *Session) error {
		s.cfg.Debug = s.cfg.Debug || enabled
		return nil
	}
}

// WithLogger overrides the package-global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) error {
		s.log = l
		return nil
	}
}

// WithPageSize sets the number of entries per page.
func WithPageSize(n int) Option {
	return func(s *Session) error {
		if n <= 0 {
			return fmt.Errorf("page size must be > 0")
		}
		s.cfg.PageSize = n
		return nil
	}
}

// WithOffset sets the page cursor the first list load in Start uses.
func WithOffset(n int) Option {
	return func(s *Session) error {
		if n < 0 {
			return fmt.Errorf("offset must be >= 0")
		}
		s.offset = n
		return nil
	}
}

// WithThumbnailCacheSize bounds the thumbnail cache. Zero disables eviction.
func WithThumbnailCacheSize(n int) Option {
	return func(s *Session) error {
		if n < 0 {
			return fmt.Errorf("thumbnail cache size must be >= 0")
		}
		s.cfg.ThumbnailCacheSize = n
		return nil
	}
}

// WithSource replaces the websocket push connection, for example with an
// in-process Bus. The session does not close a source it did not create.
func WithSource(src Source) Option {
	return func(s *Session) error {
		if src == nil {
			return fmt.Errorf("source must not be nil")
		}
		s.source = src
		return nil
	}
}

// WithConfirmer gates Delete. Without one every delete is confirmed.
func WithConfirmer(c Confirmer) Option {
	return func(s *Session) error {
		s.confirmer = c
		return nil
	}
}

// WithNotifier receives notices about failed deletes, pins and clears.
func WithNotifier(n Notifier) Option {
	return func(s *Session) error {
		s.notifier = n
		return nil
	}
}

// WithDispatchConfig tunes the executor that runs notification handlers.
func WithDispatchConfig(cfg dispatch.Config) Option {
	return func(s *Session) error {
		s.dispatchCfg = cfg
		return nil
	}
}
