package clipview

import (
	"github.com/Hewenz/pastee/clipview/internal/events"
	"github.com/Hewenz/pastee/clipview/internal/store"
	"github.com/Hewenz/pastee/clipview/internal/types"
)

// Public type aliases so consumers can import only the clipview package.
type (
	// Domain entities
	Entry       = types.Entry
	ContentType = types.ContentType
	Filter      = types.Filter
	ClipContent = types.ClipContent

	// Push notifications
	Channel  = types.Channel
	Envelope = types.Envelope
	Source   = events.Source
	Handler  = events.Handler
	Bus      = events.Bus

	// View state and collaborators
	Snapshot    = store.Snapshot
	Notice      = store.Notice
	Confirmer   = store.Confirmer
	ConfirmFunc = store.ConfirmFunc
	Notifier    = store.Notifier
	NotifyFunc  = store.NotifyFunc
)

const (
	ContentText  = types.ContentText
	ContentHTML  = types.ContentHTML
	ContentColor = types.ContentColor
	ContentImage = types.ContentImage
	ContentFiles = types.ContentFiles

	FilterAll = types.FilterAll

	ChannelNewEntry     = types.ChannelNewEntry
	ChannelImagePending = types.ChannelImagePending
	ChannelImageReady   = types.ChannelImageReady
	ChannelImageError   = types.ChannelImageError
)

// ParseFilter accepts "", "all" or any content type spelling.
func ParseFilter(s string) (Filter, error) { return types.ParseFilter(s) }

// NewBus creates an in-process notification source for WithSource.
func NewBus(buffer int) *Bus { return events.NewBus(buffer) }
