package types

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// ------------------------------
// Core Domain Entities
// ------------------------------

// ContentType is the closed set of clipboard payload kinds the backend stores.
type ContentType string

const (
	ContentText  ContentType = "Text"
	ContentHTML  ContentType = "Html"
	ContentColor ContentType = "Color"
	ContentImage ContentType = "Image"
	ContentFiles ContentType = "Files"
)

var contentTypes = []ContentType{ContentText, ContentHTML, ContentColor, ContentImage, ContentFiles}

// ContentTypes returns every known content type in display order.
func ContentTypes() []ContentType {
	out := make([]ContentType, len(contentTypes))
	copy(out, contentTypes)
	return out
}

// Valid reports whether c is one of the known content types.
func (c ContentType) Valid() bool {
	for _, ct := range contentTypes {
		if c == ct {
			return true
		}
	}
	return false
}

// ParseContentType accepts the wire spelling ("Html") as well as lower case ("html").
func ParseContentType(s string) (ContentType, error) {
	for _, ct := range contentTypes {
		if strings.EqualFold(s, string(ct)) {
			return ct, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownContentType, s)
}

// PlaceholderID is the id carried by entries that the backend has not persisted yet.
const PlaceholderID int64 = 0

// PendingPreview is the transient preview label shown on image placeholders.
const PendingPreview = "Processing..."

// Entry represents a single clipboard record as seen by the client.
type Entry struct {
	ID          int64       `json:"id"`
	ContentType ContentType `json:"content_type"`
	Preview     string      `json:"preview"`
	CreatedAt   int64       `json:"created_at"` // microseconds since epoch
	IsPinned    bool        `json:"is_pinned"`
	Tags        []string    `json:"tags"`

	// Client-side only: set while image enrichment is outstanding.
	IsProcessing   bool  `json:"loading,omitempty"`
	ProvisionalKey int64 `json:"temp_id,omitempty"`
}

// NewPlaceholder builds the presentation-only entry inserted when an image
// capture is announced but not yet persisted.
func NewPlaceholder(key int64, now time.Time) Entry {
	return Entry{
		ID:             PlaceholderID,
		ContentType:    ContentImage,
		Preview:        PendingPreview,
		CreatedAt:      now.UnixMicro(),
		Tags:           []string{"image"},
		IsProcessing:   true,
		ProvisionalKey: key,
	}
}

// Persisted reports whether the entry has a backend-assigned id.
func (e Entry) Persisted() bool { return !e.IsProcessing && e.ID > PlaceholderID }

// Valid checks the placeholder/persisted invariants of a single entry.
func (e Entry) Valid() error {
	if e.IsProcessing {
		if e.ID != PlaceholderID {
			return fmt.Errorf("%w: processing entry carries id %d", ErrInvalidEntry, e.ID)
		}
		if e.ProvisionalKey == 0 {
			return fmt.Errorf("%w: processing entry without provisional key", ErrInvalidEntry)
		}
		return nil
	}
	if e.ID <= PlaceholderID {
		return fmt.Errorf("%w: persisted entry without id", ErrInvalidEntry)
	}
	if e.ProvisionalKey != 0 {
		return fmt.Errorf("%w: persisted entry %d still carries provisional key", ErrInvalidEntry, e.ID)
	}
	return nil
}

// Filter restricts a list to one content type. FilterAll keeps everything.
type Filter string

// FilterAll is the "all types" sentinel.
const FilterAll Filter = ""

// ParseFilter accepts "", "all" or any content type spelling.
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return FilterAll, nil
	}
	ct, err := ParseContentType(s)
	if err != nil {
		return FilterAll, fmt.Errorf("%w: %q", ErrInvalidFilter, s)
	}
	return Filter(ct), nil
}

// Valid reports whether f is FilterAll or a known content type.
func (f Filter) Valid() bool { return f == FilterAll || ContentType(f).Valid() }

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool { return f == FilterAll || e.ContentType == ContentType(f) }

// Apply returns a new slice holding the entries that pass the filter.
func (f Filter) Apply(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// ClipContent is the full payload of a stored entry, used when pasting.
type ClipContent struct {
	Type  string   `json:"type"` // text, html, image, files, color
	Data  string   `json:"data,omitempty"`
	Text  string   `json:"text,omitempty"`
	HTML  string   `json:"html,omitempty"`
	Files []string `json:"files,omitempty"`
}

// Image is decoded thumbnail content as returned by the backend.
type Image struct {
	MIME string
	Data []byte
}

// DefaultImageMIME is what the backend encodes thumbnails as.
const DefaultImageMIME = "image/webp"

// DataURI renders the image as an inline data URI.
func (i Image) DataURI() string {
	return DataURI(i.MIME, base64.StdEncoding.EncodeToString(i.Data))
}

// DataURI builds a data URI from an already base64-encoded payload.
func DataURI(mime, b64 string) string {
	if mime == "" {
		mime = DefaultImageMIME
	}
	return "data:" + mime + ";base64," + b64
}
