package types

import "encoding/json"

// Channel names a backend push notification stream.
type Channel string

const (
	ChannelNewEntry     Channel = "clipboard://new-clip"
	ChannelImagePending Channel = "clipboard://image-pending"
	ChannelImageReady   Channel = "clipboard://image-ready"
	ChannelImageError   Channel = "clipboard://image-error"
)

// Channels returns the fixed set of channels a view session subscribes to.
func Channels() []Channel {
	return []Channel{ChannelNewEntry, ChannelImagePending, ChannelImageReady, ChannelImageError}
}

// Envelope is the wire frame carrying one notification.
type Envelope struct {
	Event   Channel         `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEntryPayload accompanies ChannelNewEntry. Both fields are informational.
type NewEntryPayload struct {
	Type    string `json:"type,omitempty"`
	Preview string `json:"preview,omitempty"`
}

// ImagePending announces an image capture awaiting enrichment.
type ImagePending struct {
	ProvisionalKey int64 `json:"temp_id"`
}

// ImageReady reports that the capture was persisted. Thumbnail is base64 and optional.
type ImageReady struct {
	ProvisionalKey int64  `json:"temp_id"`
	ID             int64  `json:"id"`
	Thumbnail      string `json:"thumbnail,omitempty"`
}

// ImageError reports that enrichment failed for the capture.
type ImageError struct {
	ProvisionalKey int64  `json:"temp_id"`
	Error          string `json:"error"`
}

// NewEnvelope marshals payload into an envelope for ch.
func NewEnvelope(ch Channel, payload any) (Envelope, error) {
	env := Envelope{Event: ch}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Payload = raw
	return env, nil
}
