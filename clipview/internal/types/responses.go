package types

// CountResponse is returned by the total count endpoint.
type CountResponse struct {
	Count int64 `json:"count"`
}

// PinResponse carries the pinned state after a toggle.
type PinResponse struct {
	IsPinned bool `json:"is_pinned"`
}

// ClearResponse reports how many unpinned entries were removed.
type ClearResponse struct {
	Deleted int64 `json:"deleted"`
}
