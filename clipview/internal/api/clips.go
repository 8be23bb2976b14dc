package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Hewenz/pastee/clipview/internal/types"
)

// ListPage retrieves one page of the full history, newest and pinned first.
func (c *Client) ListPage(ctx context.Context, limit, offset int) ([]types.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := types.ValidatePage(limit, offset); err != nil {
		return nil, err
	}
	resp, err := do("list page", c.request(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetQueryParam("offset", strconv.Itoa(offset)),
		http.MethodGet, "/api/clips")
	if err != nil {
		return nil, err
	}
	return decodeEntries("list page", resp.Body())
}

// Search runs a backend text search.
func (c *Client) Search(ctx context.Context, query string) ([]types.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := types.ValidateQuery(query); err != nil {
		return nil, err
	}
	resp, err := do("search", c.request(ctx).SetQueryParam("query", query),
		http.MethodGet, "/api/clips/search")
	if err != nil {
		return nil, err
	}
	return decodeEntries("search", resp.Body())
}

// TotalCount returns the number of stored entries.
func (c *Client) TotalCount(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	resp, err := do("total count", c.request(ctx), http.MethodGet, "/api/clips/count")
	if err != nil {
		return 0, err
	}
	var out types.CountResponse
	if err := decode("total count", resp, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Delete removes one entry.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := types.ValidateID(id); err != nil {
		return err
	}
	_, err := do("delete", c.request(ctx).SetPathParam("id", strconv.FormatInt(id, 10)),
		http.MethodDelete, "/api/clips/{id}")
	return err
}

// TogglePin flips the pinned flag and returns the new state.
func (c *Client) TogglePin(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := types.ValidateID(id); err != nil {
		return false, err
	}
	resp, err := do("toggle pin", c.request(ctx).SetPathParam("id", strconv.FormatInt(id, 10)),
		http.MethodPost, "/api/clips/{id}/pin")
	if err != nil {
		return false, err
	}
	var out types.PinResponse
	if err := decode("toggle pin", resp, &out); err != nil {
		return false, err
	}
	return out.IsPinned, nil
}

// ClearUnpinned deletes every unpinned entry and returns how many went.
func (c *Client) ClearUnpinned(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	resp, err := do("clear unpinned", c.request(ctx), http.MethodPost, "/api/clips/clear-unpinned")
	if err != nil {
		return 0, err
	}
	var out types.ClearResponse
	if err := decode("clear unpinned", resp, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

// FetchContent returns the full payload of an entry.
func (c *Client) FetchContent(ctx context.Context, id int64) (types.ClipContent, error) {
	if err := ctx.Err(); err != nil {
		return types.ClipContent{}, err
	}
	if err := types.ValidateID(id); err != nil {
		return types.ClipContent{}, err
	}
	resp, err := do("fetch content", c.request(ctx).SetPathParam("id", strconv.FormatInt(id, 10)),
		http.MethodGet, "/api/clips/{id}/content")
	if err != nil {
		return types.ClipContent{}, err
	}
	var out types.ClipContent
	if err := decode("fetch content", resp, &out); err != nil {
		return types.ClipContent{}, err
	}
	return out, nil
}

func decodeEntries(op string, body []byte) ([]types.Entry, error) {
	var out []types.Entry
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if out == nil {
		out = []types.Entry{}
	}
	return out, nil
}
