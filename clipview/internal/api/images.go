package api

import (
	"context"
	"mime"
	"net/http"
	"strconv"

	"github.com/Hewenz/pastee/clipview/internal/types"
)

// FetchThumbnail downloads the reduced preview of an image entry. The MIME
// type comes from the response Content-Type and defaults to image/webp.
func (c *Client) FetchThumbnail(ctx context.Context, id int64) (types.Image, error) {
	if err := ctx.Err(); err != nil {
		return types.Image{}, err
	}
	if err := types.ValidateID(id); err != nil {
		return types.Image{}, err
	}
	resp, err := do("fetch thumbnail", c.request(ctx).
		SetHeader("Accept", "image/*").
		SetPathParam("id", strconv.FormatInt(id, 10)).
		SetQueryParam("thumbnail", "true"),
		http.MethodGet, "/api/clips/{id}/image")
	if err != nil {
		return types.Image{}, err
	}

	mt := types.DefaultImageMIME
	if ct := resp.Header().Get("Content-Type"); ct != "" {
		if parsed, _, perr := mime.ParseMediaType(ct); perr == nil && parsed != "application/octet-stream" {
			mt = parsed
		}
	}
	return types.Image{MIME: mt, Data: resp.Body()}, nil
}
