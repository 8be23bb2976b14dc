// Package api is the stateless request layer over the clipboard backend.
// Every call maps to exactly one HTTP request; nothing is cached or retried
// here.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/Hewenz/pastee/clipview/internal/errors"
)

const (
	headerRequestID = "X-Request-ID"
	headerSessionID = "X-Session-ID"
)

// Client talks to the backend over HTTP/JSON.
type Client struct {
	rc *resty.Client
}

// New wraps httpClient (which may carry a debug transport and timeout) in a
// resty client rooted at baseURL.
func New(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	rc := resty.NewWithClient(httpClient).
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json")
	rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if r.Header.Get(headerRequestID) == "" {
			r.SetHeader(headerRequestID, uuid.NewString())
		}
		return nil
	})
	return &Client{rc: rc}
}

// WithSession tags every subsequent request with the session id.
func (c *Client) WithSession(id string) *Client {
	c.rc.SetHeader(headerSessionID, id)
	return c
}

// BaseURL returns the backend root this client targets.
func (c *Client) BaseURL() string { return c.rc.BaseURL }

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.rc.R().SetContext(ctx)
}

// do executes r and converts transport failures and non-2xx statuses into
// classified errors.
func do(op string, r *resty.Request, method, path string) (*resty.Response, error) {
	resp, err := r.Execute(method, path)
	if err != nil {
		return nil, errors.NewNetworkError(op, err)
	}
	if resp.IsError() || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, errors.NewHTTPError(op, resp.StatusCode(), resp.String())
	}
	return resp, nil
}

func decode(op string, resp *resty.Response, out any) error {
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
