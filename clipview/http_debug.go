package clipview

import (
	"net/http"
	"net/http/httputil"
	"os"

	"github.com/rs/zerolog"
)

// debugTransport logs full request and response dumps at debug level.
//
// Enable with PASTEE_DEBUG=true, DEBUG=true or WithDebugLogging(true).
// Bodies are included, so clipboard contents end up in the log.
type debugTransport struct {
	base http.RoundTripper
	log  zerolog.Logger
}

func newDebugTransport(base http.RoundTripper, l zerolog.Logger) *debugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &debugTransport{base: base, log: l}
}

func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if reqDump, err := httputil.DumpRequestOut(req, true); err == nil {
		dt.log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Str("request_dump", string(reqDump)).Msg("HTTP request")
	}

	resp, err := dt.base.RoundTrip(req)
	if err != nil {
		dt.log.Error().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("HTTP request failed")
		return nil, err
	}

	// Thumbnail bodies are binary; dump headers only.
	body := resp.Header.Get("Content-Type") == "application/json"
	if respDump, err := httputil.DumpResponse(resp, body); err == nil {
		dt.log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Int("status_code", resp.StatusCode).Str("response_dump", string(respDump)).Msg("HTTP response")
	}
	return resp, nil
}

// debugLoggingRequested checks PASTEE_DEBUG and the generic DEBUG flag.
func debugLoggingRequested() bool {
	return os.Getenv("PASTEE_DEBUG") == "true" || os.Getenv("DEBUG") == "true"
}
