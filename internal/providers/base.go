package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sermady/stockdata-core/internal/apperr"
)

// httpAdapter is the shared machinery every concrete vendor adapter embeds:
// a rate-limited client, a base URL, and a uniform way to turn transport
// failures and non-2xx responses into the apperr taxonomy. Each concrete
// adapter supplies only its endpoint paths and field mapping, the same
// split internal/clients/tradernet/sdk/client.go draws between its queue
// plumbing and its authorizedRequest/plainRequest callers.
type httpAdapter struct {
	name       string
	baseURL    string
	apiKey     string
	client     *RateLimitedClient
	log        zerolog.Logger
}

func newHTTPAdapter(name, baseURL, apiKey string, minSpacing time.Duration, log zerolog.Logger) httpAdapter {
	return httpAdapter{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  NewRateLimitedClient(minSpacing, log.With().Str("provider", name).Logger()),
		log:     log.With().Str("provider", name).Logger(),
	}
}

// getJSON issues a GET request against path (already including query
// string) and decodes a JSON body into out. Non-2xx responses and
// transport errors are classified into the apperr taxonomy so callers and
// the retry helper can tell transient failures from permanent ones.
func (h *httpAdapter) getJSON(ctx context.Context, path string, out interface{}) error {
	url := h.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperr.Wrap(apperr.ProviderPermanent, "build request", err)
	}
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return apperr.Wrap(apperr.Cancelled, "request cancelled", err)
		}
		return apperr.Wrap(apperr.ProviderTransient, fmt.Sprintf("%s request failed", h.name), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.ProviderTransient, "reading response body", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperr.New(apperr.ProviderRateLimited, fmt.Sprintf("%s rate limited (status %d)", h.name, resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return apperr.New(apperr.NotFound, fmt.Sprintf("%s: resource not found", h.name))
	case resp.StatusCode >= 500:
		return apperr.New(apperr.ProviderTransient, fmt.Sprintf("%s server error (status %d)", h.name, resp.StatusCode))
	case resp.StatusCode >= 400:
		return apperr.New(apperr.ProviderPermanent, fmt.Sprintf("%s client error (status %d): %s", h.name, resp.StatusCode, string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Wrap(apperr.ProviderPermanent, fmt.Sprintf("%s: malformed response body", h.name), err)
	}
	return nil
}

// unsupported builds the standard response for a capability a vendor does
// not offer, per the Adapter doc comment's contract.
func (h *httpAdapter) unsupported(capability string) error {
	return apperr.New(apperr.ProviderUnsupported, fmt.Sprintf("%s does not support %s", h.name, capability))
}

// Close releases the adapter's rate-limited client worker goroutine.
func (h *httpAdapter) Close() {
	h.client.Close()
}
