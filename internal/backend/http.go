package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kingrea/releasedesk/internal/order"
	"github.com/kingrea/releasedesk/internal/release"
)

// HTTPConfig points the client at a release service.
type HTTPConfig struct {
	Name          string
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
}

// HTTP releases orders through a JSON API:
//
//	GET  {base}/health
//	POST {base}/orders/{id}/release  -> {"released": bool, "reason": string}
type HTTP struct {
	name    string
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
}

// HTTPOption customizes the HTTP backend.
type HTTPOption func(*HTTP)

// WithHTTPClient swaps the underlying client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		if client != nil {
			h.client = client
		}
	}
}

// NewHTTP validates cfg and returns a client.
func NewHTTP(cfg HTTPConfig, opts ...HTTPOption) (*HTTP, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, fmt.Errorf("backend: http base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend: unsupported url scheme %q", base.Scheme)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	name := cfg.Name
	if name == "" {
		name = base.Host
	}
	h := &HTTP{
		name:    name,
		base:    base,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *HTTP) Name() string { return h.name }

// Connect checks that the service reports healthy.
func (h *HTTP) Connect(ctx context.Context) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("backend: wait for rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint("health"), nil)
	if err != nil {
		return fmt.Errorf("backend: build health request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend: health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("backend: health check returned %s", resp.Status)
	}
	return nil
}

type releaseRequest struct {
	Product   string `json:"product"`
	Lot       string `json:"lot"`
	PreHop    string `json:"prehop"`
	DescOrder string `json:"desc_order"`
	Plant     string `json:"plant"`
	Line      string `json:"line"`
	Battery   string `json:"battery"`
}

type releaseResponse struct {
	Released bool   `json:"released"`
	Reason   string `json:"reason"`
}

// Release posts one order. Every error becomes a failed outcome.
func (h *HTTP) Release(ctx context.Context, o order.Order) release.Outcome {
	resp, err := h.release(ctx, o)
	if err != nil {
		return release.Outcome{Reason: err.Error()}
	}
	if !resp.Released && resp.Reason == "" {
		resp.Reason = "rejected"
	}
	return release.Outcome{Released: resp.Released, Reason: resp.Reason}
}

func (h *HTTP) release(ctx context.Context, o order.Order) (releaseResponse, error) {
	var out releaseResponse
	segment, err := pathSegment(o.ID)
	if err != nil {
		return out, err
	}
	if err := h.limiter.Wait(ctx); err != nil {
		return out, err
	}
	body, err := json.Marshal(releaseRequest{
		Product:   o.Product,
		Lot:       o.Lot,
		PreHop:    o.PreHop,
		DescOrder: o.DescOrder,
		Plant:     o.Plant,
		Line:      o.Line,
		Battery:   o.Battery,
	})
	if err != nil {
		return out, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint("orders", segment, "release"), bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return out, fmt.Errorf("http %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// pathSegment escapes an order id so it always stays one path element.
func pathSegment(id string) (string, error) {
	switch strings.TrimSpace(id) {
	case "", ".", "..":
		return "", fmt.Errorf("invalid order id %q", id)
	}
	return url.PathEscape(id), nil
}

// endpoint expects parts already escaped.
func (h *HTTP) endpoint(parts ...string) string {
	return h.base.JoinPath(parts...).String()
}
