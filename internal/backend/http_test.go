package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/releasedesk/internal/order"
)

func newReleaseService(t *testing.T, handler http.HandlerFunc, opts ...HTTPOption) *HTTP {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewHTTP(HTTPConfig{Name: "MES", BaseURL: srv.URL + "/", Timeout: time.Second}, opts...)
	require.NoError(t, err)
	return client
}

func TestNewHTTPValidatesBaseURL(t *testing.T) {
	_, err := NewHTTP(HTTPConfig{})
	require.Error(t, err)
	_, err = NewHTTP(HTTPConfig{BaseURL: "ftp://erp.local"})
	require.Error(t, err)
	h, err := NewHTTP(HTTPConfig{BaseURL: "http://erp.local:9000"})
	require.NoError(t, err)
	assert.Equal(t, "erp.local:9000", h.Name())
}

func TestHTTPConnectChecksHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	h := newReleaseService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, h.Connect(context.Background()))
	healthy.Store(false)
	err := h.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPReleasePostsOrder(t *testing.T) {
	h := newReleaseService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders/ORD-001/release", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CORO-001", body["product"])
		assert.Equal(t, "L2024-001", body["lot"])
		_ = json.NewEncoder(w).Encode(map[string]any{"released": true})
	})
	outcome := h.Release(context.Background(), order.SampleOrders()[0])
	assert.True(t, outcome.Released)
	assert.Empty(t, outcome.Reason)
}

func TestHTTPReleaseMapsFailuresToOutcomes(t *testing.T) {
	cases := map[string]struct {
		handler http.HandlerFunc
		reason  string
	}{
		"rejected with reason": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"released":false,"reason":"lot locked"}`))
			},
			reason: "lot locked",
		},
		"rejected without reason": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"released":false}`))
			},
			reason: "rejected",
		},
		"server error": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			reason: "502",
		},
		"bad payload": {
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
			reason: "decode response",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newReleaseService(t, tc.handler)
			outcome := h.Release(context.Background(), order.Order{ID: "ORD-9"})
			assert.False(t, outcome.Released)
			assert.Contains(t, outcome.Reason, tc.reason)
		})
	}
}

func TestHTTPReleaseTransportErrorIsFailedOutcome(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	h, err := NewHTTP(HTTPConfig{BaseURL: url, Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	outcome := h.Release(context.Background(), order.Order{ID: "ORD-1"})
	assert.False(t, outcome.Released)
	assert.NotEmpty(t, outcome.Reason)
	require.Error(t, h.Connect(context.Background()))
}

func TestHTTPTimeoutIsFailedOutcome(t *testing.T) {
	h := newReleaseService(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	outcome := h.Release(context.Background(), order.Order{ID: "ORD-1"})
	assert.False(t, outcome.Released)
	assert.True(t, strings.Contains(outcome.Reason, "Timeout") || strings.Contains(outcome.Reason, "deadline"), outcome.Reason)
}

func TestHTTPReleaseKeepsOrderIDInOneSegment(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	h := newReleaseService(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.EscapedPath())
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"released": true})
	})

	outcome := h.Release(context.Background(), order.Order{ID: "../health"})
	assert.True(t, outcome.Released)
	outcome = h.Release(context.Background(), order.Order{ID: "ORD 7"})
	assert.True(t, outcome.Released)

	for _, id := range []string{"..", ".", " "} {
		outcome = h.Release(context.Background(), order.Order{ID: id})
		assert.False(t, outcome.Released, "id %q", id)
		assert.Contains(t, outcome.Reason, "invalid order id")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/orders/..%2Fhealth/release", "/orders/ORD%207/release"}, paths)
}
