package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, endpoint, want string
	}{
		{"http://localhost:8000", "/api/v1/campaigns", "http://localhost:8000/api/v1/campaigns"},
		{"http://localhost:8000/", "/api/v1/campaigns", "http://localhost:8000/api/v1/campaigns"},
		{"http://localhost:8000/", "api/v1/campaigns", "http://localhost:8000/api/v1/campaigns"},
		{"http://localhost:8000", "ads_archive", "http://localhost:8000/ads_archive"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinURL(tt.base, tt.endpoint))
	}
}

func TestHTTPClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("X-RateLimit-Remaining", "42")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewHTTPClient(nil, zap.NewNop())
	defer client.Close()

	resp, err := client.Get(context.Background(), server.URL, url.Values{"page": {"2"}}, map[string]string{"X-Api-Key": "k"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.False(t, resp.OK())
	assert.Equal(t, "42", resp.Header.Get("X-RateLimit-Remaining"))
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))

	stats := client.GetStats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(0), stats.FailedRequests)
}

func TestHTTPClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewHTTPClient(nil, zap.NewNop()).WithTimeout(20 * time.Millisecond)
	_, err := client.Get(context.Background(), server.URL, nil, nil)
	require.Error(t, err)
	assert.Equal(t, int64(1), client.GetStats().FailedRequests)
}

func TestHTTPClient_ClonesShareStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := NewHTTPClient(nil, zap.NewNop())
	clone := client.WithTimeout(time.Second)

	_, err := client.Get(context.Background(), server.URL, nil, nil)
	require.NoError(t, err)
	_, err = clone.Get(context.Background(), server.URL, nil, nil)
	require.NoError(t, err)

	stats := client.GetStats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, 100.0, stats.SuccessRate)
	assert.Equal(t, stats, clone.GetStats())
}

func TestHTTPClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPClient(nil, nil).Get(ctx, server.URL, nil, nil)
	assert.Error(t, err)
}

func TestHTTPClient_RateLimitPacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	cfg := DefaultHTTPConfig()
	cfg.RateLimit = 20
	cfg.RateBurst = 1
	client := NewHTTPClient(cfg, zap.NewNop())

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), server.URL, nil, nil)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
