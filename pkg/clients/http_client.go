// Package clients provides the HTTP client shared by the prober and the
// extraction drivers.
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/adagent/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

// HTTPClient performs GET requests with pacing, HTTP/2 and metrics.
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport
	limiter    *rate.Limiter

	counters *requestCounters
}

// requestCounters is shared between a client and its WithTimeout clones.
type requestCounters struct {
	total  atomic.Int64
	failed atomic.Int64
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout" json:"idle_conn_timeout"`
	DisableCompression  bool          `yaml:"disable_compression" json:"disable_compression"`

	EnableHTTP2 bool `yaml:"enable_http2" json:"enable_http2"`

	// Timeouts. A zero RequestTimeout means no overall deadline.
	DialTimeout           time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout" json:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" json:"response_header_timeout"`
	RequestTimeout        time.Duration `yaml:"request_timeout" json:"request_timeout"`
	KeepAlive             time.Duration `yaml:"keep_alive" json:"keep_alive"`

	InsecureSkipVerify bool `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`

	// Client-side pacing in requests per second; zero disables it.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" json:"rate_burst"`

	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// DefaultHTTPConfig returns the default configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		EnableHTTP2:         true,
		DialTimeout:         30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		RequestTimeout:      0,
		KeepAlive:           30 * time.Second,
		RateLimit:           0,
		RateBurst:           1,
		UserAgent:           "adagent/1.0",
	}
}

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewHTTPClient creates a new HTTP client. A nil config uses defaults.
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &HTTPClient{
		config:   config,
		logger:   logger.With(zap.String("component", "http_client")),
		counters: &requestCounters{},
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		DisableCompression:    config.DisableCompression,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify, //nolint:gosec // opt-in for local mock APIs
			MinVersion:         tls.VersionTLS12,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	client.httpClient = &http.Client{
		Transport: client.transport,
		Timeout:   config.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return client
}

// WithTimeout returns a client sharing this client's transport and request
// counters but with a different overall request timeout.
func (c *HTTPClient) WithTimeout(timeout time.Duration) *HTTPClient {
	cfg := *c.config
	cfg.RequestTimeout = timeout
	clone := &HTTPClient{
		counters:  c.counters,
		config:    &cfg,
		logger:    c.logger,
		transport: c.transport,
		limiter:   c.limiter,
	}
	clone.httpClient = &http.Client{
		Transport:     c.transport,
		Timeout:       timeout,
		CheckRedirect: c.httpClient.CheckRedirect,
	}
	return clone
}

// Get performs a GET of rawURL with the given query parameters and headers
// and reads the whole body. Non-2xx statuses are not errors.
func (c *HTTPClient) Get(ctx context.Context, rawURL string, query url.Values, headers map[string]string) (*Response, error) {
	target := rawURL
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		target = rawURL + sep + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" && c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	return c.Do(req)
}

// Do performs an HTTP request and reads the full response body.
func (c *HTTPClient) Do(req *http.Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			c.counters.failed.Add(1)
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	c.counters.total.Add(1)
	host := req.URL.Host
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	metrics.HTTPLatency.WithLabelValues(host).Observe(time.Since(start).Seconds())
	if err != nil {
		c.counters.failed.Add(1)
		metrics.HTTPRequests.WithLabelValues(host, "error").Inc()
		c.logger.Debug("request failed", zap.String("url", req.URL.String()), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.counters.failed.Add(1)
		metrics.HTTPRequests.WithLabelValues(host, "error").Inc()
		return nil, fmt.Errorf("read response body: %w", err)
	}
	metrics.HTTPRequests.WithLabelValues(host, strconv.Itoa(resp.StatusCode)).Inc()

	c.logger.Debug("request complete",
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// GetStats returns request totals, including those made through
// WithTimeout clones.
func (c *HTTPClient) GetStats() HTTPStats {
	total := c.counters.total.Load()
	failed := c.counters.failed.Load()
	stats := HTTPStats{TotalRequests: total, FailedRequests: failed}
	if total > 0 {
		stats.SuccessRate = float64(total-failed) / float64(total) * 100
	}
	return stats
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests  int64   `json:"total_requests"`
	FailedRequests int64   `json:"failed_requests"`
	SuccessRate    float64 `json:"success_rate"`
}

// JoinURL joins a base URL and an endpoint with exactly one slash.
func JoinURL(baseURL, endpoint string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}
