package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/preventia/preventia-core/internal/extractor"
	"golang.org/x/net/proxy"
)

// HTTPFetcher is the concrete extractor.Fetcher: a timeout-bounded HTTP
// client, optionally routed through a SOCKS5 proxy for anonymized egress,
// generalized from the teacher's pkg/network/tor.Client transport wiring.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// FetcherConfig configures an HTTPFetcher.
type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration // default 30s per spec.md §5
	// SOCKSProxyAddr, if set, routes every fetch through a SOCKS5 proxy
	// (e.g. a local Tor daemon) instead of dialing directly.
	SOCKSProxyAddr string
}

// NewHTTPFetcher builds an HTTPFetcher from cfg.
func NewHTTPFetcher(cfg FetcherConfig) (*HTTPFetcher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	if cfg.SOCKSProxyAddr != "" {
		dialer, err := proxy.SOCKS5("tcp", cfg.SOCKSProxyAddr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}

	return &HTTPFetcher{
		client:    &http.Client{Transport: transport, Timeout: timeout},
		userAgent: cfg.UserAgent,
	}, nil
}

// Fetch performs a GET request, returning the response body capped at 10MB.
func (h *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &extractor.TransientNetworkError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &extractor.RateLimitedFetchError{RetryAfter: retryAfter}
	}
	if resp.StatusCode >= 500 {
		return nil, &extractor.TransientNetworkError{Cause: fmt.Errorf("http %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return nil, &extractor.HTTPStatusFetchError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &extractor.TransientNetworkError{Cause: err}
	}
	return body, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := time.ParseDuration(header + "s"); err == nil {
		return secs
	}
	if when, err := http.ParseTime(header); err == nil {
		return time.Until(when)
	}
	return 0
}
