package compliance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/preventia/preventia-core/internal/logging"
)

// robotsCacheEntry holds a parsed robots.txt plus the time it was fetched,
// so callers can apply a TTL and fail closed past it.
type robotsCacheEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	fetchErr  error
}

// RobotsCache is the shared, reader-biased robots.txt cache required by
// spec.md §5 ("the robots.txt cache is shared and guarded by a
// reader-biased lock"). It is keyed by the Source's base URL origin.
type RobotsCache struct {
	mu      sync.RWMutex
	entries map[string]*robotsCacheEntry

	client    *http.Client
	userAgent string
	ttl       time.Duration
	log       *logging.Logger
}

// NewRobotsCache builds a cache fetching through client, tagging requests
// with userAgent, treating entries as stale after ttl.
func NewRobotsCache(client *http.Client, userAgent string, ttl time.Duration) *RobotsCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsCache{
		entries:   make(map[string]*robotsCacheEntry),
		client:    client,
		userAgent: userAgent,
		ttl:       ttl,
		log:       logging.Default().WithComponent("compliance.robots"),
	}
}

// Get returns the cached (or freshly fetched) robots.txt data for origin.
// On fetch failure past the TTL it returns a nil data and the error,
// signalling the fail-closed path to the caller (§4.1).
func (c *RobotsCache) Get(ctx context.Context, origin string) (*robotstxt.RobotsData, time.Duration, error) {
	c.mu.RLock()
	entry, ok := c.entries[origin]
	c.mu.RUnlock()

	if ok {
		age := time.Since(entry.fetchedAt)
		if age < c.ttl {
			return entry.data, age, entry.fetchErr
		}
	}

	return c.refresh(ctx, origin)
}

func (c *RobotsCache) refresh(ctx context.Context, origin string) (*robotstxt.RobotsData, time.Duration, error) {
	data, err := c.fetchWithRetry(ctx, origin)

	c.mu.Lock()
	c.entries[origin] = &robotsCacheEntry{data: data, fetchedAt: time.Now(), fetchErr: err}
	c.mu.Unlock()

	if err != nil {
		c.log.WithField("origin", origin).Warnf("robots.txt fetch failed: %v", err)
	}
	return data, 0, err
}

// fetchWithRetry fetches robots.txt, retrying transient failures twice
// with exponential backoff (base 2s, cap 30s), per §4.1.
func (c *RobotsCache) fetchWithRetry(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	robotsURL := strings.TrimSuffix(origin, "/") + "/robots.txt"

	var lastErr error
	backoff := 2 * time.Second
	for attempt := 0; attempt <= 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
		}

		data, err := c.fetchOnce(ctx, robotsURL)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch robots.txt from %s: %w", robotsURL, lastErr)
}

func (c *RobotsCache) fetchOnce(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	return robotstxt.FromStatusAndBytes(resp.StatusCode, body)
}

// Origin returns the scheme://host[:port] portion of rawURL, used as the
// robots cache key.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}
