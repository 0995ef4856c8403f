package gateway

import (
	"context"
	"sync"
	"time"
)

// tokenRefreshSkew renews a cached token shortly before the provider expires it.
const tokenRefreshSkew = time.Minute

// TokenFetcher obtains a fresh OAuth access token and its lifetime
type TokenFetcher func(ctx context.Context) (token string, ttl time.Duration, err error)

// TokenCache holds one OAuth access token and refreshes it on demand
type TokenCache struct {
	expiresAt time.Time
	fetch     TokenFetcher
	now       func() time.Time
	token     string
	mu        sync.Mutex
}

// NewTokenCache creates a TokenCache backed by fetch
func NewTokenCache(fetch TokenFetcher) *TokenCache {
	return &TokenCache{fetch: fetch, now: time.Now}
}

// Token returns the cached token, fetching a new one when it is missing or about to expire
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt.Add(-tokenRefreshSkew)) {
		return c.token, nil
	}

	token, ttl, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiresAt = c.now().Add(ttl)
	return token, nil
}

// Invalidate drops the cached token, typically after the provider answered 401
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}
