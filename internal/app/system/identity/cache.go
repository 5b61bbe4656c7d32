package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dalemusser/crmhub/internal/app/system/metrics"
	"github.com/dalemusser/crmhub/internal/app/system/timeouts"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachingVerifier memoizes successful verifications for a bounded time.
// Only the Identity is cached; roles and memberships are always re-read.
// Failures are never cached.
type CachingVerifier struct {
	next    Verifier
	cache   *expirable.LRU[string, Identity]
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewCachingVerifier wraps next with an LRU of size entries that expire
// after ttl. A non-positive size or ttl disables caching.
func NewCachingVerifier(next Verifier, size int, ttl time.Duration, m *metrics.Metrics) *CachingVerifier {
	cv := &CachingVerifier{next: next, metrics: m, now: time.Now}
	if size > 0 && ttl > 0 {
		cv.cache = expirable.NewLRU[string, Identity](size, nil, ttl)
	}
	return cv
}

func tokenKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// Verify returns a cached identity when one is present and the token has not
// expired; otherwise it calls the wrapped verifier under timeouts.Verify().
func (c *CachingVerifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	var key string
	if c.cache != nil && rawToken != "" {
		key = tokenKey(rawToken)
		if id, ok := c.cache.Get(key); ok {
			if id.ExpiresAt.IsZero() || c.now().Before(id.ExpiresAt) {
				c.metrics.IdentityCache(true)
				return id, nil
			}
			c.cache.Remove(key)
		}
		c.metrics.IdentityCache(false)
	}

	vctx, cancel := context.WithTimeout(ctx, timeouts.Verify())
	defer cancel()
	id, err := c.next.Verify(vctx, rawToken)
	if err != nil {
		return Identity{}, err
	}
	if key != "" {
		c.cache.Add(key, id)
	}
	return id, nil
}

// Len reports the number of cached identities.
func (c *CachingVerifier) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
