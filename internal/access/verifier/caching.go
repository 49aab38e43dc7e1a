package verifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"

	dErrors "beacon/pkg/domain-errors"
	"beacon/pkg/requestcontext"
)

const (
	DefaultCacheTTL     = 5 * time.Minute
	defaultCacheCleanup = 10 * time.Minute
)

// CachingVerifier remembers verification outcomes, including rejections, so
// bcrypt and signature checks run once per credential per TTL. Infrastructure
// errors are never cached.
type CachingVerifier struct {
	next  Verifier
	cache *gocache.Cache
	ttl   time.Duration
	now   func() time.Time
}

type cached struct {
	verified *Verified
	err      error
}

func NewCachingVerifier(next Verifier, ttl time.Duration) *CachingVerifier {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachingVerifier{
		next:  next,
		cache: gocache.New(ttl, defaultCacheCleanup),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *CachingVerifier) Verify(ctx context.Context, cred requestcontext.Credential) (*Verified, error) {
	key := cacheKey(cred)
	if v, found := c.cache.Get(key); found {
		if entry, ok := v.(cached); ok {
			return entry.verified, entry.err
		}
	}

	verified, err := c.next.Verify(ctx, cred)
	switch {
	case err == nil:
		ttl := c.ttl
		if !verified.ExpiresAt.IsZero() {
			ttl = min(ttl, verified.ExpiresAt.Sub(c.now()))
		}
		if ttl > 0 {
			c.cache.Set(key, cached{verified: verified}, ttl)
		}
	case dErrors.HasCode(err, dErrors.CodeUnauthorized):
		c.cache.SetDefault(key, cached{err: err})
	}
	return verified, err
}

// cacheKey hashes the secret so plaintext credentials never sit in the cache.
func cacheKey(cred requestcontext.Credential) string {
	sum := sha256.Sum256([]byte(cred.Secret))
	return string(cred.Scheme) + ":" + hex.EncodeToString(sum[:])
}
