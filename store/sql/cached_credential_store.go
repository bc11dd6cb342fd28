package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-verify/core"
)

const credentialCacheKeyPrefix = "go-verify::credential::v1"

// Negative entries expire below the default escrow tick interval so a
// credential written behind the wrapper's back is picked up on the next
// poll.
const defaultNegativeEntryTTL = 2 * time.Second

// cachedCredential makes the availability bit part of the cached value so a
// hit can answer "not here yet" without touching the base store again.
// CachedAt bounds how long a negative answer is trusted.
type cachedCredential struct {
	Credential core.Credential
	Found      bool
	CachedAt   time.Time
}

// CredentialBackend is the store the cache fronts.
type CredentialBackend interface {
	Get(ctx context.Context, said string) (core.Credential, bool, error)
	Put(ctx context.Context, cred core.Credential) error
	Delete(ctx context.Context, said string) error
}

// CachedCredentialStore fronts a credential store with a read-through
// cache. Presentation retries poll the same SAID every tick, so hits are
// the common case. Writes through Put and Delete invalidate immediately;
// writes that bypass the wrapper become visible once the cached absence
// ages past the negative-entry TTL.
type CachedCredentialStore struct {
	base        CredentialBackend
	cache       repositorycache.CacheService
	negativeTTL time.Duration
	now         func() time.Time
}

type CachedCredentialStoreOption func(*CachedCredentialStore)

func WithNegativeEntryTTL(ttl time.Duration) CachedCredentialStoreOption {
	return func(s *CachedCredentialStore) {
		if ttl > 0 {
			s.negativeTTL = ttl
		}
	}
}

func WithCacheClock(now func() time.Time) CachedCredentialStoreOption {
	return func(s *CachedCredentialStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewCachedCredentialStore(
	base CredentialBackend,
	cacheService repositorycache.CacheService,
	opts ...CachedCredentialStoreOption,
) (*CachedCredentialStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: credential cache service is required")
	}
	store := &CachedCredentialStore{
		base:        base,
		cache:       cacheService,
		negativeTTL: defaultNegativeEntryTTL,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

// CredentialCacheKey returns the deterministic cache key for a SAID:
// go-verify::credential::v1::<said> with the SAID URL-path escaped.
func CredentialCacheKey(said string) (string, error) {
	said = strings.TrimSpace(said)
	if said == "" {
		return "", fmt.Errorf("sqlstore: credential SAID is required")
	}
	return credentialCacheKeyPrefix + "::" + url.PathEscape(said), nil
}

func (s *CachedCredentialStore) Get(ctx context.Context, said string) (core.Credential, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Credential{}, false, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	cacheKey, err := CredentialCacheKey(said)
	if err != nil {
		return core.Credential{}, false, err
	}

	fetch := func(ctx context.Context) (cachedCredential, error) {
		cred, found, fetchErr := s.base.Get(ctx, said)
		if fetchErr != nil {
			return cachedCredential{}, fetchErr
		}
		return cachedCredential{Credential: cred, Found: found, CachedAt: s.now()}, nil
	}

	cached, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, fetch)
	if err != nil {
		return core.Credential{}, false, err
	}
	if !cached.Found && s.now().Sub(cached.CachedAt) > s.negativeTTL {
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			return core.Credential{}, false, err
		}
		cached, err = repositorycache.GetOrFetch(ctx, s.cache, cacheKey, fetch)
		if err != nil {
			return core.Credential{}, false, err
		}
	}
	return cached.Credential, cached.Found, nil
}

func (s *CachedCredentialStore) Put(ctx context.Context, cred core.Credential) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	if err := s.base.Put(ctx, cred); err != nil {
		return err
	}
	cacheKey, err := CredentialCacheKey(cred.SAID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func (s *CachedCredentialStore) Delete(ctx context.Context, said string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	if err := s.base.Delete(ctx, said); err != nil {
		return err
	}
	cacheKey, err := CredentialCacheKey(said)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.CredentialStore = (*CachedCredentialStore)(nil)
