package sqlstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-verify/core"
)

type stubCredentialBackend struct {
	mu       sync.Mutex
	creds    map[string]core.Credential
	getCalls int
	getErr   error
}

func newStubCredentialBackend() *stubCredentialBackend {
	return &stubCredentialBackend{creds: map[string]core.Credential{}}
}

func (s *stubCredentialBackend) Get(_ context.Context, said string) (core.Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return core.Credential{}, false, s.getErr
	}
	cred, ok := s.creds[said]
	return cred, ok, nil
}

func (s *stubCredentialBackend) Put(_ context.Context, cred core.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.SAID] = cred
	return nil
}

func (s *stubCredentialBackend) Delete(_ context.Context, said string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, said)
	return nil
}

func newTestCredentialCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedCredentialStore_Get_MissFetchThenHit(t *testing.T) {
	base := newStubCredentialBackend()
	base.creds["EABC123"] = core.Credential{SAID: "EABC123", SchemaID: core.SchemaIDCard}

	store, err := NewCachedCredentialStore(base, newTestCredentialCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	if _, found, err := store.Get(context.Background(), "EABC123"); err != nil || !found {
		t.Fatalf("first get: found=%v err=%v", found, err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected one base read, got %d", base.getCalls)
	}

	if _, found, err := store.Get(context.Background(), "EABC123"); err != nil || !found {
		t.Fatalf("second get: found=%v err=%v", found, err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected cache hit, base reads=%d", base.getCalls)
	}
}

func TestCachedCredentialStore_CachesAbsence(t *testing.T) {
	base := newStubCredentialBackend()
	store, err := NewCachedCredentialStore(base, newTestCredentialCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	for i := 0; i < 2; i++ {
		_, found, err := store.Get(context.Background(), "EMISSING")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if found {
			t.Fatalf("expected credential to be absent")
		}
	}
	if base.getCalls != 1 {
		t.Fatalf("expected absence to be cached, base reads=%d", base.getCalls)
	}
}

func TestCachedCredentialStore_NegativeEntryAgesOut(t *testing.T) {
	base := newStubCredentialBackend()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store, err := NewCachedCredentialStore(base, newTestCredentialCacheService(t),
		WithNegativeEntryTTL(2*time.Second),
		WithCacheClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	if _, found, err := store.Get(context.Background(), "EABC123"); err != nil || found {
		t.Fatalf("prime miss: found=%v err=%v", found, err)
	}

	// The credential lands in the backing table without going through the
	// wrapper. Within the negative TTL the cached absence still answers.
	base.mu.Lock()
	base.creds["EABC123"] = core.Credential{SAID: "EABC123", SchemaID: core.SchemaIDCard}
	base.mu.Unlock()
	if _, found, err := store.Get(context.Background(), "EABC123"); err != nil || found {
		t.Fatalf("expected cached absence inside TTL: found=%v err=%v", found, err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected single base read inside TTL, got %d", base.getCalls)
	}

	// Past the TTL the negative entry is dropped and the poll sees the
	// credential.
	now = now.Add(3 * time.Second)
	_, found, err := store.Get(context.Background(), "EABC123")
	if err != nil {
		t.Fatalf("get after TTL: %v", err)
	}
	if !found {
		t.Fatalf("expected aged-out negative entry to expose the credential")
	}
	if base.getCalls != 2 {
		t.Fatalf("expected refetch after TTL, got %d base reads", base.getCalls)
	}
}

func TestCachedCredentialStore_PutInvalidatesCachedKey(t *testing.T) {
	base := newStubCredentialBackend()
	store, err := NewCachedCredentialStore(base, newTestCredentialCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	// Prime the cache with a miss, then register the credential: the next
	// read must see it.
	if _, _, err := store.Get(context.Background(), "EABC123"); err != nil {
		t.Fatalf("prime get: %v", err)
	}
	if err := store.Put(context.Background(), core.Credential{SAID: "EABC123", SchemaID: core.SchemaIDCard}); err != nil {
		t.Fatalf("put: %v", err)
	}

	_, found, err := store.Get(context.Background(), "EABC123")
	if err != nil {
		t.Fatalf("get after put: %v", err)
	}
	if !found {
		t.Fatalf("expected invalidation to expose the new credential")
	}
	if base.getCalls != 2 {
		t.Fatalf("expected second base read after invalidation, got %d", base.getCalls)
	}
}

func TestCachedCredentialStore_PropagatesBaseErrors(t *testing.T) {
	base := newStubCredentialBackend()
	base.getErr = fmt.Errorf("connection refused")
	store, err := NewCachedCredentialStore(base, newTestCredentialCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	if _, _, err := store.Get(context.Background(), "EABC123"); err == nil {
		t.Fatalf("expected base error propagation")
	}
}

func TestCredentialCacheKey_Contract(t *testing.T) {
	key, err := CredentialCacheKey("EABC/123")
	if err != nil {
		t.Fatalf("build cache key: %v", err)
	}
	const expected = "go-verify::credential::v1::EABC%2F123"
	if key != expected {
		t.Fatalf("unexpected cache key: got %q want %q", key, expected)
	}

	if _, err := CredentialCacheKey("  "); err == nil {
		t.Fatalf("expected empty SAID error")
	}
}
