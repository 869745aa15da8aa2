// --- File: internal/storage/cache/tokenstore.go ---
package cache

import (
	"context"
	"fmt"
	"time"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-push-receiver/pkg/registration"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or an error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedStore adds read-aside caching to any registration.Store.
type CachedStore struct {
	realStore registration.Store
	cache     CacheClient
	ttl       time.Duration
}

func NewCachedStore(realStore registration.Store, cache CacheClient, ttl time.Duration) *CachedStore {
	return &CachedStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedStore) Fetch(ctx context.Context, installation urn.URN) (*registration.Registration, error) {
	key := s.cacheKey(installation)

	var cached registration.Registration
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	fresh, err := s.realStore.Fetch(ctx, installation)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization; a Redis outage just means reads hit the store.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)

	return fresh, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedStore) RegisterFCM(ctx context.Context, installation urn.URN, token string) error {
	if err := s.realStore.RegisterFCM(ctx, installation, token); err != nil {
		return err
	}
	return s.invalidate(ctx, installation)
}

func (s *CachedStore) RegisterAPNS(ctx context.Context, installation urn.URN, token string) error {
	if err := s.realStore.RegisterAPNS(ctx, installation, token); err != nil {
		return err
	}
	return s.invalidate(ctx, installation)
}

func (s *CachedStore) RegisterWeb(ctx context.Context, installation urn.URN, sub registration.WebSubscription) error {
	if err := s.realStore.RegisterWeb(ctx, installation, sub); err != nil {
		return err
	}
	return s.invalidate(ctx, installation)
}

// Unregister paths must clear the cache even though the store write succeeded,
// otherwise dead tokens keep being targeted until the TTL runs out.
func (s *CachedStore) UnregisterFCM(ctx context.Context, installation urn.URN, token string) error {
	if err := s.realStore.UnregisterFCM(ctx, installation, token); err != nil {
		return err
	}
	return s.invalidate(ctx, installation)
}

func (s *CachedStore) UnregisterAPNS(ctx context.Context, installation urn.URN, token string) error {
	if err := s.realStore.UnregisterAPNS(ctx, installation, token); err != nil {
		return err
	}
	return s.invalidate(ctx, installation)
}

func (s *CachedStore) UnregisterWeb(ctx context.Context, installation urn.URN, endpoint string) error {
	if err := s.realStore.UnregisterWeb(ctx, installation, endpoint); err != nil {
		return err
	}
	return s.invalidate(ctx, installation)
}

// --- Helpers ---

func (s *CachedStore) invalidate(ctx context.Context, installation urn.URN) error {
	return s.cache.Del(ctx, s.cacheKey(installation))
}

func (s *CachedStore) cacheKey(installation urn.URN) string {
	return fmt.Sprintf("pushreceiver:registration:%s", installation.String())
}
