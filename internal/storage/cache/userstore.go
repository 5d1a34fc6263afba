package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-condo-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-condo-notifier/pkg/push"
)

// UsersKey holds the cached user list.
const UsersKey = "condo:push:users"

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns ErrCacheMiss when the key is absent.
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedUserStore adds read-aside caching to a dispatch.UserStore. Every
// token write invalidates the cached list.
type CachedUserStore struct {
	realStore dispatch.UserStore
	cache     CacheClient
	ttl       time.Duration
	logger    *slog.Logger
}

func NewCachedUserStore(realStore dispatch.UserStore, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedUserStore {
	return &CachedUserStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With("component", "CachedUserStore"),
	}
}

func (s *CachedUserStore) ListUsers(ctx context.Context) ([]push.UserRecord, error) {
	var cached []push.UserRecord
	err := s.cache.Get(ctx, UsersKey, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("Cache read failed, falling back to store", "err", err)
	}

	fresh, err := s.realStore.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	// Caching is an optimization; the store stays the source of truth.
	if err := s.cache.Set(ctx, UsersKey, fresh, s.ttl); err != nil {
		s.logger.Warn("Cache fill failed", "err", err)
	}
	return fresh, nil
}

func (s *CachedUserStore) SetPushToken(ctx context.Context, userID, token string) error {
	if err := s.realStore.SetPushToken(ctx, userID, token); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ClearPushToken must drop the cache so a dead token stops being targeted
// on the next event.
func (s *CachedUserStore) ClearPushToken(ctx context.Context, token string) error {
	if err := s.realStore.ClearPushToken(ctx, token); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CachedUserStore) ClearUserPushToken(ctx context.Context, userID, token string) error {
	if err := s.realStore.ClearUserPushToken(ctx, userID, token); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// invalidate drops the cached list. The write already landed, so a failed
// Del only leaves stale entries until the TTL expires.
func (s *CachedUserStore) invalidate(ctx context.Context) {
	if err := s.cache.Del(ctx, UsersKey); err != nil {
		s.logger.Warn("Cache invalidation failed", "key", UsersKey, "err", err)
	}
}
