package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FinFuse/internal/domain/models"
	"FinFuse/internal/domain/repository"
	"FinFuse/pkg/cache"
)

const latestSnapshotKey = "snapshot:latest"

// CacheSnapshotStore keeps the latest engine snapshot in a cache.Service. In production
// that is Redis behind an in-process layer; without Redis it is the memory cache alone.
type CacheSnapshotStore struct {
	cache cache.Service
	ttl   time.Duration
}

// NewCacheSnapshotStore creates a snapshot store. ttl <= 0 keeps snapshots until overwritten.
func NewCacheSnapshotStore(c cache.Service, ttl time.Duration) *CacheSnapshotStore {
	return &CacheSnapshotStore{cache: c, ttl: ttl}
}

func (s *CacheSnapshotStore) Save(ctx context.Context, snap models.EngineSnapshot) error {
	if err := cache.SetJSON(ctx, s.cache, latestSnapshotKey, snap, s.ttl); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (s *CacheSnapshotStore) Latest(ctx context.Context) (*models.EngineSnapshot, error) {
	snap, err := cache.GetJSON[models.EngineSnapshot](ctx, s.cache, latestSnapshotKey)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &snap, nil
}

func (s *CacheSnapshotStore) Health(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

func (s *CacheSnapshotStore) Close() error {
	return s.cache.Close()
}

var _ repository.SnapshotStore = (*CacheSnapshotStore)(nil)
