// Package cache provides the generation cache: storage backends implementing
// outbound.CacheRepository and a Generator decorator that reuses replies.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dailynoats/planner/internal/ports/outbound"
)

const defaultMemoryTTL = 24 * time.Hour

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryRepository is an in-process CacheRepository with TTL expiry
type MemoryRepository struct {
	data  map[string]memoryItem
	mutex sync.RWMutex
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
}

var _ outbound.CacheRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an in-memory cache that sweeps expired keys
// every cleanupInterval. A zero interval disables the sweeper.
func NewMemoryRepository(cleanupInterval time.Duration) *MemoryRepository {
	r := &MemoryRepository{
		data: make(map[string]memoryItem),
		now:  time.Now,
		stop: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go r.cleanup(cleanupInterval)
	}
	return r
}

// Get retrieves a value from cache
func (r *MemoryRepository) Get(ctx context.Context, key string) ([]byte, error) {
	r.mutex.RLock()
	item, exists := r.data[key]
	r.mutex.RUnlock()

	if !exists || !r.now().Before(item.expiresAt) {
		return nil, outbound.ErrCacheMiss
	}

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

// Set stores a value in cache with TTL
func (r *MemoryRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	r.mutex.Lock()
	r.data[key] = memoryItem{value: stored, expiresAt: r.now().Add(ttl)}
	r.mutex.Unlock()
	return nil
}

// Delete removes a key from cache
func (r *MemoryRepository) Delete(ctx context.Context, key string) error {
	r.mutex.Lock()
	delete(r.data, key)
	r.mutex.Unlock()
	return nil
}

// Exists checks if a live key exists in cache
func (r *MemoryRepository) Exists(ctx context.Context, key string) (bool, error) {
	r.mutex.RLock()
	item, exists := r.data[key]
	r.mutex.RUnlock()
	return exists && r.now().Before(item.expiresAt), nil
}

// Len returns the number of stored keys, expired or not
func (r *MemoryRepository) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.data)
}

// Close stops the sweeper
func (r *MemoryRepository) Close() error {
	r.once.Do(func() { close(r.stop) })
	return nil
}

func (r *MemoryRepository) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *MemoryRepository) sweep() {
	now := r.now()
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for key, item := range r.data {
		if !now.Before(item.expiresAt) {
			delete(r.data, key)
		}
	}
}
