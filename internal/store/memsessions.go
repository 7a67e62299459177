package store

import (
	"context"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/samber/oops"
)

// MemorySessions keeps session payloads in an in-process bigcache. Every
// entry shares the cache life window, so the ttl passed to Set is ignored.
type MemorySessions struct {
	cache *bigcache.BigCache
}

func NewMemorySessions(ttl time.Duration) (*MemorySessions, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = time.Minute
	cache, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, oops.Code("SESSION_BACKEND_UNAVAILABLE").With("backend", "memory").Wrap(err)
	}
	return &MemorySessions{cache: cache}, nil
}

func (m *MemorySessions) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	return m.cache.Set(key, value)
}

// Get returns nil, nil for missing keys and for entries past the life
// window that the cleaner has not evicted yet.
func (m *MemorySessions) Get(_ context.Context, key string) ([]byte, error) {
	buf, info, err := m.cache.GetWithInfo(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if info.EntryStatus == bigcache.Expired {
		return nil, nil
	}
	return buf, nil
}

func (m *MemorySessions) Del(_ context.Context, key string) error {
	err := m.cache.Delete(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (m *MemorySessions) Close() error {
	return m.cache.Close()
}
