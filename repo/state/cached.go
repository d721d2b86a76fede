package state

import (
	"context"

	"github.com/dgraph-io/ristretto/v2"
)

// CachedStore 在任意存储前加一层进程内缓存，写入时失效
type CachedStore struct {
	inner Store
	cache *ristretto.Cache[string, string]
}

// NewCachedStore 创建缓存存储，maxCostBytes 为缓存内容总字节数上限
func NewCachedStore(inner Store, maxCostBytes int64) (*CachedStore, error) {
	counters := maxCostBytes / 100 * 10 // 约为预期条目数的 10 倍
	if counters < 1000 {
		counters = 1000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: counters,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedStore{inner: inner, cache: c}, nil
}

func (s *CachedStore) Save(ctx context.Context, key, content string) (string, error) {
	name, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	// 先失效再写入，读取时重新加载
	s.cache.Del(name)
	return s.inner.Save(ctx, name, content)
}

func (s *CachedStore) Load(ctx context.Context, key string) (string, error) {
	name, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	if content, ok := s.cache.Get(name); ok {
		return content, nil
	}
	content, err := s.inner.Load(ctx, name)
	if err != nil {
		return "", err
	}
	s.cache.Set(name, content, int64(len(content))+1)
	return content, nil
}

func (s *CachedStore) Exists(ctx context.Context, key string) (bool, error) {
	name, err := NormalizeKey(key)
	if err != nil {
		return false, err
	}
	if _, ok := s.cache.Get(name); ok {
		return true, nil
	}
	return s.inner.Exists(ctx, name)
}

// Close 关闭缓存及底层存储
func (s *CachedStore) Close() error {
	s.cache.Close()
	return Close(s.inner)
}
