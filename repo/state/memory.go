package state

import (
	"context"
	"sync"
)

// MemoryStore 进程内存储，用 map 实现，适用于测试和一次性的查询
type MemoryStore struct {
	mu  sync.RWMutex
	buf map[string]string // 归一化后的 key -> 内容
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buf: make(map[string]string),
	}
}

func (m *MemoryStore) Save(_ context.Context, key, content string) (string, error) {
	name, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf[name] = content
	return "memory://" + name, nil
}

func (m *MemoryStore) Load(_ context.Context, key string) (string, error) {
	name, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.buf[name]
	if !ok {
		return "", ErrNotFound
	}
	return content, nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	name, err := NormalizeKey(key)
	if err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.buf[name]
	return ok, nil
}
