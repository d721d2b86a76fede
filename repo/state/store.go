package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hildam/relay-flow-go/entity/conf"
	"github.com/hildam/relay-flow-go/entity/consts"
	"github.com/hildam/relay-flow-go/entity/model"
)

var (
	// ErrNotFound 槽位不存在，属于缓存未命中而非错误
	ErrNotFound = errors.New("state slot not found")
	// ErrReadFailed 槽位存在但读取失败
	ErrReadFailed = errors.New("state slot read failed")
	// ErrInvalidKey 槽位名非法
	ErrInvalidKey = errors.New("invalid state slot key")
)

// Store 以字符串 key 寻址的文本槽位存储
type Store interface {
	// Save 整体写入槽位内容，返回实际存储位置
	Save(ctx context.Context, key, content string) (location string, err error)
	// Load 读取槽位内容，不存在时返回 ErrNotFound，其余错误包装 ErrReadFailed
	Load(ctx context.Context, key string) (string, error)
	// Exists 判断槽位是否存在
	Exists(ctx context.Context, key string) (bool, error)
}

// NormalizeKey 归一化槽位名，没有扩展名时补充默认扩展名
func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if filepath.Ext(key) == "" {
		key += consts.DefaultSlotExtension
	}
	return key, nil
}

// SaveStatus 写入槽位并返回状态文本，不向上抛出错误
func SaveStatus(ctx context.Context, s Store, key, content string) string {
	location, err := s.Save(ctx, key, content)
	if err != nil {
		return fmt.Sprintf("Failed to save state %s: %v", key, err)
	}
	return fmt.Sprintf("Saved state to %s", location)
}

// LoadOptional 读取槽位，不存在或内容为空时 ok 为 false
func LoadOptional(ctx context.Context, s Store, key string) (content string, ok bool, err error) {
	content, err = s.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return content, content != "", nil
}

// Collect 按顺序读取一组槽位
func Collect(ctx context.Context, s Store, keys []string) []model.Slot {
	slots := make([]model.Slot, 0, len(keys))
	for _, key := range keys {
		content, ok, err := LoadOptional(ctx, s, key)
		slots = append(slots, model.Slot{
			Key:     key,
			Content: content,
			Found:   ok,
			Err:     err,
		})
	}
	return slots
}

// GetContext 拼接一组槽位，每个 key 一段，缺失的槽位以占位文本呈现
func GetContext(ctx context.Context, s Store, keys []string) string {
	return model.RenderSlots(Collect(ctx, s, keys))
}

// New 根据配置创建存储
func New(ctx context.Context, cfg conf.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case "", "file":
		s, err = NewFileStore(cfg.Dir)
	case "memory":
		s = NewMemoryStore()
	case "redis":
		s, err = NewRedisStore(ctx, cfg.RedisURL, cfg.Prefix)
	case "nats":
		s, err = NewKVStore(ctx, cfg.NatsURL, cfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s store failed: %w", cfg.Backend, err)
	}

	if cfg.CacheBytes > 0 {
		cached, err := NewCachedStore(s, cfg.CacheBytes)
		if err != nil {
			_ = Close(s)
			return nil, fmt.Errorf("create store cache failed: %w", err)
		}
		s = cached
	}
	return s, nil
}

// Close 释放存储持有的连接
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
