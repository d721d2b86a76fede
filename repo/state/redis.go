package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore 槽位保存为 redis 字符串，不设置过期时间
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 连接 redis 并校验连通性
func NewRedisStore(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// slotKey 返回槽位在 redis 中的 key
func (s *RedisStore) slotKey(key string) (string, error) {
	name, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	return s.prefix + name, nil
}

func (s *RedisStore) Save(ctx context.Context, key, content string) (string, error) {
	k, err := s.slotKey(key)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, k, content, 0).Err(); err != nil {
		return "", err
	}
	return "redis://" + k, nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (string, error) {
	k, err := s.slotKey(key)
	if err != nil {
		return "", err
	}
	content, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrReadFailed, k, err)
	}
	return content, nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	k, err := s.slotKey(key)
	if err != nil {
		return false, err
	}
	n, err := s.client.Exists(ctx, k).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close 关闭 redis 连接
func (s *RedisStore) Close() error {
	return s.client.Close()
}
