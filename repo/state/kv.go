package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// KVStore 槽位保存在 NATS JetStream KeyValue bucket 中
type KVStore struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// NewKVStore 连接 NATS 并创建（或复用）bucket
func NewKVStore(ctx context.Context, natsURL, bucket string) (*KVStore, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, err
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "relay-flow pipeline state slots",
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create kv bucket %s failed: %w", bucket, err)
	}
	return &KVStore{nc: nc, kv: kv}, nil
}

func (s *KVStore) Save(ctx context.Context, key, content string) (string, error) {
	name, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	if _, err := s.kv.Put(ctx, name, []byte(content)); err != nil {
		return "", err
	}
	return "nats://" + s.kv.Bucket() + "/" + name, nil
}

func (s *KVStore) Load(ctx context.Context, key string) (string, error) {
	name, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	entry, err := s.kv.Get(ctx, name)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrReadFailed, name, err)
	}
	return string(entry.Value()), nil
}

func (s *KVStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close 关闭 NATS 连接
func (s *KVStore) Close() error {
	s.nc.Close()
	return nil
}
