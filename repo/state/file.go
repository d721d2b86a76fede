package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore 每个槽位对应数据目录下的一个文件
type FileStore struct {
	dir string
}

// NewFileStore 创建文件存储，目录不存在时自动创建
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s failed: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir 数据目录
func (s *FileStore) Dir() string {
	return s.dir
}

// path 槽位文件路径
func (s *FileStore) path(key string) (string, error) {
	name, err := NormalizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Save 写入槽位文件
func (s *FileStore) Save(_ context.Context, key, content string) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Load 读取槽位文件
func (s *FileStore) Load(_ context.Context, key string) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrReadFailed, path, err)
	}
	return string(data), nil
}

// Exists 判断槽位文件是否存在
func (s *FileStore) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
