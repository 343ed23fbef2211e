package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CursorStore 持久化扫块游标，进程重启后从上次已处理的高度继续。
type CursorStore interface {
	GetLastScannedBlock(ctx context.Context, chainCode string) (int64, error)
	SetLastScannedBlock(ctx context.Context, chainCode string, height int64) error
}

// RedisCursorStore 把游标存在 redis 里，key 形如 scan:cursor:tron。
type RedisCursorStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCursorStore(rdb *redis.Client) *RedisCursorStore {
	// 游标长期有效；TTL 仅用于清理已下线链的残留
	return &RedisCursorStore{rdb: rdb, ttl: 30 * 24 * time.Hour}
}

func (s *RedisCursorStore) key(chainCode string) string {
	return "scan:cursor:" + chainCode
}

func (s *RedisCursorStore) GetLastScannedBlock(ctx context.Context, chainCode string) (int64, error) {
	val, err := s.rdb.Get(ctx, s.key(chainCode)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("读取扫块游标失败: %w", err)
	}
	height, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("扫块游标格式非法 %q: %w", val, err)
	}
	return height, nil
}

func (s *RedisCursorStore) SetLastScannedBlock(ctx context.Context, chainCode string, height int64) error {
	return s.rdb.Set(ctx, s.key(chainCode), strconv.FormatInt(height, 10), s.ttl).Err()
}

// MemoryCursorStore 内存游标，用于测试和单机开发。
type MemoryCursorStore struct {
	mu      sync.Mutex
	cursors map[string]int64
}

func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{cursors: make(map[string]int64)}
}

func (s *MemoryCursorStore) GetLastScannedBlock(_ context.Context, chainCode string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[chainCode], nil
}

func (s *MemoryCursorStore) SetLastScannedBlock(_ context.Context, chainCode string, height int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[chainCode] = height
	return nil
}
