package keystore

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store 是通用的版本化密文存储边界。
// 核心只依赖这个接口，不关心存储后端 (Redis / Vault / 文件均可)。
type Store interface {
	// Put 写入一条密文记录
	Put(ctx context.Context, secretID string, payload []byte) error
	// Get 读取密文记录，不存在时返回 ErrSecretNotFound
	Get(ctx context.Context, secretID string) ([]byte, error)
}

var ErrSecretNotFound = errors.New("secret not found")

// ---------------------------------------------------------
// Redis 实现
// ---------------------------------------------------------

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "keystore:"}
}

func (s *RedisStore) Put(ctx context.Context, secretID string, payload []byte) error {
	return s.client.Set(ctx, s.prefix+secretID, payload, 0).Err()
}

func (s *RedisStore) Get(ctx context.Context, secretID string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+secretID).Bytes()
	if err == redis.Nil {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ---------------------------------------------------------
// 内存实现 (测试用)
// ---------------------------------------------------------

type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, secretID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[secretID] = append([]byte(nil), payload...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, secretID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.secrets[secretID]
	if !ok {
		return nil, ErrSecretNotFound
	}
	return append([]byte(nil), data...), nil
}
