package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"rate-cache-service/internal/domain/model"
	"rate-cache-service/internal/domain/ports"
	"rate-cache-service/pkg/logger"
)

// RedisStore keeps each snapshot as a JSON string under <prefix><name>.
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

func NewRedisStore(client *redis.Client, prefix string, log *logger.Logger) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, log: log}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) Load(ctx context.Context, name string) (model.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ports.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key(name), err)
	}

	snap, skipped, err := model.DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.log.Warn("Skipped unreadable snapshot entries", "key", s.key(name), "skipped", skipped)
	}
	return snap, nil
}

// Save overwrites the snapshot without expiry; staleness is judged by the
// record timestamps, not by redis.
func (s *RedisStore) Save(ctx context.Context, name string, snap model.Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if err := s.client.Set(ctx, s.key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(name), err)
	}
	return nil
}
