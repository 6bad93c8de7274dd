package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore 会话存 Redis，带 TTL，重启不丢
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

type record struct {
	UserID    uint  `json:"uid"`
	IssuedAt  int64 `json:"iat"`
	ExpiresAt int64 `json:"exp"`
}

func key(token string) string    { return fmt.Sprintf("lending:sess:%s", token) }
func userSetKey(uid uint) string { return fmt.Sprintf("lending:user_sessions:%d", uid) }

func (s *RedisStore) Put(ctx context.Context, token string, userID uint) error {
	now := time.Now()
	b, err := json.Marshal(record{
		UserID:    userID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	})
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key(token), b, s.ttl)
	pipe.SAdd(ctx, userSetKey(userID), token)
	pipe.Expire(ctx, userSetKey(userID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, token string) (uint, error) {
	b, err := s.rdb.Get(ctx, key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return 0, fmt.Errorf("decode session: %w", err)
	}
	return rec.UserID, nil
}

func (s *RedisStore) Remove(ctx context.Context, token string) error {
	uid, err := s.Get(ctx, token)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key(token))
	if err == nil {
		pipe.SRem(ctx, userSetKey(uid), token)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) RemoveAllForUser(ctx context.Context, userID uint) error {
	tokens, err := s.rdb.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := s.rdb.TxPipeline()
	for _, t := range tokens {
		pipe.Del(ctx, key(t))
	}
	pipe.Del(ctx, userSetKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}
