package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps bcrypt hashes of codes under otp:<email> with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(email string) string {
	return "otp:" + NormalizeEmail(email)
}

func (s *RedisStore) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	hash, err := hashCode(code)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, redisKey(email), hash, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

func (s *RedisStore) Verify(ctx context.Context, email, code string) (bool, error) {
	key := redisKey(email)
	hash, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load otp: %w", err)
	}
	if !matches(hash, code) {
		return false, nil
	}
	// Del reports 0 when a concurrent verify already consumed the code.
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return n == 1, nil
}
