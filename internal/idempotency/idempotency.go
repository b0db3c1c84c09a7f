// Package idempotency remembers the outcome of write requests carrying an
// Idempotency-Key header so a retried request is answered without running
// twice.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const Header = "Idempotency-Key"

var ErrInProgress = errors.New("request with this idempotency key is still in progress")

// Response is the stored outcome of a request.
type Response struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type Store interface {
	// Begin claims key. It returns (nil, nil) when the caller owns the key and
	// must run the request, the saved response when one exists, or
	// ErrInProgress while another request holds the claim.
	Begin(ctx context.Context, key string) (*Response, error)
	Save(ctx context.Context, key string, resp Response) error
	Release(ctx context.Context, key string) error
}

const pending = "pending"

// RedisStore keeps saved responses for ttl. A claim whose request never
// finished expires after pendingTTL so a crashed request does not block
// retries for the whole ttl.
type RedisStore struct {
	rdb        *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl, pendingTTL time.Duration) *RedisStore {
	if pendingTTL <= 0 || pendingTTL > ttl {
		pendingTTL = ttl
	}
	return &RedisStore{rdb: rdb, ttl: ttl, pendingTTL: pendingTTL}
}

// Connect parses a redis:// URL and checks the server answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}

func redisKey(key string) string {
	return "idempotency:" + key
}

func (s *RedisStore) Begin(ctx context.Context, key string) (*Response, error) {
	claimed, err := s.rdb.SetNX(ctx, redisKey(key), pending, s.pendingTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if claimed {
		return nil, nil
	}

	val, err := s.rdb.Get(ctx, redisKey(key)).Result()
	if err == redis.Nil {
		// Released between SETNX and GET; the caller may retry.
		return nil, ErrInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	if val == pending {
		return nil, ErrInProgress
	}

	var resp Response
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, fmt.Errorf("decode idempotent response: %w", err)
	}
	return &resp, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode idempotent response: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save idempotent response: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
