package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis backend. URL wins over Address.
type RedisOptions struct {
	URL      string
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore keeps state in Redis with a TTL on every key.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis opens a client without contacting the server.
func NewRedis(opts RedisOptions) (*RedisStore, error) {
	var options *redis.Options
	if url := strings.TrimSpace(opts.URL); url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		options = parsed
	} else {
		addr := strings.TrimSpace(opts.Address)
		if addr == "" {
			return nil, errors.New("redis address or url is required")
		}
		options = &redis.Options{Addr: addr, Password: opts.Password, DB: opts.DB}
	}
	options.MaxRetries = 3

	return newRedisStore(redis.NewClient(options), opts.TTL), nil
}

func newRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Company(ctx context.Context, user string) (string, error) {
	return s.get(ctx, companyKey(user))
}

func (s *RedisStore) SetCompany(ctx context.Context, user, company string) error {
	return s.set(ctx, companyKey(user), company)
}

func (s *RedisStore) ClearCompany(ctx context.Context, user string) error {
	return s.del(ctx, companyKey(user))
}

func (s *RedisStore) Continuation(ctx context.Context, user string) (string, error) {
	return s.get(ctx, continuationKey(user))
}

func (s *RedisStore) SetContinuation(ctx context.Context, user, rest string) error {
	if rest == "" {
		return s.ClearContinuation(ctx, user)
	}
	return s.set(ctx, continuationKey(user), capContinuation(rest))
}

func (s *RedisStore) ClearContinuation(ctx context.Context, user string) error {
	return s.del(ctx, continuationKey(user))
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
