package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DoctorGattino/blog/config"
	"github.com/DoctorGattino/blog/types"

	"github.com/redis/go-redis/v9"
)

// redisKV is the subset of the go-redis client used by RedisStore
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	GetEx(ctx context.Context, key string, expiration time.Duration) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps the session under a single Redis key so several machines can share it
type RedisStore struct {
	client redisKV
	closer func() error
	key    string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies connectivity
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	key := cfg.Key
	if key == "" {
		key = config.DefaultRedisSessionKey
	}
	return &RedisStore{client: client, closer: client.Close, key: key}, nil
}

// WithTTL expires the stored session after d of inactivity. Every Save and Load
// restarts the countdown; zero keeps it forever.
func (s *RedisStore) WithTTL(d time.Duration) *RedisStore {
	s.ttl = d
	return s
}

// Close closes the underlying Redis client
func (s *RedisStore) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *RedisStore) Load(ctx context.Context) (types.User, bool, error) {
	var cmd *redis.StringCmd
	if s.ttl > 0 {
		cmd = s.client.GetEx(ctx, s.key, s.ttl)
	} else {
		cmd = s.client.Get(ctx, s.key)
	}
	raw, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return types.User{}, false, nil
	}
	if err != nil {
		return types.User{}, false, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	var env types.UserEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return types.User{}, false, fmt.Errorf("parse session at %s: %w", s.key, err)
	}
	return env.User, env.User.Token != "", nil
}

func (s *RedisStore) Save(ctx context.Context, user types.User) error {
	data, err := json.Marshal(types.UserEnvelope{User: user})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}
