package rssfeeds

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/DoctorGattino/blog/config"

	"github.com/redis/go-redis/v9"
)

// DefaultSeenKey is the Redis set holding imported entry IDs
const DefaultSeenKey = "blog:imported"

// SeenStore remembers which feed entries were already published
type SeenStore interface {
	// Claim records id and reports whether it was new
	Claim(ctx context.Context, id string) (bool, error)
	// Release forgets id so a later run retries it
	Release(ctx context.Context, id string) error
}

// MemorySeen keeps entry IDs for the life of the process
type MemorySeen struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewMemorySeen() *MemorySeen {
	return &MemorySeen{ids: make(map[string]struct{})}
}

func (m *MemorySeen) Claim(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[id]; ok {
		return false, nil
	}
	m.ids[id] = struct{}{}
	return true, nil
}

func (m *MemorySeen) Release(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ids, id)
	return nil
}

// redisSet is the subset of the go-redis client used by RedisSeen
type redisSet interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisSeen shares imported entry IDs across processes through a Redis set,
// so scheduled imports on several machines do not publish the same entry twice
type RedisSeen struct {
	client redisSet
	closer func() error
	key    string
	ttl    time.Duration
}

// NewRedisSeen connects to Redis and verifies connectivity. A positive ttl
// expires the whole set that long after the most recent claim.
func NewRedisSeen(cfg config.RedisConfig, key string, ttl time.Duration) (*RedisSeen, error) {
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

	if key == "" {
		key = DefaultSeenKey
	}
	return &RedisSeen{client: client, closer: client.Close, key: key, ttl: ttl}, nil
}

// Close closes the underlying Redis client
func (r *RedisSeen) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

// Claim adds id to the set. SADD reports whether the member was new, which
// makes the check and the insert a single step.
func (r *RedisSeen) Claim(ctx context.Context, id string) (bool, error) {
	added, err := r.client.SAdd(ctx, r.key, id).Result()
	if err != nil {
		return false, err
	}

	// Sliding window TTL: the set stays alive for ttl after the latest claim.
	if r.ttl > 0 {
		if err := r.client.Expire(ctx, r.key, r.ttl).Err(); err != nil {
			return added == 1, err
		}
	}
	return added == 1, nil
}

func (r *RedisSeen) Release(ctx context.Context, id string) error {
	return r.client.SRem(ctx, r.key, id).Err()
}

// normalizeLink makes equivalent links hash alike:
// - lowercase scheme and host
// - drop the fragment and tracking parameters (utm_*, fbclid, gclid)
// - trim the trailing slash
func normalizeLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || lk == "fbclid" || lk == "gclid" {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()

	return strings.TrimRight(u.String(), "/")
}
