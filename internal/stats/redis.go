package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore mirrors counters into Redis hashes:
//
//	<prefix>:total                 cumulative, never expires
//	<prefix>:minute:YYYYMMDDhhmm   per-minute bucket, expires after ttl
type RedisStore struct {
	rdb *redis.Client

	prefix string
	ttl    time.Duration
	bucket string // "minute" (default) or "none"
}

type RedisOption func(*RedisStore)

func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = d }
}

func WithBucket(bucket string) RedisOption {
	return func(s *RedisStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: "ratelab:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TotalKey is the hash holding cumulative counters
func (s *RedisStore) TotalKey() string { return s.prefix + ":total" }

// BucketKey is the per-minute hash for t
func (s *RedisStore) BucketKey(t time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, t.UTC().Format("200601021504"))
}

func (s *RedisStore) Record(ctx context.Context, ev Event) error {
	if s == nil || s.rdb == nil || ev.Name == "" {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.TotalKey(), ev.Name, ev.Delta)

	if s.bucket == "minute" {
		bucketKey := s.BucketKey(at)
		pipe.HIncrBy(ctx, bucketKey, ev.Name, ev.Delta)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
