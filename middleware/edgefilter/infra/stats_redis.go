package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"edge-gateway/middleware/edgefilter/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore acumula contadores de decisão em hashes do Redis.
//
// Chaves (prefixo padrão "edge:stats"):
//
//	<prefix>:total            action -> n
//	<prefix>:reason           reason -> n
//	<prefix>:minute:<bucket>  action -> n   (expira em ttl)
//	<prefix>:country          <CC>:<action> -> n
//	<prefix>:ip:<ip>          action -> n   (só com trackIPs, expira em ttl)
//
// É só estatística: o estado de rate limit continua local ao processo.
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix string
	// ttl aplica apenas em chaves de série temporal / por IP.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackIPs bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackIPs(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackIPs = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "edge:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.DecisionEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := strings.ToLower(string(ev.Action))

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if ev.Reason != domain.ReasonNone {
		pipe.HIncrBy(ctx, s.prefix+":reason", string(ev.Reason), 1)
	}

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if ev.Country != "" {
		pipe.HIncrBy(ctx, s.prefix+":country", ev.Country+":"+field, 1)
	}

	if s.trackIPs {
		if ip := strings.TrimSpace(ev.IP); ip != "" {
			ipKey := s.prefix + ":ip:" + ip
			pipe.HIncrBy(ctx, ipKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, ipKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
