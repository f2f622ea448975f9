package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/roamio/atlas/internal/config"
)

const (
	keyIngestByKey  = "ingest:key:%s"
	keyIngestGlobal = "ingest:global"
	keySeedLock     = "seed:lock"
)

// UsageIngestLimiter guards the usage ingest endpoints with a per-credential
// bucket and a global one. A nil limiter means rate limiting is disabled:
// every call passes through.
type UsageIngestLimiter struct {
	bucket *TokenBucket
	locker *Locker

	keyRate     float64
	keyBurst    int
	globalRate  float64
	globalBurst int
	seedLockTTL time.Duration
}

func NewUsageIngestLimiter(cfg config.Config) (*UsageIngestLimiter, error) {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(rl.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if rl.IngestKeyRate <= 0 || rl.IngestKeyBurst <= 0 {
		return nil, errors.New("ingest per-key rate limit must be positive")
	}
	if rl.IngestGlobalRate <= 0 || rl.IngestGlobalBurst <= 0 {
		return nil, errors.New("ingest global rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(rl.RedisPassword),
		DB:       rl.RedisDB,
	})

	return &UsageIngestLimiter{
		bucket:      NewTokenBucket(client),
		locker:      NewLocker(client),
		keyRate:     rl.IngestKeyRate,
		keyBurst:    rl.IngestKeyBurst,
		globalRate:  rl.IngestGlobalRate,
		globalBurst: rl.IngestGlobalBurst,
		seedLockTTL: time.Duration(rl.SeedLockTTLSeconds) * time.Second,
	}, nil
}

func (l *UsageIngestLimiter) Enabled() bool { return l != nil }

// Allow charges one request against the credential's bucket, then the global
// one. A per-credential deny is final and does not touch the global bucket.
func (l *UsageIngestLimiter) Allow(ctx context.Context, keyPrefix string) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}

	allowed, retryAfter, err := l.bucket.Allow(
		ctx,
		fmt.Sprintf(keyIngestByKey, strings.TrimSpace(keyPrefix)),
		l.keyRate,
		l.keyBurst,
	)
	if err != nil || !allowed {
		return allowed, retryAfter, err
	}
	return l.bucket.Allow(ctx, keyIngestGlobal, l.globalRate, l.globalBurst)
}

// TrySeedLock takes the cluster-wide seed lock so concurrent replicas seed
// once. The returned token is required to release.
func (l *UsageIngestLimiter) TrySeedLock(ctx context.Context) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.locker.TryLock(ctx, keySeedLock, l.seedLockTTL)
}

func (l *UsageIngestLimiter) ReleaseSeedLock(ctx context.Context, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, keySeedLock, token)
}
