package ratelimit

import (
	"sync"
	"time"

	"github.com/ulule/limiter/v3"
)

// BucketConfig describes a token-bucket's steady-state refill rate and the
// maximum it can accumulate.
type BucketConfig struct {
	RefillPerSecond float64
	BurstSize       float64
}

// Preconfigured buckets from 4.B.
var (
	ICECandidateBucket = BucketConfig{RefillPerSecond: 50, BurstSize: 100}
	GameEventBucket    = BucketConfig{RefillPerSecond: 5, BurstSize: 10}
)

// rate expresses the bucket's steady-state rate as a ulule/limiter Rate, kept
// only so this package's bookkeeping stays expressed in the same vocabulary
// as the rest of the corpus's rate limiting (see limiter.go) even though the
// actual consumption below is hand-rolled continuous refill, not the
// library's fixed-window counting.
func (c BucketConfig) rate() limiter.Rate {
	return limiter.Rate{
		Period: time.Second,
		Limit:  int64(c.RefillPerSecond),
	}
}

type bucketState struct {
	tokens     float64
	lastRefill time.Time
}

// MessageLimiter enforces the per-(kind,user) token buckets used by the
// message router (ICE candidates, game events). Unlike the HTTP-facing
// RateLimiter above, buckets here are refilled continuously
// (elapsed * rate, capped at burst) rather than on a fixed window, matching
// 4.B's exact formula.
type MessageLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucketState
	now     func() time.Time
}

// NewMessageLimiter creates an empty message-level limiter.
func NewMessageLimiter() *MessageLimiter {
	return &MessageLimiter{
		buckets: make(map[string]*bucketState),
		now:     time.Now,
	}
}

// key joins kind and user the way 4.B specifies ("kind_user").
func key(kind, user string) string {
	return kind + "_" + user
}

// TryConsume attempts to take n tokens from the (kind,user) bucket described
// by cfg. Buckets are created lazily, full, on first use.
func (m *MessageLimiter) TryConsume(kind, user string, cfg BucketConfig, n float64) bool {
	k := key(kind, user)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[k]
	if !ok {
		b = &bucketState{tokens: cfg.BurstSize, lastRefill: now}
		m.buckets[k] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * cfg.RefillPerSecond
		if b.tokens > cfg.BurstSize {
			b.tokens = cfg.BurstSize
		}
		b.lastRefill = now
	}

	if b.tokens < n {
		return false
	}
	b.tokens -= n
	return true
}

// Release drops every bucket belonging to user, across all kinds. Call on
// disconnect per 4.B ("Buckets are released on disconnect").
func (m *MessageLimiter) Release(user string) {
	suffix := "_" + user
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.buckets {
		if len(k) >= len(suffix) && k[len(k)-len(suffix):] == suffix {
			delete(m.buckets, k)
		}
	}
}
