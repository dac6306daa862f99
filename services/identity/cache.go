package identity

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const studentCachePrefix = "identity:student:"

// CachedStudentLookup keeps successful lookups in Redis. Without a client it is a
// passthrough; Redis errors never fail a lookup.
type CachedStudentLookup struct {
	next  StudentLookup
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedStudentLookup(next StudentLookup, client *redis.Client, ttl time.Duration) *CachedStudentLookup {
	return &CachedStudentLookup{next: next, redis: client, ttl: ttl}
}

func (c *CachedStudentLookup) Lookup(ctx context.Context, nis string) (*StudentIdentity, error) {
	nis = strings.TrimSpace(nis)
	if c.redis == nil || c.ttl <= 0 || nis == "" {
		return c.next.Lookup(ctx, nis)
	}

	key := studentCachePrefix + nis
	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		var s StudentIdentity
		if err := json.Unmarshal([]byte(cached), &s); err == nil {
			return &s, nil
		}
		logrus.WithField("key", key).Warn("Discarding unreadable cached student identity")
	} else if err != redis.Nil {
		logrus.WithError(err).Warn("Student identity cache read failed")
	}

	s, err := c.next.Lookup(ctx, nis)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(s); err == nil {
		if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			logrus.WithError(err).Warn("Student identity cache write failed")
		}
	}
	return s, nil
}
