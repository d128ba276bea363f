package notifications

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pinkbeam/platform/pkg/observability"
)

const unreadKeyPrefix = "notifications:unread:"

// UnreadCache caches per-user unread counts. It layers a small in-process
// expirable LRU (L1) over an optional shared Redis (L2). Both layers are
// best-effort: a cache failure falls through to the database.
type UnreadCache struct {
	l1      *lru.LRU[string, int]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewUnreadCache creates an unread-count cache. redisClient may be nil for
// L1-only operation; metrics may be nil.
func NewUnreadCache(size int, ttl time.Duration, redisClient *redis.Client, metrics *observability.Metrics, logger *observability.Logger) *UnreadCache {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &UnreadCache{
		l1:      lru.NewLRU[string, int](size, nil, ttl),
		redis:   redisClient,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Get returns the cached unread count for the user, checking L1 then L2.
// An L2 hit backfills L1.
func (c *UnreadCache) Get(ctx context.Context, userID string) (int, bool) {
	if count, ok := c.l1.Get(userID); ok {
		c.recordHit()
		return count, true
	}

	if c.redis != nil {
		val, err := c.redis.Get(ctx, unreadKeyPrefix+userID).Result()
		if err == nil {
			count, convErr := strconv.Atoi(val)
			if convErr == nil {
				c.l1.Add(userID, count)
				c.recordHit()
				return count, true
			}
			// Corrupt value: drop it so the next write repairs the key.
			c.redis.Del(ctx, unreadKeyPrefix+userID)
		} else if err != redis.Nil {
			c.logger.WithError(err).Warn("unread cache redis read failed")
		}
	}

	c.recordMiss()
	return 0, false
}

// Set stores the unread count in both layers.
func (c *UnreadCache) Set(ctx context.Context, userID string, count int) {
	c.l1.Add(userID, count)

	if c.redis != nil {
		if err := c.redis.Set(ctx, unreadKeyPrefix+userID, strconv.Itoa(count), c.ttl).Err(); err != nil {
			c.logger.WithError(err).Warn("unread cache redis write failed")
		}
	}
}

// Invalidate drops the user's cached count from both layers. Called on every
// notification mutation so reads never serve a stale count for long.
func (c *UnreadCache) Invalidate(ctx context.Context, userID string) {
	c.l1.Remove(userID)

	if c.redis != nil {
		if err := c.redis.Del(ctx, unreadKeyPrefix+userID).Err(); err != nil {
			c.logger.WithError(err).Warn("unread cache redis delete failed")
		}
	}
}

func (c *UnreadCache) recordHit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues("unread_count").Inc()
	}
}

func (c *UnreadCache) recordMiss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues("unread_count").Inc()
	}
}
