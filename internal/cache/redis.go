package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/moviematch/internal/config"
	"github.com/oggyb/moviematch/internal/ledger"
)

// CountTTL is how long a cached liked-me count lives without access.
const CountTTL = time.Hour

const likersReadyKey = "likers:ready"

// RedisCache holds the liker index (likers:{id} sets) and the liked-me
// count cache (likes:count:{id}). Neither is a source of truth: the index
// narrows projection candidates and the count is recomputed on a miss.
//
// A failed index write marks the index stale in this process even when the
// shared ready flag cannot be cleared (Redis down), and only a successful
// Rebuild trusts it again.
type RedisCache struct {
	Client *redis.Client

	stale atomic.Bool
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForLikers generates the Redis key of the set of users who liked userID.
func (c *RedisCache) KeyForLikers(userID string) string {
	return fmt.Sprintf("likers:%s", userID)
}

// KeyForLikeCount generates Redis key for a user's liked-me count
func (c *RedisCache) KeyForLikeCount(userID string) string {
	return fmt.Sprintf("likes:count:%s", userID)
}

// AddLiker records likerID in targetID's liker set.
func (c *RedisCache) AddLiker(ctx context.Context, targetID, likerID string) error {
	return c.Client.SAdd(ctx, c.KeyForLikers(targetID), likerID).Err()
}

// RemoveLiker drops likerID from targetID's liker set.
func (c *RedisCache) RemoveLiker(ctx context.Context, targetID, likerID string) error {
	return c.Client.SRem(ctx, c.KeyForLikers(targetID), likerID).Err()
}

// Likers returns the members of userID's liker set.
func (c *RedisCache) Likers(ctx context.Context, userID string) ([]string, error) {
	return c.Client.SMembers(ctx, c.KeyForLikers(userID)).Result()
}

// Ready reports whether the index has been fully built and not marked stale since.
func (c *RedisCache) Ready(ctx context.Context) (bool, error) {
	if c.stale.Load() {
		// push the stale mark to other processes now that Redis may be back
		_ = c.Client.Del(ctx, likersReadyKey).Err()
		return false, nil
	}
	n, err := c.Client.Exists(ctx, likersReadyKey).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkStale clears the ready flag so readers fall back to a full scan.
func (c *RedisCache) MarkStale(ctx context.Context) error {
	c.stale.Store(true)
	return c.Client.Del(ctx, likersReadyKey).Err()
}

// Rebuild adds every like found in users to the liker sets and marks the
// index ready. Existing members are kept: a like written after the scan
// that fed users must not be dropped, and members that no longer like the
// target are filtered out by readers anyway.
func (c *RedisCache) Rebuild(ctx context.Context, users []ledger.UserRecord) error {
	likers := make(map[string][]any)
	for _, u := range users {
		for _, l := range u.LikedUsers {
			likers[l.UserID] = append(likers[l.UserID], u.ID)
		}
	}

	_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for target, ids := range likers {
			pipe.SAdd(ctx, c.KeyForLikers(target), ids...)
		}
		pipe.Set(ctx, likersReadyKey, time.Now().UTC().Format(time.RFC3339), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("rebuild liker index: %w", err)
	}
	c.stale.Store(false)
	return nil
}

// GetLikeCount returns the cached liked-me count. ok is false on a miss.
func (c *RedisCache) GetLikeCount(ctx context.Context, userID string) (n int64, ok bool, err error) {
	key := c.KeyForLikeCount(userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err = strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil // unreadable value, treat as miss
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, CountTTL).Err()
	return n, true, nil
}

func (c *RedisCache) SetLikeCount(ctx context.Context, userID string, count int64) error {
	// Always refresh TTL when updating
	return c.Client.Set(ctx, c.KeyForLikeCount(userID), count, CountTTL).Err()
}

// InvalidateLikeCount drops the cached count so the next read recomputes it.
func (c *RedisCache) InvalidateLikeCount(ctx context.Context, userID string) error {
	return c.Client.Del(ctx, c.KeyForLikeCount(userID)).Err()
}

// Reset drops the liker index, its ready flag and every cached count.
func (c *RedisCache) Reset(ctx context.Context) error {
	for _, pattern := range []string{"likers:*", "likes:count:*"} {
		iter := c.Client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.Client.Del(ctx, iter.Val()).Err(); err != nil {
				return err
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	return nil
}

var _ ledger.LikerIndex = (*RedisCache)(nil)
