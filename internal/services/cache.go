package services

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/huangang/promptlib/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Cache tags invalidated by mutations.
func PromptsUserTag(uid string) string {
	return "prompts-user-" + uid
}

func PromptTag(id string) string {
	return "prompt-" + id
}

func UserProfileTag(uid string) string {
	return "user-profile-" + uid
}

// TagCache stores encoded read results under keys grouped by tags, so a
// mutation can drop every entry derived from the data it touched.
//
// A reader takes Versions before loading and hands them to Set. Set skips the
// write when one of the tags was invalidated in between, so a load that
// raced a mutation never repopulates the cache with pre-mutation data.
type TagCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Versions(ctx context.Context, tags ...string) ([]int64, error)
	// Set stores value under tags. Nil versions store unconditionally.
	Set(ctx context.Context, key string, value []byte, versions []int64, tags ...string)
	InvalidateTag(ctx context.Context, tag string) error
}

// MemoryTagCache is an in-process TagCache backed by an expiring LRU.
// Invalidations advance a single epoch, so any invalidation voids the writes
// of reads in flight.
type MemoryTagCache struct {
	entries *expirable.LRU[string, []byte]

	// mu orders Set against InvalidateTag. It is always taken before the
	// LRU's own lock, and indexMu after it.
	mu    sync.Mutex
	epoch int64

	indexMu sync.Mutex
	tags    map[string]map[string]struct{}
	keyTags map[string][]string
}

func NewMemoryTagCache(size int, ttl time.Duration) *MemoryTagCache {
	c := &MemoryTagCache{
		tags:    make(map[string]map[string]struct{}),
		keyTags: make(map[string][]string),
	}
	// Evicted and expired keys leave the tag index too.
	c.entries = expirable.NewLRU[string, []byte](size, func(key string, _ []byte) {
		c.unindex(key)
	}, ttl)
	return c
}

func (c *MemoryTagCache) Get(_ context.Context, key string) ([]byte, bool) {
	return c.entries.Get(key)
}

func (c *MemoryTagCache) Versions(_ context.Context, _ ...string) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return []int64{c.epoch}, nil
}

func (c *MemoryTagCache) Set(_ context.Context, key string, value []byte, versions []int64, tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if versions != nil && (len(versions) != 1 || versions[0] != c.epoch) {
		return
	}

	c.entries.Add(key, value)

	c.indexMu.Lock()
	defer c.indexMu.Unlock()
	for _, tag := range tags {
		keys, ok := c.tags[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.tags[tag] = keys
		}
		if _, seen := keys[key]; !seen {
			keys[key] = struct{}{}
			c.keyTags[key] = append(c.keyTags[key], tag)
		}
	}
}

func (c *MemoryTagCache) InvalidateTag(_ context.Context, tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++

	c.indexMu.Lock()
	keys := make([]string, 0, len(c.tags[tag]))
	for key := range c.tags[tag] {
		keys = append(keys, key)
	}
	c.indexMu.Unlock()

	// Remove fires the eviction callback, which prunes the index.
	for _, key := range keys {
		c.entries.Remove(key)
	}
	return nil
}

// IndexedKeys counts keys referenced by the tag index.
func (c *MemoryTagCache) IndexedKeys() int {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()
	return len(c.keyTags)
}

func (c *MemoryTagCache) unindex(key string) {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	for _, tag := range c.keyTags[key] {
		if keys, ok := c.tags[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.tags, tag)
			}
		}
	}
	delete(c.keyTags, key)
}

// RedisTagCache shares cached reads between instances. Each tag is a Redis
// set of the keys stored under it, plus a counter bumped on invalidation.
type RedisTagCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisTagCache(client *redis.Client, ttl time.Duration) *RedisTagCache {
	return &RedisTagCache{client: client, ttl: ttl, prefix: "promptlib:cache:"}
}

func (c *RedisTagCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		return nil, false
	}
	return b, true
}

func (c *RedisTagCache) Versions(ctx context.Context, tags ...string) ([]int64, error) {
	return readVersions(ctx, c.client, c.versionKeys(tags))
}

func (c *RedisTagCache) Set(ctx context.Context, key string, value []byte, versions []int64, tags ...string) {
	write := func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.prefix+key, value, c.ttl)
		for _, tag := range tags {
			tagKey := c.tagKey(tag)
			pipe.SAdd(ctx, tagKey, c.prefix+key)
			if c.ttl > 0 {
				pipe.Expire(ctx, tagKey, c.ttl)
			}
		}
		return nil
	}

	var err error
	if versions == nil || len(tags) == 0 {
		_, err = c.client.TxPipelined(ctx, write)
	} else {
		// WATCH makes the version check and the write one step: an
		// invalidation in between aborts EXEC.
		versionKeys := c.versionKeys(tags)
		err = c.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := readVersions(ctx, tx, versionKeys)
			if err != nil {
				return err
			}
			if !slices.Equal(current, versions) {
				return errStaleRead
			}
			_, err = tx.TxPipelined(ctx, write)
			return err
		}, versionKeys...)
	}

	switch {
	case err == nil, errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
	default:
		logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (c *RedisTagCache) InvalidateTag(ctx context.Context, tag string) error {
	versionKey := c.versionKey(tag)
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, versionKey)
	if c.ttl > 0 {
		pipe.Expire(ctx, versionKey, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	tagKey := c.tagKey(tag)
	keys, err := c.client.SMembers(ctx, tagKey).Result()
	if err != nil {
		return err
	}
	return c.client.Del(ctx, append(keys, tagKey)...).Err()
}

func (c *RedisTagCache) tagKey(tag string) string {
	return c.prefix + "tag:" + tag
}

func (c *RedisTagCache) versionKey(tag string) string {
	return c.prefix + "version:" + tag
}

func (c *RedisTagCache) versionKeys(tags []string) []string {
	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = c.versionKey(tag)
	}
	return keys
}

var errStaleRead = errors.New("cache: tag invalidated during read")

type versionGetter interface {
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// readVersions returns the counters of keys; missing counters read as 0.
func readVersions(ctx context.Context, r versionGetter, keys []string) ([]int64, error) {
	versions := make([]int64, len(keys))
	if len(keys) == 0 {
		return versions, nil
	}
	values, err := r.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		versions[i] = n
	}
	return versions, nil
}

// cachedRead serves key from cache, or runs load and stores its result under tags.
// Load errors are returned and never cached. A result whose tags were
// invalidated while it loaded is returned but not stored.
func cachedRead[T any](ctx context.Context, cache TagCache, key string, tags []string, load func() (T, error)) (T, error) {
	var versions []int64
	if cache != nil {
		if b, ok := cache.Get(ctx, key); ok {
			var v T
			if err := json.Unmarshal(b, &v); err == nil {
				return v, nil
			}
		}

		var err error
		if versions, err = cache.Versions(ctx, tags...); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("cache versions unavailable, not caching")
			cache = nil
		}
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	if cache != nil {
		if b, err := json.Marshal(v); err == nil {
			cache.Set(ctx, key, b, versions, tags...)
		}
	}
	return v, nil
}
