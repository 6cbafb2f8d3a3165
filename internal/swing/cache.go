package swing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CacheKind is the logical name of a cached read.
type CacheKind string

const (
	CacheAnalyses  CacheKind = "analyses"
	CacheUserStats CacheKind = "user_stats"
	CacheProfile   CacheKind = "profile"
	CacheWeather   CacheKind = "weather"
	CacheDailyTip  CacheKind = "daily_tip"
)

// DefaultCacheTTLs are the fixed expiry windows per kind.
var DefaultCacheTTLs = map[CacheKind]time.Duration{
	CacheAnalyses:  5 * time.Minute,
	CacheUserStats: 10 * time.Minute,
	CacheProfile:   time.Hour,
	CacheWeather:   3 * time.Hour,
	CacheDailyTip:  24 * time.Hour,
}

// userScopedKinds are invalidated together when a user's data changes.
var userScopedKinds = []CacheKind{CacheUserStats, CacheAnalyses, CacheProfile}

const cacheKeyPrefix = "cache:"

// cacheEntry is the stored form of a cached value. Times are milliseconds.
type cacheEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	ExpiresIn int64           `json:"expiresIn"`
}

// Cache is a TTL read cache over a KVStore. Expired entries are removed by
// the read that finds them; there is no background sweep.
type Cache struct {
	kv     KVStore
	clock  Clock
	logger Logger
	ttls   map[CacheKind]time.Duration
}

// NewCache creates a Cache with DefaultCacheTTLs.
func NewCache(kv KVStore, clock Clock, logger Logger) *Cache {
	if logger == nil {
		logger = NewNopLogger()
	}
	ttls := make(map[CacheKind]time.Duration, len(DefaultCacheTTLs))
	for k, v := range DefaultCacheTTLs {
		ttls[k] = v
	}
	return &Cache{kv: kv, clock: clock, logger: logger, ttls: ttls}
}

// SetTTL overrides the expiry window of kind.
func (c *Cache) SetTTL(kind CacheKind, ttl time.Duration) {
	c.ttls[kind] = ttl
}

// Key returns the logical key for kind, scoped to scope when non-empty.
func Key(kind CacheKind, scope string) string {
	if scope == "" {
		return string(kind)
	}
	return string(kind) + "_" + scope
}

func storageKey(kind CacheKind, scope string) string {
	return cacheKeyPrefix + Key(kind, scope)
}

// Get decodes the live entry for kind/scope into dest.
// It returns false on a miss, on expiry, or on an unreadable entry.
func (c *Cache) Get(kind CacheKind, scope string, dest any) (bool, error) {
	key := storageKey(kind, scope)
	raw, ok, err := c.kv.Get(key)
	if err != nil {
		return false, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.logger.Warn("dropping unreadable cache entry", "key", key, "error", err)
		return false, c.kv.Delete(key)
	}

	age := c.clock.Now().UnixMilli() - entry.Timestamp
	if age >= entry.ExpiresIn {
		c.logger.Debug("cache entry expired", "key", key, "age_ms", age)
		if err := c.kv.Delete(key); err != nil {
			return false, fmt.Errorf("evicting cache entry %s: %w", key, err)
		}
		return false, nil
	}

	if err := json.Unmarshal(entry.Data, dest); err != nil {
		c.logger.Warn("dropping undecodable cache entry", "key", key, "error", err)
		return false, c.kv.Delete(key)
	}
	return true, nil
}

// Set stores data for kind/scope with the kind's TTL.
func (c *Cache) Set(kind CacheKind, scope string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding cache data: %w", err)
	}
	ttl, ok := c.ttls[kind]
	if !ok {
		ttl = 5 * time.Minute
	}
	entry, err := json.Marshal(cacheEntry{
		Data:      payload,
		Timestamp: c.clock.Now().UnixMilli(),
		ExpiresIn: ttl.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	key := storageKey(kind, scope)
	if err := c.kv.Set(key, string(entry)); err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return nil
}

// Invalidate removes the entry for kind/scope.
func (c *Cache) Invalidate(kind CacheKind, scope string) error {
	key := storageKey(kind, scope)
	if err := c.kv.Delete(key); err != nil {
		return fmt.Errorf("invalidating cache entry %s: %w", key, err)
	}
	return nil
}

// InvalidateUserData removes every user-scoped entry of userID.
func (c *Cache) InvalidateUserData(userID string) error {
	for _, kind := range userScopedKinds {
		if err := c.Invalidate(kind, userID); err != nil {
			return err
		}
	}
	c.logger.Debug("user cache invalidated", "user_id", userID)
	return nil
}

// OnAnalysisCreated is called after a new analysis exists for userID.
func (c *Cache) OnAnalysisCreated(userID string) error { return c.InvalidateUserData(userID) }

// OnAnalysisDeleted is called after an analysis of userID was deleted.
func (c *Cache) OnAnalysisDeleted(userID string) error { return c.InvalidateUserData(userID) }

// OnProfileUpdated is called after userID's profile changed.
func (c *Cache) OnProfileUpdated(userID string) error { return c.InvalidateUserData(userID) }

// Clear removes every cache entry.
func (c *Cache) Clear() error {
	keys, err := c.kv.Keys(cacheKeyPrefix)
	if err != nil {
		return fmt.Errorf("listing cache keys: %w", err)
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, cacheKeyPrefix) {
			continue
		}
		if err := c.kv.Delete(key); err != nil {
			return fmt.Errorf("clearing cache entry %s: %w", key, err)
		}
	}
	return nil
}

// ReadThrough returns the cached value for kind/scope, or calls load and
// caches its result. Cache failures are logged and never fail the read.
// A nil Cache always calls load.
func ReadThrough[T any](c *Cache, kind CacheKind, scope string, load func() (T, error)) (T, error) {
	if c == nil {
		return load()
	}
	var cached T
	hit, err := c.Get(kind, scope, &cached)
	if err != nil {
		c.logger.Warn("cache read failed", "kind", string(kind), "error", err)
	}
	if hit {
		return cached, nil
	}

	value, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	if err := c.Set(kind, scope, value); err != nil {
		c.logger.Warn("cache write failed", "kind", string(kind), "error", err)
	}
	return value, nil
}
