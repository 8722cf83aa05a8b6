package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// JSONCache stores values of one type under a key prefix.
type JSONCache[T any] struct {
	store  Store
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewJSONCache builds a cache; a nil store or non-positive ttl disables it.
func NewJSONCache[T any](store Store, prefix string, ttl time.Duration, logger *zap.Logger) *JSONCache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONCache[T]{store: store, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *JSONCache[T]) enabled() bool {
	return c != nil && c.store != nil && c.ttl > 0
}

// Get returns the cached value. Backend failures are logged and reported as a miss.
func (c *JSONCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	if !c.enabled() {
		return zero, false
	}
	raw, err := c.store.Get(ctx, c.prefix+key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("cache read failed", zap.String("prefix", c.prefix), zap.Error(err))
		}
		return zero, false
	}
	var val T
	if err := json.Unmarshal(raw, &val); err != nil {
		c.logger.Warn("cache entry corrupt", zap.String("prefix", c.prefix), zap.Error(err))
		return zero, false
	}
	return val, true
}

// Set stores a value; failures are logged and otherwise ignored.
func (c *JSONCache[T]) Set(ctx context.Context, key string, val T) {
	if !c.enabled() {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("prefix", c.prefix), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, c.prefix+key, raw, c.ttl); err != nil {
		c.logger.Warn("cache write failed", zap.String("prefix", c.prefix), zap.Error(err))
	}
}

// Invalidate drops a key.
func (c *JSONCache[T]) Invalidate(ctx context.Context, key string) {
	if !c.enabled() {
		return
	}
	if err := c.store.Delete(ctx, c.prefix+key); err != nil {
		c.logger.Warn("cache delete failed", zap.String("prefix", c.prefix), zap.Error(err))
	}
}

// DigestKey hashes key parts so personal data never appears in cache keys.
func DigestKey(parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
