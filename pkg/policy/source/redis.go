package source

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the key prefix under which rule documents are stored.
const DefaultRedisPrefix = "sentinel:rules:"

// RedisConfig contains configuration for the Redis document store.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string

	// Prefix is prepended to document paths to form keys.
	// Default: "sentinel:rules:"
	Prefix string

	// DialTimeout bounds the initial connection check.
	// Default: 5 seconds
	DialTimeout time.Duration
}

// RedisSource stores rule documents as string values under a key prefix, so
// several evaluator instances can share one rule set.
type RedisSource struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisSource connects to Redis and verifies the connection.
func NewRedisSource(ctx context.Context, config RedisConfig, logger *slog.Logger) (*RedisSource, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if config.DialTimeout > 0 {
		opts.DialTimeout = config.DialTimeout
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout(config))
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisSourceFromClient(client, config.Prefix, logger), nil
}

// NewRedisSourceFromClient wraps an existing client.
func NewRedisSourceFromClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisSource {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSource{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "source.redis"),
	}
}

func dialTimeout(config RedisConfig) time.Duration {
	if config.DialTimeout > 0 {
		return config.DialTimeout
	}
	return 5 * time.Second
}

// Name identifies the store.
func (s *RedisSource) Name() string {
	return "redis:" + s.prefix
}

// Walk visits documents ordered by path. No keys under the prefix is
// reported as a missing root.
func (s *RedisSource) Walk(ctx context.Context, fn func(Document) error) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan rule documents: %w", err)
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: %s", ErrRootNotFound, s.Name())
	}
	sort.Strings(keys)

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("fetch rule documents: %w", err)
	}

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := strings.TrimPrefix(key, s.prefix)
		var doc Document
		switch v := values[i].(type) {
		case string:
			doc = Document{Path: path, Data: []byte(v)}
		case nil:
			// Deleted between SCAN and MGET.
			continue
		default:
			doc = Document{Path: path, Err: &LoadError{Path: path, Message: fmt.Sprintf("unexpected value type %T", v)}}
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

// Put stores or replaces a document.
func (s *RedisSource) Put(ctx context.Context, path string, data []byte) error {
	if err := s.client.Set(ctx, s.prefix+path, data, 0).Err(); err != nil {
		return fmt.Errorf("store %q: %w", path, err)
	}
	return nil
}

// Delete removes a document.
func (s *RedisSource) Delete(ctx context.Context, path string) error {
	if err := s.client.Del(ctx, s.prefix+path).Err(); err != nil {
		return fmt.Errorf("delete %q: %w", path, err)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisSource) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisSource) Close() error {
	return s.client.Close()
}
