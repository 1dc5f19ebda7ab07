package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces artifact keys.
const DefaultRedisPrefix = "harvest:artifact"

// Key identifies an artifact in Redis.
type Key struct {
	Prefix string
	Name   string
}

// String returns the data key.
// Format: <prefix>:<name>
//
// Example:
//
//	harvest:artifact:leetcode_all_problems.json
func (k Key) String() string {
	prefix := strings.Trim(k.Prefix, ":")
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return prefix + ":" + k.Name
}

// MetaKey returns the key of the metadata hash.
func (k Key) MetaKey() string {
	return k.String() + ":meta"
}

// RedisStore keeps artifacts as Redis strings.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis artifact store.
func NewRedisStore(redisClient *redis.Client, prefix string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}

	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Put stores the artifact and its metadata in one transaction. No TTL is set.
func (s *RedisStore) Put(ctx context.Context, name string, records []json.RawMessage) (err error) {
	size := 0
	defer func() {
		recordWrite("redis", err, size, len(records))
	}()

	if err := validateName(name); err != nil {
		return err
	}

	data, err := Encode(records)
	if err != nil {
		return err
	}
	size = len(data)

	key := Key{Prefix: s.prefix, Name: name}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key.String(), data, 0)
		pipe.Del(ctx, key.MetaKey())
		pipe.HSet(ctx, key.MetaKey(),
			"name", name,
			"records", len(records),
			"bytes", size,
			"written_at", time.Now().UTC().Format(time.RFC3339Nano),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get retrieves an artifact by name.
// Returns ErrNotFound if the key doesn't exist.
func (s *RedisStore) Get(ctx context.Context, name string) ([]json.RawMessage, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	data, err := s.redis.Get(ctx, Key{Prefix: s.prefix, Name: name}.String()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return Decode(data)
}

// Meta returns the metadata written with the artifact.
func (s *RedisStore) Meta(ctx context.Context, name string) (*Meta, error) {
	var raw struct {
		Name      string `redis:"name"`
		Records   int    `redis:"records"`
		Bytes     int    `redis:"bytes"`
		WrittenAt string `redis:"written_at"`
	}

	cmd := s.redis.HGetAll(ctx, Key{Prefix: s.prefix, Name: name}.MetaKey())
	if err := cmd.Err(); err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(cmd.Val()) == 0 {
		return nil, ErrNotFound
	}
	if err := cmd.Scan(&raw); err != nil {
		return nil, fmt.Errorf("scan artifact meta: %w", err)
	}

	writtenAt, err := time.Parse(time.RFC3339Nano, raw.WrittenAt)
	if err != nil {
		return nil, fmt.Errorf("parse written_at: %w", err)
	}

	return &Meta{
		Name:      raw.Name,
		Records:   raw.Records,
		Bytes:     raw.Bytes,
		WrittenAt: writtenAt,
	}, nil
}
