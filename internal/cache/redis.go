package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is the production Store. Entries are JSON-encoded record
// lists. The dataset is repopulated on deploy/data-load and read far
// more than written, so no TTLs and no runtime invalidation.
type Redis struct {
	rdb       *redis.Client
	namespace string
}

// NewRedis wraps an already-opened client. namespace prefixes every
// key so political data can share a Redis with other uses.
func NewRedis(rdb *redis.Client, namespace string) *Redis {
	if namespace == "" {
		namespace = "political"
	}
	return &Redis{rdb: rdb, namespace: namespace}
}

func (r *Redis) key(k string) string {
	return r.namespace + ":" + k
}

func (r *Redis) Get(ctx context.Context, key string) ([]Record, error) {
	raw, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %q: %w", key, err)
	}
	return decodeRecords(raw)
}

func (r *Redis) Set(ctx context.Context, key string, records []Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return r.rdb.Set(ctx, r.key(key), raw, 0).Err()
}

func (r *Redis) SetMany(ctx context.Context, items map[string][]Record) error {
	pipe := r.rdb.Pipeline()
	for k, v := range items {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("cache set_many %q: %w", k, err)
		}
		pipe.Set(ctx, r.key(k), raw, 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// SearchPrefix uses SCAN MATCH. Redis has no ordered key index, so
// this still visits the whole keyspace server-side; it is bounded by
// the namespace and fine for admin searches, not hot paths.
func (r *Redis) SearchPrefix(ctx context.Context, prefix string) (map[string][]Record, error) {
	out := make(map[string][]Record)
	iter := r.rdb.Scan(ctx, 0, r.key(prefix)+"*", 200).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		raw, err := r.rdb.Get(ctx, full).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		recs, err := decodeRecords(raw)
		if err != nil {
			return nil, err
		}
		out[full[len(r.namespace)+1:]] = recs
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeRecords(raw []byte) ([]Record, error) {
	var recs []Record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
