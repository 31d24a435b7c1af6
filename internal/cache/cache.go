package cache

import "context"

// Record is one political-data payload as loaded from a dataset or a
// remote API. Nested values (office lists) stay as []any of
// map[string]any, matching their JSON encoding.
type Record = map[string]any

// Store is the key/value cache used by the political data providers.
//
// Rules:
// - Values are always record lists. Single-record entries are stored as
//   a one-element list; callers take the first element.
// - Get never fails on a missing key; it returns an empty list so "no
//   data" and "looked up and found nothing" read the same.
// - SearchPrefix is a first-class method, not a backend-sniffing
//   branch. Backends that cannot seek do a linear key scan.
type Store interface {
	Get(ctx context.Context, key string) ([]Record, error)
	Set(ctx context.Context, key string, records []Record) error
	SetMany(ctx context.Context, items map[string][]Record) error
	SearchPrefix(ctx context.Context, prefix string) (map[string][]Record, error)
}
