// Package cache provides the on-disk read-through cache for raw
// metadata documents, keyed by entity id.
//
// Once a document has been written for an id it is treated as
// immutable truth: a hit always short-circuits the network fetch,
// within a run and across runs. Two concurrent callers missing on the
// same id may both fetch and both write; the content is identical so
// the duplicate work is harmless.
package cache

import (
	"context"
	"fmt"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// DefaultPrefix is where cached documents live under the output root.
const DefaultPrefix = ".cache/"

// FetchFunc produces the raw document for an id on a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Cache maps entity ids to raw JSON documents stored one file per id.
type Cache struct {
	bucket *blob.Bucket
	prefix string
}

// New creates a cache over the given bucket. An empty prefix falls
// back to DefaultPrefix.
func New(bucket *blob.Bucket, prefix string) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Cache{bucket: bucket, prefix: prefix}
}

// GetOrFetch returns the cached document for id, calling fetch and
// writing the result through on a miss.
func (c *Cache) GetOrFetch(ctx context.Context, id string, fetch FetchFunc) ([]byte, error) {
	key := c.key(id)

	data, err := c.bucket.ReadAll(ctx, key)
	if err == nil {
		return data, nil
	}
	if gcerrors.Code(err) != gcerrors.NotFound {
		return nil, fmt.Errorf("read cache entry %s: %w", key, err)
	}

	data, err = fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return nil, fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return data, nil
}

// Contains reports whether a document is already cached for id.
func (c *Cache) Contains(ctx context.Context, id string) (bool, error) {
	return c.bucket.Exists(ctx, c.key(id))
}

func (c *Cache) key(id string) string {
	return c.prefix + id + ".json"
}
