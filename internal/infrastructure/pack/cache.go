package pack

import (
	"strconv"

	"github.com/dgraph-io/ristretto/v2"

	"gitty.dev/cli/internal/core/object"
)

type cachedBase struct {
	kind object.Kind
	data []byte
}

// BaseCache keeps recently inflated delta bases, keyed by pack and
// offset, bounded by total payload bytes. A nil *BaseCache caches nothing.
type BaseCache struct {
	c *ristretto.Cache[string, cachedBase]
}

// NewBaseCache creates a cache holding up to maxBytes of object data.
// A non-positive size disables caching.
func NewBaseCache(maxBytes int64) (*BaseCache, error) {
	if maxBytes <= 0 {
		return nil, nil
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, cachedBase]{
		// ristretto recommends ~10x the expected number of items
		NumCounters: max(maxBytes/512, 1000),
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &BaseCache{c: c}, nil
}

func cacheKey(pack string, off uint64) string {
	return pack + ":" + strconv.FormatUint(off, 10)
}

// Get returns a cached base. Callers must not modify the returned slice.
func (b *BaseCache) Get(pack string, off uint64) (object.Kind, []byte, bool) {
	if b == nil {
		return object.KindInvalid, nil, false
	}
	v, ok := b.c.Get(cacheKey(pack, off))
	if !ok {
		return object.KindInvalid, nil, false
	}
	return v.kind, v.data, true
}

// Put offers a base to the cache; admission is up to the cache policy
func (b *BaseCache) Put(pack string, off uint64, kind object.Kind, data []byte) {
	if b == nil {
		return
	}
	b.c.Set(cacheKey(pack, off), cachedBase{kind: kind, data: data}, int64(len(data))+1)
}

// Wait blocks until pending writes are visible to Get
func (b *BaseCache) Wait() {
	if b != nil {
		b.c.Wait()
	}
}

// Close stops the cache's background goroutines
func (b *BaseCache) Close() {
	if b != nil {
		b.c.Close()
	}
}
