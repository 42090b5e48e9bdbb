package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Konsultn-Engineering/esql/utils"
)

const DefaultSize = 512

type entry[V any] struct {
	source string
	value  V
}

// TemplateCache maps template text to its parsed form. Keys are 64-bit
// fingerprints; the source text is kept alongside each value so a hash
// collision is treated as a miss rather than returning the wrong parse.
type TemplateCache[V any] struct {
	cache  *lru.Cache[uint64, entry[V]]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits   uint64
	Misses uint64
	Len    int
}

// NewTemplateCache returns a cache holding at most size templates. A size
// <= 0 uses DefaultSize.
func NewTemplateCache[V any](size int) *TemplateCache[V] {
	if size <= 0 {
		size = DefaultSize
	}
	c, _ := lru.New[uint64, entry[V]](size)
	return &TemplateCache[V]{cache: c}
}

func (c *TemplateCache[V]) Get(source string) (V, bool) {
	e, ok := c.cache.Get(utils.FingerprintString(source))
	if !ok || e.source != source {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

func (c *TemplateCache[V]) Set(source string, value V) {
	c.cache.Add(utils.FingerprintString(source), entry[V]{source: source, value: value})
}

// GetOrParse returns the cached value for source, calling parse and storing
// its result on a miss. Parse errors are not cached.
func (c *TemplateCache[V]) GetOrParse(source string, parse func(string) (V, error)) (V, bool, error) {
	if v, ok := c.Get(source); ok {
		return v, true, nil
	}
	v, err := parse(source)
	if err != nil {
		return v, false, err
	}
	c.Set(source, v)
	return v, false, nil
}

func (c *TemplateCache[V]) Purge() {
	c.cache.Purge()
}

func (c *TemplateCache[V]) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Len:    c.cache.Len(),
	}
}
