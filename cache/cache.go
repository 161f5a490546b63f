// Package cache keeps recently used values in memory with a bounded size
// and per entry expiry.
package cache

import (
	"time"

	"github.com/karlseguin/ccache/v3"
)

// Cache is a size bounded, expiring key/value cache.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T, opts ...SetOption)
	Delete(key string) bool
	Clear()
	Len() int
}

// SetOption configures a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl time.Duration
}

// WithTTL overrides the default time to live of one entry.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		o.ttl = ttl
	}
}

type inMemoryCache[T any] struct {
	cache      *ccache.Cache[T]
	defaultTTL time.Duration
}

// NewInMemoryCache returns a cache holding at most size entries, each
// expiring after defaultTTL unless overridden with WithTTL.
func NewInMemoryCache[T any](size int64, defaultTTL time.Duration) Cache[T] {
	return &inMemoryCache[T]{
		cache:      ccache.New(ccache.Configure[T]().MaxSize(size)),
		defaultTTL: defaultTTL,
	}
}

func (c *inMemoryCache[T]) Get(key string) (T, bool) {
	item := c.cache.Get(key)
	if item == nil || item.Expired() {
		var zero T
		return zero, false
	}
	return item.Value(), true
}

func (c *inMemoryCache[T]) Set(key string, value T, opts ...SetOption) {
	o := setOptions{ttl: c.defaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = c.defaultTTL
	}
	c.cache.Set(key, value, o.ttl)
}

func (c *inMemoryCache[T]) Delete(key string) bool {
	return c.cache.Delete(key)
}

func (c *inMemoryCache[T]) Clear() {
	c.cache.Clear()
}

func (c *inMemoryCache[T]) Len() int {
	return c.cache.ItemCount()
}

// GetOrLoad returns the cached value for key, calling load and caching its
// result on a miss. Errors are not cached.
func GetOrLoad[T any](c Cache[T], key string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}
