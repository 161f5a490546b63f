// Package loaders reads Groth16 verifying keys for the verification gate.
package loaders

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/zkpayroll/go-payroll-settlement/cache"
	"github.com/zkpayroll/go-payroll-settlement/constants"
)

// ErrKeyNotFound is returned when key is not found
var ErrKeyNotFound = errors.New("key not found")

// VerificationKeyLoader loads verifying key bytes by name.
type VerificationKeyLoader interface {
	Load(name string) ([]byte, error)
}

// FSKeyLoader reads keys from a directory. Name is the file name inside Dir.
type FSKeyLoader struct {
	Dir string
}

// Load reads Dir/name.
func (m FSKeyLoader) Load(name string) ([]byte, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, errors.Errorf("invalid key name %q", name)
	}
	b, err := os.ReadFile(filepath.Join(m.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrKeyNotFound, "%s in %s", name, m.Dir)
	}
	return b, err
}

// CachedKeyLoader keeps loaded keys in memory for a while, so that a key
// replaced on disk is picked up once its entry expires.
type CachedKeyLoader struct {
	loader VerificationKeyLoader
	cache  cache.Cache[[]byte]
}

// Option configures CachedKeyLoader.
type Option func(*CachedKeyLoader)

// WithCache replaces the default in-memory cache.
func WithCache(c cache.Cache[[]byte]) Option {
	return func(l *CachedKeyLoader) {
		l.cache = c
	}
}

// NewCachedKeyLoader wraps loader with a cache.
func NewCachedKeyLoader(loader VerificationKeyLoader, opts ...Option) *CachedKeyLoader {
	l := &CachedKeyLoader{loader: loader}
	for _, opt := range opts {
		opt(l)
	}
	if l.cache == nil {
		l.cache = cache.NewInMemoryCache[[]byte](constants.DefaultCacheMaxSize, constants.VerificationKeyCacheTTL)
	}
	return l
}

// Load returns the cached key or loads it.
func (l *CachedKeyLoader) Load(name string) ([]byte, error) {
	return cache.GetOrLoad(l.cache, name, func() ([]byte, error) {
		return l.loader.Load(name)
	})
}

// Invalidate drops name from the cache.
func (l *CachedKeyLoader) Invalidate(name string) {
	l.cache.Delete(name)
}
