package mapping

import (
	"reflect"
	"sync"

	errs "github.com/chaisql/typemap/errors"
	"github.com/chaisql/typemap/internal/wire"
	"go.uber.org/zap"
)

// A Resolver returns the mapping of a Go type and a data type.
// Either of them may be omitted, but not both.
type Resolver interface {
	Resolve(t reflect.Type, id wire.TypeID) (*Mapping, error)
}

// A Builder creates a mapping on demand.
type Builder func() (*Mapping, error)

// A DynamicResolver synthesizes mappings for types that were not
// registered explicitly.
type DynamicResolver interface {
	// TryMatch returns a builder if the resolver can handle t and id,
	// nil otherwise. The mapping returned by the builder may have a
	// different type than t, in which case it is cached under its own type.
	TryMatch(t reflect.Type, id wire.TypeID) Builder
}

// DynamicCache memoizes the mappings built by a DynamicResolver.
// Concurrent misses on the same key may build the mapping more than once:
// the last one stored wins and all of them are equivalent.
type DynamicCache struct {
	resolver DynamicResolver
	logger   *zap.Logger
	mappings sync.Map
}

// NewDynamicCache returns a cache building mappings with r.
func NewDynamicCache(r DynamicResolver, logger *zap.Logger) *DynamicCache {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DynamicCache{
		resolver: r,
		logger:   logger,
	}
}

// Get returns the mapping of t and id, building it if necessary.
func (c *DynamicCache) Get(t reflect.Type, id wire.TypeID) (*Mapping, error) {
	if m, ok := c.mappings.Load(key{t, id}); ok {
		return m.(*Mapping), nil
	}

	build := c.resolver.TryMatch(t, id)
	if build == nil {
		return nil, errs.NewNoMappingFoundError(t, id.String())
	}

	m, err := build()
	if err != nil {
		return nil, err
	}

	// build the codec now so that failed mappings are never cached.
	if _, err := m.Codec(); err != nil {
		return nil, err
	}

	c.mappings.Store(key{m.Type, m.DataType}, m)
	c.logger.Debug("dynamic mapping created",
		zap.Stringer("type", m.Type),
		zap.Stringer("data_type", m.DataType),
	)

	return m, nil
}

// Len returns the number of cached mappings.
func (c *DynamicCache) Len() int {
	var n int
	c.mappings.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Resolve looks for an explicit mapping in c, then asks the cache for a
// dynamic one, and finally falls back to the first explicit mapping whose
// interface type is implemented by t. cache may be nil.
func Resolve(c *Collection, cache *DynamicCache, t reflect.Type, id wire.TypeID) (*Mapping, error) {
	if m := c.Find(t, id); m != nil {
		return m, nil
	}

	var err error
	if cache != nil {
		var m *Mapping
		m, err = cache.Get(t, id)
		if err == nil {
			return m, nil
		}
		if !errs.IsNoMappingFoundError(err) {
			return nil, err
		}
	}

	if m := c.FindAssignable(t, id); m != nil {
		return m, nil
	}

	if err != nil {
		return nil, err
	}
	return nil, errs.NewNoMappingFoundError(t, id.String())
}
