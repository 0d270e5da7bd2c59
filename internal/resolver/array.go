package resolver

import (
	"reflect"

	"github.com/chaisql/typemap/internal/codec"
	"github.com/chaisql/typemap/internal/mapping"
	"github.com/chaisql/typemap/internal/shape"
	"github.com/chaisql/typemap/internal/wire"
	"go.uber.org/zap"
)

// ElementResolver is the resolver wrapped by an ArrayResolver.
type ElementResolver interface {
	mapping.Resolver
	// Mappings returns the explicit mappings of the resolver.
	Mappings() []*mapping.Mapping
	Factory() *codec.Factory
}

var (
	_ mapping.Resolver        = (*ArrayResolver)(nil)
	_ mapping.DynamicResolver = (*ArrayResolver)(nil)
	_ ElementResolver         = (*POCOResolver)(nil)
)

// ArrayResolver maps slices and arrays of the types handled by the
// wrapped resolver to the json and jsonb array data types.
// Other requests are passed to the wrapped resolver.
type ArrayResolver struct {
	elem     ElementResolver
	mappings *mapping.Collection
	cache    *mapping.DynamicCache
	logger   *zap.Logger
}

// NewArrayResolver registers a slice mapping for every explicit mapping of elem.
func NewArrayResolver(elem ElementResolver, logger *zap.Logger) (*ArrayResolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := ArrayResolver{
		elem:     elem,
		mappings: mapping.NewCollection(),
		logger:   logger,
	}
	r.cache = mapping.NewDynamicCache(&r, logger)

	for _, em := range elem.Mappings() {
		id, ok := wire.ArrayOf(em.DataType)
		if !ok {
			continue
		}

		_, err := r.mappings.Add(reflect.SliceOf(em.Type), id, r.codecFactory(reflect.SliceOf(em.Type), em))
		if err != nil {
			return nil, err
		}
	}

	return &r, nil
}

func (r *ArrayResolver) codecFactory(arrayType reflect.Type, em *mapping.Mapping) mapping.CodecFactory {
	return func() (codec.Codec, error) {
		ec, err := em.Codec()
		if err != nil {
			return nil, err
		}

		return r.elem.Factory().BuildArray(arrayType, em.DataType, ec)
	}
}

// Resolve returns the mapping of array types, and delegates any other
// request to the wrapped resolver.
func (r *ArrayResolver) Resolve(t reflect.Type, id wire.TypeID) (*mapping.Mapping, error) {
	switch {
	case id.IsJSONArray():
		return mapping.Resolve(r.mappings, r.cache, t, id)
	case id == "":
		if m := r.mappings.Find(t, ""); m != nil {
			return m, nil
		}
	}

	return r.elem.Resolve(t, id)
}

// TryMatch matches sequence types for the json array data types.
// The element mapping is resolved by the wrapped resolver, its errors
// are returned as is.
func (r *ArrayResolver) TryMatch(t reflect.Type, id wire.TypeID) mapping.Builder {
	if t == nil || !id.IsJSONArray() || !shape.IsSequence(t) || wire.IsReserved(t) {
		return nil
	}

	return func() (*mapping.Mapping, error) {
		elemID, _ := wire.ElementOf(id)
		em, err := r.elem.Resolve(t.Elem(), elemID)
		if err != nil {
			return nil, err
		}

		return mapping.New(t, id, r.codecFactory(t, em)), nil
	}
}

// Mappings returns the explicit array mappings followed by those of the
// wrapped resolver.
func (r *ArrayResolver) Mappings() []*mapping.Mapping {
	return append(r.mappings.All(), r.elem.Mappings()...)
}

// Factory returns the factory of the wrapped resolver.
func (r *ArrayResolver) Factory() *codec.Factory {
	return r.elem.Factory()
}
