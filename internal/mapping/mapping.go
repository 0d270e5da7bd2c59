// Package mapping associates Go types and wire data types to codecs.
package mapping

import (
	"reflect"
	"sync"

	errs "github.com/chaisql/typemap/errors"
	"github.com/chaisql/typemap/internal/codec"
	"github.com/chaisql/typemap/internal/wire"
)

// A CodecFactory builds the codec of a mapping.
type CodecFactory func() (codec.Codec, error)

// Mapping binds a Go type and a data type to a codec.
// The codec is built the first time it is requested and shared afterwards.
type Mapping struct {
	Type     reflect.Type
	DataType wire.TypeID

	codec func() (codec.Codec, error)
}

// New returns a mapping whose codec is built by factory.
func New(t reflect.Type, id wire.TypeID, factory CodecFactory) *Mapping {
	return &Mapping{
		Type:     t,
		DataType: id,
		codec:    sync.OnceValues(factory),
	}
}

// Codec returns the codec of the mapping, building it if necessary.
// Build errors are structural and are returned on every call.
func (m *Mapping) Codec() (codec.Codec, error) {
	return m.codec()
}

type key struct {
	t  reflect.Type
	id wire.TypeID
}

// Collection is an ordered set of explicit mappings.
// It must not be modified once it is shared between goroutines.
type Collection struct {
	mappings []*Mapping
	index    map[key]int
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{
		index: make(map[key]int),
	}
}

// Add registers a mapping. It fails with a DuplicateMappingError if
// a mapping already exists for the same type and data type.
func (c *Collection) Add(t reflect.Type, id wire.TypeID, factory CodecFactory) (*Mapping, error) {
	k := key{t, id}
	if _, ok := c.index[k]; ok {
		return nil, errs.NewDuplicateMappingError(t, id.String())
	}

	m := New(t, id, factory)
	c.index[k] = len(c.mappings)
	c.mappings = append(c.mappings, m)
	return m, nil
}

// Find returns the first mapping matching t and id, or nil.
// A nil type or an empty id match any mapping.
func (c *Collection) Find(t reflect.Type, id wire.TypeID) *Mapping {
	if t != nil && id != "" {
		if i, ok := c.index[key{t, id}]; ok {
			return c.mappings[i]
		}
		return nil
	}

	for _, m := range c.mappings {
		if t != nil && m.Type != t {
			continue
		}
		if id != "" && m.DataType != id {
			continue
		}
		return m
	}

	return nil
}

// FindAssignable returns the first mapping whose type is an interface
// implemented by t, and whose data type is id when id is not empty.
// Reserved text-like types never match.
func (c *Collection) FindAssignable(t reflect.Type, id wire.TypeID) *Mapping {
	if t == nil || wire.IsReserved(t) {
		return nil
	}

	for _, m := range c.mappings {
		if m.Type.Kind() != reflect.Interface || !t.Implements(m.Type) {
			continue
		}
		if id != "" && m.DataType != id {
			continue
		}
		return m
	}

	return nil
}

// All returns the mappings in registration order.
func (c *Collection) All() []*Mapping {
	return append([]*Mapping(nil), c.mappings...)
}

func (c *Collection) Len() int {
	return len(c.mappings)
}
