package typemap

import (
	"reflect"

	errs "github.com/chaisql/typemap/errors"
	"github.com/chaisql/typemap/internal/codec"
	"github.com/chaisql/typemap/internal/resolver"
	"github.com/chaisql/typemap/internal/shape"
	"github.com/chaisql/typemap/internal/wire"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
)

type (
	// Codec encodes and decodes the values of one Go type.
	Codec = codec.Codec
	// DataType identifies a wire data type.
	DataType = wire.TypeID
	// SerializerOptions control how values are converted to JSON.
	SerializerOptions = codec.SerializerOptions
	// Variant is a concrete type of a polymorphic interface.
	Variant = shape.Variant
)

// Supported data types.
const (
	JSON       = wire.JSON
	JSONB      = wire.JSONB
	JSONArray  = wire.JSONArray
	JSONBArray = wire.JSONBArray
)

// Polymorphic declares the variants of an interface type.
type Polymorphic struct {
	Base     reflect.Type
	Variants []Variant
}

// Options to configure a Map.
type Options struct {
	// JSONTypes are mapped explicitly to json.
	JSONTypes []reflect.Type
	// JSONBTypes are mapped explicitly to jsonb.
	JSONBTypes []reflect.Type
	// Polymorphic interfaces and their variants.
	Polymorphic []Polymorphic
	// Serializer options, passed as is to every codec.
	Serializer SerializerOptions
	// TextEncoding of json documents. Defaults to UTF-8.
	TextEncoding encoding.Encoding
	// Logger receives debug events about mapping creation. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Map resolves codecs. It is safe for concurrent use.
type Map struct {
	resolver *resolver.ArrayResolver
}

// New creates a Map. It fails if a type is listed twice for the same data
// type, or if a polymorphic declaration is invalid.
func New(opts *Options) (*Map, error) {
	if opts == nil {
		opts = &Options{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	shapes := shape.NewRegistry()
	for _, p := range opts.Polymorphic {
		if err := shapes.Declare(p.Base, p.Variants...); err != nil {
			return nil, err
		}
	}

	poco, err := resolver.NewPOCOResolver(resolver.Config{
		JSONTypes:    opts.JSONTypes,
		JSONBTypes:   opts.JSONBTypes,
		Shapes:       shapes,
		Serializer:   opts.Serializer,
		TextEncoding: opts.TextEncoding,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	r, err := resolver.NewArrayResolver(poco, logger)
	if err != nil {
		return nil, err
	}

	return &Map{resolver: r}, nil
}

// Resolve returns the codec of t for the data type id.
// t may be nil to get the first type explicitly mapped to id,
// and id may be empty to get the first data type explicitly mapped to t.
func (m *Map) Resolve(t reflect.Type, id DataType) (Codec, error) {
	if t == nil && id == "" {
		return nil, errs.NewNoMappingFoundError(nil, "")
	}

	mp, err := m.resolver.Resolve(t, id)
	if err != nil {
		return nil, err
	}

	return mp.Codec()
}

// ResolveMapping returns the mapping selected for t and id. Its type differs
// from t when t is a declared variant of a registered interface.
func (m *Map) ResolveMapping(t reflect.Type, id DataType) (MappingInfo, error) {
	if t == nil && id == "" {
		return MappingInfo{}, errs.NewNoMappingFoundError(nil, "")
	}

	mp, err := m.resolver.Resolve(t, id)
	if err != nil {
		return MappingInfo{}, err
	}

	return MappingInfo{Type: mp.Type, DataType: mp.DataType}, nil
}

// ResolveValue returns the codec of the type of v for the data type id.
func (m *Map) ResolveValue(v any, id DataType) (Codec, error) {
	return m.Resolve(reflect.TypeOf(v), id)
}

// Encode encodes v as the data type id.
func (m *Map) Encode(id DataType, v any) ([]byte, error) {
	if v == nil {
		return nil, errors.New("cannot infer the type of a nil value")
	}

	c, err := m.ResolveValue(v, id)
	if err != nil {
		return nil, err
	}

	return c.Encode(nil, v)
}

// Decode decodes src, of data type id, into a value of type t.
func (m *Map) Decode(id DataType, src []byte, t reflect.Type) (any, error) {
	c, err := m.Resolve(t, id)
	if err != nil {
		return nil, err
	}

	return c.Decode(src)
}

// DecodeTo decodes src, of data type id, into dst which must be a non-nil pointer.
func (m *Map) DecodeTo(id DataType, src []byte, dst any) error {
	ref := reflect.ValueOf(dst)
	if !ref.IsValid() || ref.Kind() != reflect.Pointer || ref.IsNil() {
		return errors.New("target must be a non-nil pointer")
	}

	c, err := m.Resolve(ref.Type().Elem(), id)
	if err != nil {
		return err
	}

	return c.DecodeTo(src, dst)
}

// DecodeAs decodes src, of data type id, into a value of type T.
func DecodeAs[T any](m *Map, id DataType, src []byte) (T, error) {
	var v T
	err := m.DecodeTo(id, src, &v)
	return v, err
}

// MappingInfo describes an explicit mapping.
type MappingInfo struct {
	Type     reflect.Type
	DataType DataType
}

// Mappings returns the explicit mappings, in resolution order.
func (m *Map) Mappings() []MappingInfo {
	all := m.resolver.Mappings()
	infos := make([]MappingInfo, len(all))
	for i, mp := range all {
		infos[i] = MappingInfo{Type: mp.Type, DataType: mp.DataType}
	}

	return infos
}
