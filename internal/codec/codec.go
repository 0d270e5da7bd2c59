// Package codec builds the codecs translating Go values to and from
// JSON documents in their wire framing.
package codec

import (
	"reflect"

	errs "github.com/chaisql/typemap/errors"
	"github.com/chaisql/typemap/internal/shape"
	"github.com/chaisql/typemap/internal/wire"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// DefaultDiscriminatorProperty is the name of the JSON property holding
// the discriminator of polymorphic values.
const DefaultDiscriminatorProperty = "$type"

// SerializerOptions control how values are converted to and from JSON.
// They are passed unchanged to every codec built by a Factory.
type SerializerOptions struct {
	// DiscriminatorProperty is the JSON property holding the discriminator.
	// Defaults to DefaultDiscriminatorProperty.
	DiscriminatorProperty string
	// DisallowUnknownFields makes decoding fail on fields absent from the target struct.
	DisallowUnknownFields bool
	// EscapeHTML escapes <, > and & in JSON strings.
	EscapeHTML bool
	// IgnorePolymorphism disables discriminators: values are serialized
	// as their exact type and polymorphic interfaces cannot be decoded.
	IgnorePolymorphism bool
}

func (o SerializerOptions) discriminatorProperty() string {
	if o.DiscriminatorProperty == "" {
		return DefaultDiscriminatorProperty
	}
	return o.DiscriminatorProperty
}

// A Codec encodes values of its value type to the wire and decodes them back.
// Codecs hold no mutable state and are safe for concurrent use.
type Codec interface {
	// ValueType is the Go type of the values handled by the codec.
	ValueType() reflect.Type
	// BaseType is the type whose shape is used to serialize values.
	BaseType() reflect.Type
	Framing() wire.Framing
	// Encode appends the encoded value to dst.
	Encode(dst []byte, v any) ([]byte, error)
	// Decode returns a value of type ValueType, wrapped in an interface.
	Decode(src []byte) (any, error)
	// DecodeTo decodes src into dst, which must be a non-nil pointer
	// to a type ValueType is assignable to.
	DecodeTo(src []byte, dst any) error
}

// A Factory builds codecs. The zero value is not usable, use NewFactory.
type Factory struct {
	shapes *shape.Registry
}

// NewFactory creates a factory using the given registry to inspect types.
func NewFactory(shapes *shape.Registry) *Factory {
	if shapes == nil {
		shapes = shape.NewRegistry()
	}

	return &Factory{shapes: shapes}
}

// Shapes returns the registry used to inspect types.
func (f *Factory) Shapes() *shape.Registry {
	return f.shapes
}

// a strategy selects how values go through their base type.
type strategy uint8

const (
	// the base type is the value type, or a plain supertype of it.
	exactStrategy strategy = iota + 1
	// the base type is an interface with declared variants.
	polymorphicStrategy
	// the base type is any: the runtime type of each value is used.
	runtimeStrategy
)

type constructor func(c *jsonCodec, valueDesc, baseDesc *shape.Descriptor) error

var constructors = map[strategy]constructor{
	exactStrategy: func(c *jsonCodec, valueDesc, baseDesc *shape.Descriptor) error {
		return nil
	},
	polymorphicStrategy: func(c *jsonCodec, valueDesc, baseDesc *shape.Descriptor) error {
		for _, v := range baseDesc.Polymorphism.Variants {
			if v.Type.AssignableTo(c.valueType) {
				c.poly = baseDesc.Polymorphism
				return nil
			}
		}

		return errs.NewCodecConstructionError(c.valueType, c.baseType, "no declared variant is assignable to the value type")
	},
	runtimeStrategy: func(c *jsonCodec, valueDesc, baseDesc *shape.Descriptor) error {
		// values are decoded through their own shape, which may be polymorphic.
		if !c.opts.IgnorePolymorphism {
			c.poly = valueDesc.Polymorphism
		}
		return nil
	},
}

// Build returns a codec handling values of valueType, serialized with the
// shape of baseType. baseType must be valueType, a type assignable to or
// from it, or the empty interface. Text framed documents are written with
// textEncoding, which defaults to UTF-8.
func (f *Factory) Build(valueType, baseType reflect.Type, framing wire.Framing, textEncoding encoding.Encoding, opts SerializerOptions) (Codec, error) {
	if valueType == nil {
		return nil, errs.NewCodecConstructionError(valueType, baseType, "value type is required")
	}
	if baseType == nil {
		return nil, errs.NewCodecConstructionError(valueType, baseType, "base type is required")
	}
	if framing != wire.TextFraming && framing != wire.BinaryFraming {
		return nil, errs.NewCodecConstructionError(valueType, baseType, "unsupported framing %d", framing)
	}
	if baseType != wire.AnyType && !baseType.AssignableTo(valueType) && !valueType.AssignableTo(baseType) {
		return nil, errs.NewCodecConstructionError(valueType, baseType, "types are not related")
	}

	valueDesc, err := f.shapes.Inspect(valueType)
	if err != nil {
		return nil, err
	}

	baseDesc := valueDesc
	if baseType != valueType {
		baseDesc, err = f.shapes.Inspect(baseType)
		if err != nil {
			return nil, err
		}
	}

	if textEncoding == nil {
		textEncoding = unicode.UTF8
	}

	c := jsonCodec{
		valueType: valueType,
		baseType:  baseType,
		framing:   framing,
		enc:       textEncoding,
		opts:      opts,
		shapes:    f.shapes,
	}

	switch {
	case baseType == wire.AnyType:
		c.strategy = runtimeStrategy
	case baseDesc.Polymorphism != nil && !opts.IgnorePolymorphism:
		c.strategy = polymorphicStrategy
	default:
		c.strategy = exactStrategy
	}

	if err := constructors[c.strategy](&c, valueDesc, baseDesc); err != nil {
		return nil, err
	}

	return &c, nil
}
