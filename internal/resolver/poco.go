// Package resolver provides the resolvers mapping application types to
// JSON codecs.
package resolver

import (
	"reflect"

	errs "github.com/chaisql/typemap/errors"
	"github.com/chaisql/typemap/internal/codec"
	"github.com/chaisql/typemap/internal/mapping"
	"github.com/chaisql/typemap/internal/shape"
	"github.com/chaisql/typemap/internal/wire"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
)

// Config configures a POCO resolver.
type Config struct {
	// Types registered explicitly for the json data type.
	JSONTypes []reflect.Type
	// Types registered explicitly for the jsonb data type.
	JSONBTypes []reflect.Type
	// Shapes holds the polymorphic declarations. Defaults to an empty registry.
	Shapes *shape.Registry
	// Serializer is passed unchanged to every codec.
	Serializer codec.SerializerOptions
	// TextEncoding of json documents. Defaults to UTF-8.
	TextEncoding encoding.Encoding
	Logger       *zap.Logger
}

var (
	_ mapping.Resolver        = (*POCOResolver)(nil)
	_ mapping.DynamicResolver = (*POCOResolver)(nil)
)

// POCOResolver maps plain Go types to json and jsonb.
// Types declared in the configuration are mapped explicitly, along with
// the declared variants of polymorphic interfaces. Any other type is
// mapped dynamically on first use.
type POCOResolver struct {
	json  *mapping.Collection
	jsonb *mapping.Collection
	cache *mapping.DynamicCache

	factory    *codec.Factory
	serializer codec.SerializerOptions
	enc        encoding.Encoding
	logger     *zap.Logger
}

// NewPOCOResolver registers the configured types and returns the resolver.
func NewPOCOResolver(cfg Config) (*POCOResolver, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := POCOResolver{
		json:       mapping.NewCollection(),
		jsonb:      mapping.NewCollection(),
		factory:    codec.NewFactory(cfg.Shapes),
		serializer: cfg.Serializer,
		enc:        cfg.TextEncoding,
		logger:     logger,
	}
	r.cache = mapping.NewDynamicCache(&r, logger)

	if err := r.register(r.json, wire.JSON, cfg.JSONTypes); err != nil {
		return nil, err
	}
	if err := r.register(r.jsonb, wire.JSONB, cfg.JSONBTypes); err != nil {
		return nil, err
	}

	return &r, nil
}

func (r *POCOResolver) register(c *mapping.Collection, id wire.TypeID, types []reflect.Type) error {
	framing, _ := wire.FramingOf(id)

	for _, t := range types {
		if t == nil {
			return errs.NewTypeIntrospectionError(nil, "cannot register a nil type")
		}

		if _, err := c.Add(t, id, r.codecFactory(t, t, framing, r.serializer)); err != nil {
			return err
		}
		r.logger.Debug("mapping registered", zap.Stringer("type", t), zap.Stringer("data_type", id))

		if !shape.IsReference(t) {
			continue
		}
		p := r.factory.Shapes().Polymorphism(t)
		if p == nil {
			continue
		}

		// variants are serialized through their base so that the
		// discriminator is written and read back.
		for _, v := range p.Variants {
			if _, err := c.Add(v.Type, id, r.codecFactory(t, t, framing, r.serializer)); err != nil {
				return err
			}
			r.logger.Debug("mapping registered",
				zap.Stringer("type", v.Type),
				zap.Stringer("base_type", t),
				zap.Stringer("data_type", id),
			)
		}
	}

	return nil
}

func (r *POCOResolver) codecFactory(valueType, baseType reflect.Type, framing wire.Framing, opts codec.SerializerOptions) mapping.CodecFactory {
	return func() (codec.Codec, error) {
		return r.factory.Build(valueType, baseType, framing, r.enc, opts)
	}
}

func (r *POCOResolver) collection(id wire.TypeID) *mapping.Collection {
	switch id {
	case wire.JSON:
		return r.json
	case wire.JSONB:
		return r.jsonb
	}

	return nil
}

// Resolve returns the explicit mapping of t and id if any, or a dynamic one.
// If id is empty, json mappings are searched before jsonb ones.
func (r *POCOResolver) Resolve(t reflect.Type, id wire.TypeID) (*mapping.Mapping, error) {
	if id == "" {
		if m := r.json.Find(t, ""); m != nil {
			return m, nil
		}
		if m := r.jsonb.Find(t, ""); m != nil {
			return m, nil
		}
		return nil, errs.NewNoMappingFoundError(t, "")
	}

	c := r.collection(id)
	if c == nil {
		return nil, errs.NewNoMappingFoundError(t, id.String())
	}

	return mapping.Resolve(c, r.cache, t, id)
}

// TryMatch matches any type except nil, the empty interface and the
// reserved text-like types, for json and jsonb.
func (r *POCOResolver) TryMatch(t reflect.Type, id wire.TypeID) mapping.Builder {
	if t == nil || t == wire.AnyType || wire.IsReserved(t) || !id.IsJSON() {
		return nil
	}

	framing, _ := wire.FramingOf(id)

	return func() (*mapping.Mapping, error) {
		// jsonb has no room for a discriminator without changing its framing:
		// values are serialized as their exact type. json serializes through
		// the empty interface so that declared variants keep their discriminator.
		base := wire.AnyType
		opts := r.serializer
		if framing == wire.BinaryFraming {
			base = t
			opts.IgnorePolymorphism = true
		}

		return mapping.New(t, id, r.codecFactory(t, base, framing, opts)), nil
	}
}

// Mappings returns the explicit mappings, json ones first.
func (r *POCOResolver) Mappings() []*mapping.Mapping {
	return append(r.json.All(), r.jsonb.All()...)
}

// Factory returns the factory building the codecs.
func (r *POCOResolver) Factory() *codec.Factory {
	return r.factory
}
