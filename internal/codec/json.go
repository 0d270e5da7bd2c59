package codec

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"

	"github.com/buger/jsonparser"
	errs "github.com/chaisql/typemap/errors"
	"github.com/chaisql/typemap/internal/shape"
	"github.com/chaisql/typemap/internal/wire"
	"github.com/cockroachdb/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

var nullLiteral = []byte("null")

type jsonCodec struct {
	valueType reflect.Type
	baseType  reflect.Type
	framing   wire.Framing
	enc       encoding.Encoding
	opts      SerializerOptions
	shapes    *shape.Registry
	strategy  strategy
	// set when decoding goes through a polymorphic declaration
	poly *shape.Polymorphism
}

func (c *jsonCodec) ValueType() reflect.Type { return c.valueType }
func (c *jsonCodec) BaseType() reflect.Type  { return c.baseType }
func (c *jsonCodec) Framing() wire.Framing   { return c.framing }

func (c *jsonCodec) Encode(dst []byte, v any) ([]byte, error) {
	doc, err := c.marshal(v)
	if err != nil {
		return nil, err
	}

	if c.framing == wire.BinaryFraming {
		dst = append(dst, wire.JSONBVersion)
		return append(dst, doc...), nil
	}

	if c.enc == unicode.UTF8 {
		return append(dst, doc...), nil
	}

	doc, err = c.enc.NewEncoder().Bytes(doc)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot encode JSON document as %v", c.enc)
	}
	return append(dst, doc...), nil
}

func (c *jsonCodec) marshal(v any) ([]byte, error) {
	if v == nil {
		return nullLiteral, nil
	}

	rt := reflect.TypeOf(v)
	if !rt.AssignableTo(c.valueType) {
		return nil, errors.Errorf("cannot encode value of type %s with a codec for %s", rt, c.valueType)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(c.opts.EscapeHTML)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrapf(err, "cannot marshal value of type %s", rt)
	}
	doc := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	if isNilValue(v) {
		return doc, nil
	}

	discriminator, err := c.discriminatorFor(rt)
	if err != nil || discriminator == "" {
		return doc, err
	}

	return c.withDiscriminator(doc, discriminator)
}

// discriminatorFor returns the discriminator to embed when encoding a value
// of runtime type rt, or an empty string.
func (c *jsonCodec) discriminatorFor(rt reflect.Type) (string, error) {
	if c.opts.IgnorePolymorphism {
		return "", nil
	}

	switch c.strategy {
	case polymorphicStrategy:
		d, ok := c.poly.DiscriminatorOf(rt)
		if !ok {
			return "", errors.Errorf("type %s is not a declared variant of %s", rt, c.poly.Base)
		}
		return d, nil
	case runtimeStrategy:
		_, d, ok := c.shapes.VariantOf(rt)
		if ok {
			return d, nil
		}
	}

	return "", nil
}

// withDiscriminator inserts the discriminator as the first property of the object doc.
func (c *jsonCodec) withDiscriminator(doc []byte, discriminator string) ([]byte, error) {
	if len(doc) < 2 || doc[0] != '{' {
		return nil, errors.Errorf("cannot add a discriminator to a non-object JSON value")
	}

	out := make([]byte, 0, len(doc)+len(discriminator)+len(c.opts.discriminatorProperty())+8)
	out = append(out, '{')
	out = strconv.AppendQuote(out, c.opts.discriminatorProperty())
	out = append(out, ':')
	out = strconv.AppendQuote(out, discriminator)
	if !bytes.Equal(bytes.TrimSpace(doc[1:]), []byte("}")) {
		out = append(out, ',')
	}
	return append(out, doc[1:]...), nil
}

func (c *jsonCodec) Decode(src []byte) (any, error) {
	rv, err := c.decode(src)
	if err != nil {
		return nil, err
	}

	return rv.Interface(), nil
}

func (c *jsonCodec) DecodeTo(src []byte, dst any) error {
	target, err := decodeTarget(dst, c.valueType)
	if err != nil {
		return err
	}

	rv, err := c.decode(src)
	if err != nil {
		return err
	}

	return setTarget(target, rv)
}

func (c *jsonCodec) decode(src []byte) (reflect.Value, error) {
	doc, err := c.unframe(src)
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.New(c.valueType).Elem()
	if bytes.Equal(bytes.TrimSpace(doc), nullLiteral) {
		return out, nil
	}

	typ := c.valueType
	if c.poly != nil {
		typ, doc, err = c.resolveVariant(doc)
		if err != nil {
			return reflect.Value{}, err
		}
	} else if _, _, ok := c.shapes.VariantOf(c.valueType); ok && !c.opts.IgnorePolymorphism {
		doc = c.stripDiscriminator(doc)
	}

	ptr := reflect.New(typ)
	dec := json.NewDecoder(bytes.NewReader(doc))
	if c.opts.DisallowUnknownFields {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(ptr.Interface()); err != nil {
		return reflect.Value{}, errors.Wrapf(err, "cannot unmarshal JSON into %s", typ)
	}

	v := ptr.Elem()
	if !v.Type().AssignableTo(c.valueType) {
		return reflect.Value{}, errors.Errorf("decoded variant %s is not assignable to %s", v.Type(), c.valueType)
	}
	out.Set(v)
	return out, nil
}

func (c *jsonCodec) unframe(src []byte) ([]byte, error) {
	if c.framing == wire.BinaryFraming {
		if len(src) == 0 {
			return nil, errors.New("empty binary JSON payload")
		}
		if src[0] != wire.JSONBVersion {
			return nil, errs.NewUnsupportedFramingVersionError(src[0], wire.JSONBVersion)
		}
		return src[1:], nil
	}

	if c.enc == unicode.UTF8 {
		return src, nil
	}

	doc, err := c.enc.NewDecoder().Bytes(src)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode JSON document from %v", c.enc)
	}
	return doc, nil
}

// resolveVariant reads the discriminator of doc and returns the variant
// type it designates, along with the document stripped of the discriminator.
func (c *jsonCodec) resolveVariant(doc []byte) (reflect.Type, []byte, error) {
	d, err := jsonparser.GetString(doc, c.opts.discriminatorProperty())
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return nil, nil, errs.NewDiscriminatorError(c.poly.Base, "")
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot read type discriminator")
	}

	typ, ok := c.poly.TypeOf(d)
	if !ok {
		return nil, nil, errs.NewDiscriminatorError(c.poly.Base, d)
	}

	return typ, c.stripDiscriminator(doc), nil
}

func (c *jsonCodec) stripDiscriminator(doc []byte) []byte {
	prop := c.opts.discriminatorProperty()
	if _, _, _, err := jsonparser.Get(doc, prop); err != nil {
		return doc
	}

	// jsonparser.Delete works in place, don't modify the caller's buffer.
	return jsonparser.Delete(bytes.Clone(doc), prop)
}

func decodeTarget(dst any, valueType reflect.Type) (reflect.Value, error) {
	ref := reflect.ValueOf(dst)
	if !ref.IsValid() || ref.Kind() != reflect.Pointer || ref.IsNil() {
		return reflect.Value{}, errors.New("target must be a non-nil pointer")
	}

	// targets may be a variant of an interface value type, the decoded
	// value is checked by setTarget.
	target := ref.Elem()
	if !valueType.AssignableTo(target.Type()) && !target.Type().AssignableTo(valueType) {
		return reflect.Value{}, errors.Errorf("cannot decode value of type %s into %s", valueType, target.Type())
	}

	return target, nil
}

func setTarget(target, v reflect.Value) error {
	if v.Kind() == reflect.Interface && !v.Type().AssignableTo(target.Type()) {
		if v.IsNil() {
			target.Set(reflect.Zero(target.Type()))
			return nil
		}
		v = v.Elem()
	}

	if !v.Type().AssignableTo(target.Type()) {
		return errors.Errorf("cannot decode value of type %s into %s", v.Type(), target.Type())
	}

	target.Set(v)
	return nil
}

func isNilValue(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}

	return false
}
