package codec

import (
	"encoding/binary"
	"math"
	"reflect"

	errs "github.com/chaisql/typemap/errors"
	"github.com/chaisql/typemap/internal/shape"
	"github.com/chaisql/typemap/internal/wire"
	"github.com/cockroachdb/errors"
)

// array header: ndim, has-null flag, element oid.
const arrayHeaderSize = 12

// BuildArray returns a codec for the sequence type arrayType whose
// elements are handled by elem. Arrays use the binary array layout of the
// server: a header followed by one length-prefixed payload per element,
// each framed by the element codec.
func (f *Factory) BuildArray(arrayType reflect.Type, elemDataType wire.TypeID, elem Codec) (Codec, error) {
	if arrayType == nil || elem == nil {
		return nil, errs.NewCodecConstructionError(arrayType, arrayType, "array type and element codec are required")
	}
	if !shape.IsSequence(arrayType) {
		return nil, errs.NewCodecConstructionError(arrayType, arrayType, "not a sequence type")
	}
	// element codecs may decode through a supertype of the element type,
	// in which case decoded values are checked one by one.
	if !elem.ValueType().AssignableTo(arrayType.Elem()) && !arrayType.Elem().AssignableTo(elem.ValueType()) {
		return nil, errs.NewCodecConstructionError(arrayType, elem.BaseType(), "element codec for %s cannot produce %s", elem.ValueType(), arrayType.Elem())
	}

	oid := elemDataType.OID()
	if oid == 0 {
		return nil, errs.NewCodecConstructionError(arrayType, elem.BaseType(), "unknown element data type %q", elemDataType)
	}

	return &arrayCodec{
		arrayType: arrayType,
		elem:      elem,
		elemOID:   oid,
	}, nil
}

type arrayCodec struct {
	arrayType reflect.Type
	elem      Codec
	elemOID   uint32
}

func (c *arrayCodec) ValueType() reflect.Type { return c.arrayType }

// BaseType returns the sequence of the element codec base type.
func (c *arrayCodec) BaseType() reflect.Type {
	if c.arrayType.Kind() == reflect.Array {
		return reflect.ArrayOf(c.arrayType.Len(), c.elem.BaseType())
	}
	return reflect.SliceOf(c.elem.BaseType())
}

// Framing returns the framing of the elements.
func (c *arrayCodec) Framing() wire.Framing { return c.elem.Framing() }

func (c *arrayCodec) Encode(dst []byte, v any) ([]byte, error) {
	if v == nil {
		return c.appendHeader(dst, 0, false, 0), nil
	}

	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(c.arrayType) {
		return nil, errors.Errorf("cannot encode value of type %s with a codec for %s", rv.Type(), c.arrayType)
	}

	n := rv.Len()
	if n > math.MaxInt32 {
		return nil, errs.NewArrayFormatError("too many elements: %d", n)
	}

	start := len(dst)
	dst = c.appendHeader(dst, n, false, 1)

	var hasNull bool
	for i := 0; i < n; i++ {
		ev := rv.Index(i)
		if isNilKind(ev) {
			hasNull = true
			dst = binary.BigEndian.AppendUint32(dst, math.MaxUint32)
			continue
		}

		lenPos := len(dst)
		dst = append(dst, 0, 0, 0, 0)

		var err error
		dst, err = c.elem.Encode(dst, ev.Interface())
		if err != nil {
			return nil, errors.Wrapf(err, "cannot encode element %d", i)
		}

		binary.BigEndian.PutUint32(dst[lenPos:], uint32(len(dst)-lenPos-4))
	}

	if hasNull {
		binary.BigEndian.PutUint32(dst[start+4:], 1)
	}

	return dst, nil
}

func (c *arrayCodec) appendHeader(dst []byte, n int, hasNull bool, lbound int32) []byte {
	var ndim, flag uint32
	if n > 0 {
		ndim = 1
	}
	if hasNull {
		flag = 1
	}

	dst = binary.BigEndian.AppendUint32(dst, ndim)
	dst = binary.BigEndian.AppendUint32(dst, flag)
	dst = binary.BigEndian.AppendUint32(dst, c.elemOID)
	if ndim == 0 {
		return dst
	}

	dst = binary.BigEndian.AppendUint32(dst, uint32(n))
	return binary.BigEndian.AppendUint32(dst, uint32(lbound))
}

func (c *arrayCodec) Decode(src []byte) (any, error) {
	rv, err := c.decode(src)
	if err != nil {
		return nil, err
	}

	return rv.Interface(), nil
}

func (c *arrayCodec) DecodeTo(src []byte, dst any) error {
	target, err := decodeTarget(dst, c.arrayType)
	if err != nil {
		return err
	}

	rv, err := c.decode(src)
	if err != nil {
		return err
	}

	return setTarget(target, rv)
}

func (c *arrayCodec) decode(src []byte) (reflect.Value, error) {
	if len(src) < arrayHeaderSize {
		return reflect.Value{}, errs.NewArrayFormatError("header too short: %d bytes", len(src))
	}

	ndim := int32(binary.BigEndian.Uint32(src))
	oid := binary.BigEndian.Uint32(src[8:])
	if oid != c.elemOID {
		return reflect.Value{}, errs.NewArrayFormatError("unexpected element oid %d, expected %d", oid, c.elemOID)
	}

	switch ndim {
	case 0:
		return c.makeSequence(0)
	case 1:
	default:
		return reflect.Value{}, errs.NewArrayFormatError("unsupported number of dimensions: %d", ndim)
	}

	rest := src[arrayHeaderSize:]
	if len(rest) < 8 {
		return reflect.Value{}, errs.NewArrayFormatError("dimension header too short")
	}
	n := int32(binary.BigEndian.Uint32(rest))
	if n < 0 {
		return reflect.Value{}, errs.NewArrayFormatError("negative dimension length %d", n)
	}
	rest = rest[8:]
	// every element carries at least its length.
	if int64(n)*4 > int64(len(rest)) {
		return reflect.Value{}, errs.NewArrayFormatError("dimension length %d exceeds payload of %d bytes", n, len(rest))
	}

	out, err := c.makeSequence(int(n))
	if err != nil {
		return reflect.Value{}, err
	}

	for i := 0; i < int(n); i++ {
		if len(rest) < 4 {
			return reflect.Value{}, errs.NewArrayFormatError("element %d: missing length", i)
		}
		l := int32(binary.BigEndian.Uint32(rest))
		rest = rest[4:]
		if l == -1 {
			continue
		}
		if l < 0 || int(l) > len(rest) {
			return reflect.Value{}, errs.NewArrayFormatError("element %d: invalid length %d", i, l)
		}

		v, err := c.elem.Decode(rest[:l])
		if err != nil {
			return reflect.Value{}, errors.Wrapf(err, "cannot decode element %d", i)
		}
		if v != nil {
			ev := reflect.ValueOf(v)
			if !ev.Type().AssignableTo(out.Index(i).Type()) {
				return reflect.Value{}, errors.Errorf("element %d: cannot store value of type %s in %s", i, ev.Type(), out.Index(i).Type())
			}
			out.Index(i).Set(ev)
		}
		rest = rest[l:]
	}

	if len(rest) != 0 {
		return reflect.Value{}, errs.NewArrayFormatError("%d trailing bytes", len(rest))
	}

	return out, nil
}

func (c *arrayCodec) makeSequence(n int) (reflect.Value, error) {
	if c.arrayType.Kind() == reflect.Array {
		if c.arrayType.Len() != n {
			return reflect.Value{}, errs.NewArrayFormatError("cannot decode %d elements into %s", n, c.arrayType)
		}
		return reflect.New(c.arrayType).Elem(), nil
	}

	return reflect.MakeSlice(c.arrayType, n, n), nil
}

func isNilKind(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}

	return false
}
