// Package errors defines the errors returned while resolving and running
// JSON codecs. Every error is created with a stack trace and can be matched
// with the Is* helpers or with errors.As, even after being wrapped.
package errors

import (
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"
)

// DuplicateMappingError is returned when an explicit mapping is registered
// for a (type, wire type) pair that already has one.
type DuplicateMappingError struct {
	Type     reflect.Type
	DataType string
}

func (e *DuplicateMappingError) Error() string {
	return fmt.Sprintf("a mapping for type %s and data type %q already exists", typeName(e.Type), e.DataType)
}

// NewDuplicateMappingError returns a DuplicateMappingError with a stack trace.
func NewDuplicateMappingError(t reflect.Type, dataType string) error {
	return errors.WithStack(&DuplicateMappingError{Type: t, DataType: dataType})
}

// IsDuplicateMappingError reports whether err is or wraps a DuplicateMappingError.
func IsDuplicateMappingError(err error) bool {
	var e *DuplicateMappingError
	return errors.As(err, &e)
}

// NoMappingFoundError is returned when neither an explicit nor a dynamic
// mapping applies to the requested type and data type.
type NoMappingFoundError struct {
	Type     reflect.Type
	DataType string
}

func (e *NoMappingFoundError) Error() string {
	if e.DataType == "" {
		return fmt.Sprintf("no mapping found for type %s", typeName(e.Type))
	}
	return fmt.Sprintf("no mapping found for type %s and data type %q", typeName(e.Type), e.DataType)
}

func NewNoMappingFoundError(t reflect.Type, dataType string) error {
	return errors.WithStack(&NoMappingFoundError{Type: t, DataType: dataType})
}

func IsNoMappingFoundError(err error) bool {
	var e *NoMappingFoundError
	return errors.As(err, &e)
}

// TypeIntrospectionError is returned when the shape of a type cannot be
// determined, either because it contains values JSON cannot represent or
// because a polymorphic declaration is inconsistent.
type TypeIntrospectionError struct {
	Type   reflect.Type
	Reason string
}

func (e *TypeIntrospectionError) Error() string {
	return fmt.Sprintf("cannot introspect type %s: %s", typeName(e.Type), e.Reason)
}

func NewTypeIntrospectionError(t reflect.Type, format string, args ...any) error {
	return errors.WithStack(&TypeIntrospectionError{Type: t, Reason: fmt.Sprintf(format, args...)})
}

func IsTypeIntrospectionError(err error) bool {
	var e *TypeIntrospectionError
	return errors.As(err, &e)
}

// CodecConstructionError is returned when no codec can be built for a
// value type and base type pair.
type CodecConstructionError struct {
	ValueType reflect.Type
	BaseType  reflect.Type
	Reason    string
}

func (e *CodecConstructionError) Error() string {
	return fmt.Sprintf("cannot build codec for value type %s with base type %s: %s", typeName(e.ValueType), typeName(e.BaseType), e.Reason)
}

func NewCodecConstructionError(valueType, baseType reflect.Type, format string, args ...any) error {
	return errors.WithStack(&CodecConstructionError{
		ValueType: valueType,
		BaseType:  baseType,
		Reason:    fmt.Sprintf(format, args...),
	})
}

func IsCodecConstructionError(err error) bool {
	var e *CodecConstructionError
	return errors.As(err, &e)
}

// UnsupportedFramingVersionError is returned when a binary payload starts
// with a version byte other than the supported one.
type UnsupportedFramingVersionError struct {
	Version  byte
	Expected byte
}

func (e *UnsupportedFramingVersionError) Error() string {
	return fmt.Sprintf("unsupported binary framing version %d, expected %d", e.Version, e.Expected)
}

func NewUnsupportedFramingVersionError(version, expected byte) error {
	return errors.WithStack(&UnsupportedFramingVersionError{Version: version, Expected: expected})
}

func IsUnsupportedFramingVersionError(err error) bool {
	var e *UnsupportedFramingVersionError
	return errors.As(err, &e)
}

// DiscriminatorError is returned when decoding a polymorphic payload whose
// discriminator is missing or doesn't match any declared variant.
type DiscriminatorError struct {
	BaseType      reflect.Type
	Discriminator string
}

func (e *DiscriminatorError) Error() string {
	if e.Discriminator == "" {
		return fmt.Sprintf("missing type discriminator for polymorphic type %s", typeName(e.BaseType))
	}
	return fmt.Sprintf("unknown type discriminator %q for polymorphic type %s", e.Discriminator, typeName(e.BaseType))
}

func NewDiscriminatorError(base reflect.Type, discriminator string) error {
	return errors.WithStack(&DiscriminatorError{BaseType: base, Discriminator: discriminator})
}

func IsDiscriminatorError(err error) bool {
	var e *DiscriminatorError
	return errors.As(err, &e)
}

// ArrayFormatError is returned when an array payload is malformed or
// doesn't fit the target sequence type.
type ArrayFormatError struct {
	Msg string
}

func (e *ArrayFormatError) Error() string {
	return "malformed array: " + e.Msg
}

func NewArrayFormatError(format string, args ...any) error {
	return errors.WithStack(&ArrayFormatError{Msg: fmt.Sprintf(format, args...)})
}

func IsArrayFormatError(err error) bool {
	var e *ArrayFormatError
	return errors.As(err, &e)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
