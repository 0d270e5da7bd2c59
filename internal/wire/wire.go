// Package wire lists the wire data types handled by the JSON mapping layer
// and the relations between them.
package wire

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// TypeID identifies a wire data type by its name.
// Two identifiers are equal only if their names are equal.
type TypeID string

// List of supported data types.
const (
	// JSON is stored as text.
	JSON TypeID = "json"
	// JSONB is stored in a binary envelope.
	JSONB TypeID = "jsonb"
	// JSONArray is an array of JSON values.
	JSONArray TypeID = "_json"
	// JSONBArray is an array of JSONB values.
	JSONBArray TypeID = "_jsonb"
)

// OIDs of the supported data types, as reported by the server.
const (
	JSONOID       uint32 = 114
	JSONBOID      uint32 = 3802
	JSONArrayOID  uint32 = 199
	JSONBArrayOID uint32 = 3807
)

// JSONBVersion is the only supported version byte of the binary framing.
const JSONBVersion byte = 1

func (id TypeID) String() string {
	return string(id)
}

// OID returns the object identifier of the data type, or 0 if unknown.
func (id TypeID) OID() uint32 {
	switch id {
	case JSON:
		return JSONOID
	case JSONB:
		return JSONBOID
	case JSONArray:
		return JSONArrayOID
	case JSONBArray:
		return JSONBArrayOID
	}

	return 0
}

// FromOID returns the data type identified by oid.
func FromOID(oid uint32) (TypeID, bool) {
	switch oid {
	case JSONOID:
		return JSON, true
	case JSONBOID:
		return JSONB, true
	case JSONArrayOID:
		return JSONArray, true
	case JSONBArrayOID:
		return JSONBArray, true
	}

	return "", false
}

// IsJSON returns true if id is one of the two scalar JSON data types.
func (id TypeID) IsJSON() bool {
	return id == JSON || id == JSONB
}

// IsJSONArray returns true if id is an array of one of the JSON data types.
func (id TypeID) IsJSONArray() bool {
	return id == JSONArray || id == JSONBArray
}

// ArrayOf returns the array data type whose elements are of type id.
func ArrayOf(id TypeID) (TypeID, bool) {
	switch id {
	case JSON:
		return JSONArray, true
	case JSONB:
		return JSONBArray, true
	}

	return "", false
}

// ElementOf returns the element data type of the array data type id.
func ElementOf(id TypeID) (TypeID, bool) {
	switch id {
	case JSONArray:
		return JSON, true
	case JSONBArray:
		return JSONB, true
	}

	return "", false
}

// Framing is the envelope around an encoded JSON document.
type Framing uint8

const (
	// TextFraming writes the document as is.
	TextFraming Framing = iota + 1
	// BinaryFraming prefixes the document with a version byte.
	BinaryFraming
)

func (f Framing) String() string {
	switch f {
	case TextFraming:
		return "text"
	case BinaryFraming:
		return "binary"
	}

	panic(fmt.Sprintf("unsupported framing %d", f))
}

// FramingOf returns the framing used by the scalar data type id.
func FramingOf(id TypeID) (Framing, bool) {
	switch id {
	case JSON:
		return TextFraming, true
	case JSONB:
		return BinaryFraming, true
	}

	return 0, false
}

// AnyType is the type of an empty interface, the most general Go type.
var AnyType = reflect.TypeFor[any]()

var reserved = map[reflect.Type]struct{}{
	reflect.TypeFor[string]():          {},
	reflect.TypeFor[[]byte]():          {},
	reflect.TypeFor[[]rune]():          {},
	reflect.TypeFor[json.RawMessage](): {},
}

// IsReserved returns true for the text-like types that are always mapped
// to JSON as raw documents and must never be serialized as Go values.
func IsReserved(t reflect.Type) bool {
	_, ok := reserved[t]
	return ok
}

// ReservedTypes returns the list of reserved text-like types.
func ReservedTypes() []reflect.Type {
	return []reflect.Type{
		reflect.TypeFor[string](),
		reflect.TypeFor[[]byte](),
		reflect.TypeFor[[]rune](),
		reflect.TypeFor[json.RawMessage](),
	}
}
