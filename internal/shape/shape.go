// Package shape inspects Go types to determine whether they can be
// represented as JSON and which concrete types a polymorphic interface
// may be decoded to.
package shape

import (
	"encoding"
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	errs "github.com/chaisql/typemap/errors"
)

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// Variant is a concrete type that a polymorphic base type can hold,
// identified in JSON documents by its discriminator.
type Variant struct {
	Discriminator string
	Type          reflect.Type
}

// Polymorphism lists the variants declared for a base interface type.
type Polymorphism struct {
	Base     reflect.Type
	Variants []Variant
}

// TypeOf returns the variant type associated with the discriminator.
func (p *Polymorphism) TypeOf(discriminator string) (reflect.Type, bool) {
	for _, v := range p.Variants {
		if v.Discriminator == discriminator {
			return v.Type, true
		}
	}

	return nil, false
}

// DiscriminatorOf returns the discriminator of the variant t.
// If t is a pointer whose element is a declared variant, the element's
// discriminator is returned.
func (p *Polymorphism) DiscriminatorOf(t reflect.Type) (string, bool) {
	for _, v := range p.Variants {
		if v.Type == t {
			return v.Discriminator, true
		}
	}

	if t != nil && t.Kind() == reflect.Pointer {
		return p.DiscriminatorOf(t.Elem())
	}

	return "", false
}

// Descriptor is the shape of a Go type, as seen by the JSON serializer.
type Descriptor struct {
	Type reflect.Type
	Kind reflect.Kind
	// Elem is the element type of sequences, nil otherwise.
	Elem reflect.Type
	// Polymorphism is set when variants were declared for Type.
	Polymorphism *Polymorphism
}

// IsSequence returns true if the type is serialized as a JSON array.
func (d *Descriptor) IsSequence() bool {
	return d.Elem != nil
}

// Registry holds polymorphic declarations and caches the descriptors
// it computes. Declarations must be made before the registry is used
// to inspect types.
type Registry struct {
	mu       sync.RWMutex
	bases    map[reflect.Type]*Polymorphism
	variants map[reflect.Type]*Polymorphism

	descriptors sync.Map
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bases:    make(map[reflect.Type]*Polymorphism),
		variants: make(map[reflect.Type]*Polymorphism),
	}
}

// Declare registers the variants of the base interface type.
// Each variant must be a concrete struct or map type, or a pointer to one,
// implementing base. Discriminators must be unique within the declaration
// and a type can only be the variant of one base.
func (r *Registry) Declare(base reflect.Type, variants ...Variant) error {
	if base == nil || base.Kind() != reflect.Interface {
		return errs.NewTypeIntrospectionError(base, "polymorphic base type must be an interface")
	}
	if base.NumMethod() == 0 {
		return errs.NewTypeIntrospectionError(base, "polymorphic base type cannot be the empty interface")
	}
	if len(variants) == 0 {
		return errs.NewTypeIntrospectionError(base, "no variants declared")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bases[base]; ok {
		return errs.NewTypeIntrospectionError(base, "variants already declared")
	}

	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		if v.Discriminator == "" {
			return errs.NewTypeIntrospectionError(v.Type, "empty discriminator")
		}
		if _, ok := seen[v.Discriminator]; ok {
			return errs.NewTypeIntrospectionError(base, "duplicate discriminator %q", v.Discriminator)
		}
		seen[v.Discriminator] = struct{}{}

		if v.Type == nil {
			return errs.NewTypeIntrospectionError(base, "nil variant type for discriminator %q", v.Discriminator)
		}
		if !v.Type.Implements(base) {
			return errs.NewTypeIntrospectionError(v.Type, "does not implement %s", base)
		}
		if !isObjectLike(v.Type) {
			return errs.NewTypeIntrospectionError(v.Type, "variant must be a struct or a map")
		}
		if p, ok := r.variants[v.Type]; ok {
			return errs.NewTypeIntrospectionError(v.Type, "already a variant of %s", p.Base)
		}
	}

	p := Polymorphism{
		Base:     base,
		Variants: append([]Variant(nil), variants...),
	}
	r.bases[base] = &p
	for _, v := range variants {
		r.variants[v.Type] = &p
	}

	return nil
}

// Polymorphism returns the declaration whose base is t, or nil.
func (r *Registry) Polymorphism(t reflect.Type) *Polymorphism {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.bases[t]
}

// VariantOf returns the declaration t belongs to as a variant, with its
// discriminator.
func (r *Registry) VariantOf(t reflect.Type) (*Polymorphism, string, bool) {
	r.mu.RLock()
	p, ok := r.variants[t]
	if !ok && t != nil && t.Kind() == reflect.Pointer {
		p, ok = r.variants[t.Elem()]
	}
	r.mu.RUnlock()
	if !ok {
		return nil, "", false
	}

	d, _ := p.DiscriminatorOf(t)
	return p, d, true
}

// Inspect returns the descriptor of t. It fails with a
// TypeIntrospectionError if t, or any type reachable from its exported
// fields, cannot be represented as JSON.
func (r *Registry) Inspect(t reflect.Type) (*Descriptor, error) {
	if t == nil {
		return nil, errs.NewTypeIntrospectionError(nil, "nil type")
	}

	if d, ok := r.descriptors.Load(t); ok {
		return d.(*Descriptor), nil
	}

	err := r.checkType(t, false, make(map[reflect.Type]struct{}))
	if err != nil {
		return nil, err
	}

	d := Descriptor{
		Type:         t,
		Kind:         t.Kind(),
		Polymorphism: r.Polymorphism(t),
	}
	if IsSequence(t) {
		d.Elem = t.Elem()
	}

	r.descriptors.Store(t, &d)
	return &d, nil
}

// IsSequence returns true if values of t are serialized as JSON arrays.
// Byte slices and arrays are excluded since they are serialized as
// strings, as well as types with custom JSON marshalling.
func IsSequence(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return false
	}
	if t.Elem().Kind() == reflect.Uint8 {
		return false
	}

	return !hasCustomMarshaler(t)
}

// IsReference returns true if values of t are references to other values.
func IsReference(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
		return true
	}

	return false
}

func isObjectLike(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t.Kind() == reflect.Struct || t.Kind() == reflect.Map
}

func hasCustomMarshaler(t reflect.Type) bool {
	return t.Implements(jsonMarshalerType) ||
		t.Implements(textMarshalerType) ||
		reflect.PointerTo(t).Implements(jsonMarshalerType) ||
		reflect.PointerTo(t).Implements(textMarshalerType)
}

// checkType walks t and the types reachable from it. Discriminators are
// only carried by top level values, so a declared interface reached
// through a field, an element or a pointer is rejected.
func (r *Registry) checkType(t reflect.Type, nested bool, visited map[reflect.Type]struct{}) error {
	if nested && t.Kind() == reflect.Interface && r.Polymorphism(t) != nil {
		return errs.NewTypeIntrospectionError(t, "polymorphic interface is only supported at the top level")
	}

	if _, ok := visited[t]; ok {
		return nil
	}
	visited[t] = struct{}{}

	if hasCustomMarshaler(t) {
		return nil
	}

	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer, reflect.Invalid:
		return errs.NewTypeIntrospectionError(t, "kind %s cannot be represented as JSON", t.Kind())
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return r.checkType(t.Elem(), true, visited)
	case reflect.Map:
		if !isValidMapKey(t.Key()) {
			return errs.NewTypeIntrospectionError(t, "map key type %s cannot be represented as JSON", t.Key())
		}
		return r.checkType(t.Elem(), true, visited)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() && !f.Anonymous {
				continue
			}
			if tag, ok := f.Tag.Lookup("json"); ok && strings.Split(tag, ",")[0] == "-" && !strings.Contains(tag, ",") {
				continue
			}
			if err := r.checkType(f.Type, true, visited); err != nil {
				return errs.NewTypeIntrospectionError(t, "field %s: %v", f.Name, err)
			}
		}
	}

	return nil
}

func isValidMapKey(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}

	return t.Implements(textMarshalerType)
}
