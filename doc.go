/*
Package typemap resolves the codecs translating application Go types to and
from the json and jsonb data types of the database.

# Mappings

A Map holds two kinds of mappings. Explicit mappings are created by New
from the types listed in Options.JSONTypes and Options.JSONBTypes. If a
listed type is an interface with declared variants, each variant is mapped
too, and is serialized through the interface so that its discriminator is
written to the document and used to pick the concrete type when decoding.

Any other type is mapped dynamically the first time it is resolved, then
cached. Dynamic mappings never apply to a nil type, to the empty interface,
or to the text-like types (string, []byte, []rune, json.RawMessage) which
are always sent as raw documents by the driver.

# Framing

json documents are sent as text, using Options.TextEncoding.
jsonb documents are prefixed by a version byte, always 1, followed by the
UTF-8 text of the document. A jsonb payload with another version byte is
rejected before any parsing.

# Polymorphism

Variants are declared with Options.Polymorphic:

	m, err := typemap.New(&typemap.Options{
		JSONBTypes: []reflect.Type{reflect.TypeFor[Shape]()},
		Polymorphic: []typemap.Polymorphic{{
			Base: reflect.TypeFor[Shape](),
			Variants: []typemap.Variant{
				{Discriminator: "circle", Type: reflect.TypeFor[Circle]()},
				{Discriminator: "square", Type: reflect.TypeFor[Square]()},
			},
		}},
	})

Dynamically mapped types only carry a discriminator with json. With jsonb
they are serialized as their exact type, since the binary framing has no
room for type metadata.

# Arrays

Slices and arrays of any mapped type are mapped to the _json and _jsonb
array data types, using the binary array layout of the server.
*/
package typemap
