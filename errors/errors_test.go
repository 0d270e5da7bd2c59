package errors

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestIsHelpers(t *testing.T) {
	strType := reflect.TypeOf("")

	tests := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"duplicate", NewDuplicateMappingError(strType, "json"), IsDuplicateMappingError},
		{"no mapping", NewNoMappingFoundError(strType, "jsonb"), IsNoMappingFoundError},
		{"introspection", NewTypeIntrospectionError(strType, "bad %s", "field"), IsTypeIntrospectionError},
		{"construction", NewCodecConstructionError(strType, strType, "nope"), IsCodecConstructionError},
		{"framing", NewUnsupportedFramingVersionError(2, 1), IsUnsupportedFramingVersionError},
		{"discriminator", NewDiscriminatorError(strType, "x"), IsDiscriminatorError},
		{"array", NewArrayFormatError("ndim %d", 2), IsArrayFormatError},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.True(t, test.is(test.err))
			require.True(t, test.is(errors.Wrap(test.err, "context")))
			require.False(t, test.is(errors.New("other")))
		})
	}
}

func TestMessages(t *testing.T) {
	require.Equal(t, `no mapping found for type <nil> and data type "json"`, NewNoMappingFoundError(nil, "json").Error())
	require.Equal(t, "no mapping found for type int", NewNoMappingFoundError(reflect.TypeOf(0), "").Error())
	require.Equal(t, "unsupported binary framing version 7, expected 1", NewUnsupportedFramingVersionError(7, 1).Error())
	require.Equal(t, "missing type discriminator for polymorphic type string", NewDiscriminatorError(reflect.TypeOf(""), "").Error())
}
