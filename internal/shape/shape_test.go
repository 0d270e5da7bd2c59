package shape_test

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	errs "github.com/chaisql/typemap/errors"
	"github.com/chaisql/typemap/internal/shape"
	"github.com/chaisql/typemap/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestDeclare(t *testing.T) {
	tests := []struct {
		name     string
		base     reflect.Type
		variants []shape.Variant
	}{
		{"not an interface", testutil.PointType, testutil.ShapeVariants},
		{"empty interface", reflect.TypeFor[any](), testutil.ShapeVariants},
		{"no variants", testutil.ShapeType, nil},
		{"empty discriminator", testutil.ShapeType, []shape.Variant{{Type: testutil.CircleType}}},
		{"duplicate discriminator", testutil.ShapeType, []shape.Variant{
			{Discriminator: "a", Type: testutil.CircleType},
			{Discriminator: "a", Type: testutil.SquareType},
		}},
		{"not implementing", testutil.ShapeType, []shape.Variant{{Discriminator: "p", Type: testutil.PointType}}},
		{"value receiver mismatch", testutil.ShapeType, []shape.Variant{{Discriminator: "s", Type: reflect.TypeFor[testutil.Square]()}}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := shape.NewRegistry().Declare(test.base, test.variants...)
			require.Error(t, err)
			require.True(t, errs.IsTypeIntrospectionError(err))
		})
	}

	t.Run("twice", func(t *testing.T) {
		r := testutil.NewShapes(t)
		err := r.Declare(testutil.ShapeType, testutil.ShapeVariants...)
		require.True(t, errs.IsTypeIntrospectionError(err))
	})
}

func TestPolymorphism(t *testing.T) {
	r := testutil.NewShapes(t)

	p := r.Polymorphism(testutil.ShapeType)
	require.NotNil(t, p)
	require.Equal(t, testutil.ShapeType, p.Base)
	require.Nil(t, r.Polymorphism(testutil.CircleType))

	typ, ok := p.TypeOf("square")
	require.True(t, ok)
	require.Equal(t, testutil.SquareType, typ)
	_, ok = p.TypeOf("hexagon")
	require.False(t, ok)

	d, ok := p.DiscriminatorOf(reflect.TypeFor[*testutil.Circle]())
	require.True(t, ok)
	require.Equal(t, "circle", d)

	vp, d, ok := r.VariantOf(testutil.SquareType)
	require.True(t, ok)
	require.Equal(t, "square", d)
	require.Same(t, p, vp)

	_, _, ok = r.VariantOf(testutil.TriangleType)
	require.False(t, ok)
}

func TestInspect(t *testing.T) {
	r := testutil.NewShapes(t)

	t.Run("struct", func(t *testing.T) {
		d, err := r.Inspect(testutil.OrderType)
		require.NoError(t, err)
		require.Equal(t, reflect.Struct, d.Kind)
		require.False(t, d.IsSequence())
		require.Nil(t, d.Polymorphism)

		again, err := r.Inspect(testutil.OrderType)
		require.NoError(t, err)
		require.Same(t, d, again)
	})

	t.Run("polymorphic", func(t *testing.T) {
		d, err := r.Inspect(testutil.ShapeType)
		require.NoError(t, err)
		require.NotNil(t, d.Polymorphism)
	})

	t.Run("sequence", func(t *testing.T) {
		d, err := r.Inspect(reflect.TypeFor[[3]testutil.Point]())
		require.NoError(t, err)
		require.True(t, d.IsSequence())
		require.Equal(t, testutil.PointType, d.Elem)
	})

	valid := []reflect.Type{
		reflect.TypeFor[time.Time](),
		reflect.TypeFor[map[int]string](),
		reflect.TypeFor[json.RawMessage](),
		reflect.TypeFor[struct {
			C chan int `json:"-"`
		}](),
		reflect.TypeFor[struct{ f func() }](),
		reflect.TypeFor[struct{ S fmt.Stringer }](),
		reflect.TypeFor[struct {
			S testutil.Shape `json:"-"`
		}](),
	}
	for _, typ := range valid {
		t.Run("valid "+typ.String(), func(t *testing.T) {
			_, err := r.Inspect(typ)
			require.NoError(t, err)
		})
	}

	invalid := []reflect.Type{
		testutil.InvalidType,
		reflect.TypeFor[func()](),
		reflect.TypeFor[complex128](),
		reflect.TypeFor[map[testutil.Point]int](),
		reflect.TypeFor[[]*testutil.Invalid](),
		testutil.DrawingType,
		reflect.TypeFor[[]testutil.Drawing](),
		reflect.TypeFor[[]testutil.Shape](),
		reflect.TypeFor[map[string]testutil.Shape](),
		reflect.TypeFor[*testutil.Shape](),
	}
	for _, typ := range invalid {
		t.Run("invalid "+typ.String(), func(t *testing.T) {
			_, err := r.Inspect(typ)
			require.True(t, errs.IsTypeIntrospectionError(err))
		})
	}

	_, err := r.Inspect(nil)
	require.True(t, errs.IsTypeIntrospectionError(err))
}

func TestIsSequence(t *testing.T) {
	tests := []struct {
		typ      reflect.Type
		expected bool
	}{
		{reflect.TypeFor[[]testutil.Point](), true},
		{reflect.TypeFor[[2]int](), true},
		{reflect.TypeFor[[]testutil.Shape](), true},
		{reflect.TypeFor[[]byte](), false},
		{reflect.TypeFor[json.RawMessage](), false},
		{reflect.TypeFor[string](), false},
		{reflect.TypeFor[map[string]int](), false},
		{nil, false},
	}

	for _, test := range tests {
		name := "nil"
		if test.typ != nil {
			name = test.typ.String()
		}
		t.Run(name, func(t *testing.T) {
			require.Equal(t, test.expected, shape.IsSequence(test.typ))
		})
	}
}
