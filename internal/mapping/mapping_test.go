package mapping_test

import (
	"encoding/json"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chaisql/typemap/errors"
	"github.com/chaisql/typemap/internal/codec"
	"github.com/chaisql/typemap/internal/mapping"
	"github.com/chaisql/typemap/internal/testutil"
	"github.com/chaisql/typemap/internal/wire"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

func factoryFor(t reflect.Type, framing wire.Framing) mapping.CodecFactory {
	f := codec.NewFactory(nil)
	return func() (codec.Codec, error) {
		return f.Build(t, t, framing, nil, codec.SerializerOptions{})
	}
}

func TestMappingCodec(t *testing.T) {
	var calls atomic.Int32
	f := factoryFor(testutil.PointType, wire.TextFraming)
	m := mapping.New(testutil.PointType, wire.JSON, func() (codec.Codec, error) {
		calls.Add(1)
		return f()
	})

	c1, err := m.Codec()
	require.NoError(t, err)
	c2, err := m.Codec()
	require.NoError(t, err)
	require.Same(t, c1, c2)
	require.EqualValues(t, 1, calls.Load())
}

func TestCollection(t *testing.T) {
	c := mapping.NewCollection()

	m1, err := c.Add(testutil.PointType, wire.JSON, factoryFor(testutil.PointType, wire.TextFraming))
	require.NoError(t, err)
	m2, err := c.Add(testutil.PointType, wire.JSONB, factoryFor(testutil.PointType, wire.BinaryFraming))
	require.NoError(t, err)
	m3, err := c.Add(testutil.ShapeType, wire.JSONB, factoryFor(testutil.ShapeType, wire.BinaryFraming))
	require.NoError(t, err)
	m4, err := c.Add(reflect.TypeFor[json.Marshaler](), wire.JSON, factoryFor(reflect.TypeFor[json.Marshaler](), wire.TextFraming))
	require.NoError(t, err)

	t.Run("duplicate", func(t *testing.T) {
		_, err := c.Add(testutil.PointType, wire.JSONB, factoryFor(testutil.PointType, wire.BinaryFraming))
		require.True(t, errors.IsDuplicateMappingError(err))
		require.Equal(t, 4, c.Len())
	})

	tests := []struct {
		name     string
		typ      reflect.Type
		id       wire.TypeID
		expected *mapping.Mapping
	}{
		{"both", testutil.PointType, wire.JSONB, m2},
		{"type only", testutil.PointType, "", m1},
		{"data type only", nil, wire.JSONB, m2},
		{"none", nil, "", m1},
		{"missing", testutil.OrderType, wire.JSON, nil},
		{"missing data type", testutil.ShapeType, wire.JSON, nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, c.Find(test.typ, test.id))
		})
	}

	t.Run("assignable", func(t *testing.T) {
		require.Equal(t, m3, c.FindAssignable(testutil.CircleType, wire.JSONB))
		require.Equal(t, m3, c.FindAssignable(testutil.CircleType, ""))
		require.Nil(t, c.FindAssignable(testutil.CircleType, wire.JSON))
		require.Nil(t, c.FindAssignable(testutil.PointType, wire.JSONB))
		require.Nil(t, c.FindAssignable(nil, wire.JSONB))

		m := c.FindAssignable(testutil.SquareType, wire.JSONB)
		require.Equal(t, m3, m)
		mc, err := m.Codec()
		require.NoError(t, err)
		require.Equal(t, testutil.ShapeType, mc.ValueType())
	})

	t.Run("reserved", func(t *testing.T) {
		require.Equal(t, m4, c.FindAssignable(reflect.TypeFor[time.Time](), wire.JSON))
		require.Nil(t, c.FindAssignable(reflect.TypeFor[json.RawMessage](), wire.JSON))
		require.Nil(t, c.FindAssignable(reflect.TypeFor[json.RawMessage](), ""))
	})

	require.Equal(t, []*mapping.Mapping{m1, m2, m3, m4}, c.All())
}

// pointResolver matches Point for jsonb only.
type pointResolver struct {
	builds atomic.Int32
	err    error
}

func (r *pointResolver) TryMatch(t reflect.Type, id wire.TypeID) mapping.Builder {
	if t != testutil.PointType || id != wire.JSONB {
		return nil
	}

	return func() (*mapping.Mapping, error) {
		r.builds.Add(1)
		if r.err != nil {
			return nil, r.err
		}
		return mapping.New(t, id, factoryFor(t, wire.BinaryFraming)), nil
	}
}

func TestDynamicCache(t *testing.T) {
	t.Run("memoized", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		var r pointResolver
		cache := mapping.NewDynamicCache(&r, zap.New(core))

		m1, err := cache.Get(testutil.PointType, wire.JSONB)
		require.NoError(t, err)
		m2, err := cache.Get(testutil.PointType, wire.JSONB)
		require.NoError(t, err)
		require.Same(t, m1, m2)
		require.EqualValues(t, 1, r.builds.Load())
		require.Equal(t, 1, cache.Len())
		require.Equal(t, 1, logs.FilterMessage("dynamic mapping created").Len())
	})

	t.Run("no match", func(t *testing.T) {
		cache := mapping.NewDynamicCache(&pointResolver{}, nil)
		_, err := cache.Get(testutil.PointType, wire.JSON)
		require.True(t, errors.IsNoMappingFoundError(err))
		require.Zero(t, cache.Len())
	})

	t.Run("build error", func(t *testing.T) {
		r := pointResolver{err: errors.NewTypeIntrospectionError(testutil.PointType, "boom")}
		cache := mapping.NewDynamicCache(&r, nil)
		_, err := cache.Get(testutil.PointType, wire.JSONB)
		require.True(t, errors.IsTypeIntrospectionError(err))
		require.Zero(t, cache.Len())
	})

	t.Run("concurrent", func(t *testing.T) {
		var r pointResolver
		cache := mapping.NewDynamicCache(&r, nil)

		var g errgroup.Group
		results := make([]*mapping.Mapping, 50)
		for i := range results {
			i := i
			g.Go(func() error {
				m, err := cache.Get(testutil.PointType, wire.JSONB)
				results[i] = m
				return err
			})
		}
		require.NoError(t, g.Wait())

		for _, m := range results {
			require.Equal(t, testutil.PointType, m.Type)
			require.Equal(t, wire.JSONB, m.DataType)
			c, err := m.Codec()
			require.NoError(t, err)
			require.Equal(t, testutil.PointType, c.BaseType())
		}
		require.Equal(t, 1, cache.Len())
		require.GreaterOrEqual(t, r.builds.Load(), int32(1))
	})
}

func TestResolve(t *testing.T) {
	c := mapping.NewCollection()
	explicit, err := c.Add(testutil.PointType, wire.JSON, factoryFor(testutil.PointType, wire.TextFraming))
	require.NoError(t, err)
	shapes, err := c.Add(testutil.ShapeType, wire.JSONB, factoryFor(testutil.ShapeType, wire.BinaryFraming))
	require.NoError(t, err)

	cache := mapping.NewDynamicCache(&pointResolver{}, nil)

	m, err := mapping.Resolve(c, cache, testutil.PointType, wire.JSON)
	require.NoError(t, err)
	require.Same(t, explicit, m)

	m, err = mapping.Resolve(c, cache, testutil.PointType, wire.JSONB)
	require.NoError(t, err)
	require.NotSame(t, explicit, m)
	require.Equal(t, wire.JSONB, m.DataType)

	m, err = mapping.Resolve(c, cache, testutil.TriangleType, wire.JSONB)
	require.NoError(t, err)
	require.Same(t, shapes, m)
	sc, err := m.Codec()
	require.NoError(t, err)
	require.Equal(t, testutil.ShapeType, sc.ValueType())

	_, err = mapping.Resolve(c, cache, testutil.OrderType, wire.JSONB)
	require.True(t, errors.IsNoMappingFoundError(err))

	_, err = mapping.Resolve(c, nil, testutil.OrderType, wire.JSON)
	require.True(t, errors.IsNoMappingFoundError(err))
}
