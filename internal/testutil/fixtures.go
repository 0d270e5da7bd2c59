// Package testutil provides types and helpers shared by the tests of
// the mapping packages.
package testutil

import (
	"math"
	"reflect"
	"testing"

	"github.com/chaisql/typemap/internal/shape"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// Shape is a polymorphic interface with two declared variants.
type Shape interface {
	Area() float64
}

type Circle struct {
	Radius float64 `json:"radius"`
}

func (c Circle) Area() float64 { return math.Pi * c.Radius * c.Radius }

type Square struct {
	Side float64 `json:"side"`
}

func (s *Square) Area() float64 { return s.Side * s.Side }

// Triangle implements Shape but is never declared as a variant.
type Triangle struct {
	Base   float64 `json:"base"`
	Height float64 `json:"height"`
}

func (t Triangle) Area() float64 { return t.Base * t.Height / 2 }

// Point is a plain struct without polymorphism.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Order mixes nested structs, slices, maps and pointers.
type Order struct {
	ID     int64             `json:"id"`
	Items  []Point           `json:"items"`
	Tags   map[string]string `json:"tags,omitempty"`
	Parent *Order            `json:"parent,omitempty"`
	note   string
}

// Drawing holds a polymorphic interface in a field, which cannot carry
// a discriminator.
type Drawing struct {
	Name  string `json:"name"`
	Shape Shape  `json:"shape"`
}

// Invalid holds a channel and cannot be represented as JSON.
type Invalid struct {
	C chan int
}

var (
	ShapeType    = reflect.TypeFor[Shape]()
	CircleType   = reflect.TypeFor[Circle]()
	SquareType   = reflect.TypeFor[*Square]()
	TriangleType = reflect.TypeFor[Triangle]()
	PointType    = reflect.TypeFor[Point]()
	OrderType    = reflect.TypeFor[Order]()
	DrawingType  = reflect.TypeFor[Drawing]()
	InvalidType  = reflect.TypeFor[Invalid]()
)

// ShapeVariants are the variants declared for Shape.
var ShapeVariants = []shape.Variant{
	{Discriminator: "circle", Type: CircleType},
	{Discriminator: "square", Type: SquareType},
}

// NewShapes returns a registry where the Shape variants are declared.
func NewShapes(t testing.TB) *shape.Registry {
	t.Helper()

	r := shape.NewRegistry()
	err := r.Declare(ShapeType, ShapeVariants...)
	require.NoError(t, err)
	return r
}

// RequireEqual fails the test if want and got are not structurally equal.
func RequireEqual(t testing.TB, want, got any) {
	t.Helper()

	if diff := cmp.Diff(want, got, cmp.AllowUnexported(Order{})); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
