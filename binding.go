package typemap

import (
	"database/sql"
	"database/sql/driver"
	"reflect"

	"github.com/cockroachdb/errors"
)

var (
	_ driver.Valuer = valuer{}
	_ sql.Scanner   = scanner{}
)

// Value returns a driver.Valuer encoding v as the data type id when
// it is used as a query argument. Nil values are sent as NULL.
func (m *Map) Value(id DataType, v any) driver.Valuer {
	return valuer{m: m, id: id, v: v}
}

type valuer struct {
	m  *Map
	id DataType
	v  any
}

func (v valuer) Value() (driver.Value, error) {
	if v.v == nil {
		return nil, nil
	}

	rv := reflect.ValueOf(v.v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
	}

	return v.m.Encode(v.id, v.v)
}

// Scanner returns a sql.Scanner decoding a column of data type id into dst,
// which must be a non-nil pointer. NULL columns set dst to its zero value.
func (m *Map) Scanner(id DataType, dst any) sql.Scanner {
	return scanner{m: m, id: id, dst: dst}
}

type scanner struct {
	m   *Map
	id  DataType
	dst any
}

func (s scanner) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		ref := reflect.ValueOf(s.dst)
		if !ref.IsValid() || ref.Kind() != reflect.Pointer || ref.IsNil() {
			return errors.New("target must be a non-nil pointer")
		}
		ref.Elem().Set(reflect.Zero(ref.Elem().Type()))
		return nil
	case []byte:
		return s.m.DecodeTo(s.id, x, s.dst)
	case string:
		return s.m.DecodeTo(s.id, []byte(x), s.dst)
	}

	return errors.Errorf("cannot scan value of type %T as %s", src, s.id)
}
