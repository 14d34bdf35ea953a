package cacheaside

import "reflect"

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// isEmptyDefault treats nil pointers/interfaces and zero-length slices,
// maps, strings, arrays and channels as empty. Scalars and structs are
// never empty: a cached 0 or false is a real value.
func isEmptyDefault[V any](v V) bool {
	return emptyValue(reflect.ValueOf(&v).Elem())
}

func emptyValue(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.String, reflect.Array, reflect.Chan:
		return rv.Len() == 0
	case reflect.Pointer:
		return rv.IsNil()
	case reflect.Interface:
		return rv.IsNil() || emptyValue(rv.Elem())
	default:
		return false
	}
}
