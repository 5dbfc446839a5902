package reactive

import "reflect"

// identical reports whether a and b are the same value: equal when the
// dynamic type is comparable, the same reference for slices, maps, funcs
// and channels. Two distinct slices holding equal elements are not
// identical.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Slice:
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() == vb.IsNil()
		}
		return va.Len() == vb.Len() && va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return va.UnsafePointer() == vb.UnsafePointer()
	}

	if !va.Type().Comparable() {
		return false
	}

	// structs and arrays can be comparable by type and still hold an
	// uncomparable value in an interface field
	defer func() { _ = recover() }()
	return a == b
}
