package utils

import "reflect"

// IsNil reports whether i is nil or holds a nil pointer, map, slice, channel,
// function or interface. A handler returning a nil *jsonrpc.Error as an error
// yields a non-nil interface; IsNil sees through it.
func IsNil(i any) bool {
	if i == nil {
		return true
	}

	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Pointer, reflect.UnsafePointer, reflect.Interface, reflect.Slice:
		return v.IsNil()
	default:
		// Arrays, structs and scalars can never be nil.
		return false
	}
}
