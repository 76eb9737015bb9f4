// Package deepsize estimates the total memory occupied by a value.
//
// Values are walked by reflection, summing inline storage and reachable
// heap allocations. Types whose internals reflection cannot see — the
// relation structures link their nodes through unsafe pointers and
// atomics — implement Sizer and report their own accounting, which takes
// precedence over the reflective walk.
package deepsize

import (
	"reflect"
	"unsafe"
)

// Sizer is implemented by types that account for their own deep size,
// including the root object itself.
type Sizer interface {
	DeepSize() int64
}

var sizerType = reflect.TypeOf((*Sizer)(nil)).Elem()

// Of returns an estimate of the total memory occupied by v, including
// all reachable heap allocations. Pointer cycles are detected and
// counted once.
func Of(v any) int64 {
	if v == nil {
		return 0
	}
	if s, ok := v.(Sizer); ok {
		if rv := reflect.ValueOf(v); rv.Kind() != reflect.Pointer || !rv.IsNil() {
			return s.DeepSize()
		}
	}
	w := walker{seen: make(map[uintptr]bool)}
	return w.size(reflect.ValueOf(v))
}

type walker struct {
	seen map[uintptr]bool
}

// asSizer returns the Sizer behind v, trying the address when the value
// itself does not implement it (methods are usually on the pointer).
func (w *walker) asSizer(v reflect.Value) (Sizer, bool) {
	if !v.CanInterface() {
		return nil, false
	}
	if v.Type().Implements(sizerType) {
		if v.Kind() == reflect.Pointer && v.IsNil() {
			return nil, false
		}
		return v.Interface().(Sizer), true
	}
	if v.CanAddr() && reflect.PointerTo(v.Type()).Implements(sizerType) {
		return v.Addr().Interface().(Sizer), true
	}
	return nil, false
}

// size returns the full size of v: its inline storage plus everything it
// points at.
func (w *walker) size(v reflect.Value) int64 {
	if !v.IsValid() {
		return 0
	}
	if s, ok := w.asSizer(v); ok {
		return s.DeepSize()
	}
	return int64(v.Type().Size()) + w.indirect(v)
}

// indirect returns only the heap-allocated size reachable from v,
// excluding the inline storage already counted by the caller.
func (w *walker) indirect(v reflect.Value) int64 {
	if !v.IsValid() {
		return 0
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return 0
		}
		ptr := v.Pointer()
		if w.seen[ptr] {
			return 0
		}
		w.seen[ptr] = true
		if s, ok := w.asSizer(v); ok {
			return s.DeepSize()
		}
		return w.size(v.Elem())

	case reflect.String:
		return int64(v.Len())

	case reflect.Slice:
		if v.IsNil() {
			return 0
		}
		s := int64(v.Cap()) * int64(v.Type().Elem().Size())
		if hasIndirections(v.Type().Elem()) {
			for i := 0; i < v.Len(); i++ {
				s += w.indirect(v.Index(i))
			}
		}
		return s

	case reflect.Array:
		var s int64
		if hasIndirections(v.Type().Elem()) {
			for i := 0; i < v.Len(); i++ {
				s += w.indirect(v.Index(i))
			}
		}
		return s

	case reflect.Struct:
		var s int64
		for i := 0; i < v.NumField(); i++ {
			s += w.indirect(v.Field(i))
		}
		return s

	case reflect.Map:
		if v.IsNil() {
			return 0
		}
		// Rough bucket overhead for the runtime map header.
		s := int64(unsafe.Sizeof(uintptr(0))) * 8
		iter := v.MapRange()
		for iter.Next() {
			s += w.size(iter.Key())
			s += w.size(iter.Value())
		}
		return s

	case reflect.Interface:
		if v.IsNil() {
			return 0
		}
		return w.size(v.Elem())

	default:
		// bool, int*, uint*, float*, complex*: inline only.
		return 0
	}
}

// hasIndirections reports whether a type may reference heap storage.
func hasIndirections(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.String,
		reflect.Interface:
		return true
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasIndirections(t.Field(i).Type) {
				return true
			}
		}
	case reflect.Array:
		return hasIndirections(t.Elem())
	}
	return false
}
