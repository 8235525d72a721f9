package accum

import (
	"context"
	"fmt"
	"reflect"
)

var futureType = reflect.TypeOf((*Future)(nil))

// Resolve walks an arbitrarily nested value and replaces every eventual
// value with its resolved value, preserving the surrounding shape: slice
// and array elements are rewritten in place, map entries are resolved and
// rebuilt into the same map (keys and values both), exported settable
// struct fields are rewritten (unexported and func-valued fields are left
// untouched), and pointers are followed without changing identity.
//
// A future that resolves to another container full of futures is recursed
// into, not just shallow-unwrapped. Awaiting a discovered future uses the
// same suspension mechanism as a directly awaited call, so resolution may
// trigger further round-trips.
//
// An eventual value must occupy a slot able to hold its resolved value
// (an interface{}-typed element or field); otherwise Resolve fails.
func Resolve(ctx context.Context, value interface{}) (interface{}, error) {
	rv, err := resolveValue(ctx, reflect.ValueOf(value))
	if err != nil {
		return nil, err
	}
	if !rv.IsValid() {
		return nil, nil
	}
	return rv.Interface(), nil
}

// resolveValue returns the deeply resolved form of v. An invalid return
// value with nil error means "resolved to nil".
func resolveValue(ctx context.Context, v reflect.Value) (reflect.Value, error) {
	if !v.IsValid() {
		return v, nil
	}

	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v, nil
		}
		return resolveValue(ctx, v.Elem())
	}

	if v.Type() == futureType {
		if v.IsNil() {
			return reflect.Value{}, nil
		}
		res, err := v.Interface().(*Future).Await(ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		return resolveValue(ctx, reflect.ValueOf(res))
	}

	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v, nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := resolveInto(ctx, v.Index(i)); err != nil {
				return reflect.Value{}, err
			}
		}
		return v, nil

	case reflect.Array:
		// Array values are copied on the way in, so resolve into an
		// addressable copy.
		na := reflect.New(v.Type()).Elem()
		na.Set(v)
		for i := 0; i < na.Len(); i++ {
			if err := resolveInto(ctx, na.Index(i)); err != nil {
				return reflect.Value{}, err
			}
		}
		return na, nil

	case reflect.Map:
		if v.IsNil() {
			return v, nil
		}
		return v, resolveMap(ctx, v)

	case reflect.Ptr:
		if v.IsNil() {
			return v, nil
		}
		if err := resolveInto(ctx, v.Elem()); err != nil {
			return reflect.Value{}, err
		}
		return v, nil

	case reflect.Struct:
		ns := reflect.New(v.Type()).Elem()
		ns.Set(v)
		if err := resolveStruct(ctx, ns); err != nil {
			return reflect.Value{}, err
		}
		return ns, nil
	}

	return v, nil
}

// resolveInto resolves the value held in an addressable slot and writes the
// result back. Non-settable slots are left untouched.
func resolveInto(ctx context.Context, slot reflect.Value) error {
	if !slot.CanSet() {
		return nil
	}
	resolved, err := resolveValue(ctx, slot)
	if err != nil {
		return err
	}
	out, err := materialize(slot.Type(), resolved)
	if err != nil {
		return err
	}
	slot.Set(out)
	return nil
}

// resolveStruct rewrites the exported settable fields of an addressable
// struct value. Function-valued fields are left untouched.
func resolveStruct(ctx context.Context, s reflect.Value) error {
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		if !f.CanSet() || f.Kind() == reflect.Func {
			continue
		}
		if err := resolveInto(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// resolveMap resolves the keys and values of m and rebuilds the entries
// into the same map. Entries are snapshotted and resolved first, then the
// map is cleared and refilled, so resolution never mutates the map while
// iterating it.
func resolveMap(ctx context.Context, m reflect.Value) error {
	keys := m.MapKeys()
	type entry struct {
		key, value reflect.Value
	}
	entries := make([]entry, 0, len(keys))

	for _, k := range keys {
		rk, err := resolveValue(ctx, k)
		if err != nil {
			return err
		}
		rv, err := resolveValue(ctx, m.MapIndex(k))
		if err != nil {
			return err
		}
		nk, err := materialize(m.Type().Key(), rk)
		if err != nil {
			return err
		}
		nv, err := materialize(m.Type().Elem(), rv)
		if err != nil {
			return err
		}
		entries = append(entries, entry{key: nk, value: nv})
	}

	for _, k := range keys {
		m.SetMapIndex(k, reflect.Value{})
	}
	for _, e := range entries {
		m.SetMapIndex(e.key, e.value)
	}
	return nil
}

// materialize adapts a resolved value for storage in a slot of type t.
func materialize(t reflect.Type, resolved reflect.Value) (reflect.Value, error) {
	if !resolved.IsValid() {
		return reflect.Zero(t), nil
	}
	if !resolved.Type().AssignableTo(t) {
		return reflect.Value{}, fmt.Errorf("cannot store resolved %s in a %s slot", resolved.Type(), t)
	}
	return resolved, nil
}
