package curry

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"recurry/pkg/host"
)

// call invokes a handler with hc as its context parameter and args coerced to
// the remaining parameter types. Results normalize to a value and an error;
// handlers may return nothing, an error, a value, or a value and an error.
func call(h *handler, hc host.Context, args []any) (any, error) {
	t := h.typ
	fixed := t.NumIn() - 1 // params after the context
	variadic := t.IsVariadic()

	if variadic {
		if len(args) < fixed-1 {
			return nil, fmt.Errorf("call %s: want at least %d arguments, got %d", h.id, fixed-1, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("call %s: want %d arguments, got %d", h.id, fixed, len(args))
	}

	in := make([]reflect.Value, 0, 1+len(args))
	in = append(in, reflect.ValueOf(hc))
	for i, arg := range args {
		pt := paramType(t, i+1)
		v, err := coerceArg(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("call %s: argument %d: %w", h.id, i, err)
		}
		in = append(in, v)
	}

	out := h.fn.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if t.Out(0) == errorType {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	default:
		return out[0].Interface(), asError(out[1])
	}
}

// paramType returns the declared type of parameter i, unwrapping the
// variadic tail to its element type.
func paramType(t reflect.Type, i int) reflect.Type {
	last := t.NumIn() - 1
	if t.IsVariadic() && i >= last {
		return t.In(last).Elem()
	}
	return t.In(i)
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

// coerceArg adapts a decoded argument to a parameter type. Assignable values
// pass through; numbers convert across numeric kinds with overflow checks;
// everything else goes through a JSON round trip, which covers decoded maps
// and slices landing in struct or typed-slice parameters.
func coerceArg(arg any, target reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch target.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
			return reflect.Zero(target), nil
		}
		return reflect.Value{}, fmt.Errorf("nil not assignable to %s", target)
	}

	av := reflect.ValueOf(arg)
	if av.Type().AssignableTo(target) {
		return av, nil
	}

	if n, ok := arg.(json.Number); ok {
		return coerceNumber(n, target)
	}
	if isNumericKind(av.Kind()) && isNumericKind(target.Kind()) {
		return av.Convert(target), nil
	}

	raw, err := json.Marshal(arg)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("value %v not assignable to %s", arg, target)
	}
	pv := reflect.New(target)
	if err := json.Unmarshal(raw, pv.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("value %v not assignable to %s: %w", arg, target, err)
	}
	return pv.Elem(), nil
}

func coerceNumber(n json.Number, target reflect.Type) (reflect.Value, error) {
	v := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := n.Int64()
		if err != nil {
			return reflect.Value{}, fmt.Errorf("number %s not an integer: %w", n, err)
		}
		if v.OverflowInt(i) {
			return reflect.Value{}, fmt.Errorf("number %s overflows %s", n, target)
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("number %s not an unsigned integer: %w", n, err)
		}
		if v.OverflowUint(u) {
			return reflect.Value{}, fmt.Errorf("number %s overflows %s", n, target)
		}
		v.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := n.Float64()
		if err != nil {
			return reflect.Value{}, fmt.Errorf("number %s not a float: %w", n, err)
		}
		v.SetFloat(f)
	default:
		return reflect.Value{}, fmt.Errorf("number %s not assignable to %s", n, target)
	}
	return v, nil
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
