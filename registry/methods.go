package registry

import (
	"fmt"
	"reflect"
)

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// argAs converts a bound argument to T. A nil argument yields the zero value.
func argAs[T any](args []any, i int) (T, error) {
	var zero T
	if args[i] == nil {
		return zero, nil
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("argument %d: expected %s, got %T", i, typeOf[T](), args[i])
	}
	return v, nil
}

func handlerAs[H any](h any) (H, error) {
	v, ok := h.(H)
	if !ok {
		var zero H
		return zero, fmt.Errorf("%w: expected %s, got %T", ErrHandlerType, typeOf[H](), h)
	}
	return v, nil
}

// Method0 declares an operation taking no parameters.
func Method0[H, R any](d *Def[H], name string, fn func(H) (R, error), opts ...Option) *Def[H] {
	d.add(name, nil, typeOf[R](), func(h any, _ []any) (any, error) {
		handler, err := handlerAs[H](h)
		if err != nil {
			return nil, err
		}
		return fn(handler)
	}, opts)
	return d
}

// Method1 declares an operation taking one parameter.
func Method1[H, P1, R any](d *Def[H], name string, fn func(H, P1) (R, error), opts ...Option) *Def[H] {
	d.add(name, []reflect.Type{typeOf[P1]()}, typeOf[R](), func(h any, args []any) (any, error) {
		handler, err := handlerAs[H](h)
		if err != nil {
			return nil, err
		}
		a1, err := argAs[P1](args, 0)
		if err != nil {
			return nil, err
		}
		return fn(handler, a1)
	}, opts)
	return d
}

// Method2 declares an operation taking two parameters.
func Method2[H, P1, P2, R any](d *Def[H], name string, fn func(H, P1, P2) (R, error), opts ...Option) *Def[H] {
	d.add(name, []reflect.Type{typeOf[P1](), typeOf[P2]()}, typeOf[R](), func(h any, args []any) (any, error) {
		handler, err := handlerAs[H](h)
		if err != nil {
			return nil, err
		}
		a1, err := argAs[P1](args, 0)
		if err != nil {
			return nil, err
		}
		a2, err := argAs[P2](args, 1)
		if err != nil {
			return nil, err
		}
		return fn(handler, a1, a2)
	}, opts)
	return d
}

// Method3 declares an operation taking three parameters.
func Method3[H, P1, P2, P3, R any](d *Def[H], name string, fn func(H, P1, P2, P3) (R, error), opts ...Option) *Def[H] {
	d.add(name, []reflect.Type{typeOf[P1](), typeOf[P2](), typeOf[P3]()}, typeOf[R](), func(h any, args []any) (any, error) {
		handler, err := handlerAs[H](h)
		if err != nil {
			return nil, err
		}
		a1, err := argAs[P1](args, 0)
		if err != nil {
			return nil, err
		}
		a2, err := argAs[P2](args, 1)
		if err != nil {
			return nil, err
		}
		a3, err := argAs[P3](args, 2)
		if err != nil {
			return nil, err
		}
		return fn(handler, a1, a2, a3)
	}, opts)
	return d
}

// Action0 declares a parameterless operation with no result.
func Action0[H any](d *Def[H], name string, fn func(H) error, opts ...Option) *Def[H] {
	d.add(name, nil, nil, func(h any, _ []any) (any, error) {
		handler, err := handlerAs[H](h)
		if err != nil {
			return nil, err
		}
		return nil, fn(handler)
	}, opts)
	return d
}

// Action1 declares a one-parameter operation with no result.
func Action1[H, P1 any](d *Def[H], name string, fn func(H, P1) error, opts ...Option) *Def[H] {
	d.add(name, []reflect.Type{typeOf[P1]()}, nil, func(h any, args []any) (any, error) {
		handler, err := handlerAs[H](h)
		if err != nil {
			return nil, err
		}
		a1, err := argAs[P1](args, 0)
		if err != nil {
			return nil, err
		}
		return nil, fn(handler, a1)
	}, opts)
	return d
}
