// Package optional provides an explicit present/absent wrapper for partial updates.
package optional

// Value is either absent (the zero Value) or present with a value, which may itself be a zero value.
type Value[T any] struct {
	v   T
	set bool
}

// Some returns a present Value.
func Some[T any](v T) Value[T] { return Value[T]{v: v, set: true} }

// None returns an absent Value.
func None[T any]() Value[T] { return Value[T]{} }

// Get returns the value and whether it is present.
func (o Value[T]) Get() (T, bool) { return o.v, o.set }

// IsSet reports whether the value is present.
func (o Value[T]) IsSet() bool { return o.set }

// OrElse returns the value when present, otherwise fallback.
func (o Value[T]) OrElse(fallback T) T {
	if o.set {
		return o.v
	}
	return fallback
}
