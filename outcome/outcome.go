// Package outcome provides the uniform result model shared by every bridge
// operation: a two-variant Outcome for callers that handle errors, and a
// default-safe Resolved wrapper for callers that cannot.
package outcome

import "errors"

// Unit is the value type of operations that succeed without producing one,
// such as event logging and lifecycle calls.
type Unit = struct{}

// Outcome is either Success carrying a value or Failure carrying an error.
// Exactly one variant is populated; the zero Outcome is a Failure with a
// generic reason.
type Outcome[T any] struct {
	value T
	err   error
	ok    bool
}

// Success wraps a value in a successful Outcome.
func Success[T any](value T) Outcome[T] {
	return Outcome[T]{value: value, ok: true}
}

// OK is the successful Unit outcome.
func OK() Outcome[Unit] {
	return Success(Unit{})
}

// Failure wraps an error in a failed Outcome. A nil err is replaced with a
// generic reason so a Failure always carries a diagnostic.
func Failure[T any](err error) Outcome[T] {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Outcome[T]{err: err}
}

// OK reports whether the outcome is the Success variant.
func (o Outcome[T]) OK() bool {
	return o.ok
}

// Value unpacks the outcome into Go's conventional (value, error) shape.
func (o Outcome[T]) Value() (T, error) {
	if !o.ok {
		var zero T
		return zero, o.errOrDefault()
	}
	return o.value, nil
}

// ValueOr returns the success value, or def on failure.
func (o Outcome[T]) ValueOr(def T) T {
	if !o.ok {
		return def
	}
	return o.value
}

// Err returns the failure reason, or nil for a success.
func (o Outcome[T]) Err() error {
	if o.ok {
		return nil
	}
	return o.errOrDefault()
}

// MapErr transforms the failure reason and leaves a success untouched.
func (o Outcome[T]) MapErr(f func(error) error) Outcome[T] {
	if o.ok {
		return o
	}
	return Failure[T](f(o.errOrDefault()))
}

// ToResolved converts the outcome into a Resolved record. The result's Value
// is never absent: it is the success value, or def on failure. ToResolved is
// total for any outcome and default.
func (o Outcome[T]) ToResolved(def T) Resolved[T] {
	if !o.ok {
		return Resolved[T]{Value: def, Err: o.errOrDefault()}
	}
	return Resolved[T]{Value: o.value, Resolved: true}
}

func (o Outcome[T]) errOrDefault() error {
	if o.err == nil {
		return errors.New("unknown failure")
	}
	return o.err
}

// Map transforms the success value of an outcome and propagates a failure
// unchanged.
func Map[T, U any](o Outcome[T], f func(T) U) Outcome[U] {
	if !o.ok {
		return Failure[U](o.errOrDefault())
	}
	return Success(f(o.value))
}

// Resolved is a resolution-status wrapper over a default-safe value. Value is
// always usable; Resolved reports whether it came from the engine; Err holds
// the failure reason when it did not.
type Resolved[T any] struct {
	Value    T
	Resolved bool
	Err      error
}
