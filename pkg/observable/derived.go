package observable

import "encoding/json"

// Derived is a read-only field whose value is computed from a source field.
// Every change of the source also notifies the derived field's subscribers.
//
// The value is recomputed on each Get, so it is guarded by whatever guards the source.
type Derived[S, T comparable] struct {
	notifier *Field[T]
	source   *Field[S]
	compute  func(S) T
}

// Derive creates a field named name that tracks fn(source.Get()).
func Derive[S, T comparable](name string, source *Field[S], fn func(S) T) *Derived[S, T] {
	var zero T
	d := &Derived[S, T]{
		notifier: NewField(name, zero),
		source:   source,
		compute:  fn,
	}
	source.Subscribe(func(string) {
		d.notifier.Notify()
	})
	return d
}

// Name returns the derived field identity.
func (d *Derived[S, T]) Name() string {
	return d.notifier.Name()
}

// Get computes the value from the current source value.
func (d *Derived[S, T]) Get() T {
	return d.compute(d.source.Get())
}

// Subscribe registers fn for notifications raised by source changes.
func (d *Derived[S, T]) Subscribe(fn Listener) func() {
	return d.notifier.Subscribe(fn)
}

// MarshalJSON encodes the computed value.
func (d *Derived[S, T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Get())
}
