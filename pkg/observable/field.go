// Package observable provides change-notifying value holders.
//
// A Field suppresses redundant writes and emits exactly one notification per real
// change, synchronously and in subscription order. Delivery happens on the goroutine
// that performed the mutation; there is no buffering.
package observable

import (
	"encoding/json"
	"sync"
)

// Listener receives the name of the field that changed.
type Listener func(name string)

// Notifier is implemented by anything that can be observed by name.
type Notifier interface {
	Name() string
	Subscribe(fn Listener) (unsubscribe func())
}

// Field holds a comparable value and an ordered list of subscribers.
//
// The value itself is not synchronized. Owners that share a Field between goroutines
// guard Get/Swap with their own lock and call Notify after releasing it.
type Field[T comparable] struct {
	name  string
	value T

	mu        sync.Mutex
	listeners []subscription
	nextID    uint64
}

type subscription struct {
	id uint64
	fn Listener
}

// NewField creates a field with the given identity and initial value.
func NewField[T comparable](name string, initial T) *Field[T] {
	return &Field[T]{name: name, value: initial}
}

// Name returns the field identity passed to listeners.
func (f *Field[T]) Name() string {
	return f.name
}

// Get returns the current value.
func (f *Field[T]) Get() T {
	return f.value
}

// Set stores v and notifies subscribers if it differs from the current value.
// It reports whether a change happened.
func (f *Field[T]) Set(v T) bool {
	if !f.Swap(v) {
		return false
	}
	f.Notify()
	return true
}

// Swap stores v without notifying and reports whether the value changed.
func (f *Field[T]) Swap(v T) bool {
	if f.value == v {
		return false
	}
	f.value = v
	return true
}

// Notify delivers the field name to every subscriber in subscription order.
func (f *Field[T]) Notify() {
	f.mu.Lock()
	listeners := make([]Listener, len(f.listeners))
	for i, s := range f.listeners {
		listeners[i] = s.fn
	}
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(f.name)
	}
}

// Subscribe appends fn to the subscriber list. The returned function removes it.
func (f *Field[T]) Subscribe(fn Listener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	f.listeners = append(f.listeners, subscription{id: id, fn: fn})

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, s := range f.listeners {
			if s.id == id {
				f.listeners = append(f.listeners[:i:i], f.listeners[i+1:]...)
				return
			}
		}
	}
}

// MarshalJSON encodes the bare value.
func (f *Field[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.value)
}

// UnmarshalJSON decodes a bare value and applies it with Set.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.Set(v)
	return nil
}
