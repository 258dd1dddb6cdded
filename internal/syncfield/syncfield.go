// Package syncfield binds one document-store location to local state:
// subscribe + read + write with a loading flag. The registry, identity, and
// lobby layers all build on it.
package syncfield

import (
	"context"
	"sync"

	"gamelobby/coordinator/internal/docstore"
)

// Decoder converts a raw store value into T. ok is false when the location
// holds nothing (an expected state, not an error).
type Decoder[T any] func(raw any) (T, bool, error)

// Field mirrors the value at a single store path. The onChange callback runs
// serially, first with the initial snapshot and then on every store-side
// change; decode failures surface there as (zero, false, err).
type Field[T any] struct {
	store  docstore.Store
	path   string
	decode Decoder[T]

	mu      sync.Mutex
	value   T
	present bool
	loaded  bool
	writing bool

	unsubscribe docstore.UnsubscribeFunc
}

// New subscribes to path and starts mirroring it. Callers own the returned
// Field and must Close it to release the subscription.
func New[T any](store docstore.Store, path string, decode Decoder[T], onChange func(value T, present bool, err error)) *Field[T] {
	f := &Field[T]{store: store, path: path, decode: decode}
	f.unsubscribe = store.Subscribe(path, func(raw any) {
		v, present, err := decode(raw)
		f.mu.Lock()
		f.value = v
		f.present = present && err == nil
		f.loaded = true
		f.mu.Unlock()
		if onChange != nil {
			onChange(v, present && err == nil, err)
		}
	})
	return f
}

// Get returns the last observed value and whether the location held one.
func (f *Field[T]) Get() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.present
}

// Loaded reports whether at least one snapshot has arrived. Before that the
// field is indistinguishable from an absent value except through this flag.
func (f *Field[T]) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

// Set writes value to the field's location. The local mirror updates through
// the subscription, not synchronously here.
func (f *Field[T]) Set(ctx context.Context, value T) error {
	f.mu.Lock()
	f.writing = true
	f.mu.Unlock()
	err := f.store.Write(ctx, f.path, value)
	f.mu.Lock()
	f.writing = false
	f.mu.Unlock()
	return err
}

// Writing reports whether a Set is currently in flight.
func (f *Field[T]) Writing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writing
}

// Path returns the bound store location.
func (f *Field[T]) Path() string { return f.path }

// Close releases the subscription. Safe to call more than once.
func (f *Field[T]) Close() {
	if f.unsubscribe != nil {
		f.unsubscribe()
	}
}
