// Package core implements commonly used tools.
//
// Documentation Last Review: 14.02.2023
//
package core

import "sync"

// Observer is the interface to implement to watch a stream of values, for
// instance the steps a replay session executes.
type Observer[T any] interface {
	NotifyCallback(event T)
}

// Observable provides primitives to add and remove observers and to notify
// them of new events.
type Observable[T any] interface {
	// Add adds the observer to the list of observers that will be notified of
	// new events.
	Add(observer Observer[T])

	// Remove removes the observer from the list thus stopping it from receiving
	// new events.
	Remove(observer Observer[T])

	// Notify notifies the observers of a new event.
	Notify(event T)
}

// Watcher is an implementation of the Observable interface.
//
// - implements core.Observable
type Watcher[T any] struct {
	sync.RWMutex

	observers map[Observer[T]]struct{}
}

// NewWatcher creates a new empty watcher.
func NewWatcher[T any]() *Watcher[T] {
	return &Watcher[T]{
		observers: make(map[Observer[T]]struct{}),
	}
}

// Add implements core.Observable. It adds the observer to the list of observers
// that will be notified of new events.
func (w *Watcher[T]) Add(observer Observer[T]) {
	w.Lock()
	w.observers[observer] = struct{}{}
	w.Unlock()
}

// Remove implements core.Observable. It removes the observer from the list thus
// stopping it from receiving new events.
func (w *Watcher[T]) Remove(observer Observer[T]) {
	w.Lock()
	delete(w.observers, observer)
	w.Unlock()
}

// Notify implements core.Observable. It notifies the whole list of observers
// one after each other.
func (w *Watcher[T]) Notify(event T) {
	w.RLock()
	defer w.RUnlock()

	for obs := range w.observers {
		obs.NotifyCallback(event)
	}
}
