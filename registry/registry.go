/*
 * MIT License
 *
 * Copyright (c) 2026 ipsock contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package registry is the integer-keyed, thread-safe map of §4.3: it
// assigns a stable opaque ID on insert, supports an acquire/release
// protocol giving exclusive, pointer-stable access to one entry at a
// time, removal, snapshot iteration and a count.
//
// IDs are monotonically assigned, the way ioutils/mapCloser.idxInc
// hands out ever-increasing indices; the map itself is guarded the way
// context.Config guards its sync.Map with an outer RWMutex so Clean /
// Walk cannot race a concurrent Store.
package registry

import (
	"math"
	"sync"
	"sync/atomic"
)

// ID is the opaque identifier a Registry assigns to each entry.
type ID = uint64

// InvalidID is returned wherever an operation fails to produce a live ID.
const InvalidID ID = math.MaxUint64

type entry[V any] struct {
	mu    sync.Mutex
	val   V
	alive bool
}

// Registry is a thread-safe map from ID to a value of type V, with
// per-entry exclusive acquire/release for pointer-stable access during
// use.
type Registry[V any] struct {
	mu   sync.RWMutex
	m    map[ID]*entry[V]
	next atomic.Uint64
}

// New creates an empty Registry.
func New[V any]() *Registry[V] {
	return &Registry[V]{m: make(map[ID]*entry[V])}
}

// SetItem stores val under a freshly assigned ID and returns it. IDs
// are never reused while their entry is held.
func (r *Registry[V]) SetItem(val V) ID {
	id := r.next.Add(1)

	r.mu.Lock()
	r.m[id] = &entry[V]{val: val, alive: true}
	r.mu.Unlock()

	return id
}

// Handle is a scoped exclusive hold on one entry's value, returned by
// Acquire. Release must be called exactly once to give the entry back;
// Handle guarantees the pointer it returns stays valid for as long as
// the hold is open.
type Handle[V any] struct {
	e *entry[V]
}

// Value returns the pointer to the held value. It is only valid until
// Release is called.
func (h Handle[V]) Value() *V {
	if h.e == nil {
		return nil
	}
	return &h.e.val
}

// Release gives the entry back. Calling Release on a zero Handle is a
// no-op.
func (h Handle[V]) Release() {
	if h.e != nil {
		h.e.mu.Unlock()
	}
}

// Acquire looks up id and takes an exclusive hold on its entry,
// blocking out concurrent acquires (and RemoveItem) until Release is
// called. ok is false if id is unknown or was removed.
func (r *Registry[V]) Acquire(id ID) (h Handle[V], ok bool) {
	r.mu.RLock()
	e, found := r.m[id]
	r.mu.RUnlock()

	if !found {
		return Handle[V]{}, false
	}

	e.mu.Lock()
	if !e.alive {
		e.mu.Unlock()
		return Handle[V]{}, false
	}

	return Handle[V]{e: e}, true
}

// AcquireItem is the spec-named form of Acquire, returning a raw
// pointer and leaving the release to a paired ReleaseItem(id) call.
// Prefer Acquire/Handle.Release in new code; this form exists for
// call sites that must release by ID rather than by handle.
func (r *Registry[V]) AcquireItem(id ID) (*V, bool) {
	h, ok := r.Acquire(id)
	if !ok {
		return nil, false
	}
	return h.Value(), true
}

// ReleaseItem releases the hold taken by AcquireItem(id). Calling it
// without a matching AcquireItem is a programmer error (it will
// unlock an unlocked mutex); callers that prefer a safer API should
// use Acquire/Handle.Release instead.
func (r *Registry[V]) ReleaseItem(id ID) {
	r.mu.RLock()
	e, found := r.m[id]
	r.mu.RUnlock()

	if found {
		e.mu.Unlock()
	}
}

// GetItem copy-gets the current value for id without retaining a hold.
func (r *Registry[V]) GetItem(id ID) (V, bool) {
	h, ok := r.Acquire(id)
	if !ok {
		var zero V
		return zero, false
	}
	defer h.Release()

	return *h.Value(), true
}

// RemoveItem deletes id from the registry. If the entry is currently
// acquired, RemoveItem blocks until it is released, then runs the
// removal — an acquired entry cannot be removed out from under its
// holder.
func (r *Registry[V]) RemoveItem(id ID) {
	r.mu.Lock()
	e, found := r.m[id]
	if found {
		delete(r.m, id)
	}
	r.mu.Unlock()

	if !found {
		return
	}

	e.mu.Lock()
	e.alive = false
	e.mu.Unlock()
}

// GetItemsCount returns the number of live entries.
func (r *Registry[V]) GetItemsCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.m)
}

// RunForAllKeys iterates a snapshot of the currently registered IDs,
// calling fn for each one without holding the registry lock — fn may
// itself call back into the registry (e.g. Acquire a different ID, or
// SetItem a new one) without deadlocking.
func (r *Registry[V]) RunForAllKeys(fn func(id ID)) {
	r.mu.RLock()
	keys := make([]ID, 0, len(r.m))
	for k := range r.m {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	for _, k := range keys {
		fn(k)
	}
}

// Discard empties the registry. Entries currently held are left
// dangling for their holder to Release normally; Discard does not wait
// for them.
func (r *Registry[V]) Discard() {
	r.mu.Lock()
	r.m = make(map[ID]*entry[V])
	r.mu.Unlock()
}
