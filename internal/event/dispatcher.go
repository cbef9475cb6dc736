// Package event implements the engine's event dispatcher: per-event-type
// handler lists ordered by priority, an immediate synchronous mode and a
// delayed mode buffered for a later drain point.
//
// A handler added mid-dispatch never runs during the dispatch that added
// it: each dispatch runs over a snapshot of the handler list taken under a
// read lock, so concurrent registration never invalidates an in-flight
// iteration.
package event

import (
	"sort"
	"sync"

	"github.com/cuemby/voxelcore/internal/ecs/component"
)

// Priority orders handlers within one event type's list; higher runs first.
type Priority int

const (
	Low Priority = iota
	Normal
	High
)

// HandlerID identifies a registered handler for later removal.
type HandlerID uint64

type handlerEntry struct {
	id       HandlerID
	priority Priority
	seq      uint64 // insertion order, for a stable sort among equal priorities
	call     func(any) bool
}

// Dispatcher routes events by their concrete Go type to the handlers
// registered for that type, in descending-priority order. A handler
// returning true stops the dispatch for that event short of the
// remaining, lower-priority handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[component.TypeID][]handlerEntry
	nextID   HandlerID
	nextSeq  uint64

	pendingMu sync.Mutex
	pending   []func(*Dispatcher)
}

// New constructs an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{handlers: make(map[component.TypeID][]handlerEntry)}
}

func typeIDOf[E any]() component.TypeID {
	return component.TypeIDOf(component.TypeNameOf[E]())
}

// AddHandler registers fn to run whenever an E is dispatched, at priority p.
// Returns an ID usable with RemoveHandler.
func AddHandler[E any](d *Dispatcher, p Priority, fn func(E) bool) HandlerID {
	tid := typeIDOf[E]()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.nextSeq++
	entry := handlerEntry{
		id:       d.nextID,
		priority: p,
		seq:      d.nextSeq,
		call: func(v any) bool {
			return fn(v.(E))
		},
	}
	list := append(d.handlers[tid], entry)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	d.handlers[tid] = list
	return entry.id
}

// RemoveHandler unregisters a handler previously added for event type E.
func RemoveHandler[E any](d *Dispatcher, id HandlerID) {
	tid := typeIDOf[E]()

	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.handlers[tid]
	for i, e := range list {
		if e.id == id {
			d.handlers[tid] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Dispatch runs every handler registered for E's type immediately, in
// priority order, stopping early if a handler returns true.
func Dispatch[E any](d *Dispatcher, evnt E) {
	tid := typeIDOf[E]()

	d.mu.RLock()
	snapshot := append([]handlerEntry(nil), d.handlers[tid]...)
	d.mu.RUnlock()

	for _, entry := range snapshot {
		if entry.call(evnt) {
			break
		}
	}
}

// DispatchDelayed buffers evnt for later delivery via DispatchPending,
// instead of running its handlers immediately.
func DispatchDelayed[E any](d *Dispatcher, evnt E) {
	d.pendingMu.Lock()
	d.pending = append(d.pending, func(d *Dispatcher) { Dispatch(d, evnt) })
	d.pendingMu.Unlock()
}

// DispatchPending drains every delayed event buffered since the last call,
// dispatching each in the order it was queued. Events queued by a handler
// running during this drain are delivered on the following drain, not this
// one — the queue is swapped out before any of it runs.
func (d *Dispatcher) DispatchPending() {
	d.pendingMu.Lock()
	batch := d.pending
	d.pending = nil
	d.pendingMu.Unlock()

	for _, run := range batch {
		run(d)
	}
}

// PendingCount reports how many delayed events are waiting for the next
// DispatchPending call.
func (d *Dispatcher) PendingCount() int {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	return len(d.pending)
}
