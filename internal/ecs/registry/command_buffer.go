package registry

import (
	"sync"

	"github.com/cuemby/voxelcore/internal/ecs/entity"
)

// CommandBuffer is an append-only queue of entity create/destroy requests.
// A system records its intent here instead of mutating the registry
// directly while other systems may still be running; the scheduler drains
// the buffer at the tick's barrier phase via Registry.Drain, once every
// system has finished and no access set is held anymore.
type CommandBuffer struct {
	mu  sync.Mutex
	ops []func(*Registry)
}

// NewCommandBuffer returns an empty buffer. The scheduler holds one per
// tick, shared across every system running that tick.
func NewCommandBuffer() *CommandBuffer { return &CommandBuffer{} }

// QueueCreateEntity records a request to create a new entity, delivering
// the assigned ID to onCreated once the command is applied.
func (cb *CommandBuffer) QueueCreateEntity(onCreated func(id entity.ID)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.ops = append(cb.ops, func(r *Registry) {
		id := r.CreateEntity()
		if onCreated != nil {
			onCreated(id)
		}
	})
}

// QueueDestroyEntity records a request to destroy e.
func (cb *CommandBuffer) QueueDestroyEntity(e entity.ID) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.ops = append(cb.ops, func(r *Registry) {
		r.DestroyEntity(e)
	})
}

// Queue records an arbitrary deferred mutation.
func (cb *CommandBuffer) Queue(op func(*Registry)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.ops = append(cb.ops, op)
}

// Len reports the number of pending operations.
func (cb *CommandBuffer) Len() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return len(cb.ops)
}

// Drain applies every queued operation, in order, against r, then empties
// the buffer. Must be called at a barrier where no system holds a
// conflicting access (the scheduler calls this between ticks).
func (r *Registry) Drain(cb *CommandBuffer) {
	cb.mu.Lock()
	ops := cb.ops
	cb.ops = nil
	cb.mu.Unlock()

	for _, op := range ops {
		op(r)
	}
}
