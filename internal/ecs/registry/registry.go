// Package registry aggregates the entity store and a type-indexed map of
// component pools, plus a command buffer for deferring entity create/destroy
// requests from inside a running system until a safe point to apply them.
package registry

import (
	"fmt"
	"sync"

	"github.com/cuemby/voxelcore/internal/ecs/component"
	"github.com/cuemby/voxelcore/internal/ecs/entity"
)

// anyPool is the type-erased view a component.Pool[C] offers the registry.
// component.Pool[C] already implements every one of these methods, so no
// wrapper type is needed to store it behind this interface.
type anyPool interface {
	Erase(e entity.ID) bool
	Contains(e entity.ID) bool
	Clear()
	Entities() component.EntitySet
	Len() int
}

// Registry owns the entity store and every component pool registered
// against it. Mutual exclusion between systems running concurrently on the
// scheduler's worker pool comes from their declared read/write access sets,
// not from a lock here; poolsMu only guards the one path that's never
// covered by that analysis, registering a brand-new component pool the
// first time a type is touched.
type Registry struct {
	poolsMu  sync.RWMutex
	entities *entity.Store
	pools    map[component.TypeID]anyPool
	names    map[component.TypeID]string // for diagnostics / logging only
}

// New constructs an empty registry using the given entity traits.
func New(traits entity.Traits) *Registry {
	return &Registry{
		entities: entity.NewStore(traits),
		pools:    make(map[component.TypeID]anyPool),
		names:    make(map[component.TypeID]string),
	}
}

// Entities exposes the underlying entity lifetime manager for read-only
// queries (IsAlive, Each, ...); mutation should go through the registry so
// pool invariants are preserved.
func (r *Registry) Entities() *entity.Store { return r.entities }

// CreateEntity issues a fresh entity ID. The caller must hold exclusive
// access to entity lifecycle for the duration of the call, whether that's
// because it's the only system touching it this tick or because it went
// through a CommandBuffer drained at a barrier.
func (r *Registry) CreateEntity() entity.ID {
	return r.entities.Create()
}

// CreateEntityWithID attempts to create an entity at an exact ID.
func (r *Registry) CreateEntityWithID(id entity.ID) bool {
	return r.entities.CreateWithID(id)
}

// DestroyEntity removes e from every pool before tombstoning it in the
// entity store.
func (r *Registry) DestroyEntity(e entity.ID) bool {
	if !r.entities.IsAlive(e) {
		return false
	}
	r.poolsMu.RLock()
	pools := make([]anyPool, 0, len(r.pools))
	for _, p := range r.pools {
		pools = append(pools, p)
	}
	r.poolsMu.RUnlock()
	for _, p := range pools {
		p.Erase(e)
	}
	return r.entities.Destroy(e)
}

// IsAlive, IsDead and HasExisted forward to the entity store.
func (r *Registry) IsAlive(e entity.ID) bool    { return r.entities.IsAlive(e) }
func (r *Registry) IsDead(e entity.ID) bool     { return r.entities.IsDead(e) }
func (r *Registry) HasExisted(e entity.ID) bool { return r.entities.HasExisted(e) }
func (r *Registry) AliveCount() int             { return r.entities.AliveCount() }

// Pools are registered lazily and live for the registry's lifetime; only
// per-entity Erase and full-pool Clear are supported, there's no operation
// to remove a component type once registered.

// PoolFor returns the component pool for type C, creating it with the given
// traits on first use. Subsequent calls (with any traits argument) return
// the same pool; traits only take effect on first registration.
func PoolFor[C any](r *Registry, traits component.Traits) *component.Pool[C] {
	name := component.TypeNameOf[C]()
	tid := component.TypeIDOf(name)

	r.poolsMu.RLock()
	existing, ok := r.pools[tid]
	r.poolsMu.RUnlock()
	if ok {
		if p, ok := existing.(*component.Pool[C]); ok {
			return p
		}
		panic(fmt.Sprintf("registry: type id collision for %q", name))
	}

	r.poolsMu.Lock()
	defer r.poolsMu.Unlock()
	if existing, ok := r.pools[tid]; ok {
		if p, ok := existing.(*component.Pool[C]); ok {
			return p
		}
		panic(fmt.Sprintf("registry: type id collision for %q", name))
	}
	p := component.New[C](traits)
	r.pools[tid] = p
	r.names[tid] = name
	return p
}

// Emplace is a convenience wrapper: insert e into C's pool (registering the
// pool with default traits if this is its first use) and returns the
// result the pool would.
func Emplace[C any](r *Registry, e entity.ID, value C) (*C, bool) {
	p := PoolFor[C](r, component.DefaultTraits)
	return p.Emplace(e, value)
}

// Get is the checked-read convenience wrapper over PoolFor+Find.
func Get[C any](r *Registry, e entity.ID) (*C, bool) {
	p := PoolFor[C](r, component.DefaultTraits)
	return p.Find(e)
}

// Has reports whether e carries a component of type C.
func Has[C any](r *Registry, e entity.ID) bool {
	p := PoolFor[C](r, component.DefaultTraits)
	return p.Contains(e)
}

// HasTypeID reports whether e carries a component in the pool registered
// under tid. Used by the query/view engine, which only ever has a TypeID
// (not the original Go type C) once a Query has been built.
func (r *Registry) HasTypeID(tid component.TypeID, e entity.ID) bool {
	r.poolsMu.RLock()
	p, ok := r.pools[tid]
	r.poolsMu.RUnlock()
	if !ok {
		return false
	}
	return p.Contains(e)
}

// PoolEntitiesByTypeID returns the type-erased entity-set view for the pool
// registered under tid, if any pool has been registered for it yet.
func (r *Registry) PoolEntitiesByTypeID(tid component.TypeID) (component.EntitySet, bool) {
	r.poolsMu.RLock()
	p, ok := r.pools[tid]
	r.poolsMu.RUnlock()
	if !ok {
		return nil, false
	}
	return p.Entities(), true
}

// ComponentCounts returns the current size of every registered pool, keyed
// by component type name, for diagnostics and metrics collection.
func (r *Registry) ComponentCounts() map[string]int {
	r.poolsMu.RLock()
	defer r.poolsMu.RUnlock()
	out := make(map[string]int, len(r.pools))
	for tid, p := range r.pools {
		out[r.names[tid]] = p.Len()
	}
	return out
}

// PoolEntities returns the type-erased entity-set view for type C's pool,
// used by the query/view engine (package view) without it needing to know
// C's concrete Go type at the call site.
func PoolEntities[C any](r *Registry) component.EntitySet {
	p := PoolFor[C](r, component.DefaultTraits)
	return p.Entities()
}
