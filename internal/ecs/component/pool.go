// Package component implements per-type paged component storage: a sparse
// set of owning entities plus a parallel dense vector of component values,
// parameterized by traits controlling reference stability and storage
// elision for empty types.
package component

import (
	"reflect"

	"github.com/cespare/xxhash/v2"

	"github.com/cuemby/voxelcore/internal/ecs/entity"
	"github.com/cuemby/voxelcore/internal/ecs/sparseset"
)

// TypeNameOf derives the stable, package-qualified name used to key a
// component type's TypeID. Shared by the registry and the query/view engine
// so both sides hash the same string for a given C.
func TypeNameOf[C any]() string {
	var zero C
	return reflect.TypeOf(zero).String()
}

// TypeID is a stable hash of a component's Go type name, used by the
// registry's type-erased pool map. The type catalogue stays open to runtime
// registration (systems and collaborators register component types
// dynamically rather than enumerating them at compile time), so types are
// keyed by hashing their names with xxhash rather than assigning dense
// compile-time integers.
type TypeID uint64

// TypeIDOf computes the TypeID for a component type name. Callers pass a
// stable, package-qualified name (e.g. via reflect.TypeOf(C{}).String()).
func TypeIDOf(name string) TypeID {
	return TypeID(xxhash.Sum64String(name))
}

// Traits parameterizes a Pool's storage strategy.
type Traits struct {
	// PageSize is kept with the pool's traits (New replaces a non-positive
	// value with DefaultTraits.PageSize). It is not checked to be a power of
	// two and is not passed to the underlying sparse set, which always pages
	// at a fixed 4096 entries.
	PageSize int
	// ReferenceStability, if true, guarantees a component's address never
	// changes over its lifetime: insert uses a stable-index sparse set and
	// erase never relocates values.
	ReferenceStability bool
	// ElideStorage, if true, marks the type as empty/trivial: no dense
	// values are stored; reads return a shared sentinel and writes are
	// no-ops, though the entity set still tracks membership.
	ElideStorage bool
}

// DefaultTraits matches the common case: unstable (compacting) storage,
// page size 4096, values stored normally.
var DefaultTraits = Traits{PageSize: 4096, ReferenceStability: false, ElideStorage: false}

// Hooks fire on storage mutation so higher layers (indices, change
// trackers) can observe writes without the pool owning their state.
type Hooks[C any] struct {
	OnInsert func(e entity.ID, value *C)
	OnErase  func(e entity.ID)
	OnSwap   func(a, b entity.ID)
	OnClear  func()
}

// EntitySet is the type-erased view a pool's membership offers the query
// engine: enough to compare pool sizes and iterate entities without knowing
// the component's Go type.
type EntitySet interface {
	Len() int
	Contains(e entity.ID) bool
	Each(fn func(entity.ID) bool)
}

// Pool is the paged, typed component storage for component type C.
type Pool[C any] struct {
	traits   Traits
	set      *sparseset.Set
	values   []C
	sentinel C

	// freeList holds vacated dense positions available for reuse by a
	// future Emplace at the same index, bounding storage growth for
	// reference-stable pools (which otherwise never compact). Reuse is
	// opportunistic: a slot is claimed on the next insert rather than via
	// an explicit compact pass.
	freeList []int

	hooks Hooks[C]
}

// New constructs a component pool with the given traits.
func New[C any](traits Traits) *Pool[C] {
	if traits.PageSize <= 0 {
		traits.PageSize = DefaultTraits.PageSize
	}
	return &Pool[C]{
		traits: traits,
		set:    sparseset.New(entity.DefaultTraits, traits.ReferenceStability),
	}
}

// SetHooks installs mutation observers, replacing any previous hooks.
func (p *Pool[C]) SetHooks(h Hooks[C]) { p.hooks = h }

// Len returns the number of entities tracked by this pool (live, non-tombstone).
func (p *Pool[C]) Len() int { return p.set.LiveCount() }

// ReferenceStable reports whether this pool guarantees component addresses
// survive storage mutations.
func (p *Pool[C]) ReferenceStable() bool { return p.traits.ReferenceStability }

// Elided reports whether this pool elides per-entity storage.
func (p *Pool[C]) Elided() bool { return p.traits.ElideStorage }

// Emplace inserts (e, value) if e is not already present. If e is already
// present, the existing slot is left untouched and inserted=false.
func (p *Pool[C]) Emplace(e entity.ID, value C) (ptr *C, inserted bool) {
	if p.traits.ElideStorage {
		_, ins := p.set.Insert(e)
		if ins && p.hooks.OnInsert != nil {
			p.hooks.OnInsert(e, &p.sentinel)
		}
		return &p.sentinel, ins
	}

	if p.traits.ReferenceStability && len(p.freeList) > 0 {
		pos := p.freeList[len(p.freeList)-1]
		gotPos, ins := p.set.InsertAt(e, pos)
		if ins {
			p.freeList = p.freeList[:len(p.freeList)-1]
			p.values[gotPos] = value
			if p.hooks.OnInsert != nil {
				p.hooks.OnInsert(e, &p.values[gotPos])
			}
			return &p.values[gotPos], true
		}
		// e already present at a different slot.
		return &p.values[gotPos], false
	}

	pos, ins := p.set.Insert(e)
	if !ins {
		return &p.values[pos], false
	}
	if pos == len(p.values) {
		p.values = append(p.values, value)
	} else {
		p.values[pos] = value
	}
	if p.hooks.OnInsert != nil {
		p.hooks.OnInsert(e, &p.values[pos])
	}
	return &p.values[pos], true
}

// Erase removes e's component, if present. Returns false if absent.
func (p *Pool[C]) Erase(e entity.ID) bool {
	if p.traits.ElideStorage {
		if !p.set.Erase(e) {
			return false
		}
		if p.hooks.OnErase != nil {
			p.hooks.OnErase(e)
		}
		return true
	}

	res := p.set.EraseWithResult(e)
	if !res.Removed {
		return false
	}

	if p.traits.ReferenceStability {
		// Value slot stays allocated until overwritten by a future insert
		// at the same index; the address survives for any holder of *C.
		p.freeList = append(p.freeList, res.FromPos)
	} else if res.Swapped {
		p.values[res.ToPos] = p.values[res.FromPos]
		p.values = p.values[:len(p.values)-1]
		if p.hooks.OnSwap != nil {
			p.hooks.OnSwap(p.set.At(res.ToPos), e)
		}
	} else {
		p.values = p.values[:len(p.values)-1]
	}

	if p.hooks.OnErase != nil {
		p.hooks.OnErase(e)
	}
	return true
}

// Find returns the component for e, if present — the checked read form.
func (p *Pool[C]) Find(e entity.ID) (*C, bool) {
	pos, ok := p.set.Find(e)
	if !ok {
		return nil, false
	}
	if p.traits.ElideStorage {
		return &p.sentinel, true
	}
	return &p.values[pos], true
}

// Get returns the component for e without checking presence; callers must
// ensure e is present.
func (p *Pool[C]) Get(e entity.ID) *C {
	if p.traits.ElideStorage {
		return &p.sentinel
	}
	pos, _ := p.set.Find(e)
	return &p.values[pos]
}

// Contains reports whether e has a component in this pool.
func (p *Pool[C]) Contains(e entity.ID) bool { return p.set.Contains(e) }

// Clear removes every entity/value from the pool.
func (p *Pool[C]) Clear() {
	p.set.Clear()
	p.values = p.values[:0]
	p.freeList = nil
	if p.hooks.OnClear != nil {
		p.hooks.OnClear()
	}
}

// Each iterates (entity, *component) pairs in dense order.
func (p *Pool[C]) Each(fn func(e entity.ID, value *C) bool) {
	if p.traits.ElideStorage {
		p.set.Each(func(_ int, e entity.ID) bool { return fn(e, &p.sentinel) })
		return
	}
	p.set.Each(func(pos int, e entity.ID) bool { return fn(e, &p.values[pos]) })
}

// Entities returns the entity set backing this pool, for view engines that
// need to iterate or size-compare pools without knowing their value type.
func (p *Pool[C]) Entities() EntitySet { return entitySetView{p.set} }

type entitySetView struct{ set *sparseset.Set }

func (v entitySetView) Len() int             { return v.set.LiveCount() }
func (v entitySetView) Contains(e entity.ID) bool { return v.set.Contains(e) }
func (v entitySetView) Each(fn func(entity.ID) bool) {
	v.set.Each(func(_ int, e entity.ID) bool { return fn(e) })
}
