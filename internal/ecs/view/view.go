package view

import (
	"github.com/cuemby/voxelcore/internal/ecs/component"
	"github.com/cuemby/voxelcore/internal/ecs/entity"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
)

// Run walks every entity satisfying q exactly once, picking the cheapest
// iteration plan it can:
//
//  1. if there is at least one included component, iterate the smallest
//     such pool and filter by the remaining predicates;
//  2. else, if q is a closed query (an Or whose every term is a has<C>
//     term), iterate the de-duplicated union of their entity sets;
//  3. else, iterate every alive entity.
//
// There is no secondary-index support: a query never has a cheaper plan
// than the three above.
//
// visit returning false stops the walk early.
func Run(r *registry.Registry, q Query, visit func(entity.ID) bool) {
	l := regLookup{reg: r}
	a := q.analyze()

	if len(a.Included) > 0 {
		runSmallestIncluded(l, a.Included, q, visit)
		return
	}

	if or, ok := q.(orQuery); ok && len(a.Optional) > 0 {
		closed := true
		for _, t := range or.terms {
			if _, leaf := t.(hasTerm); !leaf {
				closed = false
				break
			}
		}
		if closed {
			runOptionalUnion(l, a.Optional, q, visit)
			return
		}
	}

	runAllAlive(r, l, q, visit)
}

func runSmallestIncluded(l Lookup, included []component.TypeID, q Query, visit func(entity.ID) bool) {
	var smallest component.EntitySet
	smallestLen := -1
	for _, tid := range included {
		set, ok := l.PoolEntities(tid)
		if !ok {
			// A required pool doesn't exist yet: no entity can satisfy the
			// query until it does.
			return
		}
		if smallestLen == -1 || set.Len() < smallestLen {
			smallest = set
			smallestLen = set.Len()
		}
	}
	if smallest == nil {
		return
	}
	stop := false
	smallest.Each(func(e entity.ID) bool {
		if q.eval(l, e) {
			if !visit(e) {
				stop = true
				return false
			}
		}
		return !stop
	})
}

func runOptionalUnion(l Lookup, optional []component.TypeID, q Query, visit func(entity.ID) bool) {
	seen := make(map[entity.ID]bool)
	stop := false
	for _, tid := range optional {
		set, ok := l.PoolEntities(tid)
		if !ok {
			continue
		}
		set.Each(func(e entity.ID) bool {
			if stop || seen[e] {
				return !stop
			}
			seen[e] = true
			if q.eval(l, e) {
				if !visit(e) {
					stop = true
					return false
				}
			}
			return true
		})
		if stop {
			return
		}
	}
}

func runAllAlive(r *registry.Registry, l Lookup, q Query, visit func(entity.ID) bool) {
	r.Entities().Each(func(e entity.ID) bool {
		if q.eval(l, e) {
			return visit(e)
		}
		return true
	})
}

// Each1 yields (entity, *C1) for every entity satisfying q, projecting C1
// as a required (included) component: callers should only pass a query
// that guarantees C1's presence (e.g. And(Has[C1](), ...)).
func Each1[C1 any](r *registry.Registry, q Query, fn func(e entity.ID, c1 *C1) bool) {
	stop := false
	Run(r, q, func(e entity.ID) bool {
		c1, ok := registry.Get[C1](r, e)
		if !ok {
			return true
		}
		if !fn(e, c1) {
			stop = true
			return false
		}
		return !stop
	})
}

// Each2 yields (entity, *C1, *C2), treating both as included components.
func Each2[C1, C2 any](r *registry.Registry, q Query, fn func(e entity.ID, c1 *C1, c2 *C2) bool) {
	Run(r, q, func(e entity.ID) bool {
		c1, ok1 := registry.Get[C1](r, e)
		c2, ok2 := registry.Get[C2](r, e)
		if !ok1 || !ok2 {
			return true
		}
		return fn(e, c1, c2)
	})
}

// Each2Optional yields (entity, *C1, *C2) where C2 is projected as
// pointer-or-nil: use with a query where C2 is optional (e.g. inside an Or,
// or simply not asserted at all).
func Each2Optional[C1, C2 any](r *registry.Registry, q Query, fn func(e entity.ID, c1 *C1, c2 *C2) bool) {
	Run(r, q, func(e entity.ID) bool {
		c1, ok1 := registry.Get[C1](r, e)
		if !ok1 {
			return true
		}
		c2, _ := registry.Get[C2](r, e)
		return fn(e, c1, c2)
	})
}

// Each3 yields (entity, *C1, *C2, *C3), treating all three as included.
func Each3[C1, C2, C3 any](r *registry.Registry, q Query, fn func(e entity.ID, c1 *C1, c2 *C2, c3 *C3) bool) {
	Run(r, q, func(e entity.ID) bool {
		c1, ok1 := registry.Get[C1](r, e)
		c2, ok2 := registry.Get[C2](r, e)
		c3, ok3 := registry.Get[C3](r, e)
		if !ok1 || !ok2 || !ok3 {
			return true
		}
		return fn(e, c1, c2, c3)
	})
}

// Count returns the number of entities satisfying q.
func Count(r *registry.Registry, q Query) int {
	n := 0
	Run(r, q, func(entity.ID) bool { n++; return true })
	return n
}

// Collect returns every entity satisfying q.
func Collect(r *registry.Registry, q Query) []entity.ID {
	var out []entity.ID
	Run(r, q, func(e entity.ID) bool { out = append(out, e); return true })
	return out
}
