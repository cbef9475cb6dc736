// Package view implements a boolean query algebra and the view engine over
// it: a query over `has<C>` terms combined with &&, ||, ! is turned into an
// iteration plan that walks the smallest eligible pool and filters by the
// remaining predicates.
package view

import (
	"github.com/cuemby/voxelcore/internal/ecs/component"
	"github.com/cuemby/voxelcore/internal/ecs/entity"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
)

// Lookup is the minimal registry surface a Query needs to evaluate a term:
// "does entity e carry a component of the type this term names". It is
// satisfied by *registry.Registry via the regLookup adapter below.
type Lookup interface {
	HasType(tid component.TypeID, e entity.ID) bool
	PoolEntities(tid component.TypeID) (component.EntitySet, bool)
}

// Analysis is the derived type-level classification of a Query: components
// guaranteed present (Included), components whose presence varies
// (Optional), and components guaranteed absent (Excluded).
type Analysis struct {
	Included []component.TypeID
	Optional []component.TypeID
	Excluded []component.TypeID
}

// Query is a boolean expression over component-presence terms.
type Query interface {
	eval(l Lookup, e entity.ID) bool
	analyze() Analysis
}

// True is the universal query: matches every alive entity.
func True() Query { return constQuery{val: true} }

// False matches no entity.
func False() Query { return constQuery{val: false} }

type constQuery struct{ val bool }

func (c constQuery) eval(Lookup, entity.ID) bool { return c.val }
func (c constQuery) analyze() Analysis           { return Analysis{} }

type hasTerm struct {
	tid  component.TypeID
	name string
}

func (h hasTerm) eval(l Lookup, e entity.ID) bool { return l.HasType(h.tid, e) }
func (h hasTerm) analyze() Analysis               { return Analysis{Included: []component.TypeID{h.tid}} }

// Has builds a `has<C>` leaf term.
func Has[C any]() Query {
	name := component.TypeNameOf[C]()
	return hasTerm{tid: component.TypeIDOf(name), name: name}
}

type notQuery struct{ inner Query }

func (n notQuery) eval(l Lookup, e entity.ID) bool { return !n.inner.eval(l, e) }

func (n notQuery) analyze() Analysis {
	a := n.inner.analyze()
	// Only a bare leaf (or negated leaf) flips cleanly between
	// included/excluded; anything else collapses to "no static
	// classification" and falls back to runtime filtering.
	if len(a.Included) == 1 && len(a.Optional) == 0 && len(a.Excluded) == 0 {
		return Analysis{Excluded: a.Included}
	}
	if len(a.Excluded) == 1 && len(a.Optional) == 0 && len(a.Included) == 0 {
		return Analysis{Included: a.Excluded}
	}
	return Analysis{Optional: append(append([]component.TypeID{}, a.Included...), a.Excluded...)}
}

// Not negates q.
func Not(q Query) Query { return notQuery{inner: q} }

type andQuery struct{ terms []Query }

func (a andQuery) eval(l Lookup, e entity.ID) bool {
	for _, t := range a.terms {
		if !t.eval(l, e) {
			return false
		}
	}
	return true
}

func (a andQuery) analyze() Analysis {
	var out Analysis
	for _, t := range a.terms {
		sub := t.analyze()
		out.Included = append(out.Included, sub.Included...)
		out.Excluded = append(out.Excluded, sub.Excluded...)
		out.Optional = append(out.Optional, sub.Optional...)
	}
	return dedupAnalysis(out)
}

// And combines terms with logical AND.
func And(terms ...Query) Query { return andQuery{terms: terms} }

type orQuery struct{ terms []Query }

func (o orQuery) eval(l Lookup, e entity.ID) bool {
	for _, t := range o.terms {
		if t.eval(l, e) {
			return true
		}
	}
	return false
}

func (o orQuery) analyze() Analysis {
	// Anything any branch depends on becomes optional at this level: an
	// entity may satisfy the Or via a branch that never mentions it.
	var optional []component.TypeID
	for _, t := range o.terms {
		sub := t.analyze()
		optional = append(optional, sub.Included...)
		optional = append(optional, sub.Excluded...)
		optional = append(optional, sub.Optional...)
	}
	return dedupAnalysis(Analysis{Optional: optional})
}

// Or combines terms with logical OR.
func Or(terms ...Query) Query { return orQuery{terms: terms} }

func dedupAnalysis(a Analysis) Analysis {
	return Analysis{
		Included: dedupIDs(a.Included),
		Optional: dedupIDs(a.Optional),
		Excluded: dedupIDs(a.Excluded),
	}
}

func dedupIDs(ids []component.TypeID) []component.TypeID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[component.TypeID]bool, len(ids))
	out := make([]component.TypeID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// regLookup adapts a *registry.Registry to Lookup. Pools are already
// type-erased (anyPool) inside the registry, so no generic type parameter
// is needed at query-evaluation time — only at query-construction time
// (Has[C]()), where the TypeID is captured once.
type regLookup struct{ reg *registry.Registry }

func (r regLookup) HasType(tid component.TypeID, e entity.ID) bool {
	return r.reg.HasTypeID(tid, e)
}

func (r regLookup) PoolEntities(tid component.TypeID) (component.EntitySet, bool) {
	return r.reg.PoolEntitiesByTypeID(tid)
}
