package sync

import (
	"sync"

	"github.com/cuemby/voxelcore/internal/ecs/entity"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
)

// Predicate decides whether e should be visible to remote. An instance
// carries at most one of these; a tag-set restriction, where wanted, is
// folded into the predicate by the caller composing it (e.g. with a
// view.Query check) rather than threaded through separately.
type Predicate func(r *registry.Registry, e entity.ID, remote Remote) bool

// Delta is the set of entities that became visible or invisible to one
// remote during a single Tick call.
type Delta struct {
	Added   []entity.ID
	Removed []entity.ID
}

// VisibilitySystem evaluates a Predicate against every remote once per
// tick and tracks, per (entity, remote), whether visibility changed: a
// freshly recomputed visible set each tick plus the diff against the
// previous tick's set. There's nothing to store past one tick — a
// "changed this tick" flag is simply membership in Added/Removed.
type VisibilitySystem struct {
	mu        sync.Mutex
	predicate Predicate
	visible   map[Remote]map[entity.ID]bool
}

// NewVisibilitySystem constructs a VisibilitySystem. pred may be nil,
// meaning nothing is ever visible to any remote.
func NewVisibilitySystem(pred Predicate) *VisibilitySystem {
	return &VisibilitySystem{predicate: pred, visible: make(map[Remote]map[entity.ID]bool)}
}

// SetPredicate replaces the visibility predicate.
func (v *VisibilitySystem) SetPredicate(pred Predicate) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.predicate = pred
}

// Tick recomputes visibility for every remote in remotes and returns each
// one's Added/Removed diff against the previous tick. A previously-visible
// entity that has since died (or lost the predicate) is always reported as
// Removed, even though it no longer appears in the live entity iteration.
func (v *VisibilitySystem) Tick(r *registry.Registry, remotes []Remote) map[Remote]Delta {
	v.mu.Lock()
	defer v.mu.Unlock()

	result := make(map[Remote]Delta, len(remotes))
	for _, remote := range remotes {
		prev := v.visible[remote]
		next := make(map[entity.ID]bool, len(prev))
		var delta Delta

		if v.predicate != nil {
			r.Entities().Each(func(e entity.ID) bool {
				if v.predicate(r, e, remote) {
					next[e] = true
					if !prev[e] {
						delta.Added = append(delta.Added, e)
					}
				}
				return true
			})
		}
		for e := range prev {
			if !next[e] {
				delta.Removed = append(delta.Removed, e)
			}
		}

		v.visible[remote] = next
		result[remote] = delta
	}
	return result
}

// Visible returns the entities currently visible to remote, as of the most
// recent Tick.
func (v *VisibilitySystem) Visible(remote Remote) []entity.ID {
	v.mu.Lock()
	defer v.mu.Unlock()
	set := v.visible[remote]
	out := make([]entity.ID, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	return out
}

// Forget drops all visibility state for remote, e.g. on disconnect.
func (v *VisibilitySystem) Forget(remote Remote) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.visible, remote)
}
