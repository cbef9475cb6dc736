// Package scheduler implements the per-tick task scheduler: a graph of
// systems declaring component read/write access, dependencies and a
// blacklist, dispatched to worker goroutines while preserving declared
// dependency order and never running two systems with conflicting access at
// the same time.
package scheduler

import (
	"time"

	"github.com/cuemby/voxelcore/internal/ecs/component"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
)

// SystemID identifies a registered system.
type SystemID uint64

// TypeSet is an unordered set of component type IDs.
type TypeSet map[component.TypeID]struct{}

// NewTypeSet builds a TypeSet from a list of type IDs.
func NewTypeSet(ids ...component.TypeID) TypeSet {
	s := make(TypeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s TypeSet) has(id component.TypeID) bool { _, ok := s[id]; return ok }

func (s TypeSet) intersects(other TypeSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for id := range small {
		if large.has(id) {
			return true
		}
	}
	return false
}

// RunFunc is the per-tick body of a system. cmds accumulates entity
// create/destroy requests instead of applying them immediately: mutating
// the entity table while other systems may be mid-tick would race with
// their own access sets, so those requests are deferred and applied at the
// barrier between ticks once every system has finished running.
type RunFunc func(dt time.Duration, timestamp time.Time, cmds *registry.CommandBuffer) error

// System is the declarative description of one scheduled task. Reads/Writes
// declare the access set; Dependencies must complete before this system
// starts within the same tick; Blacklist names systems that must never run
// concurrently with this one regardless of access overlap.
type System struct {
	Name                string
	Reads               TypeSet
	Writes              TypeSet
	Dependencies        []SystemID
	Blacklist           []SystemID
	RequiresMainThread  bool
	EstimatedPerformance time.Duration
	Run                 RunFunc
}

func (s System) accessSet() TypeSet {
	out := make(TypeSet, len(s.Reads)+len(s.Writes))
	for id := range s.Reads {
		out[id] = struct{}{}
	}
	for id := range s.Writes {
		out[id] = struct{}{}
	}
	return out
}
