package scheduler

import "github.com/cuemby/voxelcore/internal/ecs/component"

// accessTracker holds the multiset of read-accesses and set of
// write-accesses currently held by running tasks. A candidate task conflicts
// if any of its writes overlaps another task's current reads or writes, or
// any of its reads overlaps another task's current writes.
type accessTracker struct {
	reads  map[component.TypeID]int
	writes map[component.TypeID]int
}

func newAccessTracker() *accessTracker {
	return &accessTracker{
		reads:  make(map[component.TypeID]int),
		writes: make(map[component.TypeID]int),
	}
}

func (a *accessTracker) conflicts(reads, writes TypeSet) bool {
	for id := range writes {
		if a.reads[id] > 0 || a.writes[id] > 0 {
			return true
		}
	}
	for id := range reads {
		if a.writes[id] > 0 {
			return true
		}
	}
	return false
}

func (a *accessTracker) acquire(reads, writes TypeSet) {
	for id := range reads {
		a.reads[id]++
	}
	for id := range writes {
		a.writes[id]++
	}
}

func (a *accessTracker) release(reads, writes TypeSet) {
	for id := range reads {
		a.reads[id]--
	}
	for id := range writes {
		a.writes[id]--
	}
}

// blacklistTracker counts, per system, how many currently-running systems
// name it in their blacklist (or are named in its own blacklist) — either
// direction forbids concurrent execution, even though the blacklist is only
// declared on one side of the pair.
type blacklistTracker struct {
	blacklistOf map[SystemID]map[SystemID]struct{}
	running     map[SystemID]struct{}
	blockedBy   map[SystemID]int
}

func newBlacklistTracker(systems map[SystemID]System) *blacklistTracker {
	t := &blacklistTracker{
		blacklistOf: make(map[SystemID]map[SystemID]struct{}, len(systems)),
		running:     make(map[SystemID]struct{}),
		blockedBy:   make(map[SystemID]int, len(systems)),
	}
	for id, sys := range systems {
		set := make(map[SystemID]struct{}, len(sys.Blacklist))
		for _, other := range sys.Blacklist {
			set[other] = struct{}{}
		}
		t.blacklistOf[id] = set
	}
	// Make the relation symmetric: if A blacklists B, B is also blocked by A.
	for id, set := range t.blacklistOf {
		for other := range set {
			if _, ok := t.blacklistOf[other]; ok {
				t.blacklistOf[other][id] = struct{}{}
			}
		}
	}
	return t
}

func (t *blacklistTracker) conflicts(id SystemID) bool {
	return t.blockedBy[id] > 0
}

func (t *blacklistTracker) acquire(id SystemID) {
	t.running[id] = struct{}{}
	for other := range t.blacklistOf[id] {
		t.blockedBy[other]++
	}
}

func (t *blacklistTracker) release(id SystemID) {
	delete(t.running, id)
	for other := range t.blacklistOf[id] {
		t.blockedBy[other]--
	}
}
