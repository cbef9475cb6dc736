package entity

// Store is the entity lifetime manager. It tracks, per index, whether the
// index is currently alive, tombstoned, or has never been issued, and hands
// out versioned IDs with ABA-safe reuse.
type Store struct {
	traits Traits

	// slots[index] holds the next version to use when (re)issuing that
	// index, plus whether it is currently alive.
	slots []slotState

	// freeList holds tombstoned indices available for reuse, oldest first.
	freeList []uint32

	aliveCount int
}

type slotState struct {
	nextVersion uint32
	alive       bool
	everIssued  bool
}

// NewStore constructs an entity store using the given entity traits.
func NewStore(traits Traits) *Store {
	return &Store{traits: traits}
}

// Traits returns the entity traits this store was constructed with.
func (s *Store) Traits() Traits { return s.traits }

func (s *Store) ensureSlot(index uint32) {
	for uint32(len(s.slots)) <= index {
		s.slots = append(s.slots, slotState{})
	}
}

// Create issues a fresh ID: it reuses the oldest tombstoned index (promoting
// its version) or allocates the next never-issued index.
func (s *Store) Create() ID {
	if n := len(s.freeList); n > 0 {
		index := s.freeList[0]
		s.freeList = s.freeList[1:]
		return s.reviveAt(index)
	}
	index := uint32(len(s.slots))
	s.ensureSlot(index)
	return s.reviveAt(index)
}

func (s *Store) reviveAt(index uint32) ID {
	slot := &s.slots[index]
	slot.alive = true
	slot.everIssued = true
	s.aliveCount++
	return s.traits.Make(index, slot.nextVersion, 0)
}

// CreateWithID attempts to create an entity at the exact index/version
// carried by id. It fails if the index is currently alive, or if a
// tombstone exists at that index with a version >= the supplied version.
func (s *Store) CreateWithID(id ID) bool {
	index := s.traits.Index(id)
	version := s.traits.Version(id)
	s.ensureSlot(index)
	slot := &s.slots[index]

	if slot.alive {
		return false
	}
	if slot.everIssued && slot.nextVersion >= version {
		return false
	}

	s.removeFromFreeList(index)
	slot.alive = true
	slot.everIssued = true
	slot.nextVersion = version
	s.aliveCount++
	return true
}

func (s *Store) removeFromFreeList(index uint32) {
	for i, idx := range s.freeList {
		if idx == index {
			s.freeList = append(s.freeList[:i], s.freeList[i+1:]...)
			return
		}
	}
}

// Destroy tombstones id if it is currently alive, bumping the index's
// version so a future Create/CreateWithID never reissues it. Returns false
// if id was not alive (including double-destroy).
func (s *Store) Destroy(id ID) bool {
	index := s.traits.Index(id)
	if !s.IsAlive(id) {
		return false
	}
	slot := &s.slots[index]
	slot.alive = false
	slot.nextVersion++
	if uint64(slot.nextVersion) > s.traits.versionMask() {
		slot.nextVersion = 0
	}
	s.aliveCount--
	s.freeList = append(s.freeList, index)
	return true
}

// IsAlive reports whether id refers to a currently-alive entity (index and
// version must both match the live slot).
func (s *Store) IsAlive(id ID) bool {
	index := s.traits.Index(id)
	if index >= uint32(len(s.slots)) {
		return false
	}
	slot := s.slots[index]
	return slot.alive && slot.nextVersion == s.traits.Version(id)
}

// IsDead is the negation of IsAlive.
func (s *Store) IsDead(id ID) bool { return !s.IsAlive(id) }

// HasExisted reports whether any entity has ever occupied id's index at a
// version >= id's version (an ID whose version the index has not reached
// yet reports false).
func (s *Store) HasExisted(id ID) bool {
	index := s.traits.Index(id)
	if index >= uint32(len(s.slots)) {
		return false
	}
	slot := s.slots[index]
	if !slot.everIssued {
		return false
	}
	if slot.alive {
		return slot.nextVersion >= s.traits.Version(id)
	}
	return slot.nextVersion > s.traits.Version(id)
}

// AliveCount returns the number of currently-alive entities.
func (s *Store) AliveCount() int { return s.aliveCount }

// Each calls fn for every currently-alive entity, in index order. fn
// returning false stops the iteration early.
func (s *Store) Each(fn func(ID) bool) {
	for index, slot := range s.slots {
		if !slot.alive {
			continue
		}
		if !fn(s.traits.Make(uint32(index), slot.nextVersion, 0)) {
			return
		}
	}
}
