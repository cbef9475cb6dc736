// Package sparseset implements a dense+sparse entity container: a
// page-table sparse array mapping entity index to a position in a dense
// vector of entity.ID, with an index-stability switch that trades O(1)
// swap-erase (unstable) for no-relocation tombstoned erase (stable).
package sparseset

import "github.com/cuemby/voxelcore/internal/ecs/entity"

const (
	defaultPageSize = 4096
	absent          = ^uint32(0)
)

// MatchMode selects how Find/Erase compare a candidate ID against the
// dense-stored ID at the same index.
type MatchMode int

const (
	// MatchDefault compares index+version, ignoring unassigned bits.
	MatchDefault MatchMode = iota
	// MatchExact compares the full bit pattern.
	MatchExact
	// MatchAnyVersion compares only the index.
	MatchAnyVersion
)

// EditListener observes in-place iterator edits (SetVersion/SetUnassignedBits)
// so secondary indices (mixins) can stay in sync without the set owning
// their state.
type EditListener func(old, new entity.ID, index uint32)

// Set is a sparse set of entity.ID values.
type Set struct {
	traits entity.Traits
	stable bool

	dense  []entity.ID
	sparse [][]uint32 // paged: sparse[page][slot] = dense position, or absent
	pageSz uint32

	tombstones int
	listeners  []EditListener
}

// New constructs a sparse set. stable selects index stability: when true,
// Erase tombstones the dense slot in place (reference-stable addresses,
// O(1), no relocation); when false, Erase swaps in the last dense element
// (O(1), relocates one ID).
func New(traits entity.Traits, stable bool) *Set {
	return &Set{traits: traits, stable: stable, pageSz: defaultPageSize}
}

// Stable reports the index-stability mode this set was constructed with.
func (s *Set) Stable() bool { return s.stable }

// Len returns len(dense); a tombstone-heavy stable set reports a larger
// value than its live element count (see LiveCount).
func (s *Set) Len() int { return len(s.dense) }

// LiveCount returns the number of non-tombstone entries.
func (s *Set) LiveCount() int { return len(s.dense) - s.tombstones }

// AddEditListener registers a mixin callback invoked on in-place edits.
func (s *Set) AddEditListener(l EditListener) { s.listeners = append(s.listeners, l) }

func (s *Set) page(index uint32) (pageIdx, slotIdx uint32) {
	return index / s.pageSz, index % s.pageSz
}

func (s *Set) sparseGet(index uint32) uint32 {
	pageIdx, slotIdx := s.page(index)
	if pageIdx >= uint32(len(s.sparse)) || s.sparse[pageIdx] == nil {
		return absent
	}
	return s.sparse[pageIdx][slotIdx]
}

func (s *Set) sparseSet(index, pos uint32) {
	pageIdx, slotIdx := s.page(index)
	for uint32(len(s.sparse)) <= pageIdx {
		s.sparse = append(s.sparse, nil)
	}
	if s.sparse[pageIdx] == nil {
		s.sparse[pageIdx] = make([]uint32, s.pageSz)
		for i := range s.sparse[pageIdx] {
			s.sparse[pageIdx][i] = absent
		}
	}
	s.sparse[pageIdx][slotIdx] = pos
}

// IsTombstoneAt reports whether the dense slot at pos currently holds the
// tombstone sentinel.
func (s *Set) IsTombstoneAt(pos int) bool {
	return s.dense[pos] == s.traits.Tombstone()
}

// Insert appends e to the dense vector and records its sparse mapping if no
// entry currently occupies e's index. Returns the dense position and
// whether an insertion actually happened.
func (s *Set) Insert(e entity.ID) (int, bool) {
	index := s.traits.Index(e)
	if pos := s.sparseGet(index); pos != absent {
		return int(pos), false
	}
	pos := len(s.dense)
	s.dense = append(s.dense, e)
	s.sparseSet(index, uint32(pos))
	return pos, true
}

// InsertAt reuses a specific, currently-tombstoned dense slot instead of
// growing the dense vector — used by reference-stable component pools that
// keep a free-list of vacated slots so a component's address, once
// assigned, is never reused for a different live component while still
// bounding storage growth. Falls back to Insert if pos is not a live
// tombstone.
func (s *Set) InsertAt(e entity.ID, pos int) (int, bool) {
	index := s.traits.Index(e)
	if p := s.sparseGet(index); p != absent {
		return int(p), false
	}
	if pos < 0 || pos >= len(s.dense) || !s.IsTombstoneAt(pos) {
		return s.Insert(e)
	}
	s.dense[pos] = e
	s.sparseSet(index, uint32(pos))
	s.tombstones--
	return pos, true
}

// find resolves e's dense position under the given match mode, or
// (0, false) if absent.
func (s *Set) find(e entity.ID, mode MatchMode) (int, bool) {
	index := s.traits.Index(e)
	pos := s.sparseGet(index)
	if pos == absent {
		return 0, false
	}
	if s.IsTombstoneAt(int(pos)) {
		return 0, false
	}
	got := s.dense[pos]
	switch mode {
	case MatchExact:
		if got != e {
			return 0, false
		}
	case MatchAnyVersion:
		// index already matched via the sparse lookup
	default:
		if !s.traits.SameEntity(got, e) {
			return 0, false
		}
	}
	return int(pos), true
}

// Find looks up e by index+version (default match mode).
func (s *Set) Find(e entity.ID) (int, bool) { return s.find(e, MatchDefault) }

// FindExact looks up e by full bit pattern.
func (s *Set) FindExact(e entity.ID) (int, bool) { return s.find(e, MatchExact) }

// FindAnyVersion looks up an entry at index, ignoring version.
func (s *Set) FindAnyVersion(index uint32) (int, bool) {
	return s.find(s.traits.Make(index, 0, 0), MatchAnyVersion)
}

// Contains reports whether e is present under the default match mode.
func (s *Set) Contains(e entity.ID) bool { _, ok := s.Find(e); return ok }

// ContainsAnyVersion reports whether index is present at any version.
func (s *Set) ContainsAnyVersion(index uint32) bool {
	_, ok := s.FindAnyVersion(index)
	return ok
}

// At returns the entity.ID stored at a dense position.
func (s *Set) At(pos int) entity.ID { return s.dense[pos] }

// EraseResult reports what kind of relocation, if any, accompanied an
// unstable erase, so callers that keep a parallel dense value vector (e.g.
// component.Pool) can mirror the swap.
type EraseResult struct {
	Removed   bool
	Swapped   bool // unstable mode only: element at FromPos moved to ToPos
	FromPos   int
	ToPos     int
}

func (s *Set) erase(e entity.ID, mode MatchMode) EraseResult {
	pos, ok := s.find(e, mode)
	if !ok {
		return EraseResult{}
	}
	index := s.traits.Index(s.dense[pos])

	pageIdx, slotIdx := s.page(index)
	s.sparse[pageIdx][slotIdx] = absent

	if s.stable {
		s.dense[pos] = s.traits.Tombstone()
		s.tombstones++
		return EraseResult{Removed: true, FromPos: pos, ToPos: pos}
	}

	last := len(s.dense) - 1
	res := EraseResult{Removed: true, FromPos: last, ToPos: pos}
	if pos != last {
		moved := s.dense[last]
		s.dense[pos] = moved
		if moved != s.traits.Tombstone() {
			mIdx := s.traits.Index(moved)
			mPageIdx, mSlotIdx := s.page(mIdx)
			s.sparse[mPageIdx][mSlotIdx] = uint32(pos)
			res.Swapped = true
		}
	} else {
		res.Swapped = false
		res.FromPos = pos
	}
	s.dense = s.dense[:last]
	return res
}

// Erase removes e under default match semantics (index+version).
func (s *Set) Erase(e entity.ID) bool { return s.erase(e, MatchDefault).Removed }

// EraseExact removes e only if the full bit pattern matches.
func (s *Set) EraseExact(e entity.ID) bool { return s.erase(e, MatchExact).Removed }

// EraseAnyVersion removes whatever occupies e's index, regardless of version.
func (s *Set) EraseAnyVersion(e entity.ID) bool { return s.erase(e, MatchAnyVersion).Removed }

// EraseWithResult is Erase but also reports the relocation details needed
// to mirror the erase in a parallel value vector.
func (s *Set) EraseWithResult(e entity.ID) EraseResult { return s.erase(e, MatchDefault) }

// Clear empties the set.
func (s *Set) Clear() {
	s.dense = s.dense[:0]
	s.sparse = nil
	s.tombstones = 0
}

// SetVersion overwrites the version field of the ID stored at pos in place,
// notifying edit listeners with (old, new, index).
func (s *Set) SetVersion(pos int, version uint32) {
	old := s.dense[pos]
	index := s.traits.Index(old)
	nw := s.traits.WithVersion(old, version)
	s.dense[pos] = nw
	for _, l := range s.listeners {
		l(old, nw, index)
	}
}

// SetUnassignedBits overwrites the unassigned payload of the ID stored at
// pos in place, notifying edit listeners.
func (s *Set) SetUnassignedBits(pos int, bits uint32) {
	old := s.dense[pos]
	index := s.traits.Index(old)
	nw := s.traits.WithUnassignedBits(old, bits)
	s.dense[pos] = nw
	for _, l := range s.listeners {
		l(old, nw, index)
	}
}

// Each iterates live (non-tombstone) entries in dense order. fn returning
// false stops iteration early.
func (s *Set) Each(fn func(pos int, e entity.ID) bool) {
	tomb := s.traits.Tombstone()
	for i, e := range s.dense {
		if e == tomb {
			continue
		}
		if !fn(i, e) {
			return
		}
	}
}
