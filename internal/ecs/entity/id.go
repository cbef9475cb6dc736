// Package entity defines the entity identifier layout and the entity
// lifetime manager (component A of the core runtime).
package entity

import "fmt"

// ID is an opaque entity identifier packed into a single uint64: an index
// field, a version field (ABA-safe reuse counter) and a small unassigned-bits
// payload an iterator may write freely. Field widths are fixed by Traits.
type ID uint64

// Traits fixes the bit widths of the three fields packed into an ID. The
// widths must sum to 64. Index is the low bits, then version, then the
// unassigned payload in the high bits.
type Traits struct {
	IndexBits      uint
	VersionBits    uint
	UnassignedBits uint
}

// DefaultTraits allows roughly 16M live entities, 256 version generations
// per index before wraparound, and a 32-bit per-entity scratch payload.
var DefaultTraits = Traits{IndexBits: 24, VersionBits: 8, UnassignedBits: 32}

func (t Traits) indexMask() uint64      { return (uint64(1) << t.IndexBits) - 1 }
func (t Traits) versionMask() uint64    { return (uint64(1) << t.VersionBits) - 1 }
func (t Traits) unassignedMask() uint64 { return (uint64(1) << t.UnassignedBits) - 1 }
func (t Traits) versionShift() uint     { return t.IndexBits }
func (t Traits) unassignedShift() uint  { return t.IndexBits + t.VersionBits }

// Validate checks the widths sum to 64 bits.
func (t Traits) Validate() error {
	sum := t.IndexBits + t.VersionBits + t.UnassignedBits
	if sum != 64 {
		return fmt.Errorf("entity traits: field widths sum to %d, want 64", sum)
	}
	return nil
}

// MaxIndex is the largest index value the traits can represent; it is also
// reserved as the index component of Tombstone.
func (t Traits) MaxIndex() uint32 { return uint32(t.indexMask()) }

// Tombstone is the reserved ID marking a vacated slot in a dense vector. It
// carries the maximum index and version so it can never collide with a
// legitimately issued ID.
func (t Traits) Tombstone() ID {
	return t.Make(t.MaxIndex(), uint32(t.versionMask()), 0)
}

// Make packs an index, version and unassigned-bits payload into an ID.
func (t Traits) Make(index, version uint32, unassigned uint32) ID {
	v := uint64(index) & t.indexMask()
	v |= (uint64(version) & t.versionMask()) << t.versionShift()
	v |= (uint64(unassigned) & t.unassignedMask()) << t.unassignedShift()
	return ID(v)
}

// Index extracts the index field.
func (t Traits) Index(id ID) uint32 { return uint32(uint64(id) & t.indexMask()) }

// Version extracts the version field.
func (t Traits) Version(id ID) uint32 {
	return uint32((uint64(id) >> t.versionShift()) & t.versionMask())
}

// UnassignedBits extracts the unassigned payload.
func (t Traits) UnassignedBits(id ID) uint32 {
	return uint32((uint64(id) >> t.unassignedShift()) & t.unassignedMask())
}

// WithVersion returns a copy of id with its version field replaced.
func (t Traits) WithVersion(id ID, version uint32) ID {
	return t.Make(t.Index(id), version, t.UnassignedBits(id))
}

// WithUnassignedBits returns a copy of id with its unassigned payload replaced.
func (t Traits) WithUnassignedBits(id ID, bits uint32) ID {
	return t.Make(t.Index(id), t.Version(id), bits)
}

// SameEntity reports whether a and b share an index and version, ignoring
// unassigned bits — this is the "default" match mode used throughout the
// sparse set and component pools.
func (t Traits) SameEntity(a, b ID) bool {
	return t.Index(a) == t.Index(b) && t.Version(a) == t.Version(b)
}
