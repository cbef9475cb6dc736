package sparseset

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/voxelcore/internal/ecs/entity"
)

// TestFuzzInsertEraseFindClear drives random interleavings of insert, erase
// (all three match modes), find and clear against both index-stability
// modes, checking the set agrees with an independently-kept expected-state
// map after every operation.
func TestFuzzInsertEraseFindClear(t *testing.T) {
	traits := entity.Traits{IndexBits: 16, VersionBits: 8, UnassignedBits: 40}
	require.NoError(t, traits.Validate())

	for _, stable := range []bool{false, true} {
		t.Run(map[bool]string{false: "unstable", true: "stable"}[stable], func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			s := New(traits, stable)
			expected := make(map[uint32]entity.ID)

			for i := 0; i < 5000; i++ {
				index := uint32(rng.Intn(64))
				version := uint32(rng.Intn(4))
				id := traits.Make(index, version, 0)

				switch rng.Intn(5) {
				case 0:
					_, inserted := s.Insert(id)
					if _, present := expected[index]; !present {
						assert.True(t, inserted)
						expected[index] = id
					} else {
						assert.False(t, inserted)
					}
				case 1:
					removed := s.Erase(id)
					if cur, present := expected[index]; present && traits.SameEntity(cur, id) {
						assert.True(t, removed)
						delete(expected, index)
					} else {
						assert.False(t, removed)
					}
				case 2:
					removed := s.EraseExact(id)
					if cur, present := expected[index]; present && cur == id {
						assert.True(t, removed)
						delete(expected, index)
					} else {
						assert.False(t, removed)
					}
				case 3:
					removed := s.EraseAnyVersion(id)
					if _, present := expected[index]; present {
						assert.True(t, removed)
						delete(expected, index)
					} else {
						assert.False(t, removed)
					}
				case 4:
					_, found := s.Find(id)
					cur, present := expected[index]
					assert.Equal(t, present && traits.SameEntity(cur, id), found)
				}

				assertMatchesExpected(t, s, expected)
			}

			s.Clear()
			assert.Equal(t, 0, s.Len())
			for index := range expected {
				assert.False(t, s.ContainsAnyVersion(index))
			}
		})
	}
}

func assertMatchesExpected(t *testing.T, s *Set, expected map[uint32]entity.ID) {
	t.Helper()
	seen := make(map[uint32]bool)
	s.Each(func(pos int, e entity.ID) bool {
		idx := uint32(e) & ((1 << 16) - 1)
		seen[idx] = true
		return true
	})
	assert.Equal(t, len(expected), len(seen))
	for index, id := range expected {
		assert.True(t, s.Contains(id), "expected index %d to be present", index)
		assert.True(t, s.ContainsAnyVersion(index))
	}
}
