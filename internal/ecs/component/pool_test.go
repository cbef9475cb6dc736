package component

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/voxelcore/internal/ecs/entity"
)

type fuzzValue struct{ N int }

// TestFuzzPoolReferenceStability drives random emplace/erase/mutate/clear
// against every combination of reference-stability and storage elision:
// with reference stability, a component's address never changes between
// checkpoints until it's erased or the pool is cleared; with elided
// storage, reads return the sentinel and writes are
// no-ops; values round-trip otherwise.
func TestFuzzPoolReferenceStability(t *testing.T) {
	for _, referenceStable := range []bool{false, true} {
		for _, elide := range []bool{false, true} {
			name := boolName(referenceStable, "refstable", "refunstable") + "_" + boolName(elide, "elided", "stored")
			t.Run(name, func(t *testing.T) {
				fuzzPool(t, Traits{PageSize: 64, ReferenceStability: referenceStable, ElideStorage: elide})
			})
		}
	}
}

func boolName(b bool, ifTrue, ifFalse string) string {
	if b {
		return ifTrue
	}
	return ifFalse
}

func fuzzPool(t *testing.T, traits Traits) {
	rng := rand.New(rand.NewSource(7))
	p := New[fuzzValue](traits)

	live := make(map[entity.ID]int) // id -> expected value (meaningless when elided)
	addrs := make(map[entity.ID]*fuzzValue)

	checkpoint := func() {
		for id, want := range live {
			ptr, ok := p.Find(id)
			require.True(t, ok)
			if traits.ElideStorage {
				assert.Equal(t, fuzzValue{}, *ptr)
				continue
			}
			assert.Equal(t, want, ptr.N)
			if traits.ReferenceStability {
				if prev, seen := addrs[id]; seen {
					assert.Same(t, prev, ptr)
				} else {
					addrs[id] = ptr
				}
			}
		}
	}

	for i := 0; i < 3000; i++ {
		id := entity.ID(rng.Intn(64))
		switch rng.Intn(4) {
		case 0:
			val := fuzzValue{N: rng.Int()}
			ptr, inserted := p.Emplace(id, val)
			if inserted {
				live[id] = val.N
				if !traits.ElideStorage {
					assert.Equal(t, val.N, ptr.N)
				}
			}
		case 1:
			removed := p.Erase(id)
			if _, present := live[id]; present {
				assert.True(t, removed)
				delete(live, id)
				delete(addrs, id)
			} else {
				assert.False(t, removed)
			}
		case 2:
			if ptr, ok := p.Find(id); ok && !traits.ElideStorage {
				ptr.N++
				if _, present := live[id]; present {
					live[id] = ptr.N
				}
			}
		case 3:
			p.Clear()
			live = make(map[entity.ID]int)
			addrs = make(map[entity.ID]*fuzzValue)
		}
		checkpoint()
	}
}
