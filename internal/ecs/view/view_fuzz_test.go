package view

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/voxelcore/internal/ecs/component"
	"github.com/cuemby/voxelcore/internal/ecs/entity"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
)

type fuzzA struct{}
type fuzzB struct{}
type fuzzC struct{}

// TestFuzzQueryMembership populates a registry with random component
// membership across three types and checks that has<A>, has<A>&&has<B>&&
// has<C>, has<A>||has<B>, !has<A>, the universal query and the empty query
// each yield exactly the entities satisfying the predicate, exactly once.
func TestFuzzQueryMembership(t *testing.T) {
	r := registry.New(entity.DefaultTraits)
	registry.PoolFor[fuzzA](r, component.DefaultTraits)
	registry.PoolFor[fuzzB](r, component.DefaultTraits)
	registry.PoolFor[fuzzC](r, component.DefaultTraits)

	rng := rand.New(rand.NewSource(99))
	const n = 500
	ids := make([]entity.ID, n)
	for i := 0; i < n; i++ {
		e := r.CreateEntity()
		ids[i] = e
		if rng.Intn(2) == 0 {
			registry.Emplace(r, e, fuzzA{})
		}
		if rng.Intn(2) == 0 {
			registry.Emplace(r, e, fuzzB{})
		}
		if rng.Intn(2) == 0 {
			registry.Emplace(r, e, fuzzC{})
		}
	}

	cases := []struct {
		name string
		q    Query
		want func(e entity.ID) bool
	}{
		{"has<A>", Has[fuzzA](), func(e entity.ID) bool { return registry.Has[fuzzA](r, e) }},
		{
			"has<A>&&has<B>&&has<C>",
			And(Has[fuzzA](), Has[fuzzB](), Has[fuzzC]()),
			func(e entity.ID) bool {
				return registry.Has[fuzzA](r, e) && registry.Has[fuzzB](r, e) && registry.Has[fuzzC](r, e)
			},
		},
		{
			"has<A>||has<B>",
			Or(Has[fuzzA](), Has[fuzzB]()),
			func(e entity.ID) bool { return registry.Has[fuzzA](r, e) || registry.Has[fuzzB](r, e) },
		},
		{"!has<A>", Not(Has[fuzzA]()), func(e entity.ID) bool { return !registry.Has[fuzzA](r, e) }},
		{"universal", True(), func(entity.ID) bool { return true }},
		{"empty", False(), func(entity.ID) bool { return false }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var want []entity.ID
			for _, e := range ids {
				if tc.want(e) {
					want = append(want, e)
				}
			}

			got := Collect(r, tc.q)
			assertSameEntitySet(t, want, got)
		})
	}
}

func assertSameEntitySet(t *testing.T, want, got []entity.ID) {
	t.Helper()
	wantSorted := append([]entity.ID{}, want...)
	gotSorted := append([]entity.ID{}, got...)
	sort.Slice(wantSorted, func(i, j int) bool { return wantSorted[i] < wantSorted[j] })
	sort.Slice(gotSorted, func(i, j int) bool { return gotSorted[i] < gotSorted[j] })
	assert.Equal(t, wantSorted, gotSorted)
}
