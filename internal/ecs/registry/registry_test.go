package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/voxelcore/internal/ecs/component"
	"github.com/cuemby/voxelcore/internal/ecs/entity"
)

type regPosition struct{ X, Y int }
type regVelocity struct{ DX, DY int }

func TestEmplaceGetHasRoundTrip(t *testing.T) {
	r := New(entity.DefaultTraits)
	e := r.CreateEntity()

	_, ok := Get[regPosition](r, e)
	assert.False(t, ok)
	assert.False(t, Has[regPosition](r, e))

	Emplace(r, e, regPosition{X: 1, Y: 2})
	assert.True(t, Has[regPosition](r, e))
	pos, ok := Get[regPosition](r, e)
	require.True(t, ok)
	assert.Equal(t, regPosition{X: 1, Y: 2}, *pos)
}

func TestCreateEntityWithIDRejectsACollidingLiveID(t *testing.T) {
	r := New(entity.DefaultTraits)
	e := r.CreateEntity()

	assert.False(t, r.CreateEntityWithID(e), "a live entity's ID must not be reassignable")
	assert.False(t, r.CreateEntityWithID(e), "a repeated attempt stays rejected")

	fresh := entity.DefaultTraits.Make(999, 0, 0)
	assert.True(t, r.CreateEntityWithID(fresh))
	assert.True(t, r.IsAlive(fresh))
}

func TestDestroyEntityRemovesFromEveryPool(t *testing.T) {
	r := New(entity.DefaultTraits)
	e := r.CreateEntity()
	Emplace(r, e, regPosition{X: 1, Y: 1})
	Emplace(r, e, regVelocity{DX: 1, DY: 1})

	require.True(t, r.DestroyEntity(e))
	assert.False(t, r.IsAlive(e))
	assert.False(t, Has[regPosition](r, e))
	assert.False(t, Has[regVelocity](r, e))

	assert.False(t, r.DestroyEntity(e), "destroying an already-dead entity is a no-op")
}

func TestComponentCountsReflectsLivePools(t *testing.T) {
	r := New(entity.DefaultTraits)
	a := r.CreateEntity()
	b := r.CreateEntity()
	Emplace(r, a, regPosition{})
	Emplace(r, b, regPosition{})
	Emplace(r, a, regVelocity{})

	counts := r.ComponentCounts()
	assert.Equal(t, 2, counts[component.TypeNameOf[regPosition]()])
	assert.Equal(t, 1, counts[component.TypeNameOf[regVelocity]()])
}

func TestCommandBufferDefersUntilDrain(t *testing.T) {
	r := New(entity.DefaultTraits)
	cb := NewCommandBuffer()

	var created entity.ID
	cb.QueueCreateEntity(func(id entity.ID) { created = id })
	toDestroy := r.CreateEntity()
	cb.QueueDestroyEntity(toDestroy)

	assert.Equal(t, 2, cb.Len())
	assert.True(t, r.IsAlive(toDestroy), "queued ops must not apply before Drain")

	r.Drain(cb)

	assert.Equal(t, 0, cb.Len())
	assert.True(t, r.IsAlive(created))
	assert.False(t, r.IsAlive(toDestroy))
}

func TestPoolForReturnsTheSamePoolOnRepeatedCalls(t *testing.T) {
	r := New(entity.DefaultTraits)
	first := PoolFor[regPosition](r, component.Traits{PageSize: 8})
	second := PoolFor[regPosition](r, component.Traits{PageSize: 256})

	assert.Same(t, first, second, "a second PoolFor call must not re-register the pool with different traits")
}
