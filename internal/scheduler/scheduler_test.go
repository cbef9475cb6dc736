package scheduler

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/voxelcore/internal/ecs/component"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
)

func typeID(name string) component.TypeID { return component.TypeIDOf(name) }

// TestInvokeRunsEverySystemExactlyOnce covers the base tick contract: every
// registered system runs, regardless of graph shape.
func TestInvokeRunsEverySystemExactlyOnce(t *testing.T) {
	s := New(4, nil)

	var runs int32
	for i := 0; i < 10; i++ {
		s.AddSystem(System{
			Name: "noop",
			Run: func(time.Duration, time.Time, *registry.CommandBuffer) error {
				atomic.AddInt32(&runs, 1)
				return nil
			},
		})
	}

	require.NoError(t, s.Invoke(DefaultDt, nil))
	assert.Equal(t, int32(10), runs)
}

// TestInvokeRespectsDependencyOrder ensures a dependent system never starts
// before every one of its dependencies has completed.
func TestInvokeRespectsDependencyOrder(t *testing.T) {
	s := New(4, nil)

	var mu sync.Mutex
	var order []string
	record := func(name string) RunFunc {
		return func(time.Duration, time.Time, *registry.CommandBuffer) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	a := s.AddSystem(System{Name: "a", Run: record("a")})
	b := s.AddSystem(System{Name: "b", Run: record("b"), Dependencies: []SystemID{a}})
	s.AddSystem(System{Name: "c", Run: record("c"), Dependencies: []SystemID{a, b}})

	require.NoError(t, s.Invoke(DefaultDt, nil))

	require.Len(t, order, 3)
	pos := make(map[string]int, 3)
	for i, name := range order {
		pos[name] = i
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["b"], pos["c"])
}

// TestInvokeNeverRunsConflictingAccessConcurrently drives many worker
// goroutines over two systems that write the same component type and asserts
// a simple mutex-based overlap detector never observes both running at once.
func TestInvokeNeverRunsConflictingAccessConcurrently(t *testing.T) {
	s := New(8, nil)
	shared := NewTypeSet(typeID("scheduler_test.shared"))

	var inFlight int32
	var overlapped bool
	var mu sync.Mutex
	body := func(time.Duration, time.Time, *registry.CommandBuffer) error {
		if atomic.AddInt32(&inFlight, 1) > 1 {
			mu.Lock()
			overlapped = true
			mu.Unlock()
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	}

	for i := 0; i < 6; i++ {
		s.AddSystem(System{Name: "writer", Writes: shared, Run: body})
	}

	require.NoError(t, s.Invoke(DefaultDt, nil))
	assert.False(t, overlapped, "systems with overlapping write access must not run concurrently")
}

// TestInvokeHonorsBlacklistSymmetrically ensures a blacklist declared on one
// side of a pair prevents concurrent execution in both directions.
func TestInvokeHonorsBlacklistSymmetrically(t *testing.T) {
	s := New(8, nil)

	var inFlight int32
	var overlapped bool
	var mu sync.Mutex
	body := func(time.Duration, time.Time, *registry.CommandBuffer) error {
		if atomic.AddInt32(&inFlight, 1) > 1 {
			mu.Lock()
			overlapped = true
			mu.Unlock()
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	}

	other := s.AddSystem(System{Name: "other", Run: body})
	s.AddSystem(System{Name: "blacklister", Run: body, Blacklist: []SystemID{other}})

	require.NoError(t, s.Invoke(DefaultDt, nil))
	assert.False(t, overlapped, "a one-sided blacklist entry must block both directions")
}

// TestInvokeReservesMainThreadSystemsForTheCallingGoroutine checks a
// RequiresMainThread system only ever runs on the goroutine that called
// Invoke, never on a pool worker.
func TestInvokeReservesMainThreadSystemsForTheCallingGoroutine(t *testing.T) {
	s := New(4, nil)
	ranOn := make(chan string, 1)

	s.AddSystem(System{
		Name:               "main-only",
		RequiresMainThread: true,
		Run: func(time.Duration, time.Time, *registry.CommandBuffer) error {
			ranOn <- goroutineID()
			return nil
		},
	})

	caller := goroutineID()
	require.NoError(t, s.Invoke(DefaultDt, nil))
	select {
	case got := <-ranOn:
		assert.Equal(t, caller, got, "main-thread system ran on a pool worker")
	default:
		t.Fatal("main-thread system never ran")
	}
}

// goroutineID returns the current goroutine's number as printed in the
// header line of its stack trace ("goroutine 18 [running]:").
func goroutineID() string {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	return strings.Fields(string(buf))[1]
}

func TestInvokeClampsDtAboveMaxDt(t *testing.T) {
	s := New(2, nil)

	var seen time.Duration
	s.AddSystem(System{
		Name: "observe-dt",
		Run: func(dt time.Duration, _ time.Time, _ *registry.CommandBuffer) error {
			seen = dt
			return nil
		},
	})

	require.NoError(t, s.Invoke(time.Second, nil))
	assert.Equal(t, MaxDt, seen)
}

func TestInvokePropagatesSystemPanicsAsErrors(t *testing.T) {
	s := New(2, nil)
	s.AddSystem(System{
		Name: "panics",
		Run: func(time.Duration, time.Time, *registry.CommandBuffer) error {
			panic("boom")
		},
	})

	err := s.Invoke(DefaultDt, nil)
	assert.Error(t, err)
}
