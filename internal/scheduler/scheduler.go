package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/voxelcore/internal/corelog"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
	"github.com/cuemby/voxelcore/pkg/metrics"
)

// Default tick-timing bounds: ticks shorter than MinDt are padded with a
// sleep so systems see a stable minimum timestep; ticks that took longer
// than MaxDt to assemble are clamped and logged as an overrun rather than
// handed to systems verbatim, so a single slow frame can't make
// physics-like systems diverge.
const (
	MinDt     = time.Millisecond
	MaxDt     = 250 * time.Millisecond
	DefaultDt = 10 * time.Millisecond
)

// Scheduler owns the registered system table and dispatches one tick's worth
// of work across a worker pool, honoring each system's declared access set,
// its dependency edges, its blacklist, and main-thread affinity.
type Scheduler struct {
	mu      sync.Mutex
	systems map[SystemID]System
	nextID  SystemID
	workers int
	strat   Strategy
	logger  zerolog.Logger
}

// New constructs a Scheduler with the given worker pool size (not counting
// the invoking goroutine, which always participates as the main-thread
// worker) and strategy. workers < 1 is treated as 1.
func New(workers int, strat Strategy) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if strat == nil {
		strat = MaximizePriorityStrategy{}
	}
	return &Scheduler{
		systems: make(map[SystemID]System),
		workers: workers,
		strat:   strat,
		logger:  corelog.With("scheduler"),
	}
}

// AddSystem registers a system and returns the ID future calls use to refer
// to it (e.g. as another system's Dependencies or Blacklist entry).
func (s *Scheduler) AddSystem(sys System) SystemID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.systems[id] = sys
	return id
}

// RemoveSystem unregisters a system. Dangling references to it in other
// systems' Dependencies/Blacklist are simply ignored at graph-build time.
func (s *Scheduler) RemoveSystem(id SystemID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.systems, id)
}

// TakeSystem removes and returns a system, for callers that want to
// temporarily pull it out of rotation and re-add it later.
func (s *Scheduler) TakeSystem(id SystemID) (System, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sys, ok := s.systems[id]
	if ok {
		delete(s.systems, id)
	}
	return sys, ok
}

// GetSystem returns a copy of a registered system's description.
func (s *Scheduler) GetSystem(id SystemID) (System, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sys, ok := s.systems[id]
	return sys, ok
}

// Invoke runs every registered system exactly once, respecting dependency
// order, declared access conflicts and blacklists, then drains the tick's
// command buffer against reg before returning. dt is clamped to
// [MinDt, MaxDt]; a dt under MinDt is raised to MinDt, a tick that finishes
// in under MinDt of wall time is padded out with a sleep so every tick takes
// at least MinDt, and a dt over MaxDt is clamped down (with a logged
// warning and a metric bump) so systems never see an unbounded timestep.
// reg may be nil for a scheduler with no entity-creating systems; the
// command buffer is still threaded through in that case, it's just never
// drained anywhere.
func (s *Scheduler) Invoke(dt time.Duration, reg *registry.Registry) error {
	start := time.Now()
	clamped := dt
	if clamped > MaxDt {
		s.logger.Warn().Dur("dt", dt).Dur("max_dt", MaxDt).Msg("tick can't keep up, clamping dt")
		metrics.RecordTickOverrun()
		clamped = MaxDt
	}
	if clamped < MinDt {
		clamped = MinDt
	}

	s.mu.Lock()
	systems := make(map[SystemID]System, len(s.systems))
	for id, sys := range s.systems {
		systems[id] = sys
	}
	strat := s.strat
	workers := s.workers
	s.mu.Unlock()

	graph := buildTaskGraph(systems)
	timestamp := time.Now()
	cmds := registry.NewCommandBuffer()

	var gmu sync.Mutex
	eg := &errgroup.Group{}
	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			return s.runWorker(graph, &gmu, strat, false, clamped, timestamp, cmds)
		})
	}
	// The invoking goroutine is the main-thread worker: it alone is allowed
	// to pick up RequiresMainThread systems.
	mainErr := s.runWorker(graph, &gmu, strat, true, clamped, timestamp, cmds)
	poolErr := eg.Wait()

	if mainErr != nil {
		return mainErr
	}
	if poolErr != nil {
		return poolErr
	}

	// Barrier: every system has finished, so no access set is held anymore
	// and the deferred entity create/destroy requests can be applied safely.
	if reg != nil {
		reg.Drain(cmds)
	}

	elapsed := time.Since(start)
	metrics.TickDuration.Observe(elapsed.Seconds())

	if pad := MinDt - elapsed; pad > 0 {
		time.Sleep(pad)
	}
	return nil
}

// runWorker repeatedly selects and runs candidate tasks until the graph is
// finished, yielding briefly when nothing is runnable yet (a dependency is
// still in flight on another worker).
func (s *Scheduler) runWorker(g *taskGraph, gmu *sync.Mutex, strat Strategy, mainThread bool, dt time.Duration, ts time.Time, cmds *registry.CommandBuffer) error {
	for {
		gmu.Lock()
		if g.finished() {
			gmu.Unlock()
			return nil
		}
		node := strat.Select(g.candidates(mainThread))
		if node == nil {
			gmu.Unlock()
			time.Sleep(50 * time.Microsecond)
			continue
		}
		g.start(node)
		gmu.Unlock()

		metrics.WorkerUtilization.Inc()
		timer := metrics.NewTimer()
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("system %q panicked: %v", node.sys.Name, r)
				}
			}()
			return node.sys.Run(dt, ts, cmds)
		}()
		timer.ObserveDurationVec(metrics.TaskDuration, node.sys.Name)
		metrics.TasksRunTotal.WithLabelValues(node.sys.Name).Inc()
		metrics.WorkerUtilization.Dec()

		gmu.Lock()
		g.completeTask(node.id)
		gmu.Unlock()

		if err != nil {
			s.logger.Error().Err(err).Str("system", node.sys.Name).Msg("system run failed")
			return err
		}
	}
}
