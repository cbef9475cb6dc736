package metrics

import (
	"testing"
	"time"

	"github.com/cuemby/voxelcore/internal/ecs/entity"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
)

func resetHealthChecker() {
	healthChecker = &HealthChecker{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
	tickOverruns.Store(0)
	sessionErrors.Store(0)
}

// TestCollectorReportsRegistryHealthFromAliveCount checks the registry
// health component reflects the registry's actual live-entity count rather
// than a fixed verdict.
func TestCollectorReportsRegistryHealthFromAliveCount(t *testing.T) {
	resetHealthChecker()

	reg := registry.New(entity.DefaultTraits)
	reg.CreateEntity()
	reg.CreateEntity()

	c := NewCollector(reg)
	c.collect()

	comp, ok := healthChecker.components["registry"]
	if !ok {
		t.Fatal("collect() did not register a registry health component")
	}
	if !comp.Healthy {
		t.Error("registry component should be healthy when entities are alive")
	}
	if comp.Message != "2 entities alive" {
		t.Errorf("expected message '2 entities alive', got %q", comp.Message)
	}
}

// TestCollectorMarksSchedulerUnhealthyOnOverrunBurst checks the scheduler
// health component turns unhealthy once tick overruns exceed the
// per-interval budget, and recovers once the burst ends.
func TestCollectorMarksSchedulerUnhealthyOnOverrunBurst(t *testing.T) {
	resetHealthChecker()

	reg := registry.New(entity.DefaultTraits)
	c := NewCollector(reg)

	for i := 0; i < overrunBudget; i++ {
		RecordTickOverrun()
	}
	c.collect()
	if comp := healthChecker.components["scheduler"]; !comp.Healthy {
		t.Errorf("scheduler should stay healthy within budget, got unhealthy: %s", comp.Message)
	}

	for i := 0; i < overrunBudget+1; i++ {
		RecordTickOverrun()
	}
	c.collect()
	if comp := healthChecker.components["scheduler"]; comp.Healthy {
		t.Error("scheduler should be unhealthy after an overrun burst exceeding budget")
	}

	c.collect()
	if comp := healthChecker.components["scheduler"]; !comp.Healthy {
		t.Errorf("scheduler should recover once the burst stops, got unhealthy: %s", comp.Message)
	}
}

// TestCollectorMarksSessionUnhealthyOnErrorBurst mirrors the overrun test
// for the session-error counter.
func TestCollectorMarksSessionUnhealthyOnErrorBurst(t *testing.T) {
	resetHealthChecker()

	reg := registry.New(entity.DefaultTraits)
	c := NewCollector(reg)

	for i := 0; i < errorBudget+1; i++ {
		RecordSessionError("test_cause")
	}
	c.collect()

	comp, ok := healthChecker.components["session"]
	if !ok {
		t.Fatal("collect() did not register a session health component")
	}
	if comp.Healthy {
		t.Error("session should be unhealthy after an error burst exceeding budget")
	}
}
