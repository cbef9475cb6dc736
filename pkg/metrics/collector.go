package metrics

import (
	"fmt"
	"time"

	"github.com/cuemby/voxelcore/internal/ecs/registry"
)

// overrunBudget and errorBudget bound how many new tick overruns or session
// errors a single collection interval may see before the corresponding
// health component is reported unhealthy. Occasional overruns/errors are
// normal; a burst indicates the scheduler or transport is in real trouble.
const (
	overrunBudget = 3
	errorBudget   = 5
)

// Collector periodically samples a registry's entity and component counts
// into the package's gauges, and derives the registry/scheduler/session
// health components from that same domain state (entity liveness, tick
// overruns, session errors) rather than from a caller-supplied verdict.
type Collector struct {
	reg    *registry.Registry
	stopCh chan struct{}

	lastOverruns int64
	lastErrors   int64
}

// NewCollector creates a new metrics collector for the given registry.
func NewCollector(reg *registry.Registry) *Collector {
	return &Collector{
		reg:    reg,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15s interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	alive := c.reg.AliveCount()
	EntitiesAlive.Set(float64(alive))
	for name, count := range c.reg.ComponentCounts() {
		ComponentsTotal.WithLabelValues(name).Set(float64(count))
	}
	UpdateComponent("registry", true, fmt.Sprintf("%d entities alive", alive))

	overruns := TickOverrunCount()
	delta := overruns - c.lastOverruns
	c.lastOverruns = overruns
	if delta > overrunBudget {
		UpdateComponent("scheduler", false, fmt.Sprintf("%d tick overruns since last check", delta))
	} else {
		UpdateComponent("scheduler", true, "tick timing within budget")
	}

	errs := SessionErrorCount()
	errDelta := errs - c.lastErrors
	c.lastErrors = errs
	if errDelta > errorBudget {
		UpdateComponent("session", false, fmt.Sprintf("%d session errors since last check", errDelta))
	} else {
		UpdateComponent("session", true, "session error rate within budget")
	}
}
