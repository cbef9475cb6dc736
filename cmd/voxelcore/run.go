package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/voxelcore/internal/config"
	"github.com/cuemby/voxelcore/internal/corelog"
	"github.com/cuemby/voxelcore/internal/ecs/entity"
	"github.com/cuemby/voxelcore/internal/ecs/registry"
	"github.com/cuemby/voxelcore/internal/instance"
	"github.com/cuemby/voxelcore/internal/scheduler"
	"github.com/cuemby/voxelcore/pkg/metrics"
)

// loadConfig reads the config file at path, falling back to baseline
// defaults for an empty path so `voxelcore local-demo` works with zero setup.
func loadConfig(path string) (config.InstanceConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newInstance builds a fresh Instance from cfg: a registry, a scheduler
// sized to cfg.Workers, and the role the instance runs under.
func newInstance(cfg config.InstanceConfig) *instance.Instance {
	reg := registry.New(entity.DefaultTraits)
	sched := scheduler.New(cfg.Workers, nil)
	return instance.New(instance.Role(cfg.Role), reg, sched, cfg.Session.MessageSizeLimit)
}

// serveMetrics starts the Prometheus/health HTTP endpoints in the
// background. The registry/scheduler/session health components are kept
// current by the Collector, not registered here; this only needs to exist
// once the collector has run its first collection pass.
func serveMetrics(addr string) {
	metrics.SetVersion("dev")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			corelog.Logger.Error().Err(err).Str("addr", addr).Msg("metrics server exited")
		}
	}()
	corelog.Logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
}

// runTickLoop drives inst.Update at cfg.TickTiming.DefaultDt until the
// process receives an interrupt or stop signal, then tears the instance
// down cleanly.
func runTickLoop(inst *instance.Instance, cfg config.InstanceConfig, collector *metrics.Collector) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.TickTiming.DefaultDt)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-sigCh:
			corelog.Logger.Info().Msg("shutting down")
			if collector != nil {
				collector.Stop()
			}
			inst.Close()
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if err := inst.Update(dt); err != nil {
				return fmt.Errorf("tick failed: %w", err)
			}
		}
	}
}

func dialOrServe(inst *instance.Instance, cfg config.InstanceConfig) error {
	switch instance.Role(cfg.Role) {
	case instance.RoleServer:
		ln, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
		}
		corelog.Logger.Info().Str("addr", cfg.ListenAddr).Msg("accepting connections")
		go func() {
			if err := inst.Serve(ln); err != nil {
				corelog.Logger.Error().Err(err).Msg("serve exited")
			}
		}()
	case instance.RoleClient:
		if err := inst.Dial(cfg.ConnectTo); err != nil {
			return fmt.Errorf("dial %s: %w", cfg.ConnectTo, err)
		}
		corelog.Logger.Info().Str("addr", cfg.ConnectTo).Msg("connected")
	}
	return nil
}
