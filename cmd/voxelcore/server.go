package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/voxelcore/internal/config"
	"github.com/cuemby/voxelcore/pkg/metrics"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run a server instance accepting replicated client connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		listenAddr, _ := cmd.Flags().GetString("listen")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg.Role = config.RoleServer
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		if cfg.ListenAddr == "" {
			return fmt.Errorf("server: --listen is required when the config has no listenAddr")
		}

		inst := newInstance(cfg)
		collector := metrics.NewCollector(inst.Registry)
		collector.Start()

		serveMetrics(metricsAddr)

		if err := dialOrServe(inst, cfg); err != nil {
			return err
		}

		return runTickLoop(inst, cfg, collector)
	},
}

func init() {
	serverCmd.Flags().String("config", "", "Path to an InstanceConfig YAML file")
	serverCmd.Flags().String("listen", "", "Address to accept client connections on (overrides config)")
	serverCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus/health HTTP endpoints")
}
