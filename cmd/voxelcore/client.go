package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/voxelcore/internal/config"
	"github.com/cuemby/voxelcore/pkg/metrics"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Run a client instance, dialing a server and mirroring its replicated entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		connectAddr, _ := cmd.Flags().GetString("connect")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg.Role = config.RoleClient
		if connectAddr != "" {
			cfg.ConnectTo = connectAddr
		}
		if cfg.ConnectTo == "" {
			return fmt.Errorf("client: --connect is required when the config has no connectTo")
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
	clientCmd.Flags().String("config", "", "Path to an InstanceConfig YAML file")
	clientCmd.Flags().String("connect", "", "Server address to dial (overrides config)")
	clientCmd.Flags().String("metrics-addr", "127.0.0.1:9091", "Address for the Prometheus/health HTTP endpoints")
}
