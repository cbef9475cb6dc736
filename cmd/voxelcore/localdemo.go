package main

import (
	"github.com/spf13/cobra"

	"github.com/cuemby/voxelcore/internal/config"
	"github.com/cuemby/voxelcore/internal/corelog"
	"github.com/cuemby/voxelcore/pkg/metrics"
)

// localDemoCmd runs a single unified instance with no network connections:
// just the registry and scheduler ticking, for exercising a system set
// locally without standing up a server/client pair.
var localDemoCmd = &cobra.Command{
	Use:   "local-demo",
	Short: "Run a single unified instance with no networking, ticking its scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		cfg.Role = config.RoleUnified

		inst := newInstance(cfg)
		collector := metrics.NewCollector(inst.Registry)
		collector.Start()

		serveMetrics(metricsAddr)

		corelog.Logger.Info().Msg("local demo instance running, press Ctrl+C to stop")
		return runTickLoop(inst, cfg, collector)
	},
}

func init() {
	localDemoCmd.Flags().String("config", "", "Path to an InstanceConfig YAML file")
	localDemoCmd.Flags().String("metrics-addr", "127.0.0.1:9092", "Address for the Prometheus/health HTTP endpoints")
}
