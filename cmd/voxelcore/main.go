// Command voxelcore runs one instance of the engine core: a server
// accepting replicated connections, a client dialing one, or (local-demo)
// a unified instance with no network connections that ticks its own
// registry and scheduler in a single process.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/voxelcore/internal/corelog"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "voxelcore",
	Short: "voxelcore runs the ECS registry, scheduler and replication instance",
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(localDemoCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	corelog.Init(corelog.Config{
		Level:      corelog.Level(logLevel),
		JSONOutput: logJSON,
	})
}
