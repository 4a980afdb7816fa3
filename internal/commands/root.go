// Package commands wires the logwell CLI: the server, the backfill job and
// the traffic seeder.
package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "logwell",
	Short: "Logwell log ingestion and incident grouping service",
	Long: `logwell ingests structured application logs, fingerprints error
records into incidents and serves the incident API.

Configuration comes from a YAML file (--config) with LOGWELL_* environment
variables taking precedence.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
}
