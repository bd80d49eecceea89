// Command reldb drives the buffer pool (bench) and the lock manager
// (lock-demo) in this module for benchmarking and demonstration, the same
// role cmd/maho.go plays for leftmike-maho.v1's engine: a cobra root
// command that loads an HCL config file and sets up logging before
// handing off to a subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relcore-dev/reldb/internal/config"
	"github.com/relcore-dev/reldb/internal/logging"
)

var (
	rootCmd = &cobra.Command{
		Use:               "reldb",
		Short:             "A storage and concurrency core for an educational relational engine",
		Long:              "reldb exercises the buffer pool and lock manager this module implements.",
		PersistentPreRunE: rootPreRun,
	}

	configFile string
	cfg        config.Engine
)

func init() {
	fs := rootCmd.PersistentFlags()
	fs.StringVar(&configFile, "config-file", "", "`file` to load engine config from (see reldb.hcl)")
}

func rootPreRun(cmd *cobra.Command, args []string) error {
	cfg = config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("reldb: %w", err)
		}
		cfg = loaded
	}

	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("reldb: %w", err)
	}
	logging.For("cmd").WithField("pool_size", cfg.PoolSize).
		WithField("num_instances", cfg.NumInstances).Info("reldb starting")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
