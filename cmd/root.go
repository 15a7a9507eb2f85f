// Package cmd implements the phyloeval command-line demo.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/phyloeval/phyloeval/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "phyloeval",
	Short: "Demo driver for the phyloeval likelihood kernel library",
}

// Execute runs the root command, exiting the process with status 1 on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML demo-config file overriding flag defaults")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resourcesCmd)
}

func applyDemoConfig() {
	if configPath == "" {
		return
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("loading demo config: %v", err)
	}
	if cfg.EdgeLength != nil {
		edgeLength = *cfg.EdgeLength
	}
	if cfg.State1 != nil {
		state1 = *cfg.State1
	}
	if cfg.State2 != nil {
		state2 = *cfg.State2
	}
	if cfg.Resource != "" {
		resourceName = cfg.Resource
	}
	if cfg.LogLevel != "" {
		logLevel = cfg.LogLevel
	}
}
