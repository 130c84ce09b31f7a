package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configFile string
	storeURL   string
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Quarry document store tooling",
	Long:  `Quarry manages document collections queried through a typed condition and modification algebra.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&storeURL, "store-url", "", "store connection URL (memory://, sqlite://path or postgres://...)")
}

func Execute() error {
	return rootCmd.Execute()
}
