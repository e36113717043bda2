package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/krisalay/optimistic-cache/config"
)

var (
	configPath string
	cfg        config.Config

	rootCmd = &cobra.Command{
		Use:   "optimistic",
		Short: "Walk through and load-test the optimistic mutation cache",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			return err
		},
		SilenceUsage: true,
	}

	demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Run the like, wallet and stale-fetch scenarios against a fake server",
		RunE:  runDemo,
	}

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Measure speculative mutation throughput across goroutines",
		RunE:  runBench,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	benchCmd.Flags().Int("goroutines", 200, "concurrent writers")
	benchCmd.Flags().Int("ops", 5000, "mutations per goroutine")
	benchCmd.Flags().Int("users", 1000, "distinct wallets")
	benchCmd.Flags().Float64("fail-rate", 0.1, "fraction of mutations the fake server rejects")

	rootCmd.AddCommand(demoCmd, benchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
