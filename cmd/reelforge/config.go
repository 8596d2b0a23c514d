package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reelforge/reelforge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		fmt.Printf("config ok\n")
		fmt.Printf("  server:  %s\n", cfg.Server.ListenAddr)
		fmt.Printf("  database: %s\n", cfg.Database.Path)
		fmt.Printf("  scripts:  %s\n", cfg.Scripts.Path)
		fmt.Printf("  studio:   %s\n", cfg.Studio.BaseURL)
		fmt.Printf("  worker:   enabled=%v interval=%s batch=%d\n",
			cfg.Worker.Enabled, cfg.Worker.PollInterval, cfg.Worker.BatchSize)
		fmt.Printf("  metrics:  enabled=%v addr=%s\n", cfg.Metrics.Enabled, cfg.Metrics.ListenAddr)
		return nil
	},
}
