package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chughtapan/wags-gate/internal/config"
	"github.com/chughtapan/wags-gate/internal/service"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and policy without starting",
	Long: `Load the configuration, validate it, and build the handler registry
and group hierarchy. Exits non-zero on the first problem found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}

		registry, err := service.BuildRegistry(cfg)
		if err != nil {
			return fmt.Errorf("policy handlers: %w", err)
		}

		if configFile := config.ConfigFileUsed(); configFile != "" {
			fmt.Printf("config:   %s\n", configFile)
		}
		fmt.Printf("upstream: %s\n", cfg.Upstream.Command)
		fmt.Printf("handlers: %d\n", len(registry.Specs()))
		fmt.Printf("groups:   %d\n", len(cfg.Policy.Groups))
		fmt.Println("OK")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
