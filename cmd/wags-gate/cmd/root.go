// Package cmd provides the CLI commands for wags-gate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chughtapan/wags-gate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "wags-gate",
	Short: "wags-gate - MCP policy gateway",
	Long: `wags-gate is a policy gateway for Model Context Protocol (MCP) servers.

It wraps an MCP server subprocess and intercepts every tool listing and
tool call to enforce roots-based access control, gather missing parameters
through elicitation, and progressively disclose tools via enable_tools /
disable_tools groups -- without requiring changes to the wrapped server.

Quick start:
  1. Create a config file: wags-gate.yaml
  2. Run: wags-gate start

Configuration:
  Config is loaded from wags-gate.yaml in the current directory,
  $HOME/.wags-gate/, or /etc/wags-gate/.

  Environment variables can override config values with the WAGS_GATE_ prefix.
  Example: WAGS_GATE_SERVER_LOG_LEVEL=debug

Commands:
  start       Start the gateway
  check       Validate the configuration and policy without starting
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./wags-gate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
