// Package config implements partitiond's "config" subcommand group.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand group.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage partitiond configuration files.

Subcommands:
  validate  Validate a configuration file
  init      Write a default configuration file`,
}

func init() {
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(initCmd)
}
