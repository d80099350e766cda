package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/partitiond/internal/cli/prompt"
	"github.com/marmos91/partitiond/pkg/config"
)

var (
	initOutput string
	initForce  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a default partitiond configuration file.

By default the file is written to $XDG_CONFIG_HOME/partitiond/config.yaml.
Use --output to choose a different path.

Examples:
  # Write the default config
  partitiond config init

  # Write to a custom path
  partitiond config init --output /etc/partitiond/config.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initOutput, "output", "", "output path (default: resolved XDG config path)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file without prompting")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := initOutput
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		overwrite, err := prompt.ConfirmWithForce(fmt.Sprintf("%s already exists, overwrite?", path), initForce)
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Println("aborted")
			return nil
		}
	}

	cfg, err := config.New(nil)
	if err != nil {
		return fmt.Errorf("building default configuration: %w", err)
	}

	if err := config.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("writing configuration: %w", err)
	}

	fmt.Printf("Configuration file written to: %s\n", path)
	fmt.Println("Edit it to point lease_store_kind/badger/postgres at your infrastructure,")
	fmt.Println("then run: partitiond run --config " + path)
	return nil
}
