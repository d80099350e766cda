package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/partitiond/internal/cli/output"
	procerrors "github.com/marmos91/partitiond/pkg/errors"

	"github.com/marmos91/partitiond/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a partitiond configuration file without starting
the host. Prints a field/reason table and exits non-zero on failure.

Examples:
  # Validate the default config
  partitiond config validate

  # Validate a specific file
  partitiond config validate --config /etc/partitiond/config.yaml`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	_, err := config.Load(configPath)
	if err != nil {
		if procerrors.Code(err) == procerrors.CodeInvalidConfiguration {
			fmt.Printf("Configuration file: %s\n", displayPath)
			fmt.Println("Validation: FAILED")
			fmt.Println()
			printFieldTable(err.Error())
			os.Exit(1)
		}
		return err
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")
	return nil
}

const fieldListMarker = "missing or invalid fields: "

// printFieldTable renders the "field (tag), field (tag), ..." suffix of an
// InvalidConfiguration message as a two-column field/reason table.
func printFieldTable(message string) {
	idx := strings.Index(message, fieldListMarker)
	if idx < 0 {
		fmt.Println(message)
		return
	}

	table := output.NewTableData("FIELD", "REASON")
	for _, entry := range strings.Split(message[idx+len(fieldListMarker):], ", ") {
		entry = strings.TrimSpace(entry)
		open := strings.LastIndex(entry, " (")
		if open < 0 || !strings.HasSuffix(entry, ")") {
			table.AddRow(entry, "")
			continue
		}
		field := entry[:open]
		reason := strings.TrimSuffix(entry[open+2:], ")")
		table.AddRow(field, reason)
	}
	_ = output.PrintTable(os.Stdout, table)
}
