package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/partitiond/internal/httpapi"
	"github.com/marmos91/partitiond/pkg/config"
)

var statusPort int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running partitiond instance",
	Long: `Query a running partitiond instance's /healthz endpoint and print a
plain, scriptable summary of its bootstrap and ownership state.

Examples:
  # Check the instance on the port from the resolved config file
  partitiond status

  # Check a specific port directly
  partitiond status --port 9090`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusPort, "port", 0, "metrics/health port to query (default: resolved from config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	port := statusPort
	if port == 0 {
		cfg, err := config.Load(GetConfigFile())
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		port = cfg.Metrics.Port
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/healthz", port))
	if err != nil {
		fmt.Println("status: unreachable")
		fmt.Printf("  %v\n", err)
		return nil
	}
	defer resp.Body.Close()

	var status httpapi.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}

	if status.Initialized {
		fmt.Println("status: healthy")
	} else {
		fmt.Println("status: not yet initialized")
	}
	fmt.Printf("  owned partitions: %d\n", status.PartitionCount)

	return nil
}
