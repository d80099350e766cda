package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/partitiond/internal/core"
	"github.com/marmos91/partitiond/internal/host"
	"github.com/marmos91/partitiond/internal/logger"
	"github.com/marmos91/partitiond/internal/store/memfeed"
	"github.com/marmos91/partitiond/internal/telemetry"
	"github.com/marmos91/partitiond/pkg/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the partitiond host",
	Long: `Run the partitiond host: bootstrap lease state if needed, then
acquire, renew, and supervise partitions until interrupted.

When no embedding application is linked in (the common case for this
binary), run wires a synthetic in-memory feed and a logging Observer so
the host is exercisable standalone; production deployments embed this
package's internal/host.New directly with their own feed client and
Observer instead of going through this command.

Examples:
  # Run with default config location
  partitiond run

  # Run with a custom config file
  partitiond run --config /etc/partitiond/config.yaml`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	feedStore := memfeed.New(memfeed.Config{})
	h, err := host.New(cfg, feedStore, func(partitionID string) core.Observer {
		return host.NewLogObserver(partitionID)
	})
	if err != nil {
		return fmt.Errorf("constructing host: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- h.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("partitiond is running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
		cancel()
		return <-serverDone
	case err := <-serverDone:
		signal.Stop(sigChan)
		return err
	}
}
