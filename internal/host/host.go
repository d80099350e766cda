// Package host wires every partition-management component into a single
// runnable process: the lease store adapter selected by configuration, the
// lease manager, synchronizer, health monitor, (health-monitored)
// controller, load balancer, bootstrapper, and the optional metrics HTTP
// surface and S3 snapshot exporter. Host.Run starts every managed
// component and blocks until the context is cancelled or a supervised
// partition exits Fatal, then shuts everything down gracefully.
package host

import (
	"context"
	"fmt"

	prometheusclient "github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/partitiond/internal/core"
	"github.com/marmos91/partitiond/internal/httpapi"
	"github.com/marmos91/partitiond/internal/logger"
	"github.com/marmos91/partitiond/internal/store/badgerlease"
	"github.com/marmos91/partitiond/internal/store/pgxlease"
	"github.com/marmos91/partitiond/internal/store/snapshot"
	"github.com/marmos91/partitiond/pkg/config"
	"github.com/marmos91/partitiond/pkg/feed"
	"github.com/marmos91/partitiond/pkg/lease"
	"github.com/marmos91/partitiond/pkg/metrics/prometheus"
)

// storeClient is the intersection of lease.StoreClient and lease.Bootstrap
// that every concrete adapter satisfies. Closing the adapter goes through
// Host.closeStore, not through this interface.
type storeClient interface {
	lease.StoreClient
	lease.Bootstrap
}

// Host owns the lifetime of every managed component for one process.
type Host struct {
	cfg             *config.Config
	feed            feed.StoreClient
	observerFactory func(partitionID string) core.Observer

	leaseStore storeClient
	closeStore func()

	manager      *lease.Manager
	synchronizer *core.Synchronizer
	health       *core.HealthMonitor
	controller   *core.HealthMonitoredController
	balancer     *core.Balancer
	bootstrapper *core.Bootstrapper
	exporter     *snapshot.Exporter
	metrics      *prometheus.PartitionMetrics
	httpSrv      *httpapi.Server

	// fatalCh receives the first Fatal disposition reported by any
	// supervised partition's processor. A send on it aborts Run.
	fatalCh chan error
}

// New wires every component from cfg. feedClient is the caller-supplied
// change-feed client; observerFactory builds the per-partition Observer
// (the embedding application's business logic).
func New(cfg *config.Config, feedClient feed.StoreClient, observerFactory func(partitionID string) core.Observer) (*Host, error) {
	h := &Host{cfg: cfg, feed: feedClient, observerFactory: observerFactory, fatalCh: make(chan error, 1)}

	if err := h.openLeaseStore(); err != nil {
		return nil, err
	}

	h.manager = lease.NewManager(h.leaseStore, cfg.Lease.Prefix, cfg.Host.ID, cfg.Lease.ExpirationInterval)
	h.synchronizer = core.NewSynchronizer(h.feed, h.manager, cfg.Lease.DegreeOfParallelism, cfg.Lease.QueryPartitionsMaxBatchSize)
	h.health = core.NewHealthMonitor(cfg.Health.DedupeWindow, cfg.Lease.MaxObserverFailures)

	innerController := core.NewController(h.manager, h.supervisorFactory)
	h.controller = core.NewHealthMonitoredController(innerController, h.health)

	h.balancer = core.NewBalancer(h.manager, h.controller, cfg.Host.ID, core.BalancerConfig{
		AcquireInterval:   cfg.Lease.AcquireInterval,
		MinPartitionCount: cfg.Lease.MinPartitionCount,
		MaxPartitionCount: cfg.Lease.MaxPartitionCount,
	}, cfg.Lease.ExpirationInterval)

	h.bootstrapper = core.NewBootstrapper(h.leaseStore, h.synchronizer, core.BootstrapperConfig{
		LockTTL:    cfg.Lease.InitLockTTL,
		SleepTime:  cfg.Lease.InitLockSleep,
		Prefix:     cfg.Lease.Prefix,
		ResourceID: cfg.Feed.ResourceID,
	})

	if cfg.Metrics.Enabled {
		registry := prometheusclient.NewRegistry()
		prometheus.Enable(registry)
		h.metrics = prometheus.NewPartitionMetrics()
		h.httpSrv = httpapi.New(cfg.Metrics.Port, registry, h.healthStatus)
	} else {
		h.metrics = prometheus.NewPartitionMetrics()
	}
	h.manager.SetMetrics(h.metrics)
	h.balancer.SetMetrics(h.metrics)
	h.bootstrapper.SetMetrics(h.metrics)
	h.health.SetMetrics(h.metrics)

	if cfg.Snapshot.Enabled {
		exporter, err := snapshot.New(context.Background(), snapshot.Config{
			Bucket:    cfg.Snapshot.Bucket,
			KeyPrefix: cfg.Snapshot.Prefix,
			Interval:  cfg.Snapshot.Interval,
		}, func(ctx context.Context) ([]*lease.Lease, error) {
			return h.manager.ListAll(ctx)
		})
		if err != nil {
			h.closeStore()
			return nil, fmt.Errorf("creating snapshot exporter: %w", err)
		}
		h.exporter = exporter
	}

	return h, nil
}

func (h *Host) openLeaseStore() error {
	switch h.cfg.LeaseStoreKind {
	case "badger":
		store, err := badgerlease.Open(h.cfg.Badger.Path)
		if err != nil {
			return fmt.Errorf("opening badger lease store: %w", err)
		}
		h.leaseStore = store
		h.closeStore = func() { store.Close() }
	case "postgres":
		store, err := pgxlease.Open(context.Background(), pgxlease.Config{
			DSN:         h.cfg.Postgres.DSN,
			AutoMigrate: true,
		})
		if err != nil {
			return fmt.Errorf("opening postgres lease store: %w", err)
		}
		h.leaseStore = store
		h.closeStore = store.Close
	default:
		return fmt.Errorf("unknown lease_store_kind %q", h.cfg.LeaseStoreKind)
	}
	return nil
}

// healthStatus reports the /healthz snapshot: whether the lease store has
// completed bootstrap and how many partitions this host currently owns.
func (h *Host) healthStatus() httpapi.HealthStatus {
	initialized, err := h.leaseStore.IsInitialized(context.Background())
	if err != nil {
		return httpapi.HealthStatus{}
	}
	return httpapi.HealthStatus{
		Initialized:    initialized,
		PartitionCount: h.controller.Count(),
	}
}

func (h *Host) supervisorFactory(l *lease.Lease) *core.Supervisor {
	observer := h.observerFactory(l.PartitionID)
	processor := core.NewProcessor(h.feed, h.manager, observer, core.ProcessorConfig{
		PollDelay:           h.cfg.Feed.PollDelay,
		MaxItemCount:        h.cfg.Feed.MaxItemCount,
		CheckpointFrequency: h.cfg.Lease.CheckpointFrequency.Policy,
		MaxBackoff:          h.cfg.Feed.MaxBackoff,
	})
	processor.SetMetrics(h.metrics)
	return core.NewSupervisor(h.manager, h.synchronizer, processor, h.health, core.SupervisorConfig{
		RenewInterval:         h.cfg.Lease.RenewInterval,
		UnhealthinessDuration: h.cfg.Lease.UnhealthinessDuration,
	}, l, h.fatalCh)
}

// Run executes the bootstrap protocol, starts the balancer (and snapshot
// exporter, if configured), and blocks until ctx is cancelled or a
// supervised partition's processor exits Fatal, then tears everything down
// within cfg.ShutdownTimeout. On a Fatal abort, Run cancels its own
// (derived) context, so the balancer, bootstrapper, exporter and every
// remaining supervisor observe cancellation, and returns the error that
// caused the abort instead of nil.
func (h *Host) Run(ctx context.Context) error {
	logger.Info("starting partitiond host", "host_id", h.cfg.Host.ID, "lease_store_kind", h.cfg.LeaseStoreKind)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := h.bootstrapper.Run(runCtx); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	h.balancer.Start(runCtx)
	if h.exporter != nil {
		h.exporter.Start(runCtx)
	}
	if h.httpSrv != nil {
		go func() {
			if err := h.httpSrv.Start(runCtx); err != nil {
				logger.Warn("metrics/health http server stopped", "error", err)
			}
		}()
	}

	var fatalErr error
	select {
	case <-runCtx.Done():
		logger.Info("shutdown signal received, stopping host", "reason", runCtx.Err())
	case fatalErr = <-h.fatalCh:
		logger.Error("partition processor exited fatally, aborting host", "error", fatalErr)
		cancel()
	}

	h.shutdown()
	return fatalErr
}

func (h *Host) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.cfg.ShutdownTimeout)
	defer cancel()

	if h.httpSrv != nil {
		if err := h.httpSrv.Stop(shutdownCtx); err != nil {
			logger.Warn("metrics/health http server shutdown error", "error", err)
		}
	}
	if h.exporter != nil {
		h.exporter.Stop()
	}
	h.balancer.Stop()

	done := make(chan struct{})
	go func() {
		h.controller.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("controller shutdown timed out", "timeout", h.cfg.ShutdownTimeout)
	}

	if h.closeStore != nil {
		h.closeStore()
	}
	logger.Info("partitiond host stopped")
}
