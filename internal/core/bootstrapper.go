package core

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/partitiond/internal/logger"
	"github.com/marmos91/partitiond/internal/telemetry"
	procerrors "github.com/marmos91/partitiond/pkg/errors"
	"github.com/marmos91/partitiond/pkg/lease"
	"github.com/marmos91/partitiond/pkg/metrics/prometheus"
)

// BootstrapperConfig carries the one-time-init knobs.
type BootstrapperConfig struct {
	LockTTL    time.Duration
	SleepTime  time.Duration
	Prefix     string
	ResourceID string
}

// Bootstrapper ensures the initial set of leases exists exactly once
// across the fleet (C8).
type Bootstrapper struct {
	bootstrap    lease.Bootstrap
	synchronizer *Synchronizer
	cfg          BootstrapperConfig
	metrics      *prometheus.PartitionMetrics
}

// NewBootstrapper constructs a Bootstrapper.
func NewBootstrapper(bootstrap lease.Bootstrap, synchronizer *Synchronizer, cfg BootstrapperConfig) *Bootstrapper {
	return &Bootstrapper{bootstrap: bootstrap, synchronizer: synchronizer, cfg: cfg}
}

// SetMetrics attaches the Prometheus recorder used for bootstrap duration.
// Nil-safe.
func (b *Bootstrapper) SetMetrics(metrics *prometheus.PartitionMetrics) {
	b.metrics = metrics
}

// Run executes the bootstrap protocol, blocking until bootstrap is
// complete (either performed by this call or observed already done by
// another host). It returns promptly if ctx is cancelled while waiting
// for a concurrent bootstrapper elsewhere.
func (b *Bootstrapper) Run(ctx context.Context) error {
	ctx, span := telemetry.StartBootstrapSpan(ctx, b.cfg.Prefix)
	defer span.End()

	start := time.Now()
	for {
		initialized, err := b.bootstrap.IsInitialized(ctx)
		if err != nil {
			telemetry.RecordError(ctx, err)
			return err
		}
		if initialized {
			if err := b.checkPrefixCollision(ctx); err != nil {
				telemetry.RecordError(ctx, err)
				return err
			}
			b.metrics.RecordBootstrapDuration(time.Since(start).Seconds())
			logger.InfoCtx(ctx, "bootstrap already complete", logger.DurationMs(logger.Duration(start)))
			return nil
		}

		acquired, err := b.bootstrap.AcquireInitLock(ctx, b.cfg.LockTTL)
		if err != nil {
			telemetry.RecordError(ctx, err)
			return err
		}
		if !acquired {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.cfg.SleepTime):
			}
			continue
		}

		if err := b.doBootstrap(ctx); err != nil {
			telemetry.RecordError(ctx, err)
			return err
		}
		b.metrics.RecordBootstrapDuration(time.Since(start).Seconds())
		logger.InfoCtx(ctx, "bootstrap completed", logger.DurationMs(logger.Duration(start)))
		return nil
	}
}

func (b *Bootstrapper) doBootstrap(ctx context.Context) error {
	defer func() {
		if err := b.bootstrap.ReleaseInitLock(ctx); err != nil {
			logger.WarnCtx(ctx, "failed to release init lock", logger.Err(err))
		}
	}()

	if err := b.synchronizer.CreateMissingLeases(ctx); err != nil {
		return err
	}
	props := map[string]string{
		"lease_prefix": b.cfg.Prefix,
		"resource_id":  b.cfg.ResourceID,
	}
	return b.bootstrap.MarkInitialized(ctx, props)
}

// checkPrefixCollision is advisory, not authoritative: the lease store
// offers no cross-environment locking primitive beyond the init-lock's own
// TTL window. A mismatched resource id behind the same prefix is surfaced
// loudly as a configuration error rather than silently interleaving leases
// from two unrelated monitored stores.
func (b *Bootstrapper) checkPrefixCollision(ctx context.Context) error {
	props, err := b.bootstrap.MarkerProperties(ctx)
	if err != nil {
		return err
	}
	if props == nil {
		return nil
	}
	recordedResourceID, ok := props["resource_id"]
	if !ok || recordedResourceID == "" {
		return nil
	}
	if recordedResourceID != b.cfg.ResourceID {
		return procerrors.NewInvalidConfigurationError(fmt.Sprintf(
			"lease prefix %q was previously bootstrapped against resource %q, but this host resolves it to %q",
			b.cfg.Prefix, recordedResourceID, b.cfg.ResourceID))
	}
	return nil
}
