package core

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/partitiond/internal/logger"
	"github.com/marmos91/partitiond/internal/telemetry"
	procerrors "github.com/marmos91/partitiond/pkg/errors"
	"github.com/marmos91/partitiond/pkg/lease"
)

// SupervisorConfig carries the renewal-side knobs.
type SupervisorConfig struct {
	RenewInterval         time.Duration
	UnhealthinessDuration time.Duration
}

// Supervisor couples lease renewal with the partition processor for one
// owned lease (C5). Exactly one Supervisor runs per owned lease at a
// time; the Controller enforces that invariant.
type Supervisor struct {
	manager      *lease.Manager
	synchronizer *Synchronizer
	processor    *Processor
	health       HealthReporter
	cfg          SupervisorConfig

	fatal chan<- error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	lease  *lease.Lease
}

// HealthReporter receives classified failure records off the data path
// (the health monitor's ingestion interface) and tracks consecutive
// observer failures per partition for escalation.
type HealthReporter interface {
	Report(severity Severity, operation, partitionID string, err error)
	RecordObserverOutcome(partitionID string, failed bool) bool
}

// NewSupervisor constructs a Supervisor for l, not yet started. fatal is an
// optional write-only channel the supervisor sends on when the processor
// exits with a Fatal disposition; a nil channel disables fatal propagation.
func NewSupervisor(manager *lease.Manager, synchronizer *Synchronizer, processor *Processor, health HealthReporter, cfg SupervisorConfig, l *lease.Lease, fatal chan<- error) *Supervisor {
	return &Supervisor{
		manager:      manager,
		synchronizer: synchronizer,
		processor:    processor,
		health:       health,
		cfg:          cfg,
		lease:        l,
		fatal:        fatal,
	}
}

// PartitionID returns the supervised partition's id.
func (s *Supervisor) PartitionID() string {
	return s.lease.PartitionID
}

// Start launches the renewer and processor tasks and returns immediately.
// The caller must eventually call Stop (directly, or by cancelling the
// context it derives parent from) and should not assume supervision has
// ended until Done() is closed.
func (s *Supervisor) Start(parent context.Context) {
	s.mu.Lock()
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop requests cancellation and blocks until the supervisor has fully
// exited (bounded by 2*RenewInterval per the cancellation contract).
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done returns a channel closed once supervision has fully exited.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)

	ctx, span := telemetry.StartSupervisorSpan(ctx, s.lease.PartitionID)
	defer span.End()

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()

	processorErrCh := make(chan error, 1)
	go func() {
		processorErrCh <- s.processor.Run(processorCtx, s.lease)
	}()

	renewErrCh := make(chan error, 1)
	renewerCtx, renewerCancel := context.WithCancel(ctx)
	defer renewerCancel()
	go func() {
		renewErrCh <- s.runRenewer(renewerCtx)
	}()

	var processorErr error
	select {
	case processorErr = <-processorErrCh:
		renewerCancel()
		<-renewErrCh
	case renewErr := <-renewErrCh:
		processorCancel()
		processorErr = <-processorErrCh
		if procerrors.Code(renewErr) == procerrors.CodeLeaseLost {
			processorErr = procerrors.NewLeaseLostError(s.lease.PartitionID, "renewer lost the lease")
		}
	}

	s.finish(ctx, processorErr)
}

func (s *Supervisor) runRenewer(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.RenewInterval)
	defer ticker.Stop()

	var unhealthySince time.Time
	for {
		select {
		case <-ctx.Done():
			return procerrors.NewCancelledError(s.lease.PartitionID)
		case <-ticker.C:
			updated, err := s.manager.Renew(ctx, s.lease)
			if err != nil {
				if procerrors.Code(err) == procerrors.CodeLeaseLost {
					return err
				}
				if unhealthySince.IsZero() {
					unhealthySince = time.Now()
				}
				if time.Since(unhealthySince) >= s.cfg.UnhealthinessDuration {
					s.health.Report(SeverityError, "renew", s.lease.PartitionID, err)
					return procerrors.NewLeaseLostError(s.lease.PartitionID, "renew failing past unhealthiness threshold")
				}
				continue
			}
			unhealthySince = time.Time{}
			s.lease = updated
		}
	}
}

// finish translates the processor's terminal error into a close reason and
// performs the corresponding lease disposition.
func (s *Supervisor) finish(ctx context.Context, processorErr error) {
	partitionID := s.lease.PartitionID
	code := procerrors.Code(processorErr)

	var reason CloseReason
	switch code {
	case procerrors.CodeSplit:
		reason = CloseSplit
		s.health.RecordObserverOutcome(partitionID, false)
		children, err := s.synchronizer.SplitParent(ctx, s.lease)
		if err != nil {
			s.health.Report(SeverityError, "split", partitionID, err)
		} else {
			logger.InfoCtx(ctx, "split materialized children", logger.PartitionID(partitionID), logger.LeaseCount(len(children)))
		}
		if err := s.manager.Delete(ctx, s.lease); err != nil {
			s.health.Report(SeverityWarning, "delete-parent-after-split", partitionID, err)
		}
	case procerrors.CodeLeaseLost:
		reason = CloseLeaseLost
		s.health.RecordObserverOutcome(partitionID, false)
		// Do not release: the owner is someone else now.
	case procerrors.CodeObserverFailed:
		reason = CloseObserverFailed
		if s.health.RecordObserverOutcome(partitionID, true) {
			s.health.Report(SeverityFatal, "observer-failure-threshold-exceeded", partitionID, processorErr)
		}
		if _, err := s.manager.Release(ctx, s.lease); err != nil {
			s.health.Report(SeverityWarning, "release-after-observer-failure", partitionID, err)
		}
	case procerrors.CodeFatal:
		reason = CloseFatal
		s.health.RecordObserverOutcome(partitionID, false)
		s.health.Report(SeverityFatal, "processor-fatal", partitionID, processorErr)
		if _, err := s.manager.Release(ctx, s.lease); err != nil {
			s.health.Report(SeverityWarning, "release-after-fatal", partitionID, err)
		}
		s.reportFatal(processorErr)
	default:
		reason = CloseShutdown
		s.health.RecordObserverOutcome(partitionID, false)
		if _, err := s.manager.Release(ctx, s.lease); err != nil {
			s.health.Report(SeverityWarning, "release-on-shutdown", partitionID, err)
		}
	}

	closeCtx := context.Background()
	if err := s.processorObserverClose(closeCtx, partitionID, reason); err != nil {
		s.health.Report(SeverityWarning, "observer-close", partitionID, err)
	}
}

// reportFatal forwards a Fatal processor exit to the host so it can abort
// the process instead of silently releasing the lease and moving on. The
// send is non-blocking: only the first fatal error matters, since the host
// aborts on the first one it observes.
func (s *Supervisor) reportFatal(err error) {
	if s.fatal == nil {
		return
	}
	select {
	case s.fatal <- err:
	default:
	}
}

func (s *Supervisor) processorObserverClose(ctx context.Context, partitionID string, reason CloseReason) error {
	return s.processor.observer.Close(ctx, partitionID, reason)
}
