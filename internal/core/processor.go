package core

import (
	"context"
	"math/rand"
	"time"

	"github.com/marmos91/partitiond/internal/logger"
	"github.com/marmos91/partitiond/internal/telemetry"
	procerrors "github.com/marmos91/partitiond/pkg/errors"
	"github.com/marmos91/partitiond/pkg/feed"
	"github.com/marmos91/partitiond/pkg/lease"
	"github.com/marmos91/partitiond/pkg/metrics/prometheus"
)

// ProcessorConfig carries the feed-side knobs from Config.FeedConfig plus
// the checkpoint policy from Config.LeaseConfig.
type ProcessorConfig struct {
	PollDelay           time.Duration
	MaxItemCount        int
	CheckpointFrequency lease.CheckpointPolicy
	MaxBackoff          time.Duration
}

// Processor is the partition processor (C4): the per-partition read loop
// that pulls change batches, invokes the observer, and advances the
// checkpoint.
type Processor struct {
	feedClient feed.StoreClient
	manager    *lease.Manager
	observer   Observer
	cfg        ProcessorConfig
	metrics    *prometheus.PartitionMetrics
}

// NewProcessor constructs a Processor.
func NewProcessor(feedClient feed.StoreClient, manager *lease.Manager, observer Observer, cfg ProcessorConfig) *Processor {
	return &Processor{feedClient: feedClient, manager: manager, observer: observer, cfg: cfg}
}

// SetMetrics attaches the Prometheus recorder used for processed-record
// counts and checkpoint lag. Nil-safe.
func (p *Processor) SetMetrics(metrics *prometheus.PartitionMetrics) {
	p.metrics = metrics
}

// Run executes the Reading -> Dispatching -> Checkpointing loop for l
// until ctx is cancelled or a terminal condition is reached. The returned
// error is always a *errors.ProcessorError whose Code identifies which
// exit branch fired (CodeSplit, CodeLeaseLost, CodeObserverFailed,
// CodeFatal, or CodeCancelled).
func (p *Processor) Run(ctx context.Context, l *lease.Lease) error {
	current := l.Clone()

	if err := p.observer.Open(ctx, current.PartitionID); err != nil {
		return procerrors.New(procerrors.CodeObserverFailed, current.PartitionID, "observer.Open failed", err)
	}

	batchesSinceCheckpoint := 0
	lastCheckpoint := time.Now()
	backoff := time.Millisecond * 100

	for {
		select {
		case <-ctx.Done():
			return procerrors.NewCancelledError(current.PartitionID)
		default:
		}

		readCtx, readSpan := telemetry.StartPartitionSpan(ctx, "read", current.PartitionID,
			telemetry.ContinuationToken(current.ContinuationToken))
		batch, err := p.feedClient.ReadChanges(readCtx, current.PartitionID, current.ContinuationToken, p.cfg.MaxItemCount)
		if err != nil {
			telemetry.RecordError(readCtx, err)
			readSpan.End()
			return procerrors.New(procerrors.CodeFatal, current.PartitionID, "feed read failed", err)
		}
		readSpan.SetAttributes(telemetry.RecordCount(len(batch.Records)), telemetry.Signal(batch.Signal.String()))
		readSpan.End()

		switch batch.Signal {
		case feed.SignalPartitionGone:
			return procerrors.NewSplitError(current.PartitionID)
		case feed.SignalThrottled:
			if !sleepOrDone(ctx, batch.RetryAfter) {
				return procerrors.NewCancelledError(current.PartitionID)
			}
			continue
		case feed.SignalNotModified:
			if !sleepOrDone(ctx, p.cfg.PollDelay) {
				return procerrors.NewCancelledError(current.PartitionID)
			}
			continue
		case feed.SignalFatal:
			return procerrors.New(procerrors.CodeFatal, current.PartitionID, "feed signalled fatal", nil)
		case feed.SignalOk:
			// fall through to dispatch below
		default:
			// Unrecognized transient signal: exponential back-off, continue.
			if !sleepOrDone(ctx, jitter(backoff)) {
				return procerrors.NewCancelledError(current.PartitionID)
			}
			backoff = nextBackoff(backoff, p.cfg.MaxBackoff)
			continue
		}

		if len(batch.Records) == 0 {
			if !sleepOrDone(ctx, p.cfg.PollDelay) {
				return procerrors.NewCancelledError(current.PartitionID)
			}
			continue
		}
		backoff = time.Millisecond * 100

		if err := p.observer.ProcessChanges(ctx, current.PartitionID, batch); err != nil {
			return procerrors.New(procerrors.CodeObserverFailed, current.PartitionID, "observer.ProcessChanges failed", err)
		}
		p.metrics.RecordProcessedRecords(len(batch.Records))

		current.ContinuationToken = batch.NextToken
		batchesSinceCheckpoint++

		if p.cfg.CheckpointFrequency.ShouldCheckpoint(batchesSinceCheckpoint, time.Since(lastCheckpoint)) {
			lag := time.Since(lastCheckpoint)
			checkpointCtx, checkpointSpan := telemetry.StartPartitionSpan(ctx, "checkpoint", current.PartitionID,
				telemetry.ContinuationToken(current.ContinuationToken))
			updated, err := p.manager.Checkpoint(checkpointCtx, current, current.ContinuationToken)
			if err != nil {
				telemetry.RecordError(checkpointCtx, err)
				checkpointSpan.End()
				if procerrors.Code(err) == procerrors.CodeLeaseLost {
					return procerrors.NewLeaseLostError(current.PartitionID, "checkpoint failed: lease lost")
				}
				return procerrors.New(procerrors.CodeFatal, current.PartitionID, "checkpoint failed", err)
			}
			checkpointSpan.End()
			p.metrics.RecordCheckpointLag(lag.Seconds())
			current = updated
			batchesSinceCheckpoint = 0
			lastCheckpoint = time.Now()
			logger.DebugCtx(ctx, "checkpointed partition",
				logger.PartitionID(current.PartitionID), logger.Token(current.ContinuationToken))
		}
	}
}

// sleepOrDone sleeps for d or returns false early if ctx is cancelled.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d/2 + time.Duration(rand.Int63n(int64(d)))
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if max > 0 && next > max {
		return max
	}
	return next
}
