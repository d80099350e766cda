package core

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/partitiond/internal/logger"
	"github.com/marmos91/partitiond/pkg/feed"
	"github.com/marmos91/partitiond/pkg/lease"
)

// Synchronizer is the partition synchronizer (C3): it enumerates the
// monitored store's current partitions, detects splits, and materializes
// child leases.
type Synchronizer struct {
	feedClient          feed.StoreClient
	manager             *lease.Manager
	degreeOfParallelism int
	maxBatchSize        int
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(feedClient feed.StoreClient, manager *lease.Manager, degreeOfParallelism, maxBatchSize int) *Synchronizer {
	return &Synchronizer{
		feedClient:          feedClient,
		manager:             manager,
		degreeOfParallelism: degreeOfParallelism,
		maxBatchSize:        maxBatchSize,
	}
}

// ListPartitions queries the monitored store for its current partition set.
func (s *Synchronizer) ListPartitions(ctx context.Context) ([]feed.PartitionRange, error) {
	return s.feedClient.ListPartitions(ctx, s.maxBatchSize)
}

// CreateMissingLeases creates an unowned lease for every current partition
// that does not already have one. Creation is conditional so concurrent
// runners (e.g. two hosts racing during bootstrap) are safe: every
// create_if_absent is idempotent.
func (s *Synchronizer) CreateMissingLeases(ctx context.Context) error {
	partitions, err := s.ListPartitions(ctx)
	if err != nil {
		return err
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.degreeOfParallelism)

	for _, p := range partitions {
		p := p
		group.Go(func() error {
			result, err := s.manager.CreateIfAbsent(gctx, p.PartitionID, "")
			if err != nil {
				return err
			}
			if result == lease.Created {
				logger.InfoCtx(gctx, "created lease for partition", logger.PartitionID(p.PartitionID))
			}
			return nil
		})
	}
	return group.Wait()
}

// SplitParent enumerates the children of parentLease's partition and
// creates a lease per child seeded with the parent's continuation token.
// The caller (the Supervisor) is responsible for deleting parentLease
// once the children are safely returned.
func (s *Synchronizer) SplitParent(ctx context.Context, parentLease *lease.Lease) ([]*lease.Lease, error) {
	children, err := s.feedClient.ListChildren(ctx, parentLease.PartitionID)
	if err != nil {
		return nil, err
	}

	childLeases := make([]*lease.Lease, 0, len(children))
	for _, child := range children {
		if _, err := s.manager.CreateIfAbsent(ctx, child.PartitionID, parentLease.ContinuationToken); err != nil {
			return nil, err
		}
		childLease, err := s.manager.Get(ctx, child.PartitionID)
		if err != nil {
			return nil, err
		}
		childLeases = append(childLeases, childLease)
		logger.InfoCtx(ctx, "materialized child lease from split",
			logger.ParentPartitionID(parentLease.PartitionID),
			logger.PartitionID(child.PartitionID),
			logger.Token(parentLease.ContinuationToken))
	}
	return childLeases, nil
}
