// Package memfeed is a synthetic, in-process feed.StoreClient used by
// "partitiond run" when no external monitored store is configured. It
// generates a fixed set of partitions and an unbounded stream of
// synthetic records per partition, so the binary is runnable end to end
// without any infrastructure beyond the configured lease store.
package memfeed

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/marmos91/partitiond/pkg/feed"
)

// Config controls the synthetic key space.
type Config struct {
	PartitionCount int
}

// Store is a fixed-partition, ever-growing synthetic feed. Each
// partition's continuation token is just the decimal offset of the next
// record to hand out.
type Store struct {
	mu         sync.Mutex
	partitions []feed.PartitionRange
}

// New builds a Store with cfg.PartitionCount partitions (4 when unset),
// named "p0000", "p0001", ..., where partition i spans the key range
// from the decimal string of i up to that of i+1.
func New(cfg Config) *Store {
	if cfg.PartitionCount <= 0 {
		cfg.PartitionCount = 4
	}
	partitions := make([]feed.PartitionRange, cfg.PartitionCount)
	for i := range partitions {
		partitions[i] = feed.PartitionRange{
			PartitionID:  fmt.Sprintf("p%04d", i),
			MinInclusive: strconv.Itoa(i),
			MaxExclusive: strconv.Itoa(i + 1),
		}
	}
	return &Store{partitions: partitions}
}

// ListPartitions returns the fixed partition set. maxBatchSize is
// ignored: the demo key space never grows large enough to need paging.
func (s *Store) ListPartitions(ctx context.Context, maxBatchSize int) ([]feed.PartitionRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]feed.PartitionRange, len(s.partitions))
	copy(out, s.partitions)
	return out, nil
}

// ListChildren never returns anything: the demo feed never splits.
func (s *Store) ListChildren(ctx context.Context, parentPartitionID string) ([]feed.PartitionRange, error) {
	return nil, nil
}

// ReadChanges hands back a monotonically increasing sequence of
// synthetic records, one batch per call, forever. The continuation
// token is the decimal count of records already delivered.
func (s *Store) ReadChanges(ctx context.Context, partitionID, continuationToken string, maxItemCount int) (feed.Batch, error) {
	offset, err := strconv.Atoi(continuationToken)
	if err != nil {
		offset = 0
	}
	if maxItemCount <= 0 {
		maxItemCount = 10
	}

	records := make([]feed.Record, maxItemCount)
	for i := range records {
		records[i] = feed.Record{
			Payload: []byte(fmt.Sprintf(`{"partition":%q,"seq":%d}`, partitionID, offset+i)),
		}
	}

	return feed.Batch{
		Records:   records,
		NextToken: strconv.Itoa(offset + maxItemCount),
		Signal:    feed.SignalOk,
	}, nil
}
