package host

import (
	"context"

	"github.com/marmos91/partitiond/internal/core"
	"github.com/marmos91/partitiond/internal/logger"
	"github.com/marmos91/partitiond/pkg/feed"
)

// logObserver is the default Observer wired by "partitiond run" when the
// embedding application doesn't supply its own: it just logs batch
// sizes, so the demo in-memory feed (internal/store/memfeed) produces
// visible output.
type logObserver struct {
	partitionID string
}

// NewLogObserver builds an Observer that logs every batch it receives.
// Exposed for cmd/partitiond's default "run" wiring and for smoke tests.
func NewLogObserver(partitionID string) core.Observer {
	return &logObserver{partitionID: partitionID}
}

func (o *logObserver) Open(ctx context.Context, partitionID string) error {
	logger.Info("observer opened", "partition_id", partitionID)
	return nil
}

func (o *logObserver) ProcessChanges(ctx context.Context, partitionID string, batch feed.Batch) error {
	logger.Info("observer processing batch", "partition_id", partitionID, "record_count", len(batch.Records))
	return nil
}

func (o *logObserver) Close(ctx context.Context, partitionID string, reason core.CloseReason) error {
	logger.Info("observer closed", "partition_id", partitionID, "reason", reason.String())
	return nil
}
