package core

import (
	"context"

	"github.com/marmos91/partitiond/pkg/feed"
)

// CloseReason is passed to Observer.Close explaining why a partition's
// supervision ended.
type CloseReason int

const (
	CloseShutdown CloseReason = iota
	CloseLeaseLost
	CloseSplit
	CloseObserverFailed
	CloseFatal
)

func (r CloseReason) String() string {
	switch r {
	case CloseShutdown:
		return "Shutdown"
	case CloseLeaseLost:
		return "LeaseLost"
	case CloseSplit:
		return "Split"
	case CloseObserverFailed:
		return "ObserverFailed"
	case CloseFatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Observer is the user-supplied callback set invoked by the Processor.
// Open and Close are each invoked exactly once per partition, in that
// order; neither is reentrant for the same partition. ProcessChanges
// invocations for one partition are strictly serial.
type Observer interface {
	Open(ctx context.Context, partitionID string) error
	ProcessChanges(ctx context.Context, partitionID string, batch feed.Batch) error
	Close(ctx context.Context, partitionID string, reason CloseReason) error
}
