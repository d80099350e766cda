package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/partitiond/pkg/lease"
)

func TestNewAppliesDefaultInterval(t *testing.T) {
	lister := func(ctx context.Context) ([]*lease.Lease, error) { return nil, nil }

	e, err := New(context.Background(), Config{Bucket: "leases", Region: "us-east-1"}, lister)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if e.interval != 5*time.Minute {
		t.Fatalf("interval = %v, want default 5m", e.interval)
	}
}

func TestNewHonorsExplicitInterval(t *testing.T) {
	lister := func(ctx context.Context) ([]*lease.Lease, error) { return nil, nil }

	e, err := New(context.Background(), Config{Bucket: "leases", Interval: 30 * time.Second}, lister)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if e.interval != 30*time.Second {
		t.Fatalf("interval = %v, want 30s", e.interval)
	}
}

func TestStopWaitsForRunLoopExit(t *testing.T) {
	lister := func(ctx context.Context) ([]*lease.Lease, error) { return nil, nil }
	e, err := New(context.Background(), Config{Bucket: "leases", Interval: time.Hour}, lister)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)
	e.Stop()
}
