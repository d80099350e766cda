package core

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/partitiond/pkg/lease"
)

func newTestSupervisorFactory(manager *lease.Manager) SupervisorFactory {
	feedClient := &fakeFeedClient{}
	return func(acquired *lease.Lease) *Supervisor {
		synchronizer := NewSynchronizer(feedClient, manager, 1, 10)
		processor := NewProcessor(feedClient, manager, &fakeObserver{}, ProcessorConfig{
			PollDelay:           time.Millisecond,
			MaxItemCount:        10,
			CheckpointFrequency: lease.EveryBatch(),
		})
		health := NewHealthMonitor(time.Minute, 0)
		return NewSupervisor(manager, synchronizer, processor, health, SupervisorConfig{
			RenewInterval:         time.Hour,
			UnhealthinessDuration: time.Hour,
		}, acquired, nil)
	}
}

func TestControllerAddAndOwned(t *testing.T) {
	store := newFakeLeaseStore()
	manager := lease.NewManager(store, "pfx", "host-a", time.Minute)
	if _, err := manager.CreateIfAbsent(context.Background(), "p1", ""); err != nil {
		t.Fatalf("CreateIfAbsent failed: %v", err)
	}
	l, err := manager.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	c := NewController(manager, newTestSupervisorFactory(manager))
	defer c.Shutdown()

	if err := c.Add(context.Background(), l); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if c.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", c.Count())
	}

	t.Run("re-adding the same partition is a no-op", func(t *testing.T) {
		if err := c.Add(context.Background(), l); err != nil {
			t.Fatalf("second Add failed: %v", err)
		}
		if c.Count() != 1 {
			t.Fatalf("Count() = %d after re-add, want still 1", c.Count())
		}
	})

	t.Run("remove drops the partition", func(t *testing.T) {
		c.Remove(context.Background(), "p1")
		if c.Count() != 0 {
			t.Fatalf("Count() = %d after Remove, want 0", c.Count())
		}
	})
}

func TestControllerAddSkipsLostLease(t *testing.T) {
	storeA := newFakeLeaseStore()
	managerA := lease.NewManager(storeA, "pfx", "host-a", time.Minute)
	managerB := lease.NewManager(storeA, "pfx", "host-b", time.Minute)

	if _, err := managerA.CreateIfAbsent(context.Background(), "p1", ""); err != nil {
		t.Fatalf("CreateIfAbsent failed: %v", err)
	}
	stale, err := managerA.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := managerA.Acquire(context.Background(), stale); err != nil {
		t.Fatalf("host-a Acquire failed: %v", err)
	}

	c := NewController(managerB, newTestSupervisorFactory(managerB))
	defer c.Shutdown()

	// stale still carries host-a's pre-acquire etag; host-b's Add should
	// lose the race and silently drop it rather than erroring.
	if err := c.Add(context.Background(), stale); err != nil {
		t.Fatalf("Add should swallow LeaseLost, got: %v", err)
	}
	if c.Count() != 0 {
		t.Fatalf("Count() = %d, want 0 (lease was lost to host-a)", c.Count())
	}
}
