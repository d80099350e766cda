//go:build integration

package badgerlease_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/partitiond/internal/store/badgerlease"
	"github.com/marmos91/partitiond/pkg/errors"
	"github.com/marmos91/partitiond/pkg/lease"
)

func openStore(t *testing.T) *badgerlease.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "lease.db")
	store, err := badgerlease.Open(dbPath)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateGetRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	l := &lease.Lease{PartitionID: "p1", Owner: "host-a", ContinuationToken: "tok-0"}
	if err := store.Create(ctx, "prefix..p1", l, 0); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	got, err := store.Get(ctx, "prefix..p1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Owner != "host-a" || got.ContinuationToken != "tok-0" {
		t.Fatalf("Get() = %+v, want owner host-a token tok-0", got)
	}
	if got.Etag == "" {
		t.Fatal("Get() returned empty etag")
	}
}

func TestCreateConflict(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	l := &lease.Lease{PartitionID: "p1", Owner: "host-a"}
	if err := store.Create(ctx, "prefix..p1", l, 0); err != nil {
		t.Fatalf("first Create() failed: %v", err)
	}
	err := store.Create(ctx, "prefix..p1", l, 0)
	if errors.Code(err) != errors.CodeAlreadyExists {
		t.Fatalf("second Create() code = %v, want CodeAlreadyExists", errors.Code(err))
	}
}

func TestReplaceEtagMismatch(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	l := &lease.Lease{PartitionID: "p1", Owner: "host-a"}
	if err := store.Create(ctx, "prefix..p1", l, 0); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	fresh, err := store.Get(ctx, "prefix..p1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	fresh.Owner = "host-b"
	updated, err := store.Replace(ctx, "prefix..p1", fresh)
	if err != nil {
		t.Fatalf("Replace() with correct etag failed: %v", err)
	}
	if updated.Owner != "host-b" {
		t.Fatalf("Replace() owner = %q, want host-b", updated.Owner)
	}

	stale := fresh.Clone()
	stale.Owner = "host-c"
	_, err = store.Replace(ctx, "prefix..p1", stale)
	if errors.Code(err) != errors.CodeLeaseLost {
		t.Fatalf("Replace() with stale etag code = %v, want CodeLeaseLost", errors.Code(err))
	}
}

func TestListByPrefix(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, id := range []string{"p1", "p2", "p3"} {
		l := &lease.Lease{PartitionID: id}
		if err := store.Create(ctx, "prefix.."+id, l, 0); err != nil {
			t.Fatalf("Create(%s) failed: %v", id, err)
		}
	}
	// a record under a different prefix must not be listed
	if err := store.Create(ctx, "other..p1", &lease.Lease{PartitionID: "p1"}, 0); err != nil {
		t.Fatalf("Create(other) failed: %v", err)
	}

	leases, err := store.List(ctx, "prefix")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(leases) != 3 {
		t.Fatalf("List() returned %d leases, want 3", len(leases))
	}
}

func TestInitLockBlocksSecondAcquireWhileHeld(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	acquired, err := store.AcquireInitLock(ctx, time.Minute)
	if err != nil {
		t.Fatalf("AcquireInitLock() failed: %v", err)
	}
	if !acquired {
		t.Fatal("AcquireInitLock() = false on first call, want true")
	}

	acquired, err = store.AcquireInitLock(ctx, time.Minute)
	if err != nil {
		t.Fatalf("second AcquireInitLock() failed: %v", err)
	}
	if acquired {
		t.Fatal("AcquireInitLock() = true while lock is held, want false")
	}
}

func TestMarkInitializedIdempotent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	initialized, err := store.IsInitialized(ctx)
	if err != nil {
		t.Fatalf("IsInitialized() failed: %v", err)
	}
	if initialized {
		t.Fatal("IsInitialized() = true before MarkInitialized, want false")
	}

	props := map[string]string{"prefix": "feed-a", "resource_id": "res-1"}
	if err := store.MarkInitialized(ctx, props); err != nil {
		t.Fatalf("MarkInitialized() failed: %v", err)
	}
	if err := store.MarkInitialized(ctx, props); err != nil {
		t.Fatalf("second MarkInitialized() failed: %v", err)
	}

	initialized, err = store.IsInitialized(ctx)
	if err != nil {
		t.Fatalf("IsInitialized() failed: %v", err)
	}
	if !initialized {
		t.Fatal("IsInitialized() = false after MarkInitialized, want true")
	}

	got, err := store.MarkerProperties(ctx)
	if err != nil {
		t.Fatalf("MarkerProperties() failed: %v", err)
	}
	if got["resource_id"] != "res-1" {
		t.Fatalf("MarkerProperties() = %+v, want resource_id=res-1", got)
	}
}
