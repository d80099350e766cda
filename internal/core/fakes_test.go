package core

import (
	"context"
	"strconv"
	"sync"
	"time"

	procerrors "github.com/marmos91/partitiond/pkg/errors"
	"github.com/marmos91/partitiond/pkg/feed"
	"github.com/marmos91/partitiond/pkg/lease"
)

// fakeLeaseStore is an in-memory lease.StoreClient + lease.Bootstrap used
// across this package's tests.
type fakeLeaseStore struct {
	mu         sync.Mutex
	records    map[string]*lease.Lease
	nextTag    int
	initMarker map[string]string
	initLock   bool
}

func newFakeLeaseStore() *fakeLeaseStore {
	return &fakeLeaseStore{records: make(map[string]*lease.Lease)}
}

func (s *fakeLeaseStore) Get(ctx context.Context, id string) (*lease.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.records[id]
	if !ok {
		return nil, procerrors.NewNotFoundError("", "no such lease")
	}
	return l.Clone(), nil
}

func (s *fakeLeaseStore) Create(ctx context.Context, id string, l *lease.Lease, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; exists {
		return procerrors.NewAlreadyExistsError(l.PartitionID)
	}
	s.nextTag++
	stored := l.Clone()
	stored.Etag = strconv.Itoa(s.nextTag)
	s.records[id] = stored
	return nil
}

func (s *fakeLeaseStore) Replace(ctx context.Context, id string, l *lease.Lease) (*lease.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.records[id]
	if !exists {
		return nil, procerrors.NewNotFoundError(l.PartitionID, "no such lease")
	}
	if current.Etag != l.Etag {
		return nil, procerrors.NewLeaseLostError(l.PartitionID, "etag mismatch")
	}
	s.nextTag++
	stored := l.Clone()
	stored.Etag = strconv.Itoa(s.nextTag)
	s.records[id] = stored
	return stored.Clone(), nil
}

func (s *fakeLeaseStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *fakeLeaseStore) List(ctx context.Context, prefix string) ([]*lease.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*lease.Lease, 0, len(s.records))
	for _, l := range s.records {
		out = append(out, l.Clone())
	}
	return out, nil
}

func (s *fakeLeaseStore) IsInitialized(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initMarker != nil, nil
}

func (s *fakeLeaseStore) AcquireInitLock(ctx context.Context, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initLock {
		return false, nil
	}
	s.initLock = true
	return true, nil
}

func (s *fakeLeaseStore) MarkInitialized(ctx context.Context, properties map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initMarker == nil {
		s.initMarker = properties
	}
	return nil
}

func (s *fakeLeaseStore) ReleaseInitLock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLock = false
	return nil
}

func (s *fakeLeaseStore) MarkerProperties(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initMarker, nil
}

// fakeFeedClient is an in-memory feed.StoreClient driven by a scripted
// sequence of ReadChanges responses.
type fakeFeedClient struct {
	mu          sync.Mutex
	partitions  []feed.PartitionRange
	children    map[string][]feed.PartitionRange
	batches     []feed.Batch
	nextBatch   int
	readErr     error
	listErr     error
	readCalls   int
	lastReadTok string
}

func (f *fakeFeedClient) ReadChanges(ctx context.Context, partitionID, continuationToken string, maxItemCount int) (feed.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls++
	f.lastReadTok = continuationToken
	if f.readErr != nil {
		return feed.Batch{}, f.readErr
	}
	if f.nextBatch >= len(f.batches) {
		return feed.Batch{Signal: feed.SignalNotModified}, nil
	}
	b := f.batches[f.nextBatch]
	f.nextBatch++
	return b, nil
}

func (f *fakeFeedClient) ListPartitions(ctx context.Context, maxBatchSize int) ([]feed.PartitionRange, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.partitions, nil
}

func (f *fakeFeedClient) ListChildren(ctx context.Context, parentPartitionID string) ([]feed.PartitionRange, error) {
	return f.children[parentPartitionID], nil
}

// fakeObserver records every call made to it by the processor.
type fakeObserver struct {
	mu           sync.Mutex
	opened       []string
	closed       []CloseReason
	processed    int
	processErr   error
	openErr      error
}

func (o *fakeObserver) Open(ctx context.Context, partitionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, partitionID)
	return o.openErr
}

func (o *fakeObserver) ProcessChanges(ctx context.Context, partitionID string, batch feed.Batch) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.processed++
	return o.processErr
}

func (o *fakeObserver) Close(ctx context.Context, partitionID string, reason CloseReason) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = append(o.closed, reason)
	return nil
}

// fakeControllerHandle is a minimal ControllerHandle recording Add/Remove
// calls for balancer tests without spinning up real supervisors.
type fakeControllerHandle struct {
	mu     sync.Mutex
	owned  map[string]struct{}
	addErr error
}

func newFakeControllerHandle() *fakeControllerHandle {
	return &fakeControllerHandle{owned: make(map[string]struct{})}
}

func (f *fakeControllerHandle) Add(ctx context.Context, l *lease.Lease) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.owned[l.PartitionID] = struct{}{}
	return nil
}

func (f *fakeControllerHandle) Remove(ctx context.Context, partitionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.owned, partitionID)
}

func (f *fakeControllerHandle) Owned() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.owned))
	for id := range f.owned {
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeControllerHandle) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.owned)
}
