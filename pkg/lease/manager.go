package lease

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/marmos91/partitiond/internal/telemetry"
	procerrors "github.com/marmos91/partitiond/pkg/errors"
	"github.com/marmos91/partitiond/pkg/metrics/prometheus"
)

// recordID returns the store record id for a partition lease, following
// the "{prefix}..{partition_id}" layout from the persisted state layout.
func recordID(prefix, partitionID string) string {
	return fmt.Sprintf("%s..%s", prefix, partitionID)
}

// Manager is the lease manager (C2): CRUD over per-partition lease
// records with etag-guarded ownership transitions.
type Manager struct {
	client             StoreClient
	prefix             string
	host               string
	expirationInterval time.Duration
	metrics            *prometheus.PartitionMetrics
}

// NewManager constructs a Manager bound to a single lease collection
// (prefix) and host identity. expirationInterval is the ownership expiry
// threshold used to decide whether a conflicting lease is still ownable
// by self during Acquire's single retry.
func NewManager(client StoreClient, prefix, host string, expirationInterval time.Duration) *Manager {
	return &Manager{client: client, prefix: prefix, host: host, expirationInterval: expirationInterval}
}

// SetMetrics attaches the Prometheus recorder used by Acquire/Renew/
// Release. Nil-safe: a Manager with no metrics attached records nothing.
func (m *Manager) SetMetrics(metrics *prometheus.PartitionMetrics) {
	m.metrics = metrics
}

// ListAll returns every lease in the collection, ordered by PartitionID.
func (m *Manager) ListAll(ctx context.Context) ([]*Lease, error) {
	leases, err := m.client.List(ctx, m.prefix)
	if err != nil {
		return nil, err
	}
	sort.Slice(leases, func(i, j int) bool {
		return leases[i].PartitionID < leases[j].PartitionID
	})
	return leases, nil
}

// ListOwnedBy returns every lease currently owned by host (ownership
// expiry is not evaluated here; callers combine this with Lease.IsOwned).
func (m *Manager) ListOwnedBy(ctx context.Context, host string) ([]*Lease, error) {
	all, err := m.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	owned := make([]*Lease, 0, len(all))
	for _, l := range all {
		if l.Owner == host {
			owned = append(owned, l)
		}
	}
	return owned, nil
}

// CreateIfAbsent creates a fresh, unowned lease for partitionID seeded
// with continuationToken. Returns AlreadyExists (not an error) if the
// lease already exists.
func (m *Manager) CreateIfAbsent(ctx context.Context, partitionID, continuationToken string) (CreateResult, error) {
	l := &Lease{
		PartitionID:       partitionID,
		ContinuationToken: continuationToken,
		Timestamp:         time.Now(),
		Properties:        map[string]string{},
	}
	err := m.client.Create(ctx, recordID(m.prefix, partitionID), l, 0)
	if err == nil {
		return Created, nil
	}
	if procerrors.Code(err) == procerrors.CodeAlreadyExists {
		return AlreadyExists, nil
	}
	return Created, err
}

// Get reads the current state of a single partition's lease.
func (m *Manager) Get(ctx context.Context, partitionID string) (*Lease, error) {
	return m.client.Get(ctx, recordID(m.prefix, partitionID))
}

// Acquire sets owner=self, bumps timestamp, and refreshes etag. Fails with
// CodeLeaseLost if the etag has moved since l was read; retries the
// read-modify-write at most once if the lease is still ownable by self.
func (m *Manager) Acquire(ctx context.Context, l *Lease) (updated *Lease, err error) {
	ctx, span := telemetry.StartLeaseSpan(ctx, telemetry.SpanLeaseAcquire, l.PartitionID, telemetry.HostID(m.host))
	defer span.End()
	defer func() {
		if err != nil {
			m.metrics.RecordLeaseAcquire("failure")
		} else {
			m.metrics.RecordLeaseAcquire("success")
		}
	}()

	candidate := l.Clone()
	candidate.Owner = m.host
	candidate.Timestamp = time.Now()

	updated, err = m.client.Replace(ctx, recordID(m.prefix, l.PartitionID), candidate)
	if err == nil {
		span.SetAttributes(telemetry.Etag(updated.Etag))
		return updated, nil
	}
	if procerrors.Code(err) != procerrors.CodeLeaseLost {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	// Single retry: re-read and retry only if still ownable by self.
	fresh, getErr := m.client.Get(ctx, recordID(m.prefix, l.PartitionID))
	if getErr != nil {
		telemetry.RecordError(ctx, getErr)
		return nil, getErr
	}
	if fresh.Owner != "" && fresh.Owner != m.host && fresh.IsOwned(time.Now(), m.expirationInterval) {
		leaseLostErr := procerrors.NewLeaseLostError(l.PartitionID, "lease owned by another host")
		telemetry.RecordError(ctx, leaseLostErr)
		return nil, leaseLostErr
	}
	retryCandidate := fresh.Clone()
	retryCandidate.Owner = m.host
	retryCandidate.Timestamp = time.Now()
	updated, err = m.client.Replace(ctx, recordID(m.prefix, l.PartitionID), retryCandidate)
	if err != nil {
		if procerrors.Code(err) == procerrors.CodeLeaseLost {
			leaseLostErr := procerrors.NewLeaseLostError(l.PartitionID, "lease acquired by another host during retry")
			telemetry.RecordError(ctx, leaseLostErr)
			return nil, leaseLostErr
		}
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(telemetry.Etag(updated.Etag))
	return updated, nil
}

// Renew bumps timestamp only if l is still owned by self, refreshing etag.
func (m *Manager) Renew(ctx context.Context, l *Lease) (updated *Lease, err error) {
	ctx, span := telemetry.StartLeaseSpan(ctx, telemetry.SpanLeaseRenew, l.PartitionID, telemetry.HostID(m.host))
	defer span.End()
	defer func() {
		if err != nil {
			m.metrics.RecordLeaseRenew("failure")
		} else {
			m.metrics.RecordLeaseRenew("success")
		}
	}()

	if l.Owner != m.host {
		err = procerrors.NewLeaseLostError(l.PartitionID, "lease no longer owned by self")
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	candidate := l.Clone()
	candidate.Timestamp = time.Now()
	updated, err = m.client.Replace(ctx, recordID(m.prefix, l.PartitionID), candidate)
	if err != nil {
		if procerrors.Code(err) == procerrors.CodeLeaseLost {
			leaseLostErr := procerrors.NewLeaseLostError(l.PartitionID, "renew failed: etag mismatch")
			telemetry.RecordError(ctx, leaseLostErr)
			return nil, leaseLostErr
		}
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(telemetry.Etag(updated.Etag))
	return updated, nil
}

// Release clears owner.
func (m *Manager) Release(ctx context.Context, l *Lease) (updated *Lease, err error) {
	ctx, span := telemetry.StartLeaseSpan(ctx, telemetry.SpanLeaseRelease, l.PartitionID, telemetry.HostID(m.host))
	defer span.End()
	defer func() {
		if err != nil {
			m.metrics.RecordLeaseRelease("failure")
		} else {
			m.metrics.RecordLeaseRelease("success")
		}
	}()

	candidate := l.Clone()
	candidate.Owner = ""
	updated, err = m.client.Replace(ctx, recordID(m.prefix, l.PartitionID), candidate)
	if err != nil {
		if procerrors.Code(err) == procerrors.CodeLeaseLost {
			// Already moved on; releasing a lease we no longer hold is not
			// an error from the caller's perspective.
			return l, nil
		}
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	return updated, nil
}

// Checkpoint updates continuation_token. Fails with CodeLeaseLost on etag
// mismatch.
func (m *Manager) Checkpoint(ctx context.Context, l *Lease, continuationToken string) (*Lease, error) {
	candidate := l.Clone()
	candidate.ContinuationToken = continuationToken
	candidate.Timestamp = time.Now()
	updated, err := m.client.Replace(ctx, recordID(m.prefix, l.PartitionID), candidate)
	if err != nil {
		if procerrors.Code(err) == procerrors.CodeLeaseLost {
			return nil, procerrors.NewLeaseLostError(l.PartitionID, "checkpoint failed: etag mismatch")
		}
		return nil, err
	}
	return updated, nil
}

// UpdateProperties merges kv into the lease's Properties bag.
func (m *Manager) UpdateProperties(ctx context.Context, l *Lease, kv map[string]string) (*Lease, error) {
	candidate := l.Clone()
	for k, v := range kv {
		candidate.Properties[k] = v
	}
	updated, err := m.client.Replace(ctx, recordID(m.prefix, l.PartitionID), candidate)
	if err != nil {
		if procerrors.Code(err) == procerrors.CodeLeaseLost {
			return nil, procerrors.NewLeaseLostError(l.PartitionID, "update properties failed: etag mismatch")
		}
		return nil, err
	}
	return updated, nil
}

// Delete removes the lease record (used on parent retirement after a
// split).
func (m *Manager) Delete(ctx context.Context, l *Lease) error {
	return m.client.Delete(ctx, recordID(m.prefix, l.PartitionID))
}
