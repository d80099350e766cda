package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for partition/lease spans.
const (
	AttrPartitionID       = "partition.id"
	AttrOwner             = "partition.owner"
	AttrLeasePrefix       = "lease.prefix"
	AttrEtag              = "lease.etag"
	AttrHostID            = "host.id"
	AttrContinuationToken = "feed.continuation_token"
	AttrRecordCount       = "feed.record_count"
	AttrSignal            = "feed.signal"
	AttrBalancerTarget    = "balancer.target_count"
	AttrBucket            = "storage.bucket"
	AttrKey               = "storage.key"
)

// Span names for operations traced across the lease/partition lifecycle.
const (
	SpanLeaseAcquire   = "lease.acquire"
	SpanLeaseRenew     = "lease.renew"
	SpanLeaseRelease   = "lease.release"
	SpanPartitionRead  = "partition.read"
	SpanPartitionCheck = "partition.checkpoint"
	SpanSupervisorRun  = "supervisor.run"
	SpanBalancerTick   = "balancer.tick"
	SpanBootstrapRun   = "bootstrap.run"
	SpanSnapshotExport = "snapshot.export"
)

// PartitionID returns an attribute identifying the partition a span
// concerns.
func PartitionID(id string) attribute.KeyValue {
	return attribute.String(AttrPartitionID, id)
}

// Owner returns an attribute for the lease's current owning host.
func Owner(owner string) attribute.KeyValue {
	return attribute.String(AttrOwner, owner)
}

// LeasePrefix returns an attribute for the lease collection prefix.
func LeasePrefix(prefix string) attribute.KeyValue {
	return attribute.String(AttrLeasePrefix, prefix)
}

// Etag returns an attribute for a lease's optimistic-concurrency etag.
func Etag(etag string) attribute.KeyValue {
	return attribute.String(AttrEtag, etag)
}

// HostID returns an attribute for the local host identity.
func HostID(id string) attribute.KeyValue {
	return attribute.String(AttrHostID, id)
}

// ContinuationToken returns an attribute for a feed read's continuation
// token.
func ContinuationToken(token string) attribute.KeyValue {
	return attribute.String(AttrContinuationToken, token)
}

// RecordCount returns an attribute for the number of records in a batch.
func RecordCount(n int) attribute.KeyValue {
	return attribute.Int(AttrRecordCount, n)
}

// Signal returns an attribute for a feed read's outcome signal.
func Signal(s string) attribute.KeyValue {
	return attribute.String(AttrSignal, s)
}

// BalancerTarget returns an attribute for the balancer's computed
// fair-share partition count.
func BalancerTarget(n int) attribute.KeyValue {
	return attribute.Int(AttrBalancerTarget, n)
}

// Bucket returns an attribute for an S3 bucket name.
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for an S3 object key.
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// StartLeaseSpan starts a span for a lease manager operation
// (acquire/renew/release/checkpoint), tagging it with the partition id.
func StartLeaseSpan(ctx context.Context, spanName, partitionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{PartitionID(partitionID)}, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartPartitionSpan starts a span for a processor-owned operation
// (read/checkpoint) against one partition.
func StartPartitionSpan(ctx context.Context, operation, partitionID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{PartitionID(partitionID)}, attrs...)
	return StartSpan(ctx, "partition."+operation, trace.WithAttributes(allAttrs...))
}

// StartSupervisorSpan starts the root span for one partition's supervised
// lifetime (renewer + processor, until a terminal exit).
func StartSupervisorSpan(ctx context.Context, partitionID string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSupervisorRun, trace.WithAttributes(PartitionID(partitionID)))
}

// StartBalancerSpan starts a span for one balancer reconciliation tick.
func StartBalancerSpan(ctx context.Context, hostID string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanBalancerTick, trace.WithAttributes(HostID(hostID)))
}

// StartBootstrapSpan starts a span for one bootstrap protocol run.
func StartBootstrapSpan(ctx context.Context, prefix string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanBootstrapRun, trace.WithAttributes(LeasePrefix(prefix)))
}
