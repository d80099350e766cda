package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that log
// aggregation and querying stay uniform across components.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Partition & Lease Identity
	// ========================================================================
	KeyPartitionID = "partition_id" // Partition identifier assigned by the monitored store
	KeyLeasePrefix = "lease_prefix" // Lease namespace prefix
	KeyOwner       = "owner"        // Host identity owning a lease
	KeyHost        = "host"         // This host's identity
	KeyEtag        = "etag"         // Concurrency token on a lease record
	KeyToken       = "continuation_token"
	KeyParentID    = "parent_partition_id" // Parent partition id during a split

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyComponent  = "component"   // Component name: bootstrapper, balancer, supervisor, ...
	KeyOperation  = "operation"   // Sub-operation type for complex operations
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric error code
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
	KeyReason     = "reason"      // Close/exit reason

	// ========================================================================
	// Batch / Feed Metadata
	// ========================================================================
	KeyBatchSize = "batch_size"   // Number of change records in a batch
	KeyMaxItems  = "max_items"    // Server batch hint requested
	KeySignal    = "signal"       // Feed-store read signal: Ok, Throttled, PartitionGone, ...
	KeyPollDelay = "poll_delay_ms"

	// ========================================================================
	// Fleet / Balancing
	// ========================================================================
	KeyHostCount     = "host_count"
	KeyLeaseCount    = "lease_count"
	KeyTargetCount   = "target_count"
	KeyMinPartitions = "min_partitions"
	KeyMaxPartitions = "max_partitions"
)

// PollDelay returns a slog.Attr for the feed poll delay in milliseconds.
func PollDelay(ms float64) slog.Attr {
	return slog.Float64(KeyPollDelay, ms)
}

// MinPartitions returns a slog.Attr for the configured minimum partition count.
func MinPartitions(n int) slog.Attr {
	return slog.Int(KeyMinPartitions, n)
}

// MaxPartitions returns a slog.Attr for the configured maximum partition count.
func MaxPartitions(n int) slog.Attr {
	return slog.Int(KeyMaxPartitions, n)
}

// ----------------------------------------------------------------------------
// Distributed Tracing
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// PartitionID returns a slog.Attr for a partition identifier.
func PartitionID(id string) slog.Attr {
	return slog.String(KeyPartitionID, id)
}

// LeasePrefix returns a slog.Attr for a lease namespace prefix.
func LeasePrefix(prefix string) slog.Attr {
	return slog.String(KeyLeasePrefix, prefix)
}

// Owner returns a slog.Attr for a lease owner host identity.
func Owner(owner string) slog.Attr {
	return slog.String(KeyOwner, owner)
}

// Host returns a slog.Attr for this host's identity.
func Host(host string) slog.Attr {
	return slog.String(KeyHost, host)
}

// Etag returns a slog.Attr for a lease concurrency token.
func Etag(etag string) slog.Attr {
	return slog.String(KeyEtag, etag)
}

// Token returns a slog.Attr for a continuation token.
func Token(token string) slog.Attr {
	return slog.String(KeyToken, token)
}

// ParentPartitionID returns a slog.Attr for a split parent's partition id.
func ParentPartitionID(id string) slog.Attr {
	return slog.String(KeyParentID, id)
}

// Component returns a slog.Attr identifying the emitting component.
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation returns a slog.Attr for a sub-operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric/enum error code.
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the maximum retry attempts.
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// Reason returns a slog.Attr for a close/exit reason.
func Reason(reason string) slog.Attr {
	return slog.String(KeyReason, reason)
}

// BatchSize returns a slog.Attr for the number of records in a batch.
func BatchSize(n int) slog.Attr {
	return slog.Int(KeyBatchSize, n)
}

// MaxItems returns a slog.Attr for the requested server batch hint.
func MaxItems(n int) slog.Attr {
	return slog.Int(KeyMaxItems, n)
}

// Signal returns a slog.Attr for a feed-store read signal.
func Signal(signal string) slog.Attr {
	return slog.String(KeySignal, signal)
}

// HostCount returns a slog.Attr for the number of active hosts observed.
func HostCount(n int) slog.Attr {
	return slog.Int(KeyHostCount, n)
}

// LeaseCount returns a slog.Attr for a lease count.
func LeaseCount(n int) slog.Attr {
	return slog.Int(KeyLeaseCount, n)
}

// TargetCount returns a slog.Attr for a balancing target count.
func TargetCount(n int) slog.Attr {
	return slog.Int(KeyTargetCount, n)
}
