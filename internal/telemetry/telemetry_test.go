package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "partitiond", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, PartitionID("partition-1"))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("PartitionID", func(t *testing.T) {
		attr := PartitionID("partition-1")
		assert.Equal(t, AttrPartitionID, string(attr.Key))
		assert.Equal(t, "partition-1", attr.Value.AsString())
	})

	t.Run("Owner", func(t *testing.T) {
		attr := Owner("host-a")
		assert.Equal(t, AttrOwner, string(attr.Key))
		assert.Equal(t, "host-a", attr.Value.AsString())
	})

	t.Run("LeasePrefix", func(t *testing.T) {
		attr := LeasePrefix("partitiond")
		assert.Equal(t, AttrLeasePrefix, string(attr.Key))
		assert.Equal(t, "partitiond", attr.Value.AsString())
	})

	t.Run("Etag", func(t *testing.T) {
		attr := Etag("000001")
		assert.Equal(t, AttrEtag, string(attr.Key))
		assert.Equal(t, "000001", attr.Value.AsString())
	})

	t.Run("HostID", func(t *testing.T) {
		attr := HostID("host-a")
		assert.Equal(t, AttrHostID, string(attr.Key))
		assert.Equal(t, "host-a", attr.Value.AsString())
	})

	t.Run("ContinuationToken", func(t *testing.T) {
		attr := ContinuationToken("tok-123")
		assert.Equal(t, AttrContinuationToken, string(attr.Key))
		assert.Equal(t, "tok-123", attr.Value.AsString())
	})

	t.Run("RecordCount", func(t *testing.T) {
		attr := RecordCount(42)
		assert.Equal(t, AttrRecordCount, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("Signal", func(t *testing.T) {
		attr := Signal("Ok")
		assert.Equal(t, AttrSignal, string(attr.Key))
		assert.Equal(t, "Ok", attr.Value.AsString())
	})

	t.Run("BalancerTarget", func(t *testing.T) {
		attr := BalancerTarget(5)
		assert.Equal(t, AttrBalancerTarget, string(attr.Key))
		assert.Equal(t, int64(5), attr.Value.AsInt64())
	})

	t.Run("Bucket", func(t *testing.T) {
		attr := Bucket("my-bucket")
		assert.Equal(t, AttrBucket, string(attr.Key))
		assert.Equal(t, "my-bucket", attr.Value.AsString())
	})

	t.Run("StorageKey", func(t *testing.T) {
		attr := StorageKey("path/to/object")
		assert.Equal(t, AttrKey, string(attr.Key))
		assert.Equal(t, "path/to/object", attr.Value.AsString())
	})
}

func TestStartLeaseSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartLeaseSpan(ctx, SpanLeaseAcquire, "partition-1")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	newCtx2, span2 := StartLeaseSpan(ctx, SpanLeaseRenew, "partition-1", Etag("000002"))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartPartitionSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartPartitionSpan(ctx, "read", "partition-1", RecordCount(10))
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	newCtx2, span2 := StartPartitionSpan(ctx, "checkpoint", "partition-1")
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartSupervisorSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSupervisorSpan(ctx, "partition-1")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartBalancerSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartBalancerSpan(ctx, "host-a")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartBootstrapSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartBootstrapSpan(ctx, "partitiond")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}
