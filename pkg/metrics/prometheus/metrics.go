// Package prometheus exposes the Prometheus gauges/counters/histograms for
// partition ownership, feed reads, and observer dispatch. Every Record*
// method is nil-safe and a no-op when metrics are disabled, so callers
// never need to guard calls with IsEnabled() themselves.
package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.RWMutex
	enabled  bool
	registry *prometheus.Registry
)

// Enable marks metrics as enabled and installs reg as the active
// registry. Must be called before New* constructors for their
// promauto.With(reg) registration to take effect.
func Enable(reg *prometheus.Registry) {
	mu.Lock()
	defer mu.Unlock()
	enabled = true
	registry = reg
}

// IsEnabled reports whether metrics collection is active.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// PartitionMetrics holds every gauge/counter/histogram this process
// exports, built with promauto.With(reg) against the registry installed by
// Enable. Each call to NewPartitionMetrics registers every metric into that
// registry, so it is called once per registry (the host creates a fresh
// registry each time it is constructed).
type PartitionMetrics struct {
	leasesOwned              prometheus.Gauge
	leaseAcquireTotal        *prometheus.CounterVec
	leaseRenewTotal          *prometheus.CounterVec
	leaseReleaseTotal        *prometheus.CounterVec
	processedRecordsTotal    prometheus.Counter
	checkpointLagSeconds     prometheus.Histogram
	balancerTickDuration     prometheus.Histogram
	healthEventsTotal        *prometheus.CounterVec
	bootstrapDurationSeconds prometheus.Histogram
}

// NewPartitionMetrics constructs and registers every metric. Returns a
// PartitionMetrics whose Record* methods are no-ops if metrics are
// disabled.
func NewPartitionMetrics() *PartitionMetrics {
	if !IsEnabled() {
		return &PartitionMetrics{}
	}
	reg := GetRegistry()
	factory := promautoWith(reg)

	return &PartitionMetrics{
		leasesOwned: factory.NewGauge(prometheus.GaugeOpts{
			Name: "partitiond_leases_owned",
			Help: "Number of partitions currently owned by this host.",
		}),
		leaseAcquireTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "partitiond_lease_acquire_total",
			Help: "Total lease acquire attempts by result.",
		}, []string{"result"}),
		leaseRenewTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "partitiond_lease_renew_total",
			Help: "Total lease renew attempts by result.",
		}, []string{"result"}),
		leaseReleaseTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "partitiond_lease_release_total",
			Help: "Total lease release attempts by result.",
		}, []string{"result"}),
		processedRecordsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "partitiond_partition_processed_records_total",
			Help: "Total change records dispatched to observers.",
		}),
		checkpointLagSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "partitiond_partition_checkpoint_lag_seconds",
			Help:    "Age of the oldest un-checkpointed batch at checkpoint time.",
			Buckets: prometheus.DefBuckets,
		}),
		balancerTickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "partitiond_balancer_tick_duration_seconds",
			Help:    "Duration of one load balancer convergence tick.",
			Buckets: prometheus.DefBuckets,
		}),
		healthEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "partitiond_health_events_total",
			Help: "Total health events by severity and operation.",
		}, []string{"severity", "operation"}),
		bootstrapDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "partitiond_bootstrap_duration_seconds",
			Help:    "Duration of the bootstrap protocol.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordLeasesOwned sets the current owned-partition gauge.
func (m *PartitionMetrics) RecordLeasesOwned(n int) {
	if m == nil || m.leasesOwned == nil {
		return
	}
	m.leasesOwned.Set(float64(n))
}

// RecordLeaseAcquire increments the acquire counter for result ("success"
// or "failure").
func (m *PartitionMetrics) RecordLeaseAcquire(result string) {
	if m == nil || m.leaseAcquireTotal == nil {
		return
	}
	m.leaseAcquireTotal.WithLabelValues(result).Inc()
}

// RecordLeaseRenew increments the renew counter for result.
func (m *PartitionMetrics) RecordLeaseRenew(result string) {
	if m == nil || m.leaseRenewTotal == nil {
		return
	}
	m.leaseRenewTotal.WithLabelValues(result).Inc()
}

// RecordLeaseRelease increments the release counter for result.
func (m *PartitionMetrics) RecordLeaseRelease(result string) {
	if m == nil || m.leaseReleaseTotal == nil {
		return
	}
	m.leaseReleaseTotal.WithLabelValues(result).Inc()
}

// RecordProcessedRecords adds n to the processed-records counter.
func (m *PartitionMetrics) RecordProcessedRecords(n int) {
	if m == nil || m.processedRecordsTotal == nil {
		return
	}
	m.processedRecordsTotal.Add(float64(n))
}

// RecordCheckpointLag observes the checkpoint-lag histogram.
func (m *PartitionMetrics) RecordCheckpointLag(seconds float64) {
	if m == nil || m.checkpointLagSeconds == nil {
		return
	}
	m.checkpointLagSeconds.Observe(seconds)
}

// RecordBalancerTick observes the balancer-tick-duration histogram.
func (m *PartitionMetrics) RecordBalancerTick(seconds float64) {
	if m == nil || m.balancerTickDuration == nil {
		return
	}
	m.balancerTickDuration.Observe(seconds)
}

// RecordHealthEvent increments the health-events counter.
func (m *PartitionMetrics) RecordHealthEvent(severity, operation string) {
	if m == nil || m.healthEventsTotal == nil {
		return
	}
	m.healthEventsTotal.WithLabelValues(severity, operation).Inc()
}

// RecordBootstrapDuration observes the bootstrap-duration histogram.
func (m *PartitionMetrics) RecordBootstrapDuration(seconds float64) {
	if m == nil || m.bootstrapDurationSeconds == nil {
		return
	}
	m.bootstrapDurationSeconds.Observe(seconds)
}
