package core

import (
	"sync"
	"time"

	"github.com/marmos91/partitiond/internal/logger"
	"github.com/marmos91/partitiond/pkg/metrics/prometheus"
)

// Severity classifies a health event for logging/alerting purposes.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// EventKind enumerates the typed health events the controller decorator
// emits.
type EventKind int

const (
	EventAcquireLeaseFailure EventKind = iota
	EventReleaseLeaseFailure
	EventObserver
	EventGeneral
)

func (k EventKind) String() string {
	switch k {
	case EventAcquireLeaseFailure:
		return "AcquireLeaseFailure"
	case EventReleaseLeaseFailure:
		return "ReleaseLeaseFailure"
	case EventObserver:
		return "Observer"
	default:
		return "General"
	}
}

// HealthMonitor is the default health monitor (C9). It is not on the data
// path: it consumes (severity, operation, partition_id, error) records and
// de-duplicates repeated noise for the same (partition, operation) pair
// within its dedupe window (the host passes Health.DedupeWindow, 15 minutes
// by default). It also tracks consecutive ObserverFailed
// exits per partition so persistent observer failure can be surfaced
// (the resolved "N attempts" open question, see design notes).
type HealthMonitor struct {
	dedupeWindow        time.Duration
	maxObserverFailures int
	metrics             *prometheus.PartitionMetrics

	mu               sync.Mutex
	lastSeen         map[string]time.Time
	observerFailures map[string]int
}

// NewHealthMonitor constructs a HealthMonitor. maxObserverFailures of 0
// disables the consecutive-failure escalation (unbounded retry).
func NewHealthMonitor(dedupeWindow time.Duration, maxObserverFailures int) *HealthMonitor {
	return &HealthMonitor{
		dedupeWindow:        dedupeWindow,
		maxObserverFailures: maxObserverFailures,
		lastSeen:            make(map[string]time.Time),
		observerFailures:    make(map[string]int),
	}
}

// SetMetrics attaches the Prometheus recorder used for health-event
// counts. Nil-safe.
func (h *HealthMonitor) SetMetrics(metrics *prometheus.PartitionMetrics) {
	h.metrics = metrics
}

// Report implements HealthReporter.
func (h *HealthMonitor) Report(severity Severity, operation, partitionID string, err error) {
	key := operation + "|" + partitionID
	now := time.Now()

	h.mu.Lock()
	last, seen := h.lastSeen[key]
	suppressed := seen && now.Sub(last) < h.dedupeWindow
	h.lastSeen[key] = now
	h.mu.Unlock()

	h.metrics.RecordHealthEvent(severity.String(), operation)

	if suppressed {
		return
	}

	logger.Warn("health event",
		logger.Component("health_monitor"),
		logger.Operation(operation),
		logger.PartitionID(partitionID),
		logger.Reason(severity.String()),
		logger.Err(err))
}

// ReportEvent records a typed controller health event (C6's decorator).
func (h *HealthMonitor) ReportEvent(kind EventKind, severity Severity, partitionID string, err error) {
	h.Report(severity, kind.String(), partitionID, err)
}

// RecordObserverOutcome tracks consecutive ObserverFailed exits for
// partitionID. failed=false resets the counter. Returns true once the
// count reaches maxObserverFailures (and maxObserverFailures > 0),
// signalling the caller should emit a Fatal-severity event.
func (h *HealthMonitor) RecordObserverOutcome(partitionID string, failed bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !failed {
		delete(h.observerFailures, partitionID)
		return false
	}
	h.observerFailures[partitionID]++
	if h.maxObserverFailures <= 0 {
		return false
	}
	return h.observerFailures[partitionID] >= h.maxObserverFailures
}
