package core

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/marmos91/partitiond/internal/logger"
	"github.com/marmos91/partitiond/internal/telemetry"
	"github.com/marmos91/partitiond/pkg/lease"
	"github.com/marmos91/partitiond/pkg/metrics/prometheus"
)

// ControllerHandle is the subset of Controller the balancer drives.
// Defined as an interface so both Controller and
// HealthMonitoredController satisfy it.
type ControllerHandle interface {
	Add(ctx context.Context, l *lease.Lease) error
	Remove(ctx context.Context, partitionID string)
	Owned() []string
	Count() int
}

// BalancerConfig carries the balancing-side knobs.
type BalancerConfig struct {
	AcquireInterval   time.Duration
	MinPartitionCount int
	MaxPartitionCount int
}

// Balancer is the load balancer (C7). It runs a periodic tick that asks
// the lease manager for the global lease set and instructs the
// controller to acquire/release partitions to converge toward a fair
// share.
type Balancer struct {
	manager    *lease.Manager
	controller ControllerHandle
	host       string
	cfg        BalancerConfig

	expirationInterval time.Duration
	metrics            *prometheus.PartitionMetrics

	stop chan struct{}
	done chan struct{}
}

// NewBalancer constructs a Balancer.
func NewBalancer(manager *lease.Manager, controller ControllerHandle, host string, cfg BalancerConfig, expirationInterval time.Duration) *Balancer {
	return &Balancer{
		manager:            manager,
		controller:         controller,
		host:               host,
		cfg:                cfg,
		expirationInterval: expirationInterval,
		stop:               make(chan struct{}),
		done:               make(chan struct{}),
	}
}

// SetMetrics attaches the Prometheus recorder used for tick duration and
// owned-partition count. Nil-safe.
func (b *Balancer) SetMetrics(metrics *prometheus.PartitionMetrics) {
	b.metrics = metrics
}

// Start launches the tick loop in a new goroutine.
func (b *Balancer) Start(ctx context.Context) {
	go b.run(ctx)
}

// Stop requests the tick loop to exit and waits for it to do so.
func (b *Balancer) Stop() {
	close(b.stop)
	<-b.done
}

func (b *Balancer) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.AcquireInterval)
	defer ticker.Stop()

	// Run one tick immediately so a freshly started host doesn't wait a
	// full interval to pick up its first partitions.
	b.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stop:
			return
		case <-ticker.C:
			b.tick(ctx)
		}
	}
}

func (b *Balancer) tick(ctx context.Context) {
	ctx, span := telemetry.StartBalancerSpan(ctx, b.host)
	defer span.End()

	start := time.Now()
	defer func() {
		b.metrics.RecordBalancerTick(time.Since(start).Seconds())
		b.metrics.RecordLeasesOwned(b.controller.Count())
	}()

	leases, err := b.manager.ListAll(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "balancer tick: list_all failed", logger.Err(err))
		return
	}

	target := b.selectLeasesToTake(leases)
	span.SetAttributes(telemetry.BalancerTarget(len(target)))

	targetSet := make(map[string]struct{}, len(target))
	for _, l := range target {
		targetSet[l.PartitionID] = struct{}{}
	}

	for _, l := range target {
		if err := b.controller.Add(ctx, l); err != nil {
			logger.WarnCtx(ctx, "balancer: add failed", logger.PartitionID(l.PartitionID), logger.Err(err))
		}
	}

	for _, ownedID := range b.controller.Owned() {
		if _, wanted := targetSet[ownedID]; !wanted {
			b.controller.Remove(ctx, ownedID)
		}
	}
}

// selectLeasesToTake implements the default equal-partitions strategy:
// leases already owned by self, expired leases, and leases owned by
// overloaded hosts, until self's count reaches ceil(total/active_hosts)
// bounded by [Min,Max]PartitionCount.
func (b *Balancer) selectLeasesToTake(leases []*lease.Lease) []*lease.Lease {
	now := time.Now()

	ownerCounts := make(map[string]int)
	var selfOwned []*lease.Lease
	var expired []*lease.Lease
	byOwner := make(map[string][]*lease.Lease)

	for _, l := range leases {
		if l.IsOwnedBy(b.host, now, b.expirationInterval) {
			selfOwned = append(selfOwned, l)
			ownerCounts[b.host]++
			continue
		}
		if l.IsOwned(now, b.expirationInterval) {
			ownerCounts[l.Owner]++
			byOwner[l.Owner] = append(byOwner[l.Owner], l)
			continue
		}
		expired = append(expired, l)
	}

	activeHosts := len(ownerCounts)
	if _, ok := ownerCounts[b.host]; !ok {
		activeHosts++
	}
	if activeHosts == 0 {
		activeHosts = 1
	}

	target := int(math.Ceil(float64(len(leases)) / float64(activeHosts)))
	if b.cfg.MinPartitionCount > 0 && target < b.cfg.MinPartitionCount {
		target = b.cfg.MinPartitionCount
	}
	if b.cfg.MaxPartitionCount > 0 && target > b.cfg.MaxPartitionCount {
		target = b.cfg.MaxPartitionCount
	}

	result := make([]*lease.Lease, len(selfOwned))
	copy(result, selfOwned)

	// Fairness tie-break: oldest timestamp first among expired leases.
	sort.Slice(expired, func(i, j int) bool { return expired[i].Timestamp.Before(expired[j].Timestamp) })
	for _, l := range expired {
		if len(result) >= target {
			break
		}
		result = append(result, l)
	}

	if len(result) < target {
		// Steal from the most overloaded owners first; within an owner,
		// prefer the oldest-timestamped lease.
		overloadedOwners := make([]string, 0, len(byOwner))
		for owner := range byOwner {
			overloadedOwners = append(overloadedOwners, owner)
		}
		sort.Slice(overloadedOwners, func(i, j int) bool {
			return ownerCounts[overloadedOwners[i]] > ownerCounts[overloadedOwners[j]]
		})
		for _, owner := range overloadedOwners {
			if len(result) >= target {
				break
			}
			candidates := byOwner[owner]
			sort.Slice(candidates, func(i, j int) bool {
				return candidates[i].Timestamp.Before(candidates[j].Timestamp)
			})
			for _, l := range candidates {
				if len(result) >= target {
					break
				}
				if ownerCounts[owner] <= target {
					// Owner is not meaningfully overloaded relative to
					// self's target share; stop stealing from them.
					break
				}
				result = append(result, l)
				ownerCounts[owner]--
			}
		}
	}

	if len(result) > target {
		result = result[:target]
	}
	return result
}
