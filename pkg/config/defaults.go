package config

import (
	"github.com/spf13/viper"

	"github.com/marmos91/partitiond/internal/telemetry"
	"github.com/marmos91/partitiond/pkg/lease"
)

// applyViperDefaults seeds every key viper recognizes so AutomaticEnv
// overrides and YAML overrides compose correctly; applyDefaults below
// then fixes up any struct fields viper's defaults can't express directly
// (e.g. the CheckpointFrequency custom type).
func applyViperDefaults(v *viper.Viper) {
	v.SetDefault("lease.prefix", "partitiond")
	v.SetDefault("lease.expiration_interval", "60s")
	v.SetDefault("lease.renew_interval", "15s")
	v.SetDefault("lease.acquire_interval", "13s")
	v.SetDefault("lease.min_partition_count", 0)
	v.SetDefault("lease.max_partition_count", 25)
	v.SetDefault("lease.checkpoint_frequency", "every_batch")
	v.SetDefault("lease.degree_of_parallelism", 25)
	v.SetDefault("lease.query_partitions_max_batch_size", 100)
	v.SetDefault("lease.init_lock_ttl", "30s")
	v.SetDefault("lease.init_lock_sleep", "5s")
	v.SetDefault("lease.max_observer_failures", 0)
	v.SetDefault("lease.unhealthiness_duration", "15m")

	v.SetDefault("feed.poll_delay", "5s")
	v.SetDefault("feed.max_item_count", 100)
	v.SetDefault("feed.max_backoff", "1m")

	v.SetDefault("balancer.strategy", "equal_partitions")

	v.SetDefault("health.dedupe_window", "15m")

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "partitiond")
	v.SetDefault("telemetry.service_version", "dev")
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_rate", 1.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("lease_store_kind", "badger")
	v.SetDefault("badger.path", "./data/leases")

	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.migrations_path", "file://migrations")

	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.interval", "1h")

	v.SetDefault("shutdown_timeout", "30s")
}

// applyDefaults fixes up fields that viper's scalar SetDefault cannot
// populate directly, mirroring the cascading applyXDefaults(cfg) pattern:
// one function per subsection, called in sequence.
func applyDefaults(cfg *Config) {
	applyLeaseDefaults(cfg)
	applyTelemetryDefaults(cfg)
}

func applyLeaseDefaults(cfg *Config) {
	if cfg.Lease.CheckpointFrequency.Policy.Kind == "" {
		cfg.Lease.CheckpointFrequency.Policy = lease.EveryBatch()
	}
}

func applyTelemetryDefaults(cfg *Config) {
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry = telemetry.DefaultConfig()
	}
}
