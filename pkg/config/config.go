// Package config loads, validates, and persists the process configuration
// for partitiond. Loading is layered: defaults -> YAML file (optional) ->
// environment variables (PARTITIOND_ prefix), decoded into a typed struct
// via viper + mapstructure decode hooks, then validated in one pass with
// go-playground/validator so every missing or invalid field is reported
// together instead of one at a time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/partitiond/internal/telemetry"
	procerrors "github.com/marmos91/partitiond/pkg/errors"
	"github.com/marmos91/partitiond/pkg/lease"
)

// Config is the top-level, immutable process configuration. Construct it
// with New or Load; both fail with a single InvalidConfigurationError
// listing every missing or invalid field.
type Config struct {
	Host            HostConfig          `mapstructure:"host" yaml:"host" validate:"required"`
	Lease           LeaseConfig         `mapstructure:"lease" yaml:"lease" validate:"required"`
	Feed            FeedConfig          `mapstructure:"feed" yaml:"feed" validate:"required"`
	Balancer        BalancerConfig      `mapstructure:"balancer" yaml:"balancer" validate:"required"`
	Health          HealthConfig        `mapstructure:"health" yaml:"health"`
	Logging         LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Telemetry       telemetry.Config    `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics         MetricsConfig       `mapstructure:"metrics" yaml:"metrics"`
	LeaseStoreKind  string              `mapstructure:"lease_store_kind" yaml:"lease_store_kind" validate:"oneof=badger postgres"`
	Badger          BadgerStoreConfig   `mapstructure:"badger" yaml:"badger"`
	Postgres        PostgresStoreConfig `mapstructure:"postgres" yaml:"postgres"`
	Snapshot        SnapshotConfig      `mapstructure:"snapshot" yaml:"snapshot"`
	ShutdownTimeout time.Duration       `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// HostConfig identifies this process within the fleet.
type HostConfig struct {
	ID string `mapstructure:"id" yaml:"id"`
}

// LeaseConfig holds every tunable governing lease ownership, renewal, and
// partition counts.
type LeaseConfig struct {
	Prefix                      string              `mapstructure:"prefix" yaml:"prefix" validate:"required"`
	ExpirationInterval          time.Duration       `mapstructure:"expiration_interval" yaml:"expiration_interval" validate:"gt=0"`
	RenewInterval               time.Duration       `mapstructure:"renew_interval" yaml:"renew_interval" validate:"gt=0"`
	AcquireInterval             time.Duration       `mapstructure:"acquire_interval" yaml:"acquire_interval" validate:"gt=0"`
	MinPartitionCount           int                 `mapstructure:"min_partition_count" yaml:"min_partition_count" validate:"gte=0"`
	MaxPartitionCount           int                 `mapstructure:"max_partition_count" yaml:"max_partition_count" validate:"gt=0"`
	CheckpointFrequency         CheckpointFrequency `mapstructure:"checkpoint_frequency" yaml:"checkpoint_frequency"`
	DegreeOfParallelism         int                 `mapstructure:"degree_of_parallelism" yaml:"degree_of_parallelism" validate:"gt=0"`
	QueryPartitionsMaxBatchSize int                 `mapstructure:"query_partitions_max_batch_size" yaml:"query_partitions_max_batch_size" validate:"gt=0"`
	InitLockTTL                 time.Duration       `mapstructure:"init_lock_ttl" yaml:"init_lock_ttl" validate:"gt=0"`
	InitLockSleep               time.Duration       `mapstructure:"init_lock_sleep" yaml:"init_lock_sleep" validate:"gt=0"`
	MaxObserverFailures         int                 `mapstructure:"max_observer_failures" yaml:"max_observer_failures" validate:"gte=0"`
	UnhealthinessDuration       time.Duration       `mapstructure:"unhealthiness_duration" yaml:"unhealthiness_duration" validate:"gt=0"`
}

// CheckpointFrequency decodes a string ("every_batch", "every_n_batches:10",
// "every_interval:30s", "manual") into a lease.CheckpointPolicy.
type CheckpointFrequency struct {
	Policy lease.CheckpointPolicy
}

// FeedConfig carries the feed-side knobs.
type FeedConfig struct {
	PollDelay          time.Duration `mapstructure:"poll_delay" yaml:"poll_delay" validate:"gt=0"`
	MaxItemCount       int           `mapstructure:"max_item_count" yaml:"max_item_count" validate:"gt=0"`
	StartFromBeginning bool          `mapstructure:"start_from_beginning" yaml:"start_from_beginning"`
	StartTime          *time.Time    `mapstructure:"start_time" yaml:"start_time"`
	StartContinuation  string        `mapstructure:"start_continuation" yaml:"start_continuation"`
	MaxBackoff         time.Duration `mapstructure:"max_backoff" yaml:"max_backoff" validate:"gt=0"`

	// ResourceID identifies the monitored feed-store resource itself (e.g.
	// a database/collection id or connection string hash), distinct from
	// Lease.Prefix. The bootstrapper records it alongside Lease.Prefix so a
	// second deployment that reuses the same prefix against a different
	// feed resource is caught as a collision rather than silently sharing
	// lease state. Empty disables the check.
	ResourceID string `mapstructure:"resource_id" yaml:"resource_id"`
}

// BalancerConfig carries the balancer's own knobs (distinct from
// LeaseConfig's acquire interval, which the balancer also consumes).
type BalancerConfig struct {
	Strategy string `mapstructure:"strategy" yaml:"strategy" validate:"oneof=equal_partitions"`
}

// HealthConfig carries the health monitor's de-duplication window.
type HealthConfig struct {
	DedupeWindow time.Duration `mapstructure:"dedupe_window" yaml:"dedupe_window" validate:"gt=0"`
}

// LoggingConfig mirrors internal/logger.Config.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus /metrics HTTP surface.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"gt=0"`
}

// BadgerStoreConfig configures the single-process lease store adapter.
type BadgerStoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresStoreConfig configures the multi-host-capable lease store adapter.
type PostgresStoreConfig struct {
	DSN            string `mapstructure:"dsn" yaml:"dsn"`
	MigrationsPath string `mapstructure:"migrations_path" yaml:"migrations_path"`
	MaxOpenConns   int    `mapstructure:"max_open_conns" yaml:"max_open_conns" validate:"gte=0"`
}

// SnapshotConfig controls the S3 disaster-recovery exporter.
type SnapshotConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Bucket   string        `mapstructure:"bucket" yaml:"bucket"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`
}

var validate = validator.New()

// New builds a Config from the given YAML bytes (may be nil for
// defaults-only) plus environment variable overrides, applies defaults,
// and validates. Returns a single *errors.ProcessorError with
// CodeInvalidConfiguration listing every failing field on error.
func New(yamlBytes []byte) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PARTITIOND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyViperDefaults(v)

	if len(yamlBytes) > 0 {
		v.SetConfigType("yaml")
		if err := v.ReadConfig(newBytesReader(yamlBytes)); err != nil {
			return nil, procerrors.NewInvalidConfigurationError(fmt.Sprintf("parsing config: %v", err))
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		checkpointFrequencyDecodeHook(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, procerrors.NewInvalidConfigurationError(fmt.Sprintf("decoding config: %v", err))
	}

	applyDefaults(&cfg)

	if cfg.Host.ID == "" {
		hostname, _ := os.Hostname()
		cfg.Host.ID = hostname
	}
	if cfg.Host.ID == "" {
		// os.Hostname can fail or return "" in a sandboxed/minimal container;
		// Host.ID doubles as the lease owner identity, so two empty-ID hosts
		// would otherwise collide and silently steal each other's leases.
		cfg.Host.ID = uuid.NewString()
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, invalidConfigurationFromValidationErrors(err)
	}
	if err := validateStoreSelection(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateStoreSelection enforces the cross-field requirement that the
// selected LeaseStoreKind's own section is populated. go-playground's
// required_if cannot reach across struct levels, so this is checked
// separately from the tag-driven pass above.
func validateStoreSelection(cfg *Config) error {
	switch cfg.LeaseStoreKind {
	case "badger":
		if cfg.Badger.Path == "" {
			return procerrors.NewInvalidConfigurationError("badger.path is required when lease_store_kind=badger")
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return procerrors.NewInvalidConfigurationError("postgres.dsn is required when lease_store_kind=postgres")
		}
	}
	if cfg.Snapshot.Enabled && cfg.Snapshot.Bucket == "" {
		return procerrors.NewInvalidConfigurationError("snapshot.bucket is required when snapshot.enabled=true")
	}
	return nil
}

// Load reads path (YAML) and builds a Config via New. A missing file is
// not an error; New is called with nil bytes so defaults + env apply.
func Load(path string) (*Config, error) {
	var bytes []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, procerrors.NewInvalidConfigurationError(fmt.Sprintf("reading config file %q: %v", path, err))
			}
		} else {
			bytes = data
		}
	}
	return New(bytes)
}

// MustLoad calls Load and panics on error. Intended for cmd/partitiond's
// entrypoint where a configuration error should abort the process with a
// clear message before any infrastructure is created.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func invalidConfigurationFromValidationErrors(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return procerrors.NewInvalidConfigurationError(err.Error())
	}
	var fields []string
	for _, fe := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return procerrors.NewInvalidConfigurationError(
		fmt.Sprintf("missing or invalid fields: %s", strings.Join(fields, ", ")))
}

// SaveConfig writes cfg as YAML to path, creating parent directories as
// needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// GetDefaultConfigPath resolves the XDG config path for partitiond,
// falling back to ~/.config/partitiond/config.yaml.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at
// GetDefaultConfigPath.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "partitiond")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "partitiond"
	}
	return filepath.Join(home, ".config", "partitiond")
}
