// Package snapshot periodically exports the full lease set to S3 as a JSON
// object, for offline inspection and disaster-recovery tooling. It is
// config-gated. Export failures are logged, not propagated; an error
// loading the AWS configuration in New is returned to the caller.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/partitiond/internal/logger"
	"github.com/marmos91/partitiond/pkg/lease"
)

// Config configures the snapshot exporter.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	ForcePathStyle bool
	KeyPrefix      string
	Interval       time.Duration
}

// Exporter uploads periodic lease-set snapshots to S3.
type Exporter struct {
	client   *s3.Client
	bucket   string
	prefix   string
	interval time.Duration
	lister   func(ctx context.Context) ([]*lease.Lease, error)

	stop chan struct{}
	done chan struct{}
}

// New creates an exporter, resolving the AWS config via the SDK's default
// credential/region chain.
func New(ctx context.Context, cfg Config, lister func(ctx context.Context) ([]*lease.Lease, error)) (*Exporter, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Exporter{
		client:   s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:   cfg.Bucket,
		prefix:   cfg.KeyPrefix,
		interval: interval,
		lister:   lister,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start runs the periodic export loop until Stop is called or ctx is done.
func (e *Exporter) Start(ctx context.Context) {
	go e.run(ctx)
}

// Stop halts the export loop and waits for it to exit.
func (e *Exporter) Stop() {
	close(e.stop)
	<-e.done
}

func (e *Exporter) run(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-ticker.C:
			if err := e.exportOnce(ctx); err != nil {
				logger.Warn("lease snapshot export failed", "error", err)
			}
		}
	}
}

func (e *Exporter) exportOnce(ctx context.Context) error {
	leases, err := e.lister(ctx)
	if err != nil {
		return fmt.Errorf("listing leases for snapshot: %w", err)
	}

	data, err := json.Marshal(snapshotDocument{
		ExportedAt: time.Now().UTC(),
		Leases:     leases,
	})
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	key := fmt.Sprintf("%slease-snapshot-%d.json", e.prefix, time.Now().UTC().Unix())
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot to s3: %w", err)
	}

	logger.Info("uploaded lease snapshot", "bucket", e.bucket, "key", key, "lease_count", len(leases))
	return nil
}

type snapshotDocument struct {
	ExportedAt time.Time      `json:"exported_at"`
	Leases     []*lease.Lease `json:"leases"`
}
