package pgxlease

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	procerrors "github.com/marmos91/partitiond/pkg/errors"
	"github.com/marmos91/partitiond/pkg/lease"
)

// Get implements lease.StoreClient.
func (s *Store) Get(ctx context.Context, id string) (*lease.Lease, error) {
	const query = `
		SELECT partition_id, owner, continuation_token, "timestamp", properties, etag
		FROM leases WHERE record_id = $1 AND (expires_at IS NULL OR expires_at > now())
	`
	row := s.pool.QueryRow(ctx, query, id)
	l, err := scanLease(row)
	if err != nil {
		return nil, mapPgError(err, "", "Get")
	}
	return l, nil
}

// Create implements lease.StoreClient. Postgres has no native per-row TTL,
// so ttl is tracked via an expires_at column and enforced by Get/List
// filtering rows whose expires_at has passed.
func (s *Store) Create(ctx context.Context, id string, l *lease.Lease, ttl time.Duration) error {
	props, err := json.Marshal(l.Properties)
	if err != nil {
		return mapPgError(err, l.PartitionID, "Create")
	}

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	const query = `
		INSERT INTO leases (record_id, partition_id, owner, continuation_token, "timestamp", properties, etag, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7)
		ON CONFLICT (record_id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, query, id, l.PartitionID, l.Owner, l.ContinuationToken, l.Timestamp, props, expiresAt)
	if err != nil {
		return mapPgError(err, l.PartitionID, "Create")
	}
	if tag.RowsAffected() == 0 {
		return procerrors.NewAlreadyExistsError(l.PartitionID)
	}
	return nil
}

// Replace implements lease.StoreClient: conditional replace guarded by
// l.Etag, which maps onto the row's integer etag column.
func (s *Store) Replace(ctx context.Context, id string, l *lease.Lease) (*lease.Lease, error) {
	props, err := json.Marshal(l.Properties)
	if err != nil {
		return nil, mapPgError(err, l.PartitionID, "Replace")
	}

	currentEtag, err := strconv.ParseInt(l.Etag, 10, 64)
	if err != nil {
		return nil, procerrors.NewLeaseLostError(l.PartitionID, "malformed etag on replace")
	}

	const query = `
		UPDATE leases
		SET owner = $1, continuation_token = $2, "timestamp" = $3, properties = $4, etag = etag + 1
		WHERE record_id = $5 AND etag = $6
		RETURNING etag
	`
	var newEtag int64
	err = s.pool.QueryRow(ctx, query, l.Owner, l.ContinuationToken, l.Timestamp, props, id, currentEtag).Scan(&newEtag)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, procerrors.NewLeaseLostError(l.PartitionID, "etag mismatch on replace")
		}
		return nil, mapPgError(err, l.PartitionID, "Replace")
	}

	result := l.Clone()
	result.Etag = strconv.FormatInt(newEtag, 10)
	return result, nil
}

// Delete implements lease.StoreClient. A missing record is success.
func (s *Store) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM leases WHERE record_id = $1`
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return mapPgError(err, "", "Delete")
	}
	return nil
}

// List implements lease.StoreClient.
func (s *Store) List(ctx context.Context, prefix string) ([]*lease.Lease, error) {
	const query = `
		SELECT partition_id, owner, continuation_token, "timestamp", properties, etag
		FROM leases
		WHERE record_id LIKE $1 AND (expires_at IS NULL OR expires_at > now())
		ORDER BY partition_id
	`
	rows, err := s.pool.Query(ctx, query, prefix+"..%")
	if err != nil {
		return nil, mapPgError(err, "", "List")
	}
	defer rows.Close()

	var result []*lease.Lease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, mapPgError(err, "", "List")
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err, "", "List")
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLease(row rowScanner) (*lease.Lease, error) {
	var (
		l        lease.Lease
		propsRaw []byte
		etag     int64
	)
	if err := row.Scan(&l.PartitionID, &l.Owner, &l.ContinuationToken, &l.Timestamp, &propsRaw, &etag); err != nil {
		return nil, err
	}
	if len(propsRaw) > 0 {
		if err := json.Unmarshal(propsRaw, &l.Properties); err != nil {
			return nil, err
		}
	}
	l.Etag = strconv.FormatInt(etag, 10)
	return &l, nil
}
