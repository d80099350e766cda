package pgxlease

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	procerrors "github.com/marmos91/partitiond/pkg/errors"
)

// Reserved record ids in lease_store_markers, mirroring badgerlease's
// reserved keys.
const (
	markerID = "store-marker"
	lockID   = "init-lock"
)

// IsInitialized implements lease.Bootstrap.
func (s *Store) IsInitialized(ctx context.Context) (bool, error) {
	const query = `SELECT 1 FROM lease_store_markers WHERE record_id = $1`
	var one int
	err := s.pool.QueryRow(ctx, query, markerID).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapPgError(err, "", "IsInitialized")
	}
	return true, nil
}

// AcquireInitLock implements lease.Bootstrap using the markers table's
// expires_at column as the TTL mechanism, since Postgres has no native
// per-row TTL like Badger's WithTTL.
func (s *Store) AcquireInitLock(ctx context.Context, ttl time.Duration) (bool, error) {
	expiresAt := time.Now().Add(ttl)

	const deleteExpired = `DELETE FROM lease_store_markers WHERE record_id = $1 AND expires_at IS NOT NULL AND expires_at <= now()`
	if _, err := s.pool.Exec(ctx, deleteExpired, lockID); err != nil {
		return false, mapPgError(err, "", "AcquireInitLock:reap")
	}

	const insert = `
		INSERT INTO lease_store_markers (record_id, properties, expires_at)
		VALUES ($1, '{}'::jsonb, $2)
		ON CONFLICT (record_id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, insert, lockID, expiresAt)
	if err != nil {
		return false, mapPgError(err, "", "AcquireInitLock")
	}
	return tag.RowsAffected() > 0, nil
}

// MarkInitialized implements lease.Bootstrap. A pre-existing marker is
// success.
func (s *Store) MarkInitialized(ctx context.Context, properties map[string]string) error {
	props, err := json.Marshal(properties)
	if err != nil {
		return procerrors.NewFatalError("", "encoding store marker properties", err)
	}

	const query = `
		INSERT INTO lease_store_markers (record_id, properties, expires_at)
		VALUES ($1, $2, NULL)
		ON CONFLICT (record_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, markerID, props); err != nil {
		return mapPgError(err, "", "MarkInitialized")
	}
	return nil
}

// ReleaseInitLock implements lease.Bootstrap. A missing lock is success.
func (s *Store) ReleaseInitLock(ctx context.Context) error {
	const query = `DELETE FROM lease_store_markers WHERE record_id = $1`
	if _, err := s.pool.Exec(ctx, query, lockID); err != nil {
		return mapPgError(err, "", "ReleaseInitLock")
	}
	return nil
}

// MarkerProperties implements lease.Bootstrap.
func (s *Store) MarkerProperties(ctx context.Context) (map[string]string, error) {
	const query = `SELECT properties FROM lease_store_markers WHERE record_id = $1`
	var raw []byte
	err := s.pool.QueryRow(ctx, query, markerID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapPgError(err, "", "MarkerProperties")
	}
	var props map[string]string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &props); err != nil {
			return nil, procerrors.NewFatalError("", "decoding store marker properties", err)
		}
	}
	return props, nil
}
