// Package badgerlease is the default, single-process lease store adapter.
// It uses dgraph-io/badger/v4 with a transaction-based CRUD pattern: every
// mutation opens db.Update(func(txn) error), compares the caller-supplied
// etag against the entry's stored version before writing, and maps
// conflicts onto the lease package's error taxonomy.
package badgerlease

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	procerrors "github.com/marmos91/partitiond/pkg/errors"
	"github.com/marmos91/partitiond/pkg/lease"

	"context"
)

// Store implements lease.StoreClient and lease.Bootstrap backed by a
// single Badger database.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a Badger database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger lease store at %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type record struct {
	PartitionID       string            `json:"partition_id"`
	Owner             string            `json:"owner"`
	ContinuationToken string            `json:"continuation_token"`
	Timestamp         time.Time         `json:"timestamp"`
	Properties        map[string]string `json:"properties"`
}

func toRecord(l *lease.Lease) record {
	return record{
		PartitionID:       l.PartitionID,
		Owner:             l.Owner,
		ContinuationToken: l.ContinuationToken,
		Timestamp:         l.Timestamp,
		Properties:        l.Properties,
	}
}

func (r record) toLease(etag string) *lease.Lease {
	return &lease.Lease{
		PartitionID:       r.PartitionID,
		Owner:             r.Owner,
		ContinuationToken: r.ContinuationToken,
		Timestamp:         r.Timestamp,
		Properties:        r.Properties,
		Etag:              etag,
	}
}

// Get implements lease.StoreClient.
func (s *Store) Get(ctx context.Context, id string) (*lease.Lease, error) {
	var result *lease.Lease
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err == badger.ErrKeyNotFound {
			return procerrors.NewNotFoundError("", fmt.Sprintf("lease record %q not found", id))
		}
		if err != nil {
			return procerrors.NewTransientError("", "badger get failed", err)
		}
		var rec record
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return procerrors.NewFatalError("", "decoding lease record", err)
		}
		result = rec.toLease(etagFor(item.Version()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Create implements lease.StoreClient. ttl of zero means no expiry.
func (s *Store) Create(ctx context.Context, id string, l *lease.Lease, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(id))
		if err == nil {
			return procerrors.NewAlreadyExistsError(l.PartitionID)
		}
		if err != badger.ErrKeyNotFound {
			return procerrors.NewTransientError(l.PartitionID, "badger get failed during create", err)
		}

		data, err := json.Marshal(toRecord(l))
		if err != nil {
			return procerrors.NewFatalError(l.PartitionID, "encoding lease record", err)
		}
		entry := badger.NewEntry([]byte(id), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		if err := txn.SetEntry(entry); err != nil {
			return procerrors.NewTransientError(l.PartitionID, "badger set failed during create", err)
		}
		return nil
	})
}

// Replace implements lease.StoreClient: a conditional replace guarded by
// l.Etag, the Badger entry's Version() mapped to a string.
func (s *Store) Replace(ctx context.Context, id string, l *lease.Lease) (*lease.Lease, error) {
	var result *lease.Lease
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err == badger.ErrKeyNotFound {
			return procerrors.NewNotFoundError(l.PartitionID, "lease record not found")
		}
		if err != nil {
			return procerrors.NewTransientError(l.PartitionID, "badger get failed during replace", err)
		}
		currentEtag := etagFor(item.Version())
		if l.Etag != "" && l.Etag != currentEtag {
			return procerrors.NewLeaseLostError(l.PartitionID, "etag mismatch on replace")
		}

		data, err := json.Marshal(toRecord(l))
		if err != nil {
			return procerrors.NewFatalError(l.PartitionID, "encoding lease record", err)
		}
		if err := txn.Set([]byte(id), data); err != nil {
			return procerrors.NewTransientError(l.PartitionID, "badger set failed during replace", err)
		}

		result = l.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Badger assigns the entry's version on commit, so read it back.
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(id))
		if err != nil {
			return procerrors.NewTransientError(l.PartitionID, "badger get failed after replace", err)
		}
		result.Etag = etagFor(item.Version())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete implements lease.StoreClient. A missing record is success.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(id))
		if err != nil && err != badger.ErrKeyNotFound {
			return procerrors.NewTransientError("", "badger delete failed", err)
		}
		return nil
	})
}

// List implements lease.StoreClient, enumerating every lease record under
// prefix (excluding the reserved .info/.lock singletons).
func (s *Store) List(ctx context.Context, prefix string) ([]*lease.Lease, error) {
	leasePrefix := []byte(prefix + "..")
	var result []*lease.Lease
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(leasePrefix); it.ValidForPrefix(leasePrefix); it.Next() {
			item := it.Item()
			var rec record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return procerrors.NewFatalError("", "decoding lease record during list", err)
			}
			result = append(result, rec.toLease(etagFor(item.Version())))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func etagFor(version uint64) string {
	return strconv.FormatUint(version, 10)
}
