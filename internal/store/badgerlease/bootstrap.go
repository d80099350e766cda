package badgerlease

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"

	"context"
	"time"

	procerrors "github.com/marmos91/partitiond/pkg/errors"
)

// Reserved singleton keys, namespaced outside the "{prefix}.." lease-record
// space so List never enumerates them.
const (
	markerKey = ".partitiond.store-marker"
	lockKey   = ".partitiond.init-lock"
)

// IsInitialized implements lease.Bootstrap.
func (s *Store) IsInitialized(ctx context.Context) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(markerKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return procerrors.NewTransientError("", "badger get failed checking store marker", err)
		}
		found = true
		return nil
	})
	return found, err
}

// AcquireInitLock implements lease.Bootstrap using Badger's native
// SetEntry(...).WithTTL(ttl) so a crashed bootstrapper's lock expires on
// its own instead of wedging initialization forever.
func (s *Store) AcquireInitLock(ctx context.Context, ttl time.Duration) (bool, error) {
	acquired := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(lockKey))
		if err == nil {
			return nil // lock held by someone else; an expired lock reads as not found
		}
		if err != badger.ErrKeyNotFound {
			return procerrors.NewTransientError("", "badger get failed checking init-lock", err)
		}

		entry := badger.NewEntry([]byte(lockKey), []byte("1")).WithTTL(ttl)
		if err := txn.SetEntry(entry); err != nil {
			return procerrors.NewTransientError("", "badger set failed acquiring init-lock", err)
		}
		acquired = true
		return nil
	})
	return acquired, err
}

// MarkInitialized implements lease.Bootstrap. A pre-existing marker is
// success.
func (s *Store) MarkInitialized(ctx context.Context, properties map[string]string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(markerKey))
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return procerrors.NewTransientError("", "badger get failed checking store marker", err)
		}

		data, err := json.Marshal(properties)
		if err != nil {
			return procerrors.NewFatalError("", "encoding store marker properties", err)
		}
		if err := txn.Set([]byte(markerKey), data); err != nil {
			return procerrors.NewTransientError("", "badger set failed writing store marker", err)
		}
		return nil
	})
}

// ReleaseInitLock implements lease.Bootstrap. A missing lock is success.
func (s *Store) ReleaseInitLock(ctx context.Context) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(lockKey))
		if err != nil && err != badger.ErrKeyNotFound {
			return procerrors.NewTransientError("", "badger delete failed releasing init-lock", err)
		}
		return nil
	})
}

// MarkerProperties implements lease.Bootstrap.
func (s *Store) MarkerProperties(ctx context.Context) (map[string]string, error) {
	var props map[string]string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(markerKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return procerrors.NewTransientError("", "badger get failed reading store marker", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &props)
		})
	})
	if err != nil {
		return nil, err
	}
	return props, nil
}
