// ABOUTME: Key-value backend abstraction beneath the local store
// ABOUTME: Badger and SQLite implementations satisfy the same small interface
package db

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Backend kinds accepted by Open.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// ErrKeyNotFound is returned by Backend.Get for a missing key.
var ErrKeyNotFound = errors.New("key not found")

// Backend is a durable string-keyed byte store.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	DropAll() error
	Close() error
}

// OpenBackend opens the named backend kind rooted at dataDir.
func OpenBackend(kind, dataDir string) (Backend, error) {
	switch kind {
	case BackendBadger, "":
		b, err := OpenBadger(filepath.Join(dataDir, "badger"))
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendSQLite:
		s, err := OpenSQLite(filepath.Join(dataDir, "stakemap.db"))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown local backend %q", kind)
	}
}
