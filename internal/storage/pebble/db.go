package pebblestore

import (
	"context"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
)

// SyncMode controls when committed batches force a WAL fsync.
type SyncMode int

const (
	// SyncAlways fsyncs the WAL on every commit.
	SyncAlways SyncMode = iota
	// SyncInterval lets Pebble coalesce WAL syncs within SyncEvery.
	SyncInterval
	// SyncNever leaves syncing entirely to Pebble's own policy.
	SyncNever
)

// ParseSyncMode maps a config string to a SyncMode.
func ParseSyncMode(s string) (SyncMode, error) {
	switch s {
	case "", "always":
		return SyncAlways, nil
	case "interval":
		return SyncInterval, nil
	case "never":
		return SyncNever, nil
	default:
		return SyncAlways, errors.New("pebblestore: unknown sync mode " + s)
	}
}

// Options configures the store wrapper.
type Options struct {
	// Dir is the Pebble database directory.
	Dir string
	// Sync selects the WAL durability mode.
	Sync SyncMode
	// SyncEvery is the coalescing window for SyncInterval.
	SyncEvery time.Duration
}

// DB wraps a Pebble instance with the configured durability policy.
type DB struct {
	inner *pebble.DB
	sync  bool
}

// Open creates or opens the database at opts.Dir.
func Open(opts Options) (*DB, error) {
	if opts.Dir == "" {
		return nil, errors.New("pebblestore: Options.Dir is required")
	}

	po := &pebble.Options{}
	if opts.Sync == SyncInterval {
		every := opts.SyncEvery
		if every <= 0 {
			every = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return every }
	}

	inner, err := pebble.Open(opts.Dir, po)
	if err != nil {
		return nil, err
	}
	return &DB{inner: inner, sync: opts.Sync == SyncAlways}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// NewBatch creates a batch for atomic multi-key updates.
func (db *DB) NewBatch() *pebble.Batch {
	return db.inner.NewBatch()
}

// CommitBatch commits b under the configured sync mode.
func (db *DB) CommitBatch(_ context.Context, b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebblestore: nil batch")
	}
	mode := pebble.NoSync
	if db.sync {
		mode = pebble.Sync
	}
	return b.Commit(mode)
}

// Set writes a single key respecting the sync policy.
func (db *DB) Set(key, value []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return db.CommitBatch(context.Background(), b)
}

// Delete removes a single key respecting the sync policy.
func (db *DB) Delete(key []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return err
	}
	return db.CommitBatch(context.Background(), b)
}

// Get returns a copy of the value for key.
func (db *DB) Get(key []byte) ([]byte, error) {
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

// IsNotFound reports whether err is a missing-key error.
func IsNotFound(err error) bool {
	return errors.Is(err, pebble.ErrNotFound)
}

// NewIter creates a raw iterator with the provided options.
func (db *DB) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	return db.inner.NewIter(opts)
}
