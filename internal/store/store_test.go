package store

import (
	"testing"

	pebblestore "github.com/procq/procq/internal/storage/pebble"
)

func openTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{Dir: t.TempDir(), Sync: pebblestore.SyncNever})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(openTestDB(t), Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}
