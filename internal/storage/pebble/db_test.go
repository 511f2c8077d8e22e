package pebblestore

import (
	"context"
	"testing"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{Dir: t.TempDir(), Sync: SyncNever})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatalf("want error for empty dir")
	}
}

func TestSetGetDelete(t *testing.T) {
	db := openTest(t)

	if err := db.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q", got)
	}

	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); !IsNotFound(err) {
		t.Fatalf("want not-found after delete, got %v", err)
	}
}

func TestBatchCommitIsAtomic(t *testing.T) {
	db := openTest(t)
	b := db.NewBatch()
	defer b.Close()

	if err := b.Set([]byte("a"), []byte("1"), nil); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := b.Set([]byte("b"), []byte("2"), nil); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := db.CommitBatch(context.Background(), b); err != nil {
		t.Fatalf("commit: %v", err)
	}

	for _, k := range []string{"a", "b"} {
		if _, err := db.Get([]byte(k)); err != nil {
			t.Fatalf("get %s: %v", k, err)
		}
	}
}

func TestParseSyncMode(t *testing.T) {
	cases := []struct {
		in   string
		want SyncMode
		err  bool
	}{
		{"", SyncAlways, false},
		{"always", SyncAlways, false},
		{"interval", SyncInterval, false},
		{"never", SyncNever, false},
		{"sometimes", SyncAlways, true},
	}
	for _, c := range cases {
		got, err := ParseSyncMode(c.in)
		if c.err != (err != nil) {
			t.Fatalf("%q: err=%v", c.in, err)
		}
		if err == nil && got != c.want {
			t.Fatalf("%q: got %v want %v", c.in, got, c.want)
		}
	}
}
