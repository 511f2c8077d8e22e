package store

import (
	"encoding/binary"
	"sync"
	"time"

	pebblestore "github.com/procq/procq/internal/storage/pebble"
	"github.com/procq/procq/internal/task"
)

// Options configures a Store.
type Options struct {
	// StatusTTL is the window after the last status write during which
	// a record remains queryable. Defaults to one hour.
	StatusTTL time.Duration
}

// Store persists per-type priority queues and per-task status records.
// Safe for concurrent use by many workers.
type Store struct {
	db    *pebblestore.DB
	ttlMs int64

	mu     sync.Mutex
	queues map[task.Type]*queueState

	// statusMu serializes status record read-modify-writes so an
	// expiry-driven delete can never clobber a concurrent refresh.
	statusMu sync.Mutex
}

// queueState serializes claim and enqueue read-modify-writes for one
// task type's queue.
type queueState struct {
	mu      sync.Mutex
	lastSeq uint64
}

// Open initializes a Store, restoring per-queue sequence counters from
// metadata if present.
func Open(db *pebblestore.DB, opts Options) (*Store, error) {
	ttl := opts.StatusTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &Store{
		db:     db,
		ttlMs:  ttl.Milliseconds(),
		queues: make(map[task.Type]*queueState),
	}
	for _, tt := range task.Types() {
		qs := &queueState{}
		if meta, err := db.Get(metaKey(tt)); err == nil && len(meta) >= 8 {
			qs.lastSeq = binary.BigEndian.Uint64(meta[:8])
		}
		s.queues[tt] = qs
	}
	return s, nil
}

// wallMs substitutes the wall clock when the caller did not inject a
// timestamp. Tests pass explicit values for determinism.
func wallMs(nowMs int64) int64 {
	if nowMs > 0 {
		return nowMs
	}
	return time.Now().UnixMilli()
}

// queue returns the state for tt, creating it for types registered
// after Open.
func (s *Store) queue(tt task.Type) *queueState {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs, ok := s.queues[tt]
	if !ok {
		qs = &queueState{}
		s.queues[tt] = qs
	}
	return qs
}
