package store

import (
	"encoding/binary"

	"github.com/procq/procq/internal/task"
)

// Key prefixes for store data structures.
const (
	prefixQueue     = "tq/"        // per-type queue root
	prefixStatus    = "st/"        // status records
	prefixStatusExp = "st_exp/"    // status TTL index
	segMeta         = "meta"       // queue metadata
	segTask         = "task/"      // task envelopes
	segReady        = "ready/"     // availability index
	segLease        = "lease/"     // active claims
	segLeaseIdx     = "lease_idx/" // claim expiry index
)

// queuePrefix returns the base prefix for one task type's queue.
// Format: tq/{type}/
func queuePrefix(tt task.Type) string {
	return prefixQueue + string(tt) + "/"
}

// metaKey returns the queue metadata key.
// Format: tq/{type}/meta
func metaKey(tt task.Type) []byte {
	return []byte(queuePrefix(tt) + segMeta)
}

// taskKey returns the key holding one task envelope.
// Format: tq/{type}/task/{seq}
func taskKey(tt task.Type, seq uint64) []byte {
	prefix := queuePrefix(tt) + segTask
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

// readyKey returns the availability index key.
// Format: tq/{type}/ready/{^priority}{seq}
// Priority is inverted so higher priorities sort (and pop) first;
// the trailing sequence gives FIFO order within one priority.
func readyKey(tt task.Type, priority uint32, seq uint64) []byte {
	prefix := queuePrefix(tt) + segReady
	key := make([]byte, len(prefix)+4+8)
	copy(key, prefix)
	binary.BigEndian.PutUint32(key[len(prefix):], ^priority)
	binary.BigEndian.PutUint64(key[len(prefix)+4:], seq)
	return key
}

// readyPrefix returns the scan prefix for the availability index.
func readyPrefix(tt task.Type) []byte {
	return []byte(queuePrefix(tt) + segReady)
}

// parseReadyKey extracts the inverted priority and sequence from an
// availability index key. Returns ok=false for malformed keys.
func parseReadyKey(key []byte, prefixLen int) (invPrio uint32, seq uint64, ok bool) {
	if len(key) != prefixLen+4+8 {
		return 0, 0, false
	}
	invPrio = binary.BigEndian.Uint32(key[prefixLen:])
	seq = binary.BigEndian.Uint64(key[prefixLen+4:])
	return invPrio, seq, true
}

// leaseKey returns the active claim key.
// Format: tq/{type}/lease/{seq}
func leaseKey(tt task.Type, seq uint64) []byte {
	prefix := queuePrefix(tt) + segLease
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

// leaseIdxKey returns the claim expiry index key.
// Format: tq/{type}/lease_idx/{expires_ms}{seq}
func leaseIdxKey(tt task.Type, expiresMs int64, seq uint64) []byte {
	prefix := queuePrefix(tt) + segLeaseIdx
	key := make([]byte, len(prefix)+8+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(expiresMs))
	binary.BigEndian.PutUint64(key[len(prefix)+8:], seq)
	return key
}

// leaseIdxPrefix returns the scan prefix for the claim expiry index.
func leaseIdxPrefix(tt task.Type) []byte {
	return []byte(queuePrefix(tt) + segLeaseIdx)
}

// statusKey returns the status record key.
// Format: st/{task_id}
func statusKey(taskID string) []byte {
	return []byte(prefixStatus + taskID)
}

// statusExpKey returns the status TTL index key.
// Format: st_exp/{expiry_ms}/{task_id}
func statusExpKey(expiresMs int64, taskID string) []byte {
	key := make([]byte, len(prefixStatusExp)+8+1+len(taskID))
	copy(key, prefixStatusExp)
	binary.BigEndian.PutUint64(key[len(prefixStatusExp):], uint64(expiresMs))
	key[len(prefixStatusExp)+8] = '/'
	copy(key[len(prefixStatusExp)+8+1:], taskID)
	return key
}

// keyUpperBound returns the exclusive upper bound for scanning a
// prefix: the shortest key greater than every key carrying it.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
