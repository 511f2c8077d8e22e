// Package store persists per-type priority queues and per-task status
// records over Pebble, and provides the atomic claim semantics the
// worker pool relies on.
//
// # Keyspace
//
//	tq/{type}/meta                    - last assigned sequence (8B BE)
//	tq/{type}/task/{seq}              - framed task envelope (JSON + crc32c)
//	tq/{type}/ready/{^prio}{seq}      - availability index, pops in rank order
//	tq/{type}/lease/{seq}             - active claim: expiry (8B) | priority (4B)
//	tq/{type}/lease_idx/{expiry}{seq} - claim expiry index for the reaper
//	st/{task_id}                      - status record (JSON)
//	st_exp/{expiry}/{task_id}         - status TTL index for the sweeper
//
// Rank is inverted priority then sequence, both big-endian, so a plain
// forward scan of the ready index yields highest priority first and
// FIFO order within one priority.
//
// # Claim lifecycle
//
// Dequeue does not delete an entry; it moves it from the ready index to
// a lease with an expiry (visibility timeout). Ack after a terminal
// status removes the task and its lease. If a worker dies between claim
// and terminal status, ReclaimExpired returns the entry to the ready
// index at its original priority. This closes the crash-after-claim
// window the queue would otherwise have.
//
// Single delivery is enforced by a per-queue mutex around the
// claim read-modify-write plus an atomic batch commit: no two callers
// of Dequeue can observe the same ready entry.
package store
