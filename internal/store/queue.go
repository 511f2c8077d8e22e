package store

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/procq/procq/internal/task"
)

// Claim is a dequeued task held under a lease. The holder must reach a
// terminal status and Ack before the lease expires, or the reaper will
// return the task to the ready index.
type Claim struct {
	Task      task.Task
	Seq       uint64
	ExpiresMs int64
}

// Enqueue inserts t into its type's queue, ranked by (inverted
// priority, sequence). If nowMs <= 0 the wall clock is used.
func (s *Store) Enqueue(ctx context.Context, t task.Task, nowMs int64) (uint64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	if t.SubmittedMs == 0 {
		t.SubmittedMs = wallMs(nowMs)
	}

	qs := s.queue(t.Type)
	qs.mu.Lock()
	defer qs.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()

	qs.lastSeq++
	seq := qs.lastSeq

	val, err := encodeTask(t)
	if err != nil {
		return 0, fmt.Errorf("encode task: %w", err)
	}
	if err := b.Set(taskKey(t.Type, seq), val, nil); err != nil {
		return 0, err
	}
	if err := b.Set(readyKey(t.Type, uint32(t.Priority), seq), nil, nil); err != nil {
		return 0, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], qs.lastSeq)
	if err := b.Set(metaKey(t.Type), meta[:], nil); err != nil {
		return 0, err
	}

	if err := s.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	return seq, nil
}

// Dequeue atomically claims the single highest-ranked ready entry for
// tt, placing it under a lease of leaseMs. Returns nil with no error
// when the queue is empty. No two callers ever receive the same entry.
func (s *Store) Dequeue(ctx context.Context, tt task.Type, leaseMs, nowMs int64) (*Claim, error) {
	nowMs = wallMs(nowMs)
	if leaseMs <= 0 {
		leaseMs = 30_000
	}

	qs := s.queue(tt)
	qs.mu.Lock()
	defer qs.mu.Unlock()

	prefix := readyPrefix(tt)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	b := s.db.NewBatch()
	defer b.Close()

	for ok := iter.First(); ok; ok = iter.Next() {
		k := iter.Key()
		invPrio, seq, okKey := parseReadyKey(k, len(prefix))
		if !okKey {
			continue
		}

		val, errGet := s.db.Get(taskKey(tt, seq))
		if errGet != nil {
			// Dangling index entry; drop it and keep scanning.
			_ = b.Delete(k, nil)
			continue
		}
		t, okDec := decodeTask(val)
		if !okDec {
			_ = b.Delete(k, nil)
			continue
		}

		exp := nowMs + leaseMs
		if err := b.Set(leaseKey(tt, seq), encodeLease(exp, ^invPrio), nil); err != nil {
			return nil, err
		}
		if err := b.Set(leaseIdxKey(tt, exp, seq), nil, nil); err != nil {
			return nil, err
		}
		if err := b.Delete(k, nil); err != nil {
			return nil, err
		}
		if err := s.db.CommitBatch(ctx, b); err != nil {
			return nil, err
		}
		return &Claim{Task: t, Seq: seq, ExpiresMs: exp}, nil
	}

	// Nothing claimable; commit any dangling-entry cleanup.
	if b.Count() > 0 {
		if err := s.db.CommitBatch(ctx, b); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// Ack removes a claimed task and its lease after the holder recorded a
// terminal status.
func (s *Store) Ack(ctx context.Context, tt task.Type, seq uint64) error {
	b := s.db.NewBatch()
	defer b.Close()

	if lv, err := s.db.Get(leaseKey(tt, seq)); err == nil {
		if exp, _, ok := decodeLease(lv); ok {
			_ = b.Delete(leaseIdxKey(tt, exp, seq), nil)
		}
	}
	if err := b.Delete(leaseKey(tt, seq), nil); err != nil {
		return err
	}
	if err := b.Delete(taskKey(tt, seq), nil); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// QueueSize returns the number of ready (unclaimed) entries for tt.
func (s *Store) QueueSize(tt task.Type) (int, error) {
	prefix := readyPrefix(tt)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	n := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		n++
	}
	return n, nil
}

// ReclaimExpired returns claims whose lease expired without an Ack to
// the ready index at their original priority. Returns the number of
// entries requeued.
func (s *Store) ReclaimExpired(ctx context.Context, tt task.Type, nowMs int64, max int) (int, error) {
	nowMs = wallMs(nowMs)

	qs := s.queue(tt)
	qs.mu.Lock()
	defer qs.mu.Unlock()

	prefix := leaseIdxPrefix(tt)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := s.db.NewBatch()
	defer b.Close()

	reclaimed := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		k := iter.Key()
		if len(k) != len(prefix)+8+8 {
			continue
		}
		exp := int64(binary.BigEndian.Uint64(k[len(prefix) : len(prefix)+8]))
		if exp > nowMs {
			break
		}
		seq := binary.BigEndian.Uint64(k[len(prefix)+8:])

		prio := uint32(task.MinPriority)
		if lv, err := s.db.Get(leaseKey(tt, seq)); err == nil {
			if _, p, ok := decodeLease(lv); ok {
				prio = p
			}
		}

		_ = b.Delete(k, nil)
		_ = b.Delete(leaseKey(tt, seq), nil)
		if err := b.Set(readyKey(tt, prio, seq), nil, nil); err != nil {
			return reclaimed, err
		}
		reclaimed++
		if max > 0 && reclaimed >= max {
			break
		}
	}

	if reclaimed > 0 {
		if err := s.db.CommitBatch(ctx, b); err != nil {
			return reclaimed, err
		}
	}
	return reclaimed, nil
}
