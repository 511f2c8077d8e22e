package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/procq/procq/internal/storage/pebble"
	"github.com/procq/procq/internal/task"
)

// ErrIllegalTransition is returned when a status write would move a
// record backwards or out of a terminal state.
var ErrIllegalTransition = errors.New("illegal status transition")

// StatusUpdate is one upsert against a task's status record.
type StatusUpdate struct {
	TaskID         string
	Status         task.Status
	Result         json.RawMessage
	Error          string
	ProcessingSecs float64
}

// SetStatus upserts the record for up.TaskID and resets its TTL to the
// configured window. Transitions must be monotonic: pending ->
// processing -> {completed|failed}; terminal records reject writes
// other than an identical-status refresh.
func (s *Store) SetStatus(ctx context.Context, up StatusUpdate, nowMs int64) error {
	if up.TaskID == "" {
		return task.NewValidation("task id required")
	}
	nowMs = wallMs(nowMs)

	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	rec := task.StatusRecord{
		TaskID:    up.TaskID,
		Status:    up.Status,
		CreatedMs: nowMs,
	}

	var prevExp int64
	if data, err := s.db.Get(statusKey(up.TaskID)); err == nil {
		var prev task.StatusRecord
		if json.Unmarshal(data, &prev) == nil {
			if prev.Status != up.Status && !prev.Status.CanTransition(up.Status) {
				return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, prev.Status, up.Status)
			}
			rec.CreatedMs = prev.CreatedMs
			prevExp = prev.ExpiresMs
		}
	} else if !pebblestore.IsNotFound(err) {
		return err
	}

	rec.Result = up.Result
	rec.Error = up.Error
	rec.ProcessingSecs = up.ProcessingSecs
	if up.Status.Terminal() {
		rec.CompletedMs = nowMs
	}
	rec.ExpiresMs = nowMs + s.ttlMs

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	b := s.db.NewBatch()
	defer b.Close()
	if prevExp != 0 && prevExp != rec.ExpiresMs {
		_ = b.Delete(statusExpKey(prevExp, up.TaskID), nil)
	}
	if err := b.Set(statusKey(up.TaskID), data, nil); err != nil {
		return err
	}
	if err := b.Set(statusExpKey(rec.ExpiresMs, up.TaskID), nil, nil); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// readStatus loads and decodes one record, mapping a missing key to
// task.ErrNotFound.
func (s *Store) readStatus(taskID string) (*task.StatusRecord, error) {
	data, err := s.db.Get(statusKey(taskID))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return nil, task.ErrNotFound
		}
		return nil, err
	}
	var rec task.StatusRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	return &rec, nil
}

// GetStatus returns the record for taskID, or task.ErrNotFound for
// unknown IDs and records past their TTL. Expired records are removed
// on read; the sweeper covers the rest.
func (s *Store) GetStatus(ctx context.Context, taskID string, nowMs int64) (*task.StatusRecord, error) {
	nowMs = wallMs(nowMs)

	rec, err := s.readStatus(taskID)
	if err != nil {
		return nil, err
	}
	if rec.ExpiresMs > nowMs {
		return rec, nil
	}

	// Re-check under the status lock: a refresh may have extended the
	// record between the read above and this delete.
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	rec, err = s.readStatus(taskID)
	if err != nil {
		return nil, err
	}
	if rec.ExpiresMs > nowMs {
		return rec, nil
	}
	b := s.db.NewBatch()
	defer b.Close()
	_ = b.Delete(statusKey(taskID), nil)
	_ = b.Delete(statusExpKey(rec.ExpiresMs, taskID), nil)
	_ = s.db.CommitBatch(ctx, b)
	return nil, task.ErrNotFound
}

// PurgeExpiredStatuses removes records whose TTL elapsed. Returns the
// number purged. Called periodically by the queue service's sweeper.
func (s *Store) PurgeExpiredStatuses(ctx context.Context, nowMs int64, max int) (int, error) {
	nowMs = wallMs(nowMs)

	// Holding the status lock for the scan keeps the live-expiry check
	// below consistent with concurrent SetStatus refreshes.
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	prefix := []byte(prefixStatusExp)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := s.db.NewBatch()
	defer b.Close()

	purged := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		k := iter.Key()
		if len(k) < len(prefix)+8+1 {
			continue
		}
		exp := int64(binary.BigEndian.Uint64(k[len(prefix) : len(prefix)+8]))
		if exp > nowMs {
			break
		}
		taskID := string(k[len(prefix)+8+1:])

		// The record may have been rewritten since this index entry;
		// only drop it if the live expiry matches.
		if data, err := s.db.Get(statusKey(taskID)); err == nil {
			var rec task.StatusRecord
			if json.Unmarshal(data, &rec) == nil && rec.ExpiresMs == exp {
				_ = b.Delete(statusKey(taskID), nil)
				purged++
			}
		}
		_ = b.Delete(k, nil)
		if max > 0 && purged >= max {
			break
		}
	}

	if b.Count() > 0 {
		if err := s.db.CommitBatch(ctx, b); err != nil {
			return purged, err
		}
	}
	return purged, nil
}
