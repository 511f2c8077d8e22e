package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/procq/procq/internal/task"
)

const ttlMs = int64(time.Hour / time.Millisecond)

func TestSetAndGetStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetStatus(ctx, StatusUpdate{TaskID: "t1", Status: task.StatusPending}, 1000); err != nil {
		t.Fatalf("set: %v", err)
	}
	rec, err := s.GetStatus(ctx, "t1", 2000)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != task.StatusPending {
		t.Fatalf("status: %s", rec.Status)
	}
	if rec.CreatedMs != 1000 {
		t.Fatalf("created: %d", rec.CreatedMs)
	}
	if rec.ExpiresMs != 1000+ttlMs {
		t.Fatalf("expires: %d", rec.ExpiresMs)
	}
}

func TestGetStatusUnknown(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetStatus(context.Background(), "nope", 1000); !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestStatusExpiresAfterTTL(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetStatus(ctx, StatusUpdate{TaskID: "t1", Status: task.StatusPending}, 1000); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := s.GetStatus(ctx, "t1", 1000+ttlMs-1); err != nil {
		t.Fatalf("still live: %v", err)
	}
	if _, err := s.GetStatus(ctx, "t1", 1000+ttlMs); !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("want ErrNotFound at TTL, got %v", err)
	}
	// The expired read removes the record.
	if _, err := s.GetStatus(ctx, "t1", 1000); !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("expired record should be gone, got %v", err)
	}
}

func TestStatusTTLResetOnWrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetStatus(ctx, StatusUpdate{TaskID: "t1", Status: task.StatusPending}, 1000); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetStatus(ctx, StatusUpdate{TaskID: "t1", Status: task.StatusProcessing}, 500_000); err != nil {
		t.Fatalf("set: %v", err)
	}
	rec, err := s.GetStatus(ctx, "t1", 1000+ttlMs+1)
	if err != nil {
		t.Fatalf("record should outlive the first TTL window: %v", err)
	}
	if rec.ExpiresMs != 500_000+ttlMs {
		t.Fatalf("expires: %d", rec.ExpiresMs)
	}
	if rec.CreatedMs != 1000 {
		t.Fatalf("created must survive rewrites: %d", rec.CreatedMs)
	}
}

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetStatus(ctx, StatusUpdate{TaskID: "t1", Status: task.StatusProcessing}, 1000); err != nil {
		t.Fatalf("set: %v", err)
	}
	err := s.SetStatus(ctx, StatusUpdate{TaskID: "t1", Status: task.StatusPending}, 2000)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("processing->pending: want ErrIllegalTransition, got %v", err)
	}

	if err := s.SetStatus(ctx, StatusUpdate{TaskID: "t1", Status: task.StatusCompleted, Result: json.RawMessage(`{}`)}, 3000); err != nil {
		t.Fatalf("set: %v", err)
	}
	err = s.SetStatus(ctx, StatusUpdate{TaskID: "t1", Status: task.StatusFailed, Error: "late"}, 4000)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("terminal rewrite: want ErrIllegalTransition, got %v", err)
	}
}

func TestTerminalStatusRecordsOutcome(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetStatus(ctx, StatusUpdate{TaskID: "t1", Status: task.StatusPending}, 1000); err != nil {
		t.Fatalf("set: %v", err)
	}
	up := StatusUpdate{
		TaskID:         "t1",
		Status:         task.StatusCompleted,
		Result:         json.RawMessage(`{"out":1}`),
		ProcessingSecs: 1.5,
	}
	if err := s.SetStatus(ctx, up, 5000); err != nil {
		t.Fatalf("set: %v", err)
	}
	rec, err := s.GetStatus(ctx, "t1", 6000)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CompletedMs != 5000 {
		t.Fatalf("completed: %d", rec.CompletedMs)
	}
	if rec.ProcessingSecs != 1.5 {
		t.Fatalf("processing secs: %v", rec.ProcessingSecs)
	}
	if string(rec.Result) != `{"out":1}` {
		t.Fatalf("result: %s", rec.Result)
	}
}

func TestExpiredReadDoesNotClobberRefresh(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// A read that sees the record expired races a refresh extending it.
	// Whichever order they land in, a refresh that returned success must
	// be visible afterwards.
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("t%d", i)
		if err := s.SetStatus(ctx, StatusUpdate{TaskID: id, Status: task.StatusPending}, 100); err != nil {
			t.Fatalf("seed: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.GetStatus(ctx, id, 150+ttlMs)
		}()
		go func() {
			defer wg.Done()
			if err := s.SetStatus(ctx, StatusUpdate{TaskID: id, Status: task.StatusPending}, 2000); err != nil {
				t.Errorf("refresh: %v", err)
			}
		}()
		wg.Wait()

		if _, err := s.GetStatus(ctx, id, 2000); err != nil {
			t.Fatalf("refresh clobbered by expired read: %v", err)
		}
	}
}

func TestPurgeExpiredStatuses(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetStatus(ctx, StatusUpdate{TaskID: "old", Status: task.StatusPending}, 1000); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetStatus(ctx, StatusUpdate{TaskID: "new", Status: task.StatusPending}, 2_000_000); err != nil {
		t.Fatalf("set: %v", err)
	}

	n, err := s.PurgeExpiredStatuses(ctx, 1000+ttlMs, 0)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 purged, got %d", n)
	}
	if _, err := s.GetStatus(ctx, "old", 1000); !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("old should be purged, got %v", err)
	}
	if _, err := s.GetStatus(ctx, "new", 2_000_001); err != nil {
		t.Fatalf("new should survive: %v", err)
	}
}
