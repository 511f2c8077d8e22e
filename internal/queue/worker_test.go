package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/procq/procq/internal/dispatch"
	pebblestore "github.com/procq/procq/internal/storage/pebble"
	"github.com/procq/procq/internal/store"
	"github.com/procq/procq/internal/task"
)

var errStoreDown = errors.New("store unavailable")

// flakyStore injects failures into selected operations while passing
// everything else through to the real store.
type flakyStore struct {
	TaskStore
	failDequeue    atomic.Bool
	failProcessing atomic.Bool
	failTerminal   atomic.Bool
}

func (f *flakyStore) Dequeue(ctx context.Context, tt task.Type, leaseMs, nowMs int64) (*store.Claim, error) {
	if f.failDequeue.Load() {
		return nil, errStoreDown
	}
	return f.TaskStore.Dequeue(ctx, tt, leaseMs, nowMs)
}

func (f *flakyStore) SetStatus(ctx context.Context, up store.StatusUpdate, nowMs int64) error {
	if f.failProcessing.Load() && up.Status == task.StatusProcessing {
		return errStoreDown
	}
	if f.failTerminal.Load() && up.Status.Terminal() {
		return errStoreDown
	}
	return f.TaskStore.SetStatus(ctx, up, nowMs)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{Dir: t.TempDir(), Sync: pebblestore.SyncNever})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st, err := store.Open(db, store.Options{})
	require.NoError(t, err)
	return st
}

// shortLeaseConfig keeps lease expiry and reaping fast enough for the
// recovery paths to play out within a test run.
func shortLeaseConfig() Config {
	cfg := testConfig()
	cfg.TaskTimeout = 50 * time.Millisecond
	cfg.LeaseSlack = 50 * time.Millisecond
	cfg.ReapInterval = 20 * time.Millisecond
	return cfg
}

func echoRegistry(tt task.Type) *dispatch.Registry {
	reg := dispatch.NewRegistry()
	reg.Register(tt, dispatch.Func(func(_ context.Context, p json.RawMessage) (json.RawMessage, error) {
		return p, nil
	}))
	return reg
}

func requireAlive(t *testing.T, svc *Service) {
	t.Helper()
	require.Equal(t, StateRunning, svc.State())
	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, stats.TotalWorkers, stats.ActiveWorkers)
}

func TestWorkerSurvivesDequeueFailure(t *testing.T) {
	flaky := &flakyStore{TaskStore: openStore(t)}
	flaky.failDequeue.Store(true)

	svc := New(flaky, echoRegistry(task.TypeContentGeneration), testConfig(), nil)
	require.NoError(t, svc.Start())
	defer svc.Stop()

	id, err := svc.Submit(context.Background(), task.TypeContentGeneration, json.RawMessage(`{"n":1}`), 5)
	require.NoError(t, err)

	// Let the worker hit the failure and back off several times.
	time.Sleep(100 * time.Millisecond)
	requireAlive(t, svc)

	// Once the store heals, the same worker picks the task up.
	flaky.failDequeue.Store(false)
	rec := waitTerminal(t, svc, id)
	require.Equal(t, task.StatusCompleted, rec.Status)
}

func TestWorkerSurvivesProcessingStatusFailure(t *testing.T) {
	flaky := &flakyStore{TaskStore: openStore(t)}
	svc := New(flaky, echoRegistry(task.TypeOCRExtraction), shortLeaseConfig(), nil)

	id, err := svc.Submit(context.Background(), task.TypeOCRExtraction, json.RawMessage(`{}`), 5)
	require.NoError(t, err)

	flaky.failProcessing.Store(true)
	require.NoError(t, svc.Start())
	defer svc.Stop()

	time.Sleep(80 * time.Millisecond)
	requireAlive(t, svc)

	// The failed claim sits under its lease; after healing, the reaper
	// requeues it and the worker finishes the job.
	flaky.failProcessing.Store(false)
	rec := waitTerminal(t, svc, id)
	require.Equal(t, task.StatusCompleted, rec.Status)
}

func TestWorkerSurvivesTerminalStatusFailure(t *testing.T) {
	flaky := &flakyStore{TaskStore: openStore(t)}
	svc := New(flaky, echoRegistry(task.TypeImageAnalysis), shortLeaseConfig(), nil)

	id, err := svc.Submit(context.Background(), task.TypeImageAnalysis, json.RawMessage(`{}`), 5)
	require.NoError(t, err)

	flaky.failTerminal.Store(true)
	require.NoError(t, svc.Start())
	defer svc.Stop()

	time.Sleep(80 * time.Millisecond)
	requireAlive(t, svc)

	flaky.failTerminal.Store(false)
	rec := waitTerminal(t, svc, id)
	require.Equal(t, task.StatusCompleted, rec.Status)
}

func TestWorkerReleasesAlreadyFinishedClaim(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	tt := task.TypeContentGeneration

	// A task whose previous holder reached a terminal status but died
	// before Ack: the entry is still queued while its record is final.
	tsk := task.Task{ID: "finished", Type: tt, Payload: json.RawMessage(`{}`), Priority: 5}
	require.NoError(t, st.SetStatus(ctx, store.StatusUpdate{TaskID: tsk.ID, Status: task.StatusPending}, 1000))
	_, err := st.Enqueue(ctx, tsk, 1000)
	require.NoError(t, err)
	require.NoError(t, st.SetStatus(ctx, store.StatusUpdate{
		TaskID: tsk.ID,
		Status: task.StatusCompleted,
		Result: json.RawMessage(`{"done":true}`),
	}, 2000))

	svc := New(st, echoRegistry(tt), shortLeaseConfig(), nil)
	require.NoError(t, svc.Start())
	defer svc.Stop()

	// The worker must release the claim without rerunning the task:
	// nothing left queued, leased, or reclaimable.
	require.Eventually(t, func() bool {
		n, err := st.QueueSize(tt)
		if err != nil || n != 0 {
			return false
		}
		reclaimed, err := st.ReclaimExpired(ctx, tt, time.Now().UnixMilli()+600_000, 0)
		return err == nil && reclaimed == 0
	}, 5*time.Second, 10*time.Millisecond)

	rec, err := svc.Result(ctx, tsk.ID)
	require.NoError(t, err)
	require.Equal(t, task.StatusCompleted, rec.Status)
	require.JSONEq(t, `{"done":true}`, string(rec.Result))
}
