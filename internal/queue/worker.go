package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/procq/procq/internal/dispatch"
	"github.com/procq/procq/internal/store"
	"github.com/procq/procq/internal/task"
)

// timeoutErrText is the error recorded when a processor exceeds its
// deadline. Part of the status contract consumed by the API layer.
const timeoutErrText = "Task timed out"

// worker is one claim-execute-record loop bound to a single task type.
type worker struct {
	id       string
	taskType task.Type
	leaseMs  int64
	store    TaskStore
	registry *dispatch.Registry
	cfg      Config
	logger   *zap.Logger
	active   *atomic.Int64
}

// run loops until ctx is cancelled. The worker never exits for any
// other reason: empty queues mean a bounded wait, transient store
// failures mean a fixed backoff, and processor outcomes of every kind
// feed back into the next iteration.
func (w *worker) run(ctx context.Context) {
	w.active.Add(1)
	defer w.active.Add(-1)
	w.logger.Info("worker started", zap.String("task_type", string(w.taskType)))

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopped")
			return
		}

		claim, err := w.store.Dequeue(ctx, w.taskType, w.leaseMs, 0)
		if err != nil {
			w.logger.Error("dequeue failed", zap.Error(err))
			if !w.wait(ctx, w.cfg.StoreBackoff) {
				w.logger.Info("worker stopped")
				return
			}
			continue
		}
		if claim == nil {
			if !w.wait(ctx, w.cfg.PollInterval) {
				w.logger.Info("worker stopped")
				return
			}
			continue
		}

		w.process(ctx, claim)
	}
}

// wait blocks for d or until cancellation; reports false on cancel.
func (w *worker) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// process drives one claimed task to a terminal status.
func (w *worker) process(ctx context.Context, claim *store.Claim) {
	t := claim.Task
	logger := w.logger.With(zap.String("task_id", t.ID), zap.String("task_type", string(t.Type)))
	logger.Info("processing task", zap.Int("priority", t.Priority))

	if err := w.store.SetStatus(ctx, store.StatusUpdate{TaskID: t.ID, Status: task.StatusProcessing}, 0); err != nil {
		if errors.Is(err, store.ErrIllegalTransition) {
			// A previous holder already reached a terminal status but
			// crashed before Ack. Release the claim instead of rerunning.
			if aerr := w.store.Ack(ctx, t.Type, claim.Seq); aerr != nil {
				logger.Error("ack of finished task failed", zap.Error(aerr))
			}
			return
		}
		// Leave the claim for the reaper and back off; the worker
		// itself survives every transient store failure.
		logger.Error("set processing status failed", zap.Error(err))
		w.wait(ctx, w.cfg.StoreBackoff)
		return
	}

	proc, ok := w.registry.Lookup(t.Type)
	if !ok {
		// Unregistered type: terminal failure, never retried.
		verr := task.NewValidation("no processor registered for task type %q", t.Type)
		w.finish(ctx, claim, store.StatusUpdate{
			TaskID: t.ID,
			Status: task.StatusFailed,
			Error:  verr.Error(),
		}, logger)
		return
	}

	up := w.invoke(proc, t)
	w.finish(ctx, claim, up, logger)
}

type procOutcome struct {
	result json.RawMessage
	err    error
}

// invoke runs the processor under the execution deadline. A deadline
// hit abandons the invocation goroutine (see package doc); the claim
// lease outlives the deadline so the abandoned entry is still acked by
// finish rather than leaked.
func (w *worker) invoke(proc dispatch.Processor, t task.Task) store.StatusUpdate {
	pctx, cancel := context.WithTimeout(context.Background(), w.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan procOutcome, 1)
	go func() {
		result, err := proc.Process(pctx, t.Payload)
		done <- procOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		elapsed := time.Since(start).Seconds()
		if out.err != nil {
			msg := out.err.Error()
			// A cooperative processor may observe the deadline and
			// return the context error before the select does.
			if errors.Is(out.err, context.DeadlineExceeded) {
				msg = timeoutErrText
			}
			return store.StatusUpdate{
				TaskID:         t.ID,
				Status:         task.StatusFailed,
				Error:          msg,
				ProcessingSecs: elapsed,
			}
		}
		if len(out.result) == 0 || !json.Valid(out.result) {
			herr := task.NewHandler(task.NewValidation("processor returned an invalid result"))
			return store.StatusUpdate{
				TaskID:         t.ID,
				Status:         task.StatusFailed,
				Error:          herr.Error(),
				ProcessingSecs: elapsed,
			}
		}
		return store.StatusUpdate{
			TaskID:         t.ID,
			Status:         task.StatusCompleted,
			Result:         out.result,
			ProcessingSecs: elapsed,
		}
	case <-pctx.Done():
		return store.StatusUpdate{
			TaskID:         t.ID,
			Status:         task.StatusFailed,
			Error:          timeoutErrText,
			ProcessingSecs: time.Since(start).Seconds(),
		}
	}
}

// finish records the terminal status and releases the claim.
func (w *worker) finish(ctx context.Context, claim *store.Claim, up store.StatusUpdate, logger *zap.Logger) {
	if err := w.store.SetStatus(ctx, up, 0); err != nil {
		// The claim stays leased; the reaper will requeue it once the
		// lease expires.
		logger.Error("set terminal status failed", zap.Error(err))
		w.wait(ctx, w.cfg.StoreBackoff)
		return
	}
	if err := w.store.Ack(ctx, claim.Task.Type, claim.Seq); err != nil {
		logger.Error("ack failed", zap.Error(err))
	}

	switch up.Status {
	case task.StatusCompleted:
		logger.Info("task completed", zap.Float64("processing_secs", up.ProcessingSecs))
	default:
		logger.Error("task failed",
			zap.String("error", up.Error),
			zap.Float64("processing_secs", up.ProcessingSecs),
		)
	}
}
