package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/procq/procq/internal/dispatch"
	"github.com/procq/procq/internal/store"
	"github.com/procq/procq/internal/task"
)

// State is the service lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Config tunes the worker pool.
type Config struct {
	// WorkersPerType is the number of concurrent workers per task type.
	WorkersPerType int
	// PollInterval is how long a worker waits after finding its queue
	// empty.
	PollInterval time.Duration
	// TaskTimeout is the processor execution deadline.
	TaskTimeout time.Duration
	// StoreBackoff is the fixed wait after a transient store failure.
	StoreBackoff time.Duration
	// LeaseSlack is added to TaskTimeout to size the claim lease, so a
	// healthy worker always reaches Ack before its lease expires.
	LeaseSlack time.Duration
	// ReapInterval is how often expired claims are requeued.
	ReapInterval time.Duration
	// SweepInterval is how often expired status records are purged.
	SweepInterval time.Duration
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		WorkersPerType: 4,
		PollInterval:   time.Second,
		TaskTimeout:    300 * time.Second,
		StoreBackoff:   5 * time.Second,
		LeaseSlack:     30 * time.Second,
		ReapInterval:   15 * time.Second,
		SweepInterval:  time.Minute,
	}
}

func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.WorkersPerType <= 0 {
		c.WorkersPerType = d.WorkersPerType
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = d.TaskTimeout
	}
	if c.StoreBackoff <= 0 {
		c.StoreBackoff = d.StoreBackoff
	}
	if c.LeaseSlack <= 0 {
		c.LeaseSlack = d.LeaseSlack
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = d.ReapInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	return c
}

// TaskStore is the persistence surface the service and its workers
// drive: enqueue/claim/ack against the per-type queues plus the status
// record lifecycle. *store.Store is the production implementation.
type TaskStore interface {
	Enqueue(ctx context.Context, t task.Task, nowMs int64) (uint64, error)
	Dequeue(ctx context.Context, tt task.Type, leaseMs, nowMs int64) (*store.Claim, error)
	Ack(ctx context.Context, tt task.Type, seq uint64) error
	QueueSize(tt task.Type) (int, error)
	SetStatus(ctx context.Context, up store.StatusUpdate, nowMs int64) error
	GetStatus(ctx context.Context, taskID string, nowMs int64) (*task.StatusRecord, error)
	ReclaimExpired(ctx context.Context, tt task.Type, nowMs int64, max int) (int, error)
	PurgeExpiredStatuses(ctx context.Context, nowMs int64, max int) (int, error)
}

// Service owns the worker pool and the dispatch table, and exposes the
// submit/query/stats surface.
type Service struct {
	cfg      Config
	store    TaskStore
	registry *dispatch.Registry
	logger   *zap.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	wg     sync.WaitGroup

	totalWorkers  int
	activeWorkers atomic.Int64
}

// New creates a Service. The registry must be fully populated before
// Start; the service spawns workers only for registered types.
func New(st TaskStore, registry *dispatch.Registry, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:      cfg.normalize(),
		store:    st,
		registry: registry,
		logger:   logger.Named("queue"),
	}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start spawns WorkersPerType workers for every registered task type
// and the background reaper/sweeper loops. It is an error to start a
// service that is not stopped.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStopped {
		return fmt.Errorf("cannot start queue service in state %s", s.state)
	}
	s.state = StateStarting

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	types := s.registry.Types()
	leaseMs := (s.cfg.TaskTimeout + s.cfg.LeaseSlack).Milliseconds()
	for _, tt := range types {
		for i := 0; i < s.cfg.WorkersPerType; i++ {
			w := &worker{
				id:       fmt.Sprintf("%s_%d", tt, i),
				taskType: tt,
				leaseMs:  leaseMs,
				store:    s.store,
				registry: s.registry,
				cfg:      s.cfg,
				logger:   s.logger.With(zap.String("worker_id", fmt.Sprintf("%s_%d", tt, i))),
				active:   &s.activeWorkers,
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				w.run(ctx)
			}()
			s.totalWorkers++
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reapLoop(ctx, types)
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweepLoop(ctx)
	}()

	s.state = StateRunning
	s.logger.Info("queue service started",
		zap.Int("task_types", len(types)),
		zap.Int("workers", s.totalWorkers),
	)
	return nil
}

// Stop broadcasts cancellation and blocks until every worker has
// exited. Safe to call in any state; repeated calls are no-ops.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.cancel = nil
	s.totalWorkers = 0
	s.state = StateStopped
	s.mu.Unlock()
	s.logger.Info("queue service stopped")
}

// Submit validates the request, writes the initial pending status, and
// enqueues the task. Validation failures are synchronous and leave the
// queue unmutated.
func (s *Service) Submit(ctx context.Context, tt task.Type, payload json.RawMessage, priority int) (string, error) {
	if !s.registry.Has(tt) {
		return "", task.NewValidation("unknown task type %q", tt)
	}

	t := task.Task{
		ID:          uuid.NewString(),
		Type:        tt,
		Payload:     payload,
		Priority:    priority,
		SubmittedMs: time.Now().UnixMilli(),
	}
	if err := t.Validate(); err != nil {
		return "", err
	}

	if err := s.store.SetStatus(ctx, store.StatusUpdate{TaskID: t.ID, Status: task.StatusPending}, 0); err != nil {
		return "", task.NewStoreTransient(fmt.Errorf("write pending status: %w", err))
	}
	if _, err := s.store.Enqueue(ctx, t, 0); err != nil {
		return "", task.NewStoreTransient(fmt.Errorf("enqueue: %w", err))
	}

	s.logger.Info("task submitted",
		zap.String("task_id", t.ID),
		zap.String("task_type", string(tt)),
		zap.Int("priority", priority),
	)
	return t.ID, nil
}

// Result returns the status record for taskID, or task.ErrNotFound for
// unknown and expired IDs.
func (s *Service) Result(ctx context.Context, taskID string) (*task.StatusRecord, error) {
	return s.store.GetStatus(ctx, taskID, 0)
}

// TypeStats describes one task type's queue.
type TypeStats struct {
	Pending int `json:"pending_tasks"`
	Workers int `json:"workers"`
}

// Stats aggregates queue depth and worker liveness.
type Stats struct {
	PerType       map[task.Type]TypeStats `json:"queues"`
	TotalWorkers  int                     `json:"total_workers"`
	ActiveWorkers int                     `json:"active_workers"`
}

// Stats returns per-type pending counts and worker liveness. Worker
// counts reflect the running pool: zero everywhere while stopped.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	total := s.totalWorkers
	perType := 0
	if s.state == StateRunning {
		perType = s.cfg.WorkersPerType
	}
	s.mu.Unlock()

	out := Stats{PerType: make(map[task.Type]TypeStats)}
	for _, tt := range s.registry.Types() {
		n, err := s.store.QueueSize(tt)
		if err != nil {
			return Stats{}, task.NewStoreTransient(fmt.Errorf("queue size %s: %w", tt, err))
		}
		out.PerType[tt] = TypeStats{Pending: n, Workers: perType}
	}
	out.TotalWorkers = total
	out.ActiveWorkers = int(s.activeWorkers.Load())
	return out, nil
}

// reapLoop periodically requeues claims whose lease expired without a
// terminal status.
func (s *Service) reapLoop(ctx context.Context, types []task.Type) {
	ticker := time.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, tt := range types {
				n, err := s.store.ReclaimExpired(ctx, tt, 0, 1024)
				if err != nil {
					s.logger.Error("lease reap failed", zap.String("task_type", string(tt)), zap.Error(err))
					continue
				}
				if n > 0 {
					s.logger.Warn("requeued expired claims", zap.String("task_type", string(tt)), zap.Int("count", n))
				}
			}
		}
	}
}

// sweepLoop periodically purges status records past their TTL.
func (s *Service) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.PurgeExpiredStatuses(ctx, 0, 4096)
			if err != nil {
				s.logger.Error("status sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Debug("purged expired status records", zap.Int("count", n))
			}
		}
	}
}
