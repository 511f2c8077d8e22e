package serverrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	cfgpkg "github.com/procq/procq/internal/config"
	"github.com/procq/procq/internal/dispatch"
	"github.com/procq/procq/internal/processors"
	"github.com/procq/procq/internal/queue"
	pebblestore "github.com/procq/procq/internal/storage/pebble"
	"github.com/procq/procq/internal/store"
	logpkg "github.com/procq/procq/pkg/log"
)

// Run starts the queue node and blocks until ctx is cancelled or the
// process receives SIGINT/SIGTERM. Shutdown is graceful: workers drain
// their current task before the database closes.
func Run(ctx context.Context, cfg cfgpkg.Config) error {
	// Layer a local signal context over the caller's so direct callers
	// and signal delivery both stop the node.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logpkg.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	syncMode, err := pebblestore.ParseSyncMode(cfg.Sync)
	if err != nil {
		return err
	}
	db, err := pebblestore.Open(pebblestore.Options{
		Dir:       filepath.Join(cfg.DataDir, "store"),
		Sync:      syncMode,
		SyncEvery: cfg.SyncInterval,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	st, err := store.Open(db, store.Options{StatusTTL: cfg.StatusTTL})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	registry := dispatch.NewRegistry()
	processors.RegisterAll(registry)

	svc := queue.New(st, registry, queue.Config{
		WorkersPerType: cfg.WorkersPerType,
		PollInterval:   cfg.PollInterval,
		TaskTimeout:    cfg.TaskTimeout,
		StoreBackoff:   cfg.StoreBackoff,
		LeaseSlack:     cfg.LeaseSlack,
		ReapInterval:   cfg.ReapInterval,
		SweepInterval:  cfg.SweepInterval,
	}, logger)
	if err := svc.Start(); err != nil {
		return err
	}

	logger.Info("procq node started",
		zap.String("data_dir", cfg.DataDir),
		zap.String("sync", cfg.Sync),
		zap.Int("workers_per_type", cfg.WorkersPerType),
	)

	<-sctx.Done()
	logger.Info("shutting down")
	svc.Stop()
	return nil
}
