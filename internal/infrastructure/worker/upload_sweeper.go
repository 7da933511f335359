package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/event"
)

// UploadSweeperConfig holds configuration for the upload sweeper
type UploadSweeperConfig struct {
	Interval  time.Duration
	Retention time.Duration
	BatchSize int
}

// DefaultUploadSweeperConfig returns default configuration
func DefaultUploadSweeperConfig() UploadSweeperConfig {
	return UploadSweeperConfig{
		Interval:  time.Hour,
		Retention: 24 * time.Hour,
		BatchSize: 100,
	}
}

// Publisher delivers domain events
type Publisher interface {
	Dispatch(ctx context.Context, evt *event.Event) error
}

// UploadSweeper deletes uploads that no committed bill claimed within the
// retention window
type UploadSweeper struct {
	config    UploadSweeperConfig
	files     port.StoredFileRepository
	storage   port.FileStorage
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.RWMutex
	cancel     context.CancelFunc
	done       chan struct{}
	isRunning  bool
	sweptCount int
	lastError  error
}

// NewUploadSweeper creates a new sweeper. publisher may be nil.
func NewUploadSweeper(
	config UploadSweeperConfig,
	files port.StoredFileRepository,
	storage port.FileStorage,
	publisher Publisher,
	logger *zap.Logger,
) *UploadSweeper {
	def := DefaultUploadSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Retention <= 0 {
		config.Retention = def.Retention
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	return &UploadSweeper{
		config:    config,
		files:     files,
		storage:   storage,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Name returns the worker name for identification
func (w *UploadSweeper) Name() string {
	return "UploadSweeper"
}

// Start begins the sweep loop
func (w *UploadSweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("upload sweeper already running")
	}

	var loopCtx context.Context
	loopCtx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("UploadSweeper started",
		zap.Duration("interval", w.config.Interval),
		zap.Duration("retention", w.config.Retention))

	go w.loop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (w *UploadSweeper) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("UploadSweeper stopped", zap.Int("swept_count", w.SweptCount()))
	return nil
}

func (w *UploadSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil {
				w.logger.Error("Failed to sweep uploads", zap.Error(err))
			}
		}
	}
}

// SweepOnce deletes one batch of expired uploads and returns how many went.
// A file that fails to delete stays registered and is retried next sweep.
func (w *UploadSweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.config.Retention)
	files, err := w.files.ListUnclaimedBefore(ctx, cutoff, w.config.BatchSize)
	if err != nil {
		w.setLastError(err)
		return 0, fmt.Errorf("failed to list expired uploads: %w", err)
	}

	swept := 0
	for _, f := range files {
		if err := w.storage.Delete(ctx, f.Path); err != nil {
			w.logger.Warn("Failed to delete expired upload",
				zap.String("path", f.Path),
				zap.Error(err))
			continue
		}
		if err := w.files.Delete(ctx, f.Path); err != nil {
			w.logger.Warn("Failed to unregister expired upload",
				zap.String("path", f.Path),
				zap.Error(err))
			continue
		}
		swept++

		if w.publisher != nil {
			evt := event.NewEvent(event.TypeFileSwept, f.UserID, "", map[string]interface{}{
				event.KeyFilePath: f.Path,
			})
			if err := w.publisher.Dispatch(ctx, evt); err != nil {
				w.logger.Warn("Failed to publish sweep event", zap.Error(err))
			}
		}
	}

	w.mu.Lock()
	w.sweptCount += swept
	w.lastError = nil
	w.mu.Unlock()

	if swept > 0 {
		w.logger.Info("Swept expired uploads", zap.Int("count", swept))
	}
	return swept, nil
}

func (w *UploadSweeper) setLastError(err error) {
	w.mu.Lock()
	w.lastError = err
	w.mu.Unlock()
}

// SweptCount returns the number of uploads deleted since start
func (w *UploadSweeper) SweptCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sweptCount
}

// LastError returns the error of the last failed sweep, if any
func (w *UploadSweeper) LastError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}
