package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/repositories"
)

// Writer persists enforcement audit entries asynchronously. Enforcement must
// never wait on the trail, so enqueueing is non-blocking and a full buffer
// drops the entry with a warning.
type Writer struct {
	repo        repositories.AuditRepository
	logger      *zap.Logger
	entryChan   chan *models.EnforcementAudit
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the Writer.
type Config struct {
	BufferSize  int
	WorkerCount int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 3,
	}
}

// NewWriter creates a Writer; call Start before recording entries.
func NewWriter(repo repositories.AuditRepository, logger *zap.Logger, config Config) *Writer {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	return &Writer{
		repo:        repo,
		logger:      logger,
		entryChan:   make(chan *models.EnforcementAudit, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start launches the background workers.
func (w *Writer) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("audit writer already started")
	}

	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}

	w.started = true
	w.logger.Info("started audit writer",
		zap.Int("worker_count", w.workerCount),
		zap.Int("buffer_size", w.bufferSize))

	return nil
}

// Stop drains pending entries and stops the workers, waiting at most the
// given timeout.
func (w *Writer) Stop(timeout time.Duration) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return fmt.Errorf("audit writer not started")
	}
	w.started = false
	w.mu.Unlock()

	w.logger.Info("stopping audit writer", zap.Int("pending_entries", len(w.entryChan)))

	close(w.entryChan)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("audit writer stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit writer stop timeout after %v", timeout)
	}
}

// Record enqueues an entry without blocking. A failure here is logged and
// swallowed; the enforcement action that produced the entry already happened.
func (w *Writer) Record(entry *models.EnforcementAudit) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		w.logger.Warn("audit writer not started, dropping entry",
			zap.String("action", string(entry.Action)),
			zap.String("user_id", entry.UserID))
		return
	}

	// Held under the mutex so Stop cannot close the channel mid-send. The
	// send never blocks, so the critical section stays short.
	select {
	case w.entryChan <- entry:
	default:
		w.logger.Warn("audit buffer full, dropping entry",
			zap.String("action", string(entry.Action)),
			zap.String("user_id", entry.UserID))
	}
}

// Pending reports the number of queued entries.
func (w *Writer) Pending() int {
	return len(w.entryChan)
}

func (w *Writer) worker(id int) {
	defer w.wg.Done()

	for entry := range w.entryChan {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.repo.Insert(ctx, entry); err != nil {
			w.logger.Error("failed to persist audit entry",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(entry.Action)),
				zap.String("user_id", entry.UserID))
		}
		cancel()
	}
}
