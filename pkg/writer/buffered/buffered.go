// Package buffered provides a buffered writer base for batch ledger writes.
package buffered

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
)

// DefaultBatchSize is the default number of entries to buffer before flushing.
const DefaultBatchSize = 10

// DefaultFlushInterval is the default interval between automatic flushes.
const DefaultFlushInterval = 30 * time.Second

// Flusher is called when the buffer needs to be flushed.
type Flusher func(entries []*api.LedgerEntry) error

// Config holds configuration for buffered writing.
type Config struct {
	// BatchSize is the number of entries to buffer before flushing.
	// Defaults to DefaultBatchSize.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	// Defaults to DefaultFlushInterval.
	FlushInterval time.Duration
}

// Writer buffers ledger entries and flushes them in batches. After a
// successful flush the message IDs of the flushed entries are acknowledged.
type Writer struct {
	buffer  []*api.LedgerEntry
	mu      sync.Mutex
	flusher Flusher
	config  Config
	logger  *slog.Logger
}

// New creates a new buffered writer with the given flusher function.
func New(flusher Flusher, cfg Config, logger *slog.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		buffer:  make([]*api.LedgerEntry, 0, cfg.BatchSize),
		flusher: flusher,
		config:  cfg,
		logger:  logger,
	}
}

// Write consumes entries from the input channel and buffers them for batch
// writes. Acknowledged message IDs are sent to ackChan after each
// successful flush.
func (w *Writer) Write(ctx context.Context, in <-chan *api.LedgerEntry, ackChan chan<- string) error {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	w.logger.Info("buffered writer started",
		"batch_size", w.config.BatchSize,
		"flush_interval", w.config.FlushInterval,
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("buffered writer stopping, flushing remaining buffer")
			if err := w.flush(ctx, ackChan); err != nil {
				w.logger.Error("failed to flush on shutdown", "error", err)
			}
			return ctx.Err()

		case <-ticker.C:
			if err := w.flush(ctx, ackChan); err != nil {
				w.logger.Error("failed to flush on interval", "error", err)
			}

		case entry, ok := <-in:
			if !ok {
				w.logger.Info("input channel closed, flushing remaining buffer")
				return w.flush(ctx, ackChan)
			}

			w.mu.Lock()
			w.buffer = append(w.buffer, entry)
			shouldFlush := len(w.buffer) >= w.config.BatchSize
			w.mu.Unlock()

			if shouldFlush {
				if err := w.flush(ctx, ackChan); err != nil {
					w.logger.Error("failed to flush on batch size", "error", err)
				}
			}
		}
	}
}

// flush writes all buffered entries using the flusher function and
// acknowledges their message IDs.
func (w *Writer) flush(ctx context.Context, ackChan chan<- string) error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}

	toFlush := make([]*api.LedgerEntry, len(w.buffer))
	copy(toFlush, w.buffer)
	w.buffer = w.buffer[:0]
	w.mu.Unlock()

	w.logger.Debug("flushing buffer", "count", len(toFlush))

	if err := w.flusher(toFlush); err != nil {
		return err
	}

	if ackChan != nil {
		for _, entry := range toFlush {
			if entry.MessageID == "" {
				continue
			}
			select {
			case ackChan <- entry.MessageID:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	w.logger.Info("flushed ledger entries", "count", len(toFlush))
	return nil
}

// BufferLen returns the current number of buffered entries.
func (w *Writer) BufferLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}
