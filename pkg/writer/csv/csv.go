// Package csv implements a Writer that appends ledger entries to a CSV file.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/writer/buffered"
)

// header is the ledger column layout. The first seven columns come from
// the extraction pipeline; the rest from message metadata.
var header = []string{
	"timestamp", "date", "category", "description", "amount", "currency",
	"merchant", "source", "chat_name", "message_id",
}

// Writer writes ledger entries to a CSV file with buffered batching.
type Writer struct {
	filePath string
	file     *os.File
	writer   *csv.Writer
	mu       sync.Mutex
	buffered *buffered.Writer
	logger   *slog.Logger
}

// Config holds configuration for the CSV writer.
type Config struct {
	// FilePath is the path to the CSV output file.
	FilePath string
	// BatchSize is the number of entries to buffer before writing.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	FlushInterval time.Duration
}

// New creates a new CSV writer. The file is opened append-only; a header
// row is written when the file is new or empty.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}

	w := &Writer{
		filePath: cfg.FilePath,
		file:     file,
		writer:   csv.NewWriter(file),
		logger:   logger,
	}

	stat, err := file.Stat()
	if err != nil {
		if closeErr := file.Close(); closeErr != nil {
			return nil, fmt.Errorf("stat csv file: %w (close error: %w)", err, closeErr)
		}
		return nil, fmt.Errorf("stat csv file: %w", err)
	}

	if stat.Size() == 0 {
		if err := w.writeHeader(); err != nil {
			if closeErr := file.Close(); closeErr != nil {
				return nil, fmt.Errorf("writing header: %w (close error: %w)", err, closeErr)
			}
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "csv_buffer"))

	logger.Info("csv writer initialized", "file", cfg.FilePath)
	return w, nil
}

func (w *Writer) writeHeader() error {
	if err := w.writer.Write(header); err != nil {
		return err
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Write consumes ledger entries from the input channel and appends them to
// the CSV file.
func (w *Writer) Write(ctx context.Context, in <-chan *api.LedgerEntry, ackChan chan<- string) error {
	defer w.Close()
	return w.buffered.Write(ctx, in, ackChan)
}

// flushBatch appends a batch of entries to the CSV file.
func (w *Writer) flushBatch(entries []*api.LedgerEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range entries {
		if err := w.writer.Write(Row(e)); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	w.logger.Debug("wrote ledger entries to csv", "count", len(entries))
	return nil
}

// Row renders one ledger entry in the header column order.
func Row(e *api.LedgerEntry) []string {
	merchant := ""
	if e.Merchant != nil {
		merchant = *e.Merchant
	}
	return []string{
		e.Timestamp,
		e.Date,
		e.Category,
		e.Description,
		strconv.FormatFloat(e.Amount, 'f', 2, 64),
		e.Currency,
		merchant,
		e.Source,
		e.ChatName,
		e.MessageID,
	}
}

// Close flushes and closes the CSV file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writer.Flush()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing csv file: %w", err)
	}

	w.logger.Info("csv writer closed", "file", w.filePath)
	return nil
}
