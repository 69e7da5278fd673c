// Package sheets implements a Writer that appends ledger entries to a
// Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/writer/buffered"
)

// Default configuration values for buffered writes.
const (
	DefaultBatchSize     = 10
	DefaultFlushInterval = 30 * time.Second
)

// headerColumns is the ledger column layout, matching the CSV sink.
var headerColumns = []any{
	"timestamp", "date", "category", "description", "amount", "currency",
	"merchant", "source", "chat_name", "message_id",
}

// Writer writes ledger entries to a Google Sheet with buffered batching.
type Writer struct {
	client      *sheets.Service
	spreadsheet *sheets.Spreadsheet
	sheetName   string
	logger      *slog.Logger
	buffered    *buffered.Writer
}

// Config holds configuration for the Sheets writer.
type Config struct {
	// SheetTitle is the title for a new spreadsheet (if SheetID is empty).
	SheetTitle string
	// SheetID is the ID of an existing spreadsheet to use.
	SheetID string
	// SheetName is the name of the sheet within the spreadsheet.
	SheetName string
	// BatchSize is the number of entries to buffer before writing.
	// Defaults to DefaultBatchSize.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	// Defaults to DefaultFlushInterval.
	FlushInterval time.Duration
}

// New creates a new Sheets writer.
func New(httpClient *http.Client, cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := sheets.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	w := &Writer{
		client:    client,
		sheetName: cfg.SheetName,
		logger:    logger,
	}

	spreadsheet, err := w.initSpreadsheet(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing spreadsheet: %w", err)
	}
	w.spreadsheet = spreadsheet

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}

	w.buffered = buffered.New(
		w.flushBatch,
		buffered.Config{
			BatchSize:     batchSize,
			FlushInterval: flushInterval,
		},
		logger.With("component", "sheets_buffer"),
	)

	logger.Info("sheets writer initialized",
		"spreadsheet_id", spreadsheet.SpreadsheetId,
		"batch_size", batchSize,
		"flush_interval", flushInterval,
	)

	return w, nil
}

func (w *Writer) initSpreadsheet(ctx context.Context, cfg Config) (*sheets.Spreadsheet, error) {
	if cfg.SheetID != "" {
		spreadsheet, err := w.client.Spreadsheets.Get(cfg.SheetID).Context(ctx).Do()
		if err == nil {
			w.logger.Info("using existing spreadsheet", "title", spreadsheet.Properties.Title, "id", cfg.SheetID)
			return spreadsheet, nil
		}
		w.logger.Warn("failed to get spreadsheet, will create new one", "id", cfg.SheetID, "error", err)
	}

	spreadsheet, err := w.client.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title: cfg.SheetTitle,
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet", "title", cfg.SheetTitle, "id", spreadsheet.SpreadsheetId)

	if err := w.writeHeader(ctx, spreadsheet.SpreadsheetId, cfg.SheetName); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	return spreadsheet, nil
}

func (w *Writer) writeHeader(ctx context.Context, spreadsheetID, sheetName string) error {
	headerRange := fmt.Sprintf("%s!A1:J1", sheetName)
	headerReq := sheets.ValueRange{
		Values: [][]any{headerColumns},
	}

	_, err := w.client.Spreadsheets.Values.Update(spreadsheetID, headerRange, &headerReq).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("updating header: %w", err)
	}

	w.logger.Info("wrote header to spreadsheet")
	return nil
}

// Write consumes ledger entries from the input channel and appends them to
// the spreadsheet.
func (w *Writer) Write(ctx context.Context, in <-chan *api.LedgerEntry, ackChan chan<- string) error {
	w.logger.Info("sheets writer started")
	return w.buffered.Write(ctx, in, ackChan)
}

// Row renders one ledger entry in the header column order.
func Row(e *api.LedgerEntry) []any {
	merchant := ""
	if e.Merchant != nil {
		merchant = *e.Merchant
	}
	return []any{
		e.Timestamp,
		e.Date,
		e.Category,
		e.Description,
		e.Amount,
		e.Currency,
		merchant,
		e.Source,
		e.ChatName,
		e.MessageID,
	}
}

// flushBatch appends a batch of entries to the spreadsheet in a single API
// call, retrying on rate limits.
func (w *Writer) flushBatch(entries []*api.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	values := make([][]any, 0, len(entries))
	for _, e := range entries {
		values = append(values, Row(e))
	}

	writeRange := fmt.Sprintf("%s!A2:J2", w.sheetName)
	writeReq := sheets.ValueRange{
		Values: values,
	}

	// context.Background() because buffered.Writer handles cancellation at
	// a higher level.
	ctx := context.Background()

	err := retry.Do(
		func() error {
			_, err := w.client.Spreadsheets.Values.Append(w.spreadsheet.SpreadsheetId, writeRange, &writeReq).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				w.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(60*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("appending batch to sheet: %w", err)
	}

	w.logger.Info("wrote ledger batch",
		"count", len(entries),
		"first_description", entries[0].Description,
	)

	return nil
}

// SpreadsheetID returns the ID of the spreadsheet being written to.
func (w *Writer) SpreadsheetID() string {
	if w.spreadsheet == nil {
		return ""
	}
	return w.spreadsheet.SpreadsheetId
}
