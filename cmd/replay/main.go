// Command replay runs a JSONL message dump through the extraction pipeline
// offline and emits the resulting ledger rows. This utility is used to
// sanity-check prompts and vocabulary changes against collected chat samples
// without touching the live ledger.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/config"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/extract"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/handler"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/logging"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/model/gemini"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/reader/jsonl"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/vocab"
	csvwriter "github.com/caesariodito/mp-auto-expense-wa/pkg/writer/csv"
)

// defaultAccountsPath points at the vocabulary shipped with the main binary.
const defaultAccountsPath = "cmd/expensewa/config/accounts.json"

func main() {
	_ = godotenv.Load()

	logger := logging.Setup(logging.DefaultConfig())

	input := flag.String("input", "-", "JSONL message dump to replay (\"-\" for stdin)")
	out := flag.String("out", "", "append ledger rows to this CSV file instead of printing JSON")
	accountsFile := flag.String("accounts", "", "account vocabulary JSON (defaults to ACCOUNTS_FILE or the embedded set)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *accountsFile != "" {
		cfg.AccountsFile = *accountsFile
	}

	accounts, err := loadVocabulary(cfg)
	if err != nil {
		logger.Error("failed to load account vocabulary", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	modelClient, err := gemini.New(ctx, cfg.GeminiModel, logger.With("component", "gemini"))
	if err != nil {
		logger.Error("failed to create model client", "error", err)
		os.Exit(1)
	}

	extractor := extract.New(modelClient, accounts, extract.Config{
		Timezone:        cfg.Timezone,
		DefaultCurrency: cfg.DefaultCurrency,
	}, logger.With("component", "extractor"))

	reader, closeReader, err := jsonl.Open(*input, logger.With("component", "jsonl_reader"))
	if err != nil {
		logger.Error("failed to open message dump", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = closeReader()
	}()

	sink, err := newSink(*out, logger)
	if err != nil {
		logger.Error("failed to create output", "error", err)
		os.Exit(1)
	}

	messages := make(chan *api.Message, 16)
	entries := make(chan *api.LedgerEntry, 16)
	acks := make(chan string, 16)

	readerDone := make(chan error, 1)
	go func() {
		readerDone <- reader.Read(ctx, messages, acks)
	}()

	sinkDone := make(chan error, 1)
	go func() {
		sinkDone <- sink.Write(ctx, entries, acks)
	}()

	extracted, failed := 0, 0
	for msg := range messages {
		entry, err := replayMessage(ctx, extractor, cfg, msg)
		if err != nil {
			logger.Warn("extraction failed", "message_id", msg.ID, "error", err)
			failed++
			continue
		}
		entries <- entry
		extracted++
	}
	close(entries)

	if err := <-sinkDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("output error", "error", err)
		os.Exit(1)
	}
	if err := <-readerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("reader error", "error", err)
	}

	logger.Info("replay complete", "extracted", extracted, "failed", failed)
}

func replayMessage(ctx context.Context, extractor *extract.Extractor, cfg *config.Config, msg *api.Message) (*api.LedgerEntry, error) {
	override, text := handler.StripDirectives(msg.Text)

	record, err := extractor.Extract(ctx, extract.Input{
		MessageID:       msg.ID,
		Text:            text,
		RawText:         msg.Text,
		Image:           msg.Image,
		TimestampMillis: msg.Timestamp * 1000,
		AccountOverride: override,
	})
	if err != nil {
		return nil, err
	}

	return &api.LedgerEntry{
		ExpenseRecord: *record,
		Timestamp:     time.Unix(msg.Timestamp, 0).UTC().Format(time.RFC3339),
		Source:        cfg.SourceName,
		ChatName:      msg.ChatName,
		MessageID:     msg.ID,
	}, nil
}

func loadVocabulary(cfg *config.Config) (*vocab.Accounts, error) {
	path := cfg.AccountsFile
	if path == "" {
		path = defaultAccountsPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading accounts file %s: %w", path, err)
	}
	return vocab.FromJSON(data)
}

// newSink picks the replay output: the CSV ledger sink when -out is given,
// otherwise one JSON object per line on stdout.
func newSink(outPath string, logger *slog.Logger) (api.Writer, error) {
	if outPath != "" {
		return csvwriter.New(csvwriter.Config{FilePath: outPath}, logger.With("component", "csv_writer"))
	}
	return &stdoutSink{}, nil
}

// stdoutSink prints each ledger entry as one JSON object per line.
type stdoutSink struct{}

func (s *stdoutSink) Write(ctx context.Context, in <-chan *api.LedgerEntry, ackChan chan<- string) error {
	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-in:
			if !ok {
				return nil
			}
			if err := enc.Encode(entry); err != nil {
				return fmt.Errorf("encoding entry: %w", err)
			}
			if ackChan != nil {
				select {
				case ackChan <- entry.MessageID:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
