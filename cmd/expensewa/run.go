package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/api/sheets/v4"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/client"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/config"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/extract"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/handler"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/model/gemini"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/reader/jsonl"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/vocab"
	csvwriter "github.com/caesariodito/mp-auto-expense-wa/pkg/writer/csv"
	pgwriter "github.com/caesariodito/mp-auto-expense-wa/pkg/writer/postgres"
	sheetswriter "github.com/caesariodito/mp-auto-expense-wa/pkg/writer/sheets"
)

const defaultSecretsPath = config.ClientSecretFile

// runBot wires the message source through the extraction pipeline into the
// configured ledger sink and runs until interrupted.
func runBot(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	accounts, err := loadAccounts(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("configuration loaded",
		"default_currency", cfg.DefaultCurrency,
		"timezone", cfg.Timezone,
		"ledger_writer", cfg.LedgerWriter,
		"accounts", len(accounts.Names()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	modelClient, err := gemini.New(ctx, cfg.GeminiModel, logger.With("component", "gemini"))
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	extractor := extract.New(modelClient, accounts, extract.Config{
		Timezone:        cfg.Timezone,
		DefaultCurrency: cfg.DefaultCurrency,
	}, logger.With("component", "extractor"))

	writer, err := newWriter(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating ledger writer: %w", err)
	}

	// The chat transport is an external collaborator; the bundled reader
	// replays a JSONL message stream (MESSAGES_FILE, "-" for stdin).
	reader, closeReader, err := jsonl.Open(cfg.MessagesFile, logger.With("component", "jsonl_reader"))
	if err != nil {
		return fmt.Errorf("creating message reader: %w", err)
	}
	defer func() {
		if err := closeReader(); err != nil {
			logger.Warn("closing reader", "error", err)
		}
	}()

	h := handler.New(extractor, nil, handler.NewIdentity(), handler.Config{
		Source:       cfg.SourceName,
		ReplyEnabled: cfg.ReplyEnabled,
	}, logger.With("component", "handler"))

	messages := make(chan *api.Message, 100)
	entries := make(chan *api.LedgerEntry, 100)
	acks := make(chan string, 100)

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- writer.Write(ctx, entries, acks)
	}()

	handlerDone := make(chan error, 1)
	go func() {
		handlerDone <- h.Run(ctx, messages, entries)
	}()

	logger.Info("starting expensewa")
	if err := reader.Read(ctx, messages, acks); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("reader error", "error", err)
	}

	if err := <-handlerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("handler error", "error", err)
	}
	if err := <-writerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("writer error", "error", err)
	}

	logger.Info("expensewa stopped")
	return nil
}

// loadAccounts builds the account vocabulary from the embedded defaults or
// an external override file.
func loadAccounts(cfg *config.Config, logger *slog.Logger) (*vocab.Accounts, error) {
	data := accountsJSON
	if cfg.AccountsFile != "" {
		external, err := os.ReadFile(cfg.AccountsFile)
		if err != nil {
			return nil, fmt.Errorf("reading accounts file: %w", err)
		}
		logger.Info("using external account vocabulary", "file", cfg.AccountsFile)
		data = external
	}

	accounts, err := vocab.FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("building account vocabulary: %w", err)
	}
	return accounts, nil
}

// newWriter creates the configured ledger sink.
func newWriter(cfg *config.Config, logger *slog.Logger) (api.Writer, error) {
	switch cfg.LedgerWriter {
	case "sheets":
		if cfg.GSheetsName == "" {
			return nil, fmt.Errorf("GSHEETS_NAME is required for the sheets writer")
		}
		if cfg.GSheetsID == "" && cfg.GSheetsTitle == "" {
			return nil, fmt.Errorf("either GSHEETS_ID or GSHEETS_TITLE is required for the sheets writer")
		}
		httpClient, err := client.New(config.ClientSecretFile, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("creating http client: %w", err)
		}
		return sheetswriter.New(httpClient, sheetswriter.Config{
			SheetTitle: cfg.GSheetsTitle,
			SheetID:    cfg.GSheetsID,
			SheetName:  cfg.GSheetsName,
		}, logger.With("component", "sheets_writer"))

	case "csv":
		return csvwriter.New(csvwriter.Config{
			FilePath: cfg.CSVPath,
		}, logger.With("component", "csv_writer"))

	case "postgres":
		return pgwriter.New(pgwriter.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
		}, logger.With("component", "postgres_writer"))

	default:
		return nil, fmt.Errorf("unknown ledger writer: %q", cfg.LedgerWriter)
	}
}
