// Package postgres provides a PostgreSQL ledger sink.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/writer/buffered"
)

//go:embed 001_create_expenses.sql
var migrationSQL string

// Config holds the PostgreSQL writer configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// BatchSize is the number of entries to buffer before writing.
	BatchSize int
	// FlushInterval is the time between automatic flushes.
	FlushInterval time.Duration

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// Writer writes ledger entries to a PostgreSQL database.
type Writer struct {
	pool     *pgxpool.Pool
	logger   *slog.Logger
	buffered *buffered.Writer
}

// New creates a new PostgreSQL writer and runs the schema migration.
func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)

	w := &Writer{
		pool:   pool,
		logger: logger,
	}

	if err := w.runMigrations(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	w.buffered = buffered.New(w.flushBatch, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "postgres_buffer"))

	return w, nil
}

// runMigrations executes the embedded schema migration.
func (w *Writer) runMigrations(ctx context.Context) error {
	w.logger.Info("running database migrations")

	if _, err := w.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}

	w.logger.Info("migrations completed successfully")
	return nil
}

// Write consumes ledger entries from the channel and writes them to
// PostgreSQL in batches.
func (w *Writer) Write(ctx context.Context, in <-chan *api.LedgerEntry, ackChan chan<- string) error {
	defer w.Close()
	return w.buffered.Write(ctx, in, ackChan)
}

// flushBatch inserts a batch of entries inside one transaction. Redelivered
// messages are skipped on conflict, keeping the ledger append-only under
// at-least-once delivery.
func (w *Writer) flushBatch(entries []*api.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx := context.Background()

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range entries {
		ts, err := time.Parse(time.RFC3339, e.Timestamp)
		if err != nil {
			w.logger.Warn("invalid timestamp format, using current time",
				"timestamp", e.Timestamp,
				"error", err,
			)
			ts = time.Now()
		}

		batch.Queue(`
			INSERT INTO expenses (
				message_id, ts, date, category, description,
				amount, currency, merchant, account, source, chat_name
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (message_id) DO NOTHING
		`, e.MessageID, ts, e.Date, e.Category, e.Description,
			e.Amount, e.Currency, e.Merchant, e.Account, e.Source, e.ChatName)
	}

	results := tx.SendBatch(ctx, batch)
	if err := results.Close(); err != nil {
		return fmt.Errorf("executing batch insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	w.logger.Info("wrote ledger batch", "count", len(entries))
	return nil
}

// Close releases the connection pool.
func (w *Writer) Close() {
	w.pool.Close()
	w.logger.Info("postgres writer closed")
}
