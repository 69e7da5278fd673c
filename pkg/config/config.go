// Package config holds the application configuration loaded from
// environment variables.
package config

import (
	"fmt"
	"os"

	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ClientSecretFile is the default path to the Google OAuth credentials JSON
// file (used by the Sheets ledger sink).
const ClientSecretFile = "data/client_secret.json"

// DefaultConfigFile is the optional JSON config file read before the
// environment overlay.
const DefaultConfigFile = "config.json"

// Config holds the application configuration. Fields are populated from
// environment variables via their koanf tags.
type Config struct {
	// DefaultCurrency is the ISO 4217 code assumed when the message gives
	// no currency.
	DefaultCurrency string `koanf:"DEFAULT_CURRENCY"`

	// Timezone is the IANA name or fixed offset used to derive expense
	// dates from message timestamps.
	Timezone string `koanf:"TIMEZONE"`

	// GeminiModel is the model name for the extraction calls.
	GeminiModel string `koanf:"GEMINI_MODEL"`

	// LedgerWriter selects the ledger sink: "sheets", "csv" or "postgres".
	LedgerWriter string `koanf:"LEDGER_WRITER"`

	// ReplyEnabled gates confirmation replies back to the chat.
	ReplyEnabled bool `koanf:"REPLY_ENABLED"`

	// SourceName labels ledger entries with their originating transport.
	SourceName string `koanf:"SOURCE_NAME"`

	// AccountsFile optionally overrides the embedded account vocabulary
	// with an external JSON file.
	AccountsFile string `koanf:"ACCOUNTS_FILE"`

	// MessagesFile is the JSONL message stream consumed by the bundled
	// reader; "-" reads stdin.
	MessagesFile string `koanf:"MESSAGES_FILE"`

	// GSheetsTitle is the title for a new Google Sheet (used when creating).
	GSheetsTitle string `koanf:"GSHEETS_TITLE"`

	// GSheetsID is the ID of an existing Google Sheet to use.
	GSheetsID string `koanf:"GSHEETS_ID"`

	// GSheetsName is the name of the sheet/tab within the spreadsheet.
	GSheetsName string `koanf:"GSHEETS_NAME"`

	// CSVPath is the output path for the CSV ledger sink.
	CSVPath string `koanf:"CSV_PATH"`

	// PostgreSQL configuration (used by the postgres ledger sink).
	Postgres PostgresConfig
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
}

// Load reads the configuration from the optional JSON config file and the
// environment, with environment variables taking precedence, and applies
// defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), kJson.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configFile, err)
		}
	}

	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = "IDR"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Jakarta"
	}
	if c.LedgerWriter == "" {
		c.LedgerWriter = "csv"
	}
	if c.SourceName == "" {
		c.SourceName = "whatsapp"
	}
	if c.CSVPath == "" {
		c.CSVPath = "data/expenses.csv"
	}
	if c.MessagesFile == "" {
		c.MessagesFile = "-"
	}
}
