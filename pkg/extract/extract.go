// Package extract implements the expense-extraction pipeline: date
// resolution, model-backed extraction with a regex fallback, and
// payment-account resolution.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/vocab"
)

// Input is one extraction request derived from an inbound message.
type Input struct {
	// MessageID identifies the originating message in logs.
	MessageID string
	// Text is the message body with directives stripped.
	Text string
	// RawText is the original body before directive stripping.
	RawText string
	// Image is the attached receipt image, or nil.
	Image *api.Image
	// TimestampMillis is the message receive time, unix epoch milliseconds.
	TimestampMillis int64
	// AccountOverride is the explicit account directive, if any.
	AccountOverride string
}

// stageAttempt is one entry of the fallback chain: a named extraction
// strategy tried in order until one produces a record.
type stageAttempt struct {
	name string
	run  func() (*api.ExpenseRecord, error)
}

// Extractor drives the extraction stages in their documented order and
// fallback policy. Individual stages never call each other; the chain
// lives here only.
type Extractor struct {
	model           *ModelExtractor
	resolver        *AccountResolver
	timezone        string
	defaultCurrency string
	logger          *slog.Logger
}

// Config holds the extractor's static configuration.
type Config struct {
	// Timezone is the IANA name or fixed offset used for date derivation.
	Timezone string
	// DefaultCurrency is the ISO 4217 code used when none can be inferred.
	DefaultCurrency string
}

// New creates an extraction pipeline over the given model client and
// account vocabulary.
func New(client api.ModelClient, accounts *vocab.Accounts, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		model:           NewModelExtractor(client, accounts, cfg.DefaultCurrency, logger.With("component", "model_extractor")),
		resolver:        NewAccountResolver(accounts, logger.With("component", "account_resolver")),
		timezone:        cfg.Timezone,
		defaultCurrency: cfg.DefaultCurrency,
		logger:          logger,
	}
}

// Extract turns one inbound message into a normalized expense record, or
// fails with ErrExtractionFailed when no stage can produce one. The
// fallback chain is:
//
//	image present:  model image parse, then regex fallback on the text
//	                (only if text is non-empty; otherwise the model error
//	                propagates)
//	text only:      model text parse, then regex fallback
func (e *Extractor) Extract(ctx context.Context, in Input) (*api.ExpenseRecord, error) {
	fallbackDate := ResolveDate(in.TimestampMillis, e.timezone)

	record, err := e.runStages(ctx, in, fallbackDate)
	if err != nil {
		return nil, err
	}

	proposed := ""
	if record.Account != nil {
		proposed = *record.Account
	}
	merchant := ""
	if record.Merchant != nil {
		merchant = *record.Merchant
	}
	record.Account = e.resolver.Resolve(in.AccountOverride, proposed,
		[]string{in.Text, in.RawText, record.Description, merchant})

	return record, nil
}

func (e *Extractor) runStages(ctx context.Context, in Input, fallbackDate string) (*api.ExpenseRecord, error) {
	hasText := strings.TrimSpace(in.Text) != ""

	var attempts []stageAttempt
	if in.Image != nil {
		attempts = append(attempts, stageAttempt{"model_image", func() (*api.ExpenseRecord, error) {
			return e.model.ParseImage(ctx, *in.Image, in.Text, fallbackDate)
		}})
		if hasText {
			attempts = append(attempts, stageAttempt{"regex_fallback", func() (*api.ExpenseRecord, error) {
				return FallbackParse(in.Text, fallbackDate, e.defaultCurrency)
			}})
		}
	} else {
		attempts = append(attempts,
			stageAttempt{"model_text", func() (*api.ExpenseRecord, error) {
				return e.model.ParseText(ctx, in.Text, fallbackDate)
			}},
			stageAttempt{"regex_fallback", func() (*api.ExpenseRecord, error) {
				return FallbackParse(in.Text, fallbackDate, e.defaultCurrency)
			}},
		)
	}

	var firstErr error
	for _, attempt := range attempts {
		record, err := attempt.run()
		if err == nil {
			e.logger.Info("extraction stage succeeded",
				"message_id", in.MessageID,
				"stage", attempt.name,
			)
			return record, nil
		}
		e.logger.Warn("extraction stage failed",
			"message_id", in.MessageID,
			"stage", attempt.name,
			"error", err,
		)
		if firstErr == nil {
			firstErr = err
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, firstErr)
}
