// Package handler processes inbound chat messages: it strips directives,
// runs the extraction pipeline, assembles ledger entries and sends
// confirmation replies.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/extract"
)

// FailureReply is sent when no extraction stage could produce a record.
const FailureReply = "Sorry, I couldn't read an expense from that. " +
	"Try something like: \"Lunch 25000\" or send a clearer receipt photo."

// directivePattern matches in-message directives of the form "#token".
// The first directive is the account override; all are stripped from the
// text handed to the extractors.
var directivePattern = regexp.MustCompile(`#([\p{L}\d][\p{L}\d-]*)`)

// Handler consumes messages from a Reader channel, extracts expense
// records and forwards ledger entries to a Writer channel.
type Handler struct {
	extractor *extract.Extractor
	replier   api.Replier
	identity  *Identity
	source    string
	replyOn   bool
	logger    *slog.Logger
}

// Config holds handler configuration.
type Config struct {
	// Source labels entries written to the ledger (e.g. "whatsapp").
	Source string
	// ReplyEnabled gates confirmation replies back to the chat.
	ReplyEnabled bool
}

// New creates a message handler. replier may be nil when replies are
// disabled or the transport has no reply capability.
func New(extractor *extract.Extractor, replier api.Replier, identity *Identity, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		extractor: extractor,
		replier:   replier,
		identity:  identity,
		source:    cfg.Source,
		replyOn:   cfg.ReplyEnabled,
		logger:    logger,
	}
}

// Run consumes messages until the context is canceled or the input channel
// closes, forwarding ledger entries to out. Each message is one independent
// pipeline invocation; failures are logged (and replied, if enabled) but
// never stop the loop.
func (h *Handler) Run(ctx context.Context, in <-chan *api.Message, out chan<- *api.LedgerEntry) error {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("handler stopping", "reason", ctx.Err())
			return ctx.Err()
		case msg, ok := <-in:
			if !ok {
				h.logger.Info("message channel closed")
				return nil
			}
			h.handle(ctx, msg, out)
		}
	}
}

func (h *Handler) handle(ctx context.Context, msg *api.Message, out chan<- *api.LedgerEntry) {
	logger := h.logger.With("message_id", msg.ID, "run_id", uuid.NewString())

	if h.identity != nil && h.identity.IsSelf(msg.Sender) {
		logger.Debug("skipping own message")
		return
	}
	if strings.TrimSpace(msg.Text) == "" && msg.Image == nil {
		logger.Debug("skipping message with no text or image")
		return
	}

	override, cleaned := StripDirectives(msg.Text)

	record, err := h.extractor.Extract(ctx, extract.Input{
		MessageID:       msg.ID,
		Text:            cleaned,
		RawText:         msg.Text,
		Image:           msg.Image,
		TimestampMillis: msg.Timestamp * 1000,
		AccountOverride: override,
	})
	if err != nil {
		logger.Error("extraction failed", "error", err)
		h.reply(ctx, msg.ChatID, FailureReply, logger)
		return
	}

	entry := &api.LedgerEntry{
		ExpenseRecord: *record,
		Timestamp:     time.Unix(msg.Timestamp, 0).UTC().Format(time.RFC3339),
		Source:        h.source,
		ChatName:      msg.ChatName,
		MessageID:     msg.ID,
	}

	select {
	case <-ctx.Done():
		return
	case out <- entry:
	}

	logger.Info("expense recorded",
		"description", record.Description,
		"amount", record.Amount,
		"currency", record.Currency,
		"account", record.Account,
	)
	h.reply(ctx, msg.ChatID, ConfirmationText(record), logger)
}

// reply sends a best-effort chat reply. Failures are logged, not retried.
func (h *Handler) reply(ctx context.Context, chatID, text string, logger *slog.Logger) {
	if !h.replyOn || h.replier == nil {
		return
	}
	if err := h.replier.Reply(ctx, chatID, text); err != nil {
		logger.Warn("failed to send reply", "error", err)
	}
}

// StripDirectives extracts the account override directive from the message
// text and returns it with the cleaned text (all directives removed).
func StripDirectives(text string) (override, cleaned string) {
	matches := directivePattern.FindAllStringSubmatch(text, -1)
	if len(matches) > 0 {
		override = matches[0][1]
	}
	cleaned = directivePattern.ReplaceAllString(text, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return override, cleaned
}

// ConfirmationText renders the user-visible success message, with the
// amount formatted per the record's currency.
func ConfirmationText(record *api.ExpenseRecord) string {
	return fmt.Sprintf("Recorded: %s – %s on %s. Category: %s.",
		record.Description, FormatAmount(record.Amount, record.Currency), record.Date, record.Category)
}

// FormatAmount renders an amount with its currency symbol ("$12.50",
// "Rp 25,000"). Unknown currency codes fall back to "<CODE> <amount>".
func FormatAmount(amount float64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%s %.2f", code, amount)
	}
	printer := message.NewPrinter(language.English)
	return printer.Sprintf("%v", currency.NarrowSymbol(unit.Amount(amount)))
}
