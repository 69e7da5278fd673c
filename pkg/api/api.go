// Package api defines the core interfaces and data structures shared by the
// message sources, the extraction pipeline, and the ledger sinks.
package api

import "context"

// ExpenseRecord is the normalized output of the extraction pipeline,
// ready for ledger storage. It is constructed fresh per message and is
// never mutated after being handed to a sink.
type ExpenseRecord struct {
	// Date is the calendar date of the expense, ISO 8601 YYYY-MM-DD.
	Date string `json:"date"`
	// Description is a short human-readable label, conventionally <=60 chars.
	Description string `json:"description"`
	// Category is a single-word expense category.
	Category string `json:"category"`
	// Amount is the expense amount, always finite and strictly positive.
	Amount float64 `json:"amount"`
	// Currency is the 3-letter ISO 4217 code, upper-cased.
	Currency string `json:"currency"`
	// Merchant is the merchant name, if one could be determined.
	Merchant *string `json:"merchant"`
	// Account is the canonical payment-account name, or nil if unresolved.
	Account *string `json:"account"`
}

// LedgerEntry is an ExpenseRecord enriched with message metadata, matching
// the persisted column layout:
// timestamp, date, category, description, amount, currency, merchant,
// source, chat_name, message_id.
type LedgerEntry struct {
	ExpenseRecord

	// Timestamp is the message receive time, RFC 3339.
	Timestamp string `json:"timestamp"`
	// Source identifies the deployment feeding the ledger.
	Source string `json:"source"`
	// ChatName is the display name of the originating chat.
	ChatName string `json:"chat_name"`
	// MessageID is the transport message identifier (used for acks and dedup).
	MessageID string `json:"message_id"`
}

// Image is an attached image payload fetched from the message source.
type Image struct {
	Data     []byte
	MIMEType string
}

// Message is one inbound chat event delivered by a Reader.
type Message struct {
	// ID is the transport's stable message identifier.
	ID string `json:"id"`
	// ChatID identifies the originating chat.
	ChatID string `json:"chat_id"`
	// ChatName is the chat's display name.
	ChatName string `json:"chat_name"`
	// Sender identifies the message author.
	Sender string `json:"sender"`
	// Timestamp is the UTC unix-epoch time in seconds.
	Timestamp int64 `json:"timestamp"`
	// Text is the message body, possibly empty.
	Text string `json:"text"`
	// Image is the attached image, or nil.
	Image *Image `json:"-"`
}

// Reader delivers inbound messages to the provided channel.
// Implementations should close the channel when done or on error.
// The ackChan receives the IDs of messages whose ledger entries were
// successfully written, so the transport can mark them handled.
type Reader interface {
	Read(ctx context.Context, out chan<- *Message, ackChan <-chan string) error
}

// Writer consumes ledger entries from a channel and appends them to a
// ledger. Successfully written message IDs are sent to the ackChan.
// Append-only, at-least-once: writers must tolerate redelivery.
type Writer interface {
	Write(ctx context.Context, in <-chan *LedgerEntry, ackChan chan<- string) error
}

// Part is one segment of a model prompt: text, or at most one inline blob.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// ModelClient invokes the language model with an ordered sequence of prompt
// parts and returns the raw response text. The client owns its own timeout
// policy; a failed call must return an error rather than hang.
type ModelClient interface {
	Invoke(ctx context.Context, parts []Part) (string, error)
}

// Replier sends a confirmation text back to the originating chat.
type Replier interface {
	Reply(ctx context.Context, chatID, text string) error
}
