// Package jsonl implements a Reader that replays newline-delimited JSON
// messages from a file or stdin. It is the offline stand-in for a live chat
// transport, used for replays and integration tests.
package jsonl

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
)

// rawMessage is the on-disk message format. Image payloads are carried
// inline, base64-encoded.
type rawMessage struct {
	ID          string `json:"id"`
	ChatID      string `json:"chat_id"`
	ChatName    string `json:"chat_name"`
	Sender      string `json:"sender"`
	Timestamp   int64  `json:"timestamp"`
	Text        string `json:"text"`
	ImageBase64 string `json:"image_base64,omitempty"`
	ImageMIME   string `json:"image_mime,omitempty"`
}

// Reader replays messages from a JSONL stream.
type Reader struct {
	input  io.Reader
	logger *slog.Logger
}

// New creates a reader over an arbitrary stream.
func New(input io.Reader, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{input: input, logger: logger}
}

// Open creates a reader over a file, or stdin when path is "-".
func Open(path string, logger *slog.Logger) (*Reader, func() error, error) {
	if path == "-" {
		return New(os.Stdin, logger), func() error { return nil }, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening message dump: %w", err)
	}
	return New(f, logger), f.Close, nil
}

// Read decodes messages line by line and sends them to out, then closes it.
// Acks are consumed and logged; a replay source has nothing to mark as
// handled.
func (r *Reader) Read(ctx context.Context, out chan<- *api.Message, ackChan <-chan string) error {
	defer close(out)

	go r.drainAcks(ctx, ackChan)

	scanner := bufio.NewScanner(r.input)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		msg, err := decode([]byte(text))
		if err != nil {
			r.logger.Warn("skipping malformed message", "line", line, "error", err)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- msg:
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading message dump: %w", err)
	}

	r.logger.Info("message dump exhausted", "lines", line)
	return nil
}

func (r *Reader) drainAcks(ctx context.Context, ackChan <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-ackChan:
			if !ok {
				return
			}
			r.logger.Debug("message acknowledged", "message_id", id)
		}
	}
}

func decode(data []byte) (*api.Message, error) {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing message JSON: %w", err)
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("message without id")
	}

	msg := &api.Message{
		ID:        raw.ID,
		ChatID:    raw.ChatID,
		ChatName:  raw.ChatName,
		Sender:    raw.Sender,
		Timestamp: raw.Timestamp,
		Text:      raw.Text,
	}

	if raw.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(raw.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("decoding image payload: %w", err)
		}
		mime := raw.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		msg.Image = &api.Image{Data: data, MIMEType: mime}
	}

	return msg, nil
}

var _ api.Reader = (*Reader)(nil)
