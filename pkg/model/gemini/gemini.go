// Package gemini implements the ModelClient interface over the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Client invokes Gemini with text and inline image parts. It reads the
// API key from the environment (GEMINI_API_KEY / GOOGLE_API_KEY, handled
// by the genai SDK).
type Client struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// New creates a Gemini-backed model client.
func New(ctx context.Context, model string, logger *slog.Logger) (*Client, error) {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Client{client: client, model: model, logger: logger}, nil
}

// Invoke sends the prompt parts to Gemini and returns the raw response
// text. Transport and quota errors are returned as-is; retry policy is the
// caller's concern.
func (c *Client) Invoke(ctx context.Context, parts []api.Part) (string, error) {
	genaiParts := make([]*genai.Part, 0, len(parts))
	for _, part := range parts {
		if part.Data != nil {
			genaiParts = append(genaiParts, &genai.Part{
				InlineData: &genai.Blob{
					MIMEType: part.MIMEType,
					Data:     part.Data,
				},
			})
			continue
		}
		genaiParts = append(genaiParts, &genai.Part{Text: part.Text})
	}

	contents := []*genai.Content{{Role: "user", Parts: genaiParts}}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", c.model)
	}

	c.logger.Debug("model responded", "model", c.model, "response_len", len(text))
	return text, nil
}

var _ api.ModelClient = (*Client)(nil)
