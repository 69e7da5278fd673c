package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/vocab"
)

// ModelExtractor derives expense records from message text or receipt
// images through an opaque model call.
type ModelExtractor struct {
	client          api.ModelClient
	accounts        *vocab.Accounts
	defaultCurrency string
	logger          *slog.Logger
}

// NewModelExtractor creates a model-backed extractor.
func NewModelExtractor(client api.ModelClient, accounts *vocab.Accounts, defaultCurrency string, logger *slog.Logger) *ModelExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelExtractor{
		client:          client,
		accounts:        accounts,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// ParseText extracts an expense record from free-form message text.
func (e *ModelExtractor) ParseText(ctx context.Context, text, fallbackDate string) (*api.ExpenseRecord, error) {
	parts := []api.Part{
		{Text: e.buildPrompt(fallbackDate)},
		{Text: "Message:\n" + text},
	}
	return e.invoke(ctx, parts, fallbackDate)
}

// ParseImage extracts an expense record from a receipt image, with the
// accompanying caption (if any) appended as a separate note part.
func (e *ModelExtractor) ParseImage(ctx context.Context, img api.Image, caption, fallbackDate string) (*api.ExpenseRecord, error) {
	parts := []api.Part{
		{Text: e.buildPrompt(fallbackDate)},
		{Data: img.Data, MIMEType: img.MIMEType},
	}
	if strings.TrimSpace(caption) != "" {
		parts = append(parts, api.Part{Text: "Note from the sender:\n" + caption})
	}
	return e.invoke(ctx, parts, fallbackDate)
}

func (e *ModelExtractor) invoke(ctx context.Context, parts []api.Part, fallbackDate string) (*api.ExpenseRecord, error) {
	raw, err := e.client.Invoke(ctx, parts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelInvocation, err)
	}

	record, err := e.normalize(raw, fallbackDate)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("model extraction succeeded",
		"description", record.Description,
		"amount", record.Amount,
		"currency", record.Currency,
	)
	return record, nil
}

// buildPrompt renders the fixed instruction template. The closed account
// vocabulary is spelled out so the model can only propose known names.
func (e *ModelExtractor) buildPrompt(fallbackDate string) string {
	var b strings.Builder
	b.WriteString("You are an expense extraction assistant.\n")
	b.WriteString("Extract a single expense from the message or receipt image and reply with ONE JSON object with exactly these fields:\n")
	b.WriteString(`"date", "description", "category", "amount", "currency", "merchant", "account"` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- \"date\": ISO format YYYY-MM-DD. If the source does not state a date, use " + fallbackDate + ".\n")
	b.WriteString("- \"description\": short human-readable summary, at most 60 characters.\n")
	b.WriteString("- \"category\": a single word, e.g. Food, Transport, Groceries.\n")
	b.WriteString("- \"amount\": the total amount as a number.\n")
	b.WriteString("- \"currency\": 3-letter ISO 4217 code. If unsure, use " + e.defaultCurrency + ".\n")
	b.WriteString("- \"merchant\": merchant name, or null if unknown.\n")
	b.WriteString("- \"account\": the payment account, lowercase, or null if unknown. It must be one of:\n")
	for _, name := range e.accounts.Names() {
		b.WriteString("  - " + name + "\n")
	}
	b.WriteString("\nReturn ONLY the bare JSON object.\n")
	b.WriteString("Do NOT wrap the response in code fences or Markdown.\n")
	return b.String()
}

// modelResponse mirrors the JSON shape requested from the model. Pointer
// fields distinguish absent keys from explicit values during the merge.
type modelResponse struct {
	Date        *string          `json:"date"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Amount      *json.RawMessage `json:"amount"`
	Currency    *string          `json:"currency"`
	Merchant    *string          `json:"merchant"`
	Account     *string          `json:"account"`
}

// usDatePattern matches month/day/year forms like "3/17/2024", "03-17-24".
var usDatePattern = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})$`)

// amountJunk strips everything that is not a digit, dot, comma or minus.
var amountJunk = regexp.MustCompile(`[^\d.,-]`)

// normalize turns a raw model response into a validated expense record,
// applied uniformly to the text and image paths.
func (e *ModelExtractor) normalize(raw, fallbackDate string) (*api.ExpenseRecord, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrMalformedModelResponse)
	}

	var resp modelResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModelResponse, err)
	}

	record := &api.ExpenseRecord{
		Date:        fallbackDate,
		Description: DefaultDescription,
		Category:    DefaultCategory,
		Currency:    e.defaultCurrency,
	}

	if resp.Date != nil && strings.TrimSpace(*resp.Date) != "" {
		record.Date = normalizeDate(strings.TrimSpace(*resp.Date))
	}
	if resp.Description != nil && strings.TrimSpace(*resp.Description) != "" {
		record.Description = strings.TrimSpace(*resp.Description)
	}
	if resp.Category != nil && strings.TrimSpace(*resp.Category) != "" {
		record.Category = strings.TrimSpace(*resp.Category)
	}

	amount, err := coerceAmount(resp.Amount)
	if err != nil {
		return nil, err
	}
	record.Amount = amount

	if resp.Currency != nil {
		if cur := strings.ToUpper(strings.TrimSpace(*resp.Currency)); cur != "" {
			record.Currency = cur
		}
	}
	if resp.Merchant != nil {
		if merchant := strings.TrimSpace(*resp.Merchant); merchant != "" {
			record.Merchant = &merchant
		}
	}
	if resp.Account != nil {
		if account := strings.TrimSpace(*resp.Account); account != "" {
			record.Account = &account
		}
	}

	return record, nil
}

// normalizeDate rewrites a month/day/year date to ISO form. Already-ISO
// dates and anything unrecognized pass through unchanged.
func normalizeDate(date string) string {
	m := usDatePattern.FindStringSubmatch(date)
	if m == nil {
		return date
	}

	year := m[3]
	if len(year) == 2 {
		year = "20" + year
	}
	month := m[1]
	if len(month) == 1 {
		month = "0" + month
	}
	day := m[2]
	if len(day) == 1 {
		day = "0" + day
	}
	return year + "-" + month + "-" + day
}

// coerceAmount turns the model's amount value (number or decorated string)
// into a finite positive float. The first comma left after stripping junk
// is treated as a decimal separator.
func coerceAmount(raw *json.RawMessage) (float64, error) {
	if raw == nil {
		return 0, fmt.Errorf("%w: amount missing", ErrAmountUnresolved)
	}

	var text string
	var number float64
	if err := json.Unmarshal(*raw, &number); err == nil {
		if !validAmount(number) {
			return 0, fmt.Errorf("%w: %v", ErrAmountUnresolved, number)
		}
		return number, nil
	}
	if err := json.Unmarshal(*raw, &text); err != nil {
		return 0, fmt.Errorf("%w: amount is neither number nor string", ErrAmountUnresolved)
	}

	cleaned := amountJunk.ReplaceAllString(text, "")
	cleaned = strings.Replace(cleaned, ",", ".", 1)

	number, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || !validAmount(number) {
		return 0, fmt.Errorf("%w: %q", ErrAmountUnresolved, text)
	}
	return number, nil
}

func validAmount(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
