package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/vocab"
)

// Defaults applied when neither the model nor the fallback can infer a value.
const (
	DefaultDescription = "Expense"
	DefaultCategory    = "General"
)

// fallbackPattern captures the expected shape of a plain expense message:
// a leading run of letters/whitespace (description), a numeric amount with
// optional grouping/decimal separators, then an optional currency token
// (3-letter code or known symbol).
var fallbackPattern = regexp.MustCompile(`^\s*([\p{L}][\p{L}\s]*?)\s+(\d[\d.,]*)\s*([A-Za-z]{3}|[$€£])?\s*$`)

// decimalComma matches a trailing comma-decimal like "3,50" or "7,5".
var decimalComma = regexp.MustCompile(`,(\d{1,2})$`)

// FallbackParse derives a minimal expense record from plain text without
// any model involvement. Category and merchant are always the fixed
// defaults; the account is left unresolved for the account resolver.
// Returns ErrUnparsableText when the text does not match the expected
// description+amount shape.
func FallbackParse(text, fallbackDate, defaultCurrency string) (*api.ExpenseRecord, error) {
	m := fallbackPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnparsableText, text)
	}

	amount, err := parseAmountToken(m[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnparsableText, text, err)
	}

	currency := defaultCurrency
	if token := m[3]; token != "" {
		if code, ok := vocab.CurrencySymbols[token]; ok {
			currency = code
		} else {
			currency = strings.ToUpper(token)
		}
	}

	return &api.ExpenseRecord{
		Date:        fallbackDate,
		Description: strings.TrimSpace(m[1]),
		Category:    DefaultCategory,
		Amount:      amount,
		Currency:    currency,
	}, nil
}

// parseAmountToken parses a numeric token like "12.50", "3,50" or
// "1,234.50". A comma followed by one or two trailing digits is a decimal
// separator; commas used as thousands grouping are stripped.
func parseAmountToken(token string) (float64, error) {
	if decimalComma.MatchString(token) {
		token = strings.ReplaceAll(token[:strings.LastIndex(token, ",")], ",", "") +
			"." + token[strings.LastIndex(token, ",")+1:]
	} else {
		token = strings.ReplaceAll(token, ",", "")
	}

	amount, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing amount: %w", err)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %v", amount)
	}
	return amount, nil
}
