// Package vocab holds the fixed payment-account vocabulary and the currency
// symbol table used by the extraction pipeline.
package vocab

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// CurrencySymbols maps single-character currency symbols to ISO 4217 codes.
// Only the regex fallback path consults this table; the model path is
// instructed to normalize currencies itself.
var CurrencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

// Account is one canonical payment account with its case-insensitive aliases.
// The canonical name itself is always treated as an alias.
type Account struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// Accounts is the ordered, closed account vocabulary. Order matters:
// free-text alias matching returns the first account, in definition order,
// with an alias found in the candidate text.
type Accounts struct {
	accounts []Account
	// byAlias maps lower-cased alias -> canonical name, first definition wins.
	byAlias map[string]string
	// patterns holds one word-boundary pattern per account, in order.
	patterns []*regexp.Regexp
}

// New builds the vocabulary with precomputed lookup index and match
// patterns. Canonical names must be unique; duplicate aliases keep their
// first owner.
func New(accounts []Account) (*Accounts, error) {
	if len(accounts) == 0 {
		return nil, fmt.Errorf("empty account vocabulary")
	}

	v := &Accounts{
		accounts: accounts,
		byAlias:  make(map[string]string),
		patterns: make([]*regexp.Regexp, 0, len(accounts)),
	}

	seen := make(map[string]bool)
	for _, acc := range accounts {
		name := strings.ToLower(strings.TrimSpace(acc.Name))
		if name == "" {
			return nil, fmt.Errorf("account with empty canonical name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate canonical account name: %q", acc.Name)
		}
		seen[name] = true

		aliases := append([]string{name}, acc.Aliases...)
		alternatives := make([]string, 0, len(aliases))
		for _, alias := range aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias == "" {
				continue
			}
			if _, exists := v.byAlias[alias]; !exists {
				v.byAlias[alias] = name
			}
			alternatives = append(alternatives, regexp.QuoteMeta(alias))
		}

		pattern, err := regexp.Compile(`(?i)\b(?:` + strings.Join(alternatives, "|") + `)\b`)
		if err != nil {
			return nil, fmt.Errorf("compiling alias pattern for %q: %w", acc.Name, err)
		}
		v.patterns = append(v.patterns, pattern)
	}

	return v, nil
}

// FromJSON builds the vocabulary from a JSON array of
// {"name": ..., "aliases": [...]} objects.
func FromJSON(data []byte) (*Accounts, error) {
	var accounts []Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("parsing accounts JSON: %w", err)
	}
	return New(accounts)
}

// Names returns the canonical account names in definition order.
func (v *Accounts) Names() []string {
	names := make([]string, len(v.accounts))
	for i, acc := range v.accounts {
		names[i] = strings.ToLower(acc.Name)
	}
	return names
}

// Normalize resolves a value against the vocabulary by case-insensitive
// exact match on a canonical name or any alias. Returns the canonical name
// and whether the match succeeded.
func (v *Accounts) Normalize(value string) (string, bool) {
	name, ok := v.byAlias[strings.ToLower(strings.TrimSpace(value))]
	return name, ok
}

// MatchText scans free text for account aliases and returns the first
// matching canonical name in vocabulary definition order. The scan is
// case-insensitive and requires word boundaries, so "bca" does not match
// inside "abcagency".
func (v *Accounts) MatchText(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	for i, pattern := range v.patterns {
		if pattern.MatchString(text) {
			return strings.ToLower(v.accounts[i].Name), true
		}
	}
	return "", false
}
