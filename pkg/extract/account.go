package extract

import (
	"log/slog"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/vocab"
)

// AccountResolver merges an explicit override, a model-proposed account and
// free-text candidates into one authoritative account name or nil.
type AccountResolver struct {
	accounts *vocab.Accounts
	logger   *slog.Logger
}

// NewAccountResolver creates an account resolver over the given vocabulary.
func NewAccountResolver(accounts *vocab.Accounts, logger *slog.Logger) *AccountResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountResolver{accounts: accounts, logger: logger}
}

// Resolve picks the account for a record. First success wins, no merging:
//
//  1. The explicit override, normalized against the vocabulary. An override
//     that does not normalize is logged and discarded, never fatal.
//  2. The model-proposed account, normalized.
//  3. Each text candidate in order, scanned for aliases; the first account
//     in vocabulary definition order with a matching alias wins.
//
// Returns nil when nothing matches; an unresolved account is a valid
// terminal value, not an error.
func (r *AccountResolver) Resolve(override, proposed string, candidates []string) *string {
	if override != "" {
		if name, ok := r.accounts.Normalize(override); ok {
			return &name
		}
		r.logger.Warn("account override not in vocabulary, ignoring", "override", override)
	}

	if proposed != "" {
		if name, ok := r.accounts.Normalize(proposed); ok {
			return &name
		}
	}

	for _, candidate := range candidates {
		if name, ok := r.accounts.MatchText(candidate); ok {
			return &name
		}
	}

	return nil
}
