package handler

import (
	"log/slog"
	"sync"
)

// Identity tracks the bot's own transport account id so its outbound
// messages are not re-ingested as expenses. The id becomes known only once
// the transport session is ready, so it is set lazily and may be refreshed
// idempotently on reconnect.
type Identity struct {
	mu sync.RWMutex
	id string
}

// NewIdentity returns an empty identity holder.
func NewIdentity() *Identity {
	return &Identity{}
}

// Set records the bot's own account id. Calling it again with the same id
// is a no-op; a changed id (new session) is logged and adopted.
func (i *Identity) Set(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.id == id {
		return
	}
	if i.id != "" {
		slog.Info("bot identity changed", "old", i.id, "new", id)
	}
	i.id = id
}

// IsSelf reports whether sender is the bot's own account. Before the
// identity is known, nothing is considered self.
func (i *Identity) IsSelf(sender string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.id != "" && sender == i.id
}
