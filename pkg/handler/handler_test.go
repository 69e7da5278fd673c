package handler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/extract"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/vocab"
)

// staticModel is an api.ModelClient with a canned response or error.
type staticModel struct {
	response string
	err      error
}

func (s *staticModel) Invoke(context.Context, []api.Part) (string, error) {
	return s.response, s.err
}

// recordingReplier captures replies sent by the handler.
type recordingReplier struct {
	chatIDs []string
	texts   []string
	err     error
}

func (r *recordingReplier) Reply(_ context.Context, chatID, text string) error {
	r.chatIDs = append(r.chatIDs, chatID)
	r.texts = append(r.texts, text)
	return r.err
}

func newHandler(t *testing.T, model api.ModelClient, replier api.Replier, replyOn bool) *Handler {
	t.Helper()
	accounts, err := vocab.New([]vocab.Account{
		{Name: "cash", Aliases: []string{"tunai"}},
		{Name: "gopay"},
	})
	if err != nil {
		t.Fatalf("building vocabulary: %v", err)
	}
	extractor := extract.New(model, accounts,
		extract.Config{Timezone: "Asia/Jakarta", DefaultCurrency: "IDR"}, nil)
	return New(extractor, replier, NewIdentity(), Config{Source: "whatsapp", ReplyEnabled: replyOn}, nil)
}

func runOne(t *testing.T, h *Handler, msg *api.Message) *api.LedgerEntry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in := make(chan *api.Message, 1)
	out := make(chan *api.LedgerEntry, 1)
	in <- msg
	close(in)

	if err := h.Run(ctx, in, out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	select {
	case entry := <-out:
		return entry
	default:
		return nil
	}
}

func TestStripDirectives(t *testing.T) {
	tests := []struct {
		text         string
		wantOverride string
		wantCleaned  string
	}{
		{"Lunch 25000 #gopay", "gopay", "Lunch 25000"},
		{"#tunai Kopi 15000", "tunai", "Kopi 15000"},
		{"Lunch 25000", "", "Lunch 25000"},
		{"Dinner #gopay 50000 #food", "gopay", "Dinner 50000"},
		{"", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			override, cleaned := StripDirectives(tc.text)
			if override != tc.wantOverride || cleaned != tc.wantCleaned {
				t.Errorf("StripDirectives(%q) = (%q, %q), want (%q, %q)",
					tc.text, override, cleaned, tc.wantOverride, tc.wantCleaned)
			}
		})
	}
}

func TestHandlerWritesLedgerEntry(t *testing.T) {
	model := &staticModel{
		response: `{"description":"Lunch","category":"Food","amount":25000,"currency":"IDR"}`,
	}
	replier := &recordingReplier{}
	h := newHandler(t, model, replier, true)

	entry := runOne(t, h, &api.Message{
		ID:        "wamid.1",
		ChatID:    "chat-1",
		ChatName:  "Expenses",
		Sender:    "user-1",
		Timestamp: time.Date(2024, 3, 17, 10, 0, 0, 0, time.UTC).Unix(),
		Text:      "lunch 25000 #gopay",
	})
	if entry == nil {
		t.Fatal("no ledger entry produced")
	}

	if entry.Description != "Lunch" || entry.Amount != 25000 {
		t.Errorf("entry record: %+v", entry.ExpenseRecord)
	}
	if entry.Account == nil || *entry.Account != "gopay" {
		t.Errorf("account: got %v, want gopay (directive override)", entry.Account)
	}
	if entry.Source != "whatsapp" || entry.ChatName != "Expenses" || entry.MessageID != "wamid.1" {
		t.Errorf("metadata: %+v", entry)
	}
	if entry.Timestamp != "2024-03-17T10:00:00Z" {
		t.Errorf("timestamp: got %q", entry.Timestamp)
	}

	if len(replier.texts) != 1 {
		t.Fatalf("got %d replies, want 1", len(replier.texts))
	}
	if !strings.HasPrefix(replier.texts[0], "Recorded: Lunch") {
		t.Errorf("confirmation: %q", replier.texts[0])
	}
	if !strings.Contains(replier.texts[0], "2024-03-17") {
		t.Errorf("confirmation missing date: %q", replier.texts[0])
	}
}

func TestHandlerFailureReply(t *testing.T) {
	model := &staticModel{err: fmt.Errorf("quota exceeded")}
	replier := &recordingReplier{}
	h := newHandler(t, model, replier, true)

	entry := runOne(t, h, &api.Message{
		ID:        "wamid.2",
		ChatID:    "chat-1",
		Sender:    "user-1",
		Timestamp: time.Now().Unix(),
		Text:      "???",
	})
	if entry != nil {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	if len(replier.texts) != 1 || replier.texts[0] != FailureReply {
		t.Errorf("replies: %v", replier.texts)
	}
}

func TestHandlerRepliesDisabled(t *testing.T) {
	model := &staticModel{response: `{"description":"Lunch","amount":10}`}
	replier := &recordingReplier{}
	h := newHandler(t, model, replier, false)

	if entry := runOne(t, h, &api.Message{
		ID: "wamid.3", Sender: "u", Timestamp: time.Now().Unix(), Text: "lunch 10",
	}); entry == nil {
		t.Fatal("no ledger entry produced")
	}

	if len(replier.texts) != 0 {
		t.Errorf("expected no replies, got %v", replier.texts)
	}
}

func TestHandlerSkipsSelfAndEmpty(t *testing.T) {
	model := &staticModel{response: `{"amount":10}`}
	h := newHandler(t, model, nil, false)
	h.identity.Set("bot-id")

	if entry := runOne(t, h, &api.Message{
		ID: "wamid.4", Sender: "bot-id", Timestamp: time.Now().Unix(), Text: "lunch 10",
	}); entry != nil {
		t.Errorf("own message should be skipped, got %+v", entry)
	}

	if entry := runOne(t, h, &api.Message{
		ID: "wamid.5", Sender: "u", Timestamp: time.Now().Unix(), Text: "   ",
	}); entry != nil {
		t.Errorf("empty message should be skipped, got %+v", entry)
	}
}

func TestIdentity(t *testing.T) {
	id := NewIdentity()
	if id.IsSelf("anything") {
		t.Error("unset identity must match nothing")
	}

	id.Set("bot-1")
	id.Set("bot-1") // idempotent refresh
	if !id.IsSelf("bot-1") || id.IsSelf("user-1") {
		t.Error("identity matching broken")
	}

	id.Set("bot-2")
	if !id.IsSelf("bot-2") || id.IsSelf("bot-1") {
		t.Error("identity rotation broken")
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(12.5, "USD"); !strings.Contains(got, "12.50") {
		t.Errorf("FormatAmount USD: %q", got)
	}
	// Unknown code falls back to "<CODE> <amount>".
	if got := FormatAmount(5, "ZZZ"); got != "ZZZ 5.00" {
		t.Errorf("FormatAmount unknown: %q", got)
	}
}

func TestConfirmationText(t *testing.T) {
	record := &api.ExpenseRecord{
		Date:        "2024-03-17",
		Description: "Lunch",
		Category:    "Food",
		Amount:      12.5,
		Currency:    "USD",
	}
	got := ConfirmationText(record)
	for _, want := range []string{"Recorded: Lunch", "12.50", "2024-03-17", "Category: Food."} {
		if !strings.Contains(got, want) {
			t.Errorf("confirmation %q missing %q", got, want)
		}
	}
}
