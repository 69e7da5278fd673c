package csv

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
)

func strPtr(s string) *string { return &s }

func TestRow(t *testing.T) {
	e := &api.LedgerEntry{
		ExpenseRecord: api.ExpenseRecord{
			Date:        "2024-03-17",
			Description: "Lunch",
			Category:    "Food",
			Amount:      12.5,
			Currency:    "USD",
			Merchant:    strPtr("Warung Sari"),
		},
		Timestamp: "2024-03-17T10:00:00Z",
		Source:    "whatsapp",
		ChatName:  "Expenses",
		MessageID: "wamid.1",
	}

	got := Row(e)
	want := []string{
		"2024-03-17T10:00:00Z", "2024-03-17", "Food", "Lunch", "12.50",
		"USD", "Warung Sari", "whatsapp", "Expenses", "wamid.1",
	}

	if len(got) != len(want) {
		t.Fatalf("row length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d (%s): got %q, want %q", i, header[i], got[i], want[i])
		}
	}
}

func TestRowNilMerchant(t *testing.T) {
	e := &api.LedgerEntry{ExpenseRecord: api.ExpenseRecord{Amount: 1}}
	if got := Row(e)[6]; got != "" {
		t.Errorf("merchant column: got %q, want empty", got)
	}
}

func TestWriterAppendsWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.csv")

	w, err := New(Config{FilePath: path, BatchSize: 10}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	in := make(chan *api.LedgerEntry, 2)
	ack := make(chan string, 2)
	in <- &api.LedgerEntry{
		ExpenseRecord: api.ExpenseRecord{Date: "2024-01-01", Description: "Kopi", Category: "Food", Amount: 15000, Currency: "IDR"},
		Timestamp:     "2024-01-01T02:00:00Z",
		Source:        "whatsapp",
		MessageID:     "m1",
	}
	close(in)

	if err := w.Write(context.Background(), in, ack); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if got := <-ack; got != "m1" {
		t.Errorf("ack: got %q, want m1", got)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want header + 1", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[0][9] != "message_id" {
		t.Errorf("header: %v", rows[0])
	}
	if rows[1][3] != "Kopi" || rows[1][4] != "15000.00" {
		t.Errorf("data row: %v", rows[1])
	}
}
