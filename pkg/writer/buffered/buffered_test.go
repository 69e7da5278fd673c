package buffered

import (
	"context"
	"testing"
	"time"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
)

func entry(id string) *api.LedgerEntry {
	return &api.LedgerEntry{
		ExpenseRecord: api.ExpenseRecord{
			Date:        "2024-01-01",
			Description: "Lunch",
			Category:    "Food",
			Amount:      10,
			Currency:    "USD",
		},
		MessageID: id,
	}
}

func TestFlushOnClose(t *testing.T) {
	var flushed [][]*api.LedgerEntry
	w := New(func(entries []*api.LedgerEntry) error {
		flushed = append(flushed, entries)
		return nil
	}, Config{BatchSize: 100}, nil)

	in := make(chan *api.LedgerEntry, 3)
	ack := make(chan string, 3)
	in <- entry("a")
	in <- entry("b")
	in <- entry("c")
	close(in)

	if err := w.Write(context.Background(), in, ack); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if len(flushed) != 1 || len(flushed[0]) != 3 {
		t.Fatalf("flushed batches: %v", flushed)
	}

	var acks []string
	for i := 0; i < 3; i++ {
		acks = append(acks, <-ack)
	}
	if acks[0] != "a" || acks[1] != "b" || acks[2] != "c" {
		t.Errorf("acks: %v", acks)
	}
	if w.BufferLen() != 0 {
		t.Errorf("buffer not drained: %d", w.BufferLen())
	}
}

func TestFlushOnBatchSize(t *testing.T) {
	flushes := make(chan int, 10)
	w := New(func(entries []*api.LedgerEntry) error {
		flushes <- len(entries)
		return nil
	}, Config{BatchSize: 2, FlushInterval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan *api.LedgerEntry)
	ack := make(chan string, 10)

	done := make(chan error, 1)
	go func() { done <- w.Write(ctx, in, ack) }()

	in <- entry("a")
	in <- entry("b")

	select {
	case n := <-flushes:
		if n != 2 {
			t.Errorf("flush size: got %d, want 2", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("batch-size flush never happened")
	}

	cancel()
	<-done
}
