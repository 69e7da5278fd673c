package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
	"github.com/caesariodito/mp-auto-expense-wa/pkg/vocab"
)

func newPipeline(t *testing.T, client api.ModelClient) *Extractor {
	t.Helper()
	accounts, err := vocab.New([]vocab.Account{
		{Name: "cash", Aliases: []string{"tunai"}},
		{Name: "bca"},
		{Name: "gopay", Aliases: []string{"gojek"}},
	})
	if err != nil {
		t.Fatalf("building vocabulary: %v", err)
	}
	return New(client, accounts, Config{Timezone: "Asia/Jakarta", DefaultCurrency: "IDR"}, nil)
}

func TestExtractTextHappyPath(t *testing.T) {
	model := &fakeModel{
		response: `{"description":"Lunch","category":"Food","amount":25000,"currency":"IDR","account":"gopay"}`,
	}
	e := newPipeline(t, model)

	record, err := e.Extract(context.Background(), Input{
		MessageID:       "msg-1",
		Text:            "lunch 25000 gopay",
		RawText:         "lunch 25000 gopay",
		TimestampMillis: time.Date(2024, 3, 17, 10, 0, 0, 0, time.UTC).UnixMilli(),
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if record.Description != "Lunch" || record.Amount != 25000 {
		t.Errorf("record: %+v", record)
	}
	if record.Account == nil || *record.Account != "gopay" {
		t.Errorf("account: got %v, want gopay", record.Account)
	}
}

func TestExtractFallsBackToRegex(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("deadline exceeded")}
	e := newPipeline(t, model)

	record, err := e.Extract(context.Background(), Input{
		MessageID:       "msg-2",
		Text:            "Kopi 15000",
		RawText:         "Kopi 15000 #tunai",
		AccountOverride: "tunai",
		TimestampMillis: time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if record.Description != "Kopi" || record.Amount != 15000 || record.Currency != "IDR" {
		t.Errorf("fallback record: %+v", record)
	}
	if record.Category != DefaultCategory {
		t.Errorf("category: got %q, want %q", record.Category, DefaultCategory)
	}
	if record.Account == nil || *record.Account != "cash" {
		t.Errorf("account: got %v, want cash (from override)", record.Account)
	}
}

func TestExtractImageWithoutTextPropagatesModelError(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("quota exceeded")}
	e := newPipeline(t, model)

	_, err := e.Extract(context.Background(), Input{
		MessageID:       "msg-3",
		Image:           &api.Image{Data: []byte{1}, MIMEType: "image/jpeg"},
		TimestampMillis: time.Now().UnixMilli(),
	})
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("error = %v, want ErrExtractionFailed", err)
	}
	// The original model error stays in the chain; no record is invented.
	if !errors.Is(err, ErrModelInvocation) {
		t.Errorf("error chain lost the model error: %v", err)
	}
}

func TestExtractImageFallsBackToCaptionText(t *testing.T) {
	model := &fakeModel{response: "no json here"}
	e := newPipeline(t, model)

	record, err := e.Extract(context.Background(), Input{
		MessageID:       "msg-4",
		Text:            "Dinner 80000",
		RawText:         "Dinner 80000",
		Image:           &api.Image{Data: []byte{1}, MIMEType: "image/png"},
		TimestampMillis: time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if record.Description != "Dinner" || record.Amount != 80000 {
		t.Errorf("record: %+v", record)
	}
}

func TestExtractBothStagesFail(t *testing.T) {
	model := &fakeModel{err: fmt.Errorf("network down")}
	e := newPipeline(t, model)

	_, err := e.Extract(context.Background(), Input{
		MessageID:       "msg-5",
		Text:            "???",
		RawText:         "???",
		TimestampMillis: time.Now().UnixMilli(),
	})
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("error = %v, want ErrExtractionFailed", err)
	}
}

func TestExtractAccountFromRawText(t *testing.T) {
	// Model finds no account; the raw (pre-stripping) text still mentions one.
	model := &fakeModel{response: `{"description":"Parking","amount":2000}`}
	e := newPipeline(t, model)

	record, err := e.Extract(context.Background(), Input{
		MessageID:       "msg-6",
		Text:            "parking 2000",
		RawText:         "parking 2000 pakai gojek",
		TimestampMillis: time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if record.Account == nil || *record.Account != "gopay" {
		t.Errorf("account: got %v, want gopay", record.Account)
	}
}
