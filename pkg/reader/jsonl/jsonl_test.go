package jsonl

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/api"
)

func collect(t *testing.T, input string) []*api.Message {
	t.Helper()

	r := New(strings.NewReader(input), nil)
	out := make(chan *api.Message, 16)
	ack := make(chan string)
	close(ack)

	if err := r.Read(context.Background(), out, ack); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	var msgs []*api.Message
	for msg := range out {
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestReadMessages(t *testing.T) {
	input := `{"id":"m1","chat_id":"c1","chat_name":"Expenses","sender":"u1","timestamp":1710669600,"text":"lunch 25000"}
{"id":"m2","sender":"u1","timestamp":1710669601,"text":"kopi 15000 #gopay"}
`
	msgs := collect(t, input)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[0].ChatName != "Expenses" || msgs[0].Text != "lunch 25000" {
		t.Errorf("first message: %+v", msgs[0])
	}
	if msgs[0].Timestamp != 1710669600 {
		t.Errorf("timestamp: got %d", msgs[0].Timestamp)
	}
}

func TestReadSkipsMalformedAndBlank(t *testing.T) {
	input := `{"id":"m1","timestamp":1,"text":"ok"}

not json at all
{"timestamp":2,"text":"missing id"}
{"id":"m2","timestamp":3,"text":"also ok"}
`
	msgs := collect(t, input)
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("messages: %+v", msgs)
	}
}

func TestReadDecodesImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF})
	input := `{"id":"m1","timestamp":1,"image_base64":"` + payload + `","image_mime":"image/png"}` + "\n"

	msgs := collect(t, input)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	img := msgs[0].Image
	if img == nil || img.MIMEType != "image/png" || len(img.Data) != 3 {
		t.Errorf("image: %+v", img)
	}
}

func TestReadDefaultsImageMIME(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{1})
	input := `{"id":"m1","timestamp":1,"image_base64":"` + payload + `"}` + "\n"

	msgs := collect(t, input)
	if msgs[0].Image.MIMEType != "image/jpeg" {
		t.Errorf("mime: got %q, want image/jpeg", msgs[0].Image.MIMEType)
	}
}
