package extract

import (
	"testing"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/vocab"
)

func testResolver(t *testing.T) *AccountResolver {
	t.Helper()
	accounts, err := vocab.New([]vocab.Account{
		{Name: "cash", Aliases: []string{"tunai"}},
		{Name: "bca", Aliases: []string{"bca debit"}},
		{Name: "gopay", Aliases: []string{"gojek"}},
		{Name: "flazz emoney", Aliases: []string{"flazz", "emoney"}},
	})
	if err != nil {
		t.Fatalf("building vocabulary: %v", err)
	}
	return NewAccountResolver(accounts, nil)
}

func TestResolveAccount(t *testing.T) {
	r := testResolver(t)

	str := func(s string) *string { return &s }

	tests := []struct {
		name       string
		override   string
		proposed   string
		candidates []string
		want       *string
	}{
		{
			name:     "valid override wins",
			override: "GoPay",
			want:     str("gopay"),
		},
		{
			name:       "override beats text candidates",
			override:   "tunai",
			candidates: []string{"paid via gopay"},
			want:       str("cash"),
		},
		{
			name:       "invalid override discarded, text match used",
			override:   "not-a-real-account",
			candidates: []string{"paid via bca flazz"},
			want:       str("bca"),
		},
		{
			name:     "model proposal normalized",
			proposed: "GOJEK",
			want:     str("gopay"),
		},
		{
			name:       "unknown proposal falls through to text",
			proposed:   "visa",
			candidates: []string{"", "topped up flazz today"},
			want:       str("flazz emoney"),
		},
		{
			name:       "candidate order respected",
			candidates: []string{"no accounts here", "gojek ride"},
			want:       str("gopay"),
		},
		{
			name:       "nothing matches",
			candidates: []string{"lunch at warung"},
			want:       nil,
		},
		{
			name: "all empty",
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Resolve(tc.override, tc.proposed, tc.candidates)
			switch {
			case got == nil && tc.want != nil:
				t.Errorf("got nil, want %q", *tc.want)
			case got != nil && tc.want == nil:
				t.Errorf("got %q, want nil", *got)
			case got != nil && tc.want != nil && *got != *tc.want:
				t.Errorf("got %q, want %q", *got, *tc.want)
			}
		})
	}
}

func TestResolveAccountDeterministic(t *testing.T) {
	r := testResolver(t)
	for i := 0; i < 5; i++ {
		got := r.Resolve("", "", []string{"paid via bca flazz"})
		if got == nil || *got != "bca" {
			t.Fatalf("iteration %d: got %v, want bca", i, got)
		}
	}
}
