package mail

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{name: "dollar amount", text: "I sent you $130.00 for March", want: "130.00"},
		{name: "dollar with comma", text: "Total: $1,245.50", want: "1245.50"},
		{name: "dollar without cents", text: "sent $95 via zelle", want: "95"},
		{name: "dollar with space", text: "paid $ 42.10 today", want: "42.10"},
		{name: "bare amount fallback", text: "transferred 130.00 to your account", want: "130.00"},
		{name: "prefers dollar over bare", text: "ref 201.00 - paid $130.00", want: "130.00"},
		{name: "no amount", text: "hi, rent question", wantErr: true},
		{name: "bare integer is not an amount", text: "apartment 12 checking in", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !got.Equal(dec(t, tt.want)) {
				t.Errorf("ParseAmount() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParsePayment(t *testing.T) {
	received := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

	t.Run("amount, sender and body date", func(t *testing.T) {
		msg := &Message{
			ID:         "msg-1",
			From:       "Jordan Lee <jordan@example.com>",
			Body:       "Hi, I sent $130.00 on 4/1/2026 for the March utilities.",
			ReceivedAt: received,
		}

		p, err := ParsePayment(msg)
		if err != nil {
			t.Fatalf("ParsePayment() error = %v", err)
		}
		if !p.Amount.Equal(dec(t, "130.00")) {
			t.Errorf("amount = %s, want 130.00", p.Amount)
		}
		if p.Sender != "Jordan Lee <jordan@example.com>" {
			t.Errorf("sender = %q", p.Sender)
		}
		if want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC); !p.Date.Equal(want) {
			t.Errorf("date = %v, want %v", p.Date, want)
		}
		if p.MessageID != "msg-1" {
			t.Errorf("message id = %q, want msg-1", p.MessageID)
		}
	})

	t.Run("falls back to receive time", func(t *testing.T) {
		msg := &Message{
			ID:         "msg-2",
			From:       "jordan@example.com",
			Body:       "sent $95 just now",
			ReceivedAt: received,
		}

		p, err := ParsePayment(msg)
		if err != nil {
			t.Fatalf("ParsePayment() error = %v", err)
		}
		if !p.Date.Equal(received) {
			t.Errorf("date = %v, want receive time %v", p.Date, received)
		}
	})

	t.Run("snippet used when body empty", func(t *testing.T) {
		msg := &Message{
			ID:      "msg-3",
			From:    "jordan@example.com",
			Snippet: "payment of $42.10 sent",
		}

		p, err := ParsePayment(msg)
		if err != nil {
			t.Fatalf("ParsePayment() error = %v", err)
		}
		if !p.Amount.Equal(dec(t, "42.10")) {
			t.Errorf("amount = %s, want 42.10", p.Amount)
		}
	})

	t.Run("no amount is an error", func(t *testing.T) {
		msg := &Message{ID: "msg-4", From: "jordan@example.com", Body: "question about the lease"}
		if _, err := ParsePayment(msg); err == nil {
			t.Error("expected error for message without amount")
		}
	})
}

func TestParseProviderAmount(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "amount due line",
			body: "Your statement is ready.\nPrevious balance: $91.20\nAmount due: $48.60\nDue date: 4/15/2026",
			want: "48.60",
		},
		{
			name: "total due line",
			body: "Metro Gas - Total Due $112.45 by May 1",
			want: "112.45",
		},
		{
			name: "balance due without symbol",
			body: "balance due: 79.99",
			want: "79.99",
		},
		{
			name: "fallback to first amount",
			body: "Thanks for your business. $35.00 was billed this cycle.",
			want: "35.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProviderAmount(&Message{Body: tt.body})
			if err != nil {
				t.Fatalf("ParseProviderAmount() error = %v", err)
			}
			if !got.Equal(dec(t, tt.want)) {
				t.Errorf("ParseProviderAmount() = %s, want %s", got, tt.want)
			}
		})
	}
}
