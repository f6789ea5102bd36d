package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/splitbill/splitbill-server/internal/mail"
	"github.com/splitbill/splitbill-server/internal/models"
)

func inboundNotification(t *testing.T, messageID, from, subject, snippet string) []byte {
	t.Helper()

	data, err := json.Marshal(map[string]interface{}{
		"messageId":  messageID,
		"from":       from,
		"subject":    subject,
		"snippet":    snippet,
		"receivedAt": time.Now(),
	})
	if err != nil {
		t.Fatalf("marshal notification: %v", err)
	}
	return data
}

func TestHandleInboundMailSettlesFromSnippet(t *testing.T) {
	r, store, mailClient, user, tenant := newTestReconciler(t)
	bill := seedUnpaidBill(t, store, user, tenant, 2026, 7, "100.00")

	sub := NewMailSubscriber(nil, store, r)

	data := inboundNotification(t, "msg-30",
		"Alice Example <alice@example.com>", "Money sent",
		"Alice sent you $50.00 on 7/28/2026")
	sub.handleInboundMail(&nats.Msg{
		Subject: "mail.inbound." + user.ID.String(),
		Data:    data,
	})

	if !store.bills[bill.ID].Paid {
		t.Error("expected bill settled from the snippet")
	}
	if mailClient.fetches != 0 {
		t.Errorf("full message fetches = %d, want 0", mailClient.fetches)
	}
	if store.eventCount(models.EventTypeMailReceived) != 1 {
		t.Error("expected one mail received event")
	}
}

func TestHandleInboundMailFetchesFullBody(t *testing.T) {
	r, store, mailClient, user, tenant := newTestReconciler(t)
	bill := seedUnpaidBill(t, store, user, tenant, 2026, 7, "100.00")

	// The snippet carries no amount, so the full body must be fetched
	mailClient.messages = []mail.Message{
		{
			ID:         "msg-31",
			From:       "Alice Example <alice@example.com>",
			Subject:    "Money sent",
			Body:       "Alice sent you $50.00 on 7/28/2026",
			ReceivedAt: time.Now(),
		},
	}

	sub := NewMailSubscriber(nil, store, r)

	data := inboundNotification(t, "msg-31",
		"Alice Example <alice@example.com>", "Money sent",
		"You received a payment")
	sub.handleInboundMail(&nats.Msg{
		Subject: "mail.inbound." + user.ID.String(),
		Data:    data,
	})

	if mailClient.fetches != 1 {
		t.Errorf("full message fetches = %d, want 1", mailClient.fetches)
	}
	if !store.bills[bill.ID].Paid {
		t.Error("expected bill settled from the fetched body")
	}
	if store.bills[bill.ID].PaymentMessageID != "msg-31" {
		t.Errorf("payment message id = %q, want msg-31", store.bills[bill.ID].PaymentMessageID)
	}
}

func TestHandleInboundMailIgnoresBadSubject(t *testing.T) {
	r, store, _, user, tenant := newTestReconciler(t)
	bill := seedUnpaidBill(t, store, user, tenant, 2026, 7, "100.00")

	sub := NewMailSubscriber(nil, store, r)

	data := inboundNotification(t, "msg-32",
		"Alice Example <alice@example.com>", "Money sent",
		"Alice sent you $50.00")
	sub.handleInboundMail(&nats.Msg{Subject: "mail.inbound", Data: data})
	sub.handleInboundMail(&nats.Msg{Subject: "mail.inbound.not-a-uuid", Data: data})

	if store.bills[bill.ID].Paid {
		t.Error("malformed subjects must not settle bills")
	}
	if len(store.events) != 0 {
		t.Errorf("events = %d, want 0", len(store.events))
	}
}
