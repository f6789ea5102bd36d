package server

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitbill/splitbill-server/internal/config"
	"github.com/splitbill/splitbill-server/internal/mail"
	"github.com/splitbill/splitbill-server/internal/models"
	"github.com/splitbill/splitbill-server/pkg/crypto"
)

var testTokenKey = bytes.Repeat([]byte{0x24}, 32)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newTestReconciler wires a reconciler over in-memory fakes with one landlord
// and one half-share tenant seeded
func newTestReconciler(t *testing.T) (*Reconciler, *fakeStore, *fakeMailClient, *models.User, *models.Tenant) {
	t.Helper()

	store := newFakeStore()
	mailClient := &fakeMailClient{}

	sealed, err := crypto.SealToken(testTokenKey, "oauth-token")
	if err != nil {
		t.Fatalf("SealToken: %v", err)
	}

	user := &models.User{
		Email:       "landlord@example.com",
		IsActive:    true,
		MailAddress: "landlord@example.com",
		MailToken:   sealed,
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	tenant := &models.Tenant{
		Name:  "Alice",
		Email: "alice@example.com",
		Shares: models.ShareMap{
			models.CategoryElectricity: dec("50"),
		},
		OutstandingBalance: decimal.Zero,
	}
	tenant.UserID = user.ID
	if err := store.CreateTenant(context.Background(), tenant); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}

	cfg := &config.Config{
		Mail: config.MailConfig{SearchWindowDays: 14},
	}
	r := NewReconciler(cfg, store, mailClient, NewEventPublisher(nil), testTokenKey)

	return r, store, mailClient, user, tenant
}

func seedUnpaidBill(t *testing.T, store *fakeStore, user *models.User, tenant *models.Tenant, year, month int, amount string) *models.ConsolidatedBill {
	t.Helper()

	bill := &models.ConsolidatedBill{
		Year:     year,
		Month:    month,
		TenantID: &tenant.ID,
		Lines: models.BillLines{
			{Category: models.CategoryElectricity, Amount: dec(amount)},
		},
		TotalAmount: dec(amount),
	}
	bill.UserID = user.ID
	if err := store.CreateBill(context.Background(), bill); err != nil {
		t.Fatalf("seed bill: %v", err)
	}
	return bill
}

func TestProcessMessageSettlesBill(t *testing.T) {
	r, store, _, user, tenant := newTestReconciler(t)
	bill := seedUnpaidBill(t, store, user, tenant, 2026, 7, "100.00")

	msg := &mail.Message{
		ID:         "msg-10",
		From:       "Alice Example <alice@example.com>",
		Subject:    "Money sent",
		Snippet:    "Alice sent you $50.00 on 7/28/2026",
		ReceivedAt: time.Now(),
	}

	settled, err := r.ProcessMessage(context.Background(), user, msg)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if settled == nil || settled.ID != bill.ID {
		t.Fatal("expected the unpaid bill to be settled")
	}

	stored := store.bills[bill.ID]
	if !stored.Paid {
		t.Error("bill not marked paid")
	}
	if stored.PaymentMessageID != "msg-10" {
		t.Errorf("payment message id = %q, want msg-10", stored.PaymentMessageID)
	}
	if store.eventCount(models.EventTypePaymentMatched) != 1 {
		t.Error("expected one matched payment event")
	}
}

func TestProcessMessageNonPaymentMail(t *testing.T) {
	r, store, _, user, tenant := newTestReconciler(t)
	bill := seedUnpaidBill(t, store, user, tenant, 2026, 7, "100.00")

	msg := &mail.Message{
		ID:      "msg-11",
		From:    "Alice Example <alice@example.com>",
		Subject: "Dinner",
		Snippet: "Are we still on for Friday?",
	}

	settled, err := r.ProcessMessage(context.Background(), user, msg)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if settled != nil {
		t.Error("non-payment mail must not settle a bill")
	}
	if store.bills[bill.ID].Paid {
		t.Error("bill must stay unpaid")
	}
	if len(store.events) != 0 {
		t.Errorf("events = %d, want 0", len(store.events))
	}
}

func TestProcessMessageUnmatchedAmount(t *testing.T) {
	r, store, _, user, tenant := newTestReconciler(t)
	bill := seedUnpaidBill(t, store, user, tenant, 2026, 7, "100.00")

	msg := &mail.Message{
		ID:      "msg-12",
		From:    "Alice Example <alice@example.com>",
		Snippet: "Alice sent you $49.00",
	}

	settled, err := r.ProcessMessage(context.Background(), user, msg)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if settled != nil {
		t.Error("off-amount payment must not settle a bill")
	}
	if store.bills[bill.ID].Paid {
		t.Error("bill must stay unpaid")
	}
	if store.eventCount(models.EventTypePaymentUnmatched) != 1 {
		t.Error("expected one unmatched payment event")
	}
}

func TestProcessMessageIgnoresSettledMessage(t *testing.T) {
	r, store, _, user, tenant := newTestReconciler(t)
	march := seedUnpaidBill(t, store, user, tenant, 2026, 3, "100.00")
	april := seedUnpaidBill(t, store, user, tenant, 2026, 4, "100.00")

	msg := &mail.Message{
		ID:         "msg-13",
		From:       "Alice Example <alice@example.com>",
		Snippet:    "Alice sent you $50.00 on 3/28/2026",
		ReceivedAt: time.Now(),
	}

	settled, err := r.ProcessMessage(context.Background(), user, msg)
	if err != nil {
		t.Fatalf("first ProcessMessage: %v", err)
	}
	if settled == nil || settled.ID != march.ID {
		t.Fatal("expected the oldest bill settled first")
	}

	// A redelivered notification for the same mail message must not settle
	// the next bill
	settled, err = r.ProcessMessage(context.Background(), user, msg)
	if err != nil {
		t.Fatalf("second ProcessMessage: %v", err)
	}
	if settled != nil {
		t.Error("redelivered message must not settle another bill")
	}
	if store.bills[april.ID].Paid {
		t.Error("second bill must stay unpaid")
	}
}

func TestReconcileTenantSkipsSettledMessage(t *testing.T) {
	r, store, mailClient, user, tenant := newTestReconciler(t)
	seedUnpaidBill(t, store, user, tenant, 2026, 3, "100.00")
	seedUnpaidBill(t, store, user, tenant, 2026, 4, "100.00")

	mailClient.messages = []mail.Message{
		{
			ID:         "msg-14",
			From:       "Alice Example <alice@example.com>",
			Body:       "Alice sent you $50.00 on 3/28/2026",
			ReceivedAt: time.Now(),
		},
	}

	settled, err := r.ReconcileTenant(context.Background(), user, tenant)
	if err != nil {
		t.Fatalf("first ReconcileTenant: %v", err)
	}
	if len(settled) != 1 {
		t.Fatalf("first pass settled = %d, want 1", len(settled))
	}

	settled, err = r.ReconcileTenant(context.Background(), user, tenant)
	if err != nil {
		t.Fatalf("second ReconcileTenant: %v", err)
	}
	if len(settled) != 0 {
		t.Errorf("second pass settled = %d, want 0", len(settled))
	}

	paid := 0
	for _, b := range store.bills {
		if b.Paid {
			paid++
		}
	}
	if paid != 1 {
		t.Errorf("paid bills = %d, want 1", paid)
	}
}
