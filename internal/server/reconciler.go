package server

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/splitbill/splitbill-server/internal/billing"
	"github.com/splitbill/splitbill-server/internal/config"
	"github.com/splitbill/splitbill-server/internal/mail"
	"github.com/splitbill/splitbill-server/internal/models"
	"github.com/splitbill/splitbill-server/internal/storage"
	"github.com/splitbill/splitbill-server/pkg/crypto"
)

// Reconciler matches inbound payment mail against unpaid bills
type Reconciler struct {
	store      storage.Store
	mail       mail.Client
	publisher  *EventPublisher
	tokenKey   []byte
	tolerance  decimal.Decimal
	windowDays int
}

// NewReconciler creates a reconciler
func NewReconciler(cfg *config.Config, store storage.Store, mailClient mail.Client, publisher *EventPublisher, tokenKey []byte) *Reconciler {
	return &Reconciler{
		store:      store,
		mail:       mailClient,
		publisher:  publisher,
		tokenKey:   tokenKey,
		tolerance:  cfg.Billing.Tolerance(),
		windowDays: cfg.Mail.SearchWindowDays,
	}
}

// ReconcileTenant scans the landlord's recent inbox for payment mail from the
// tenant and settles any unpaid bill the parsed amount matches. Returns the
// bills settled by this pass.
func (r *Reconciler) ReconcileTenant(ctx context.Context, user *models.User, tenant *models.Tenant) ([]*models.ConsolidatedBill, error) {
	token, err := r.MailToken(user)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("in:inbox newer_than:%dd", r.windowDays)
	messages, err := r.mail.ListMessages(ctx, token, query, 50)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}

	var settled []*models.ConsolidatedBill

	for i := range messages {
		msg := &messages[i]
		if !tenant.MatchesSender(msg.From) {
			continue
		}

		if msg.Body == "" && msg.Snippet == "" {
			full, err := r.mail.GetMessage(ctx, token, msg.ID)
			if err != nil {
				log.Warn().Err(err).Str("messageId", msg.ID).Msg("Failed to fetch message body")
				continue
			}
			msg = full
		}

		payment, err := mail.ParsePayment(msg)
		if err != nil {
			// Not payment mail, skip
			continue
		}

		if r.paymentConsumed(ctx, user.ID, payment.MessageID) {
			continue
		}

		bill, matched := r.matchAndApply(ctx, user, tenant, payment)
		if matched {
			settled = append(settled, bill)
		}
	}

	return settled, nil
}

// ProcessMessage attempts to match one inbound message against the owner's
// tenants. Used by the NATS mail subscriber.
func (r *Reconciler) ProcessMessage(ctx context.Context, user *models.User, msg *mail.Message) (*models.ConsolidatedBill, error) {
	payment, err := mail.ParsePayment(msg)
	if err != nil {
		return nil, nil // not payment mail
	}

	if r.paymentConsumed(ctx, user.ID, payment.MessageID) {
		return nil, nil
	}

	tenants, _, err := r.store.ListTenants(ctx, user.ID, 200, 0)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	for _, tenant := range tenants {
		if !tenant.MatchesSender(msg.From) {
			continue
		}
		if bill, matched := r.matchAndApply(ctx, user, tenant, payment); matched {
			return bill, nil
		}
	}

	log.Info().
		Str("messageId", msg.ID).
		Str("from", msg.From).
		Str("amount", payment.Amount.String()).
		Msg("Payment did not match any unpaid bill")

	return nil, nil
}

// paymentConsumed reports whether the message already settled a bill. A mail
// message settles at most one bill across reconcile passes and redeliveries.
// On a lookup error the message is skipped; the next pass retries it.
func (r *Reconciler) paymentConsumed(ctx context.Context, userID uuid.UUID, messageID string) bool {
	consumed, err := r.store.HasPaymentMessage(ctx, userID, messageID)
	if err != nil {
		log.Error().Err(err).Str("messageId", messageID).Msg("Failed to check payment message")
		return true
	}
	return consumed
}

// matchAndApply runs the matcher for one tenant and persists the result.
// Bill and balance are two independent writes; a failed balance write leaves
// the bill paid and is only logged.
func (r *Reconciler) matchAndApply(ctx context.Context, user *models.User, tenant *models.Tenant, payment models.Payment) (*models.ConsolidatedBill, bool) {
	unpaid, err := r.store.ListUnpaidBillsForTenant(ctx, user.ID, tenant.ID)
	if err != nil {
		log.Error().Err(err).Str("tenant", tenant.Name).Msg("Failed to list unpaid bills")
		return nil, false
	}

	m, ok := billing.MatchPayment(tenant, unpaid, payment, r.tolerance)
	if !ok {
		r.logEvent(ctx, &models.EventLog{
			UserID:      &user.ID,
			TenantID:    &tenant.ID,
			Type:        models.EventTypePaymentUnmatched,
			Level:       models.EventLevelWarning,
			Description: fmt.Sprintf("Payment of %s from %s matched no unpaid bill", payment.Amount, payment.Sender),
			Details: models.Variables{
				"messageId": payment.MessageID,
				"amount":    payment.Amount.String(),
			},
		})
		return nil, false
	}

	billing.ApplyPayment(m, tenant, payment)

	if err := r.store.UpdateBill(ctx, m.Bill); err != nil {
		log.Error().Err(err).Str("billId", m.Bill.ID.String()).Msg("Failed to mark bill paid")
		return nil, false
	}

	if err := r.store.UpdateTenant(ctx, tenant); err != nil {
		log.Error().Err(err).Str("tenantId", tenant.ID.String()).Msg("Failed to update tenant balance")
	}

	r.logEvent(ctx, &models.EventLog{
		UserID:      &user.ID,
		TenantID:    &tenant.ID,
		BillID:      &m.Bill.ID,
		Type:        models.EventTypePaymentMatched,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("Payment of %s settled bill %s", payment.Amount, m.Bill.Period()),
		Details: models.Variables{
			"messageId": payment.MessageID,
			"amount":    payment.Amount.String(),
			"expected":  m.Expected.String(),
		},
	})

	r.publisher.Publish(BillingEvent{
		Type:     models.EventTypePaymentMatched,
		UserID:   user.ID,
		TenantID: &tenant.ID,
		BillID:   &m.Bill.ID,
		Period:   m.Bill.Period(),
		Amount:   payment.Amount.String(),
	})

	log.Info().
		Str("tenant", tenant.Name).
		Str("period", m.Bill.Period()).
		Str("amount", payment.Amount.String()).
		Msg("Payment matched")

	return m.Bill, true
}

// TokenKey returns the key used to seal stored mail tokens
func (r *Reconciler) TokenKey() []byte {
	return r.tokenKey
}

// MailToken opens the user's sealed mail OAuth token
func (r *Reconciler) MailToken(user *models.User) (string, error) {
	if user.MailToken == "" {
		return "", fmt.Errorf("mail account not connected")
	}
	token, err := crypto.OpenToken(r.tokenKey, user.MailToken)
	if err != nil {
		return "", fmt.Errorf("open mail token: %w", err)
	}
	return token, nil
}

func (r *Reconciler) logEvent(ctx context.Context, event *models.EventLog) {
	if err := r.store.CreateEventLog(ctx, event); err != nil {
		log.Error().Err(err).Msg("Failed to create event log")
	}
}
