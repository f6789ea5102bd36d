package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/splitbill/splitbill-server/internal/mail"
	"github.com/splitbill/splitbill-server/internal/models"
	"github.com/splitbill/splitbill-server/internal/storage"
)

// MailSubscriber consumes inbound mail notifications from NATS
type MailSubscriber struct {
	nc         *nats.Conn
	store      storage.Store
	reconciler *Reconciler
	subs       []*nats.Subscription
}

// NewMailSubscriber creates a mail subscriber
func NewMailSubscriber(nc *nats.Conn, store storage.Store, reconciler *Reconciler) *MailSubscriber {
	return &MailSubscriber{
		nc:         nc,
		store:      store,
		reconciler: reconciler,
		subs:       make([]*nats.Subscription, 0),
	}
}

// Start starts subscriptions and blocks until the context is cancelled
func (s *MailSubscriber) Start(ctx context.Context) error {
	sub, err := s.nc.Subscribe("mail.inbound.*", s.handleInboundMail)
	if err != nil {
		return fmt.Errorf("subscribe inbound mail: %w", err)
	}
	s.subs = append(s.subs, sub)

	log.Info().
		Int("subscriptions", len(s.subs)).
		Msg("Mail subscriber started")

	<-ctx.Done()

	for _, sub := range s.subs {
		sub.Unsubscribe()
	}

	return ctx.Err()
}

// handleInboundMail handles one inbound mail notification
func (s *MailSubscriber) handleInboundMail(msg *nats.Msg) {
	log.Debug().
		Str("subject", msg.Subject).
		Int("size", len(msg.Data)).
		Msg("Received inbound mail notification")

	parts := strings.Split(msg.Subject, ".")
	if len(parts) != 3 {
		return
	}

	userID, err := uuid.Parse(parts[2])
	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("Invalid user ID in subject")
		return
	}

	var notification struct {
		MessageID  string    `json:"messageId"`
		From       string    `json:"from"`
		Subject    string    `json:"subject"`
		Snippet    string    `json:"snippet"`
		ReceivedAt time.Time `json:"receivedAt"`
	}

	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal mail notification")
		return
	}

	ctx := context.Background()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("userId", userID.String()).Msg("Failed to get user for inbound mail")
		return
	}

	s.logEvent(ctx, &models.EventLog{
		UserID:      &user.ID,
		Type:        models.EventTypeMailReceived,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("Inbound mail from %s", notification.From),
		Details: models.Variables{
			"messageId": notification.MessageID,
			"subject":   notification.Subject,
		},
	})

	message := &mail.Message{
		ID:         notification.MessageID,
		From:       notification.From,
		Subject:    notification.Subject,
		Snippet:    notification.Snippet,
		ReceivedAt: notification.ReceivedAt,
	}

	// The snippet usually carries the amount; fetch the full body only when
	// it does not parse
	if _, perr := mail.ParsePayment(message); perr != nil && user.MailToken != "" {
		token, terr := s.reconciler.MailToken(user)
		if terr != nil {
			log.Warn().Err(terr).Msg("Cannot open mail token for full message fetch")
			return
		}
		full, ferr := s.reconciler.mail.GetMessage(ctx, token, notification.MessageID)
		if ferr != nil {
			log.Warn().Err(ferr).Str("messageId", notification.MessageID).Msg("Failed to fetch full message")
			return
		}
		message = full
	}

	if _, err := s.reconciler.ProcessMessage(ctx, user, message); err != nil {
		log.Error().Err(err).Str("messageId", notification.MessageID).Msg("Failed to process inbound mail")
	}
}

func (s *MailSubscriber) logEvent(ctx context.Context, event *models.EventLog) {
	if err := s.store.CreateEventLog(ctx, event); err != nil {
		log.Error().Err(err).Msg("Failed to create event log")
	}
}
