package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/splitbill/splitbill-server/internal/models"
)

// BillingEvent is published on NATS for downstream integrations
type BillingEvent struct {
	Type      models.EventType `json:"type"`
	UserID    uuid.UUID        `json:"userId"`
	TenantID  *uuid.UUID       `json:"tenantId,omitempty"`
	BillID    *uuid.UUID       `json:"billId,omitempty"`
	Period    string           `json:"period,omitempty"`
	Amount    string           `json:"amount,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// EventPublisher publishes billing events to NATS.
// A nil connection makes publishing a no-op (standalone mode).
type EventPublisher struct {
	nc *nats.Conn
}

// NewEventPublisher creates an event publisher
func NewEventPublisher(nc *nats.Conn) *EventPublisher {
	return &EventPublisher{nc: nc}
}

// Publish publishes a billing event on billing.event.<user_id>
func (p *EventPublisher) Publish(event BillingEvent) {
	if p == nil || p.nc == nil {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal billing event")
		return
	}

	subject := fmt.Sprintf("billing.event.%s", event.UserID)
	if err := p.nc.Publish(subject, data); err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Msg("Failed to publish billing event")
	}
}
