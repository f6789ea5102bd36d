package models

import (
	"time"

	"github.com/google/uuid"
)

// EventLog represents an event log entry
type EventLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	UserID   *uuid.UUID `json:"userId,omitempty" db:"user_id"`
	TenantID *uuid.UUID `json:"tenantId,omitempty" db:"tenant_id"`
	BillID   *uuid.UUID `json:"billId,omitempty" db:"bill_id"`

	Type        EventType  `json:"type" db:"type"`
	Level       EventLevel `json:"level" db:"level"`
	Code        string     `json:"code" db:"code"`
	Description string     `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// EventType represents event types
type EventType string

const (
	// Billing events
	EventTypeBillCreated EventType = "BILL_CREATED"
	EventTypeBillSent    EventType = "BILL_SENT"
	EventTypeBillPaid    EventType = "BILL_PAID"

	// Payment events
	EventTypePaymentMatched   EventType = "PAYMENT_MATCHED"
	EventTypePaymentUnmatched EventType = "PAYMENT_UNMATCHED"

	// Mail events
	EventTypeMailReceived EventType = "MAIL_RECEIVED"
	EventTypeMailSent     EventType = "MAIL_SENT"

	// System events
	EventTypeAPICall     EventType = "API_CALL"
	EventTypeIntegration EventType = "INTEGRATION"
	EventTypeError       EventType = "ERROR"
)

// EventLevel represents event severity levels
type EventLevel string

const (
	EventLevelDebug   EventLevel = "DEBUG"
	EventLevelInfo    EventLevel = "INFO"
	EventLevelWarning EventLevel = "WARNING"
	EventLevelError   EventLevel = "ERROR"
)
