package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillLine is one provider charge inside a consolidated bill
type BillLine struct {
	Category     ProviderCategory `json:"category"`
	ProviderID   uuid.UUID        `json:"providerId"`
	ProviderName string           `json:"providerName"`
	Amount       decimal.Decimal  `json:"amount"`
}

// BillLines is the per-category breakdown stored as JSONB
type BillLines []BillLine

// Value implements driver.Valuer interface
func (l BillLines) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner interface
func (l *BillLines) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, l)
	case string:
		return json.Unmarshal([]byte(data), l)
	default:
		return json.Unmarshal([]byte(data.(string)), l)
	}
}

// Total sums all line amounts
func (l BillLines) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range l {
		total = total.Add(line.Amount)
	}
	return total
}

// ConsolidatedBill is a single monthly aggregate of all utility provider
// charges, billed to one tenant
type ConsolidatedBill struct {
	OwnedModel

	Year  int `json:"year" db:"year"`
	Month int `json:"month" db:"month"`

	TenantID *uuid.UUID `json:"tenantId,omitempty" db:"tenant_id"`

	Lines       BillLines       `json:"lines" db:"lines"`
	TotalAmount decimal.Decimal `json:"totalAmount" db:"total_amount"`

	Paid   bool       `json:"paid" db:"paid"`
	SentAt *time.Time `json:"sentAt,omitempty" db:"sent_at"`
	PaidAt *time.Time `json:"paidAt,omitempty" db:"paid_at"`

	// PaymentMessageID is the mail message that settled this bill
	PaymentMessageID string `json:"paymentMessageId,omitempty" db:"payment_message_id"`
}

// Period formats the billing period as YYYY-MM
func (b *ConsolidatedBill) Period() string {
	return fmt.Sprintf("%04d-%02d", b.Year, b.Month)
}

// Before reports whether the bill's period precedes the other's
func (b *ConsolidatedBill) Before(other *ConsolidatedBill) bool {
	if b.Year != other.Year {
		return b.Year < other.Year
	}
	return b.Month < other.Month
}

// Payment is a parsed payment signal extracted from a mail message.
// It is ephemeral: never persisted, only applied to a bill and tenant balance.
type Payment struct {
	MessageID string          `json:"messageId"`
	Sender    string          `json:"sender"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
}
