package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ShareMap maps a utility category to the percentage (0-100) a tenant pays
type ShareMap map[ProviderCategory]decimal.Decimal

// Value implements driver.Valuer interface
func (m ShareMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner interface
func (m *ShareMap) Scan(value interface{}) error {
	if value == nil {
		*m = make(ShareMap)
		return nil
	}

	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, m)
	case string:
		return json.Unmarshal([]byte(data), m)
	default:
		return json.Unmarshal([]byte(data.(string)), m)
	}
}

// Share returns the tenant's percentage for a category, zero when unset
func (m ShareMap) Share(c ProviderCategory) decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	return m[c]
}

// Tenant represents a renter billed by a landlord
type Tenant struct {
	OwnedModel

	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`

	// SecondaryName is an alternate sender name (partner, joint account)
	// recognized when scanning mail for payments
	SecondaryName string `json:"secondaryName,omitempty" db:"secondary_name"`

	Shares ShareMap `json:"shares" db:"shares"`

	// OutstandingBalance is the carried-forward unpaid amount added to the
	// next bill's due total; never negative
	OutstandingBalance decimal.Decimal `json:"outstandingBalance" db:"outstanding_balance"`

	IsActive bool `json:"isActive" db:"is_active"`
}

// MatchesSender reports whether a mail sender string contains one of the
// tenant's registered names
func (t *Tenant) MatchesSender(sender string) bool {
	s := strings.ToLower(sender)
	if t.Name != "" && strings.Contains(s, strings.ToLower(t.Name)) {
		return true
	}
	if t.SecondaryName != "" && strings.Contains(s, strings.ToLower(t.SecondaryName)) {
		return true
	}
	return false
}
