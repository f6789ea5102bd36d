package billing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/splitbill/splitbill-server/internal/models"
)

// Charge is one provider's amount for the billing period
type Charge struct {
	ProviderID uuid.UUID       `json:"providerId"`
	Amount     decimal.Decimal `json:"amount"`
}

// Consolidate builds a single monthly bill out of per-provider charges.
// Every charge must reference a registered provider; charges for unknown
// providers are rejected rather than silently dropped.
func Consolidate(userID uuid.UUID, year, month int, tenantID *uuid.UUID, providers []*models.UtilityProvider, charges []Charge) (*models.ConsolidatedBill, error) {
	if year < 2000 || year > 2200 {
		return nil, fmt.Errorf("invalid year %d", year)
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	if len(charges) == 0 {
		return nil, fmt.Errorf("no charges for period %04d-%02d", year, month)
	}

	byID := make(map[uuid.UUID]*models.UtilityProvider, len(providers))
	for _, p := range providers {
		byID[p.ID] = p
	}

	lines := make(models.BillLines, 0, len(charges))
	for _, c := range charges {
		p, ok := byID[c.ProviderID]
		if !ok {
			return nil, fmt.Errorf("unknown provider %s", c.ProviderID)
		}
		if c.Amount.IsNegative() {
			return nil, fmt.Errorf("negative amount for provider %s", p.Name)
		}
		lines = append(lines, models.BillLine{
			Category:     p.Category,
			ProviderID:   p.ID,
			ProviderName: p.Name,
			Amount:       c.Amount.Round(2),
		})
	}

	bill := &models.ConsolidatedBill{
		OwnedModel: models.OwnedModel{
			UserID: userID,
		},
		Year:        year,
		Month:       month,
		TenantID:    tenantID,
		Lines:       lines,
		TotalAmount: lines.Total(),
	}

	return bill, nil
}
