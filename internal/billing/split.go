package billing

import (
	"github.com/shopspring/decimal"

	"github.com/splitbill/splitbill-server/internal/models"
)

var oneHundred = decimal.NewFromInt(100)

// ShareLine is one line of a tenant's split bill
type ShareLine struct {
	Category     models.ProviderCategory `json:"category"`
	ProviderName string                  `json:"providerName"`
	Amount       decimal.Decimal         `json:"amount"`
	SharePercent decimal.Decimal         `json:"sharePercent"`
	Owed         decimal.Decimal         `json:"owed"`
}

// TenantShare computes the tenant's portion of a bill: for each line the
// charge is scaled by the tenant's percentage for that category, rounded to
// cents.
func TenantShare(lines models.BillLines, shares models.ShareMap) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		pct := shares.Share(line.Category)
		if pct.IsZero() {
			continue
		}
		total = total.Add(line.Amount.Mul(pct).Div(oneHundred))
	}
	return total.Round(2)
}

// SplitBill expands a bill into per-line tenant shares
func SplitBill(bill *models.ConsolidatedBill, tenant *models.Tenant) []ShareLine {
	split := make([]ShareLine, 0, len(bill.Lines))
	for _, line := range bill.Lines {
		pct := tenant.Shares.Share(line.Category)
		split = append(split, ShareLine{
			Category:     line.Category,
			ProviderName: line.ProviderName,
			Amount:       line.Amount,
			SharePercent: pct,
			Owed:         line.Amount.Mul(pct).Div(oneHundred).Round(2),
		})
	}
	return split
}

// AmountDue is the tenant's share of a bill plus the carried-forward
// outstanding balance
func AmountDue(bill *models.ConsolidatedBill, tenant *models.Tenant) decimal.Decimal {
	return TenantShare(bill.Lines, tenant.Shares).Add(tenant.OutstandingBalance).Round(2)
}
