package billing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitbill/splitbill-server/internal/models"
)

// DefaultTolerance is the amount-match tolerance used when the caller passes
// a negative (unset) tolerance. Zero is honored as exact-match-only.
var DefaultTolerance = decimal.New(1, -2) // $0.01

// Match describes a payment matched to an unpaid bill
type Match struct {
	Bill     *models.ConsolidatedBill
	Expected decimal.Decimal
	// NewBalance is the tenant's outstanding balance after the payment,
	// floored at zero
	NewBalance decimal.Decimal
}

// MatchPayment matches a parsed payment against a tenant's unpaid bills.
//
// Bills are scanned oldest first. Each bill's expected amount is the tenant's
// share of the bill; the oldest unpaid bill additionally carries the tenant's
// outstanding balance. The first bill whose expected amount is within the
// tolerance of the payment wins. No match leaves everything untouched.
func MatchPayment(tenant *models.Tenant, bills []*models.ConsolidatedBill, payment models.Payment, tolerance decimal.Decimal) (*Match, bool) {
	if tolerance.IsNegative() {
		tolerance = DefaultTolerance
	}

	unpaid := make([]*models.ConsolidatedBill, 0, len(bills))
	for _, b := range bills {
		if !b.Paid {
			unpaid = append(unpaid, b)
		}
	}
	if len(unpaid) == 0 {
		return nil, false
	}

	sort.Slice(unpaid, func(i, j int) bool {
		return unpaid[i].Before(unpaid[j])
	})

	for i, bill := range unpaid {
		expected := TenantShare(bill.Lines, tenant.Shares)
		if i == 0 {
			expected = expected.Add(tenant.OutstandingBalance)
		}
		expected = expected.Round(2)

		if payment.Amount.Sub(expected).Abs().LessThanOrEqual(tolerance) {
			newBalance := tenant.OutstandingBalance.Sub(payment.Amount)
			if newBalance.IsNegative() {
				newBalance = decimal.Zero
			}
			return &Match{
				Bill:       bill,
				Expected:   expected,
				NewBalance: newBalance,
			}, true
		}
	}

	return nil, false
}

// ApplyPayment mutates the matched bill and the tenant's running balance.
// The two resulting writes are independent; callers persist both.
func ApplyPayment(m *Match, tenant *models.Tenant, payment models.Payment) {
	m.Bill.Paid = true
	m.Bill.PaymentMessageID = payment.MessageID

	paidAt := payment.Date
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	m.Bill.PaidAt = &paidAt

	tenant.OutstandingBalance = m.NewBalance
}
