package billing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/splitbill/splitbill-server/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestTenantShare(t *testing.T) {
	tests := []struct {
		name   string
		lines  models.BillLines
		shares models.ShareMap
		want   string
	}{
		{
			name: "full share across categories",
			lines: models.BillLines{
				{Category: models.CategoryWater, Amount: dec("40.00")},
				{Category: models.CategoryGas, Amount: dec("60.00")},
			},
			shares: models.ShareMap{
				models.CategoryWater: dec("100"),
				models.CategoryGas:   dec("100"),
			},
			want: "100",
		},
		{
			name: "half water only",
			lines: models.BillLines{
				{Category: models.CategoryWater, Amount: dec("40.00")},
				{Category: models.CategoryGas, Amount: dec("60.00")},
			},
			shares: models.ShareMap{
				models.CategoryWater: dec("50"),
			},
			want: "20",
		},
		{
			name: "uneven share rounds to cents",
			lines: models.BillLines{
				{Category: models.CategoryElectricity, Amount: dec("100.00")},
			},
			shares: models.ShareMap{
				models.CategoryElectricity: dec("33.333"),
			},
			want: "33.33",
		},
		{
			name: "no shares configured",
			lines: models.BillLines{
				{Category: models.CategoryInternet, Amount: dec("80.00")},
			},
			shares: models.ShareMap{},
			want:   "0",
		},
		{
			name:  "empty bill",
			lines: models.BillLines{},
			shares: models.ShareMap{
				models.CategoryWater: dec("50"),
			},
			want: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TenantShare(tt.lines, tt.shares)
			if !got.Equal(dec(tt.want)) {
				t.Errorf("TenantShare() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSplitBill(t *testing.T) {
	providerID := uuid.New()
	bill := &models.ConsolidatedBill{
		Lines: models.BillLines{
			{Category: models.CategoryWater, ProviderID: providerID, ProviderName: "City Water", Amount: dec("48.60")},
			{Category: models.CategoryInternet, ProviderID: uuid.New(), ProviderName: "FiberCo", Amount: dec("79.99")},
		},
	}
	tenant := &models.Tenant{
		Shares: models.ShareMap{
			models.CategoryWater:    dec("50"),
			models.CategoryInternet: dec("25"),
		},
	}

	split := SplitBill(bill, tenant)
	if len(split) != 2 {
		t.Fatalf("SplitBill() returned %d lines, want 2", len(split))
	}

	if !split[0].Owed.Equal(dec("24.30")) {
		t.Errorf("water owed = %s, want 24.30", split[0].Owed)
	}
	if !split[1].Owed.Equal(dec("20.00")) {
		t.Errorf("internet owed = %s, want 20.00", split[1].Owed)
	}
}

func TestAmountDue(t *testing.T) {
	bill := &models.ConsolidatedBill{
		Lines: models.BillLines{
			{Category: models.CategoryGas, Amount: dec("90.00")},
		},
	}
	tenant := &models.Tenant{
		Shares: models.ShareMap{
			models.CategoryGas: dec("50"),
		},
		OutstandingBalance: dec("12.50"),
	}

	due := AmountDue(bill, tenant)
	if !due.Equal(dec("57.50")) {
		t.Errorf("AmountDue() = %s, want 57.50", due)
	}
}

func TestConsolidate(t *testing.T) {
	userID := uuid.New()
	water := &models.UtilityProvider{
		OwnedModel: models.OwnedModel{BaseModel: models.BaseModel{ID: uuid.New()}, UserID: userID},
		Name:       "City Water",
		Category:   models.CategoryWater,
	}
	gas := &models.UtilityProvider{
		OwnedModel: models.OwnedModel{BaseModel: models.BaseModel{ID: uuid.New()}, UserID: userID},
		Name:       "Metro Gas",
		Category:   models.CategoryGas,
	}
	providers := []*models.UtilityProvider{water, gas}

	tests := []struct {
		name    string
		year    int
		month   int
		charges []Charge
		wantErr bool
		total   string
	}{
		{
			name:  "two providers",
			year:  2026,
			month: 3,
			charges: []Charge{
				{ProviderID: water.ID, Amount: dec("48.60")},
				{ProviderID: gas.ID, Amount: dec("91.40")},
			},
			total: "140",
		},
		{
			name:    "no charges",
			year:    2026,
			month:   3,
			wantErr: true,
		},
		{
			name:  "unknown provider",
			year:  2026,
			month: 3,
			charges: []Charge{
				{ProviderID: uuid.New(), Amount: dec("10.00")},
			},
			wantErr: true,
		},
		{
			name:  "negative amount",
			year:  2026,
			month: 3,
			charges: []Charge{
				{ProviderID: water.ID, Amount: dec("-5.00")},
			},
			wantErr: true,
		},
		{
			name:  "invalid month",
			year:  2026,
			month: 13,
			charges: []Charge{
				{ProviderID: water.ID, Amount: dec("10.00")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bill, err := Consolidate(userID, tt.year, tt.month, nil, providers, tt.charges)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Consolidate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !bill.TotalAmount.Equal(dec(tt.total)) {
				t.Errorf("total = %s, want %s", bill.TotalAmount, tt.total)
			}
			if len(bill.Lines) != len(tt.charges) {
				t.Errorf("lines = %d, want %d", len(bill.Lines), len(tt.charges))
			}
			if bill.Period() != "2026-03" {
				t.Errorf("period = %s, want 2026-03", bill.Period())
			}
		})
	}
}
