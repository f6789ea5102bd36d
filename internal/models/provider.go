package models

// ProviderCategory represents a utility category
type ProviderCategory string

const (
	CategoryWater       ProviderCategory = "water"
	CategoryGas         ProviderCategory = "gas"
	CategoryElectricity ProviderCategory = "electricity"
	CategoryInternet    ProviderCategory = "internet"
	CategoryOther       ProviderCategory = "other"
)

// AllCategories lists every known utility category
var AllCategories = []ProviderCategory{
	CategoryWater,
	CategoryGas,
	CategoryElectricity,
	CategoryInternet,
	CategoryOther,
}

// Valid reports whether the category is a known value
func (c ProviderCategory) Valid() bool {
	switch c {
	case CategoryWater, CategoryGas, CategoryElectricity, CategoryInternet, CategoryOther:
		return true
	}
	return false
}

// UtilityProvider represents a utility company registered by a landlord
type UtilityProvider struct {
	OwnedModel

	Name     string           `json:"name" db:"name"`
	Category ProviderCategory `json:"category" db:"category"`

	ContactEmail  string `json:"contactEmail,omitempty" db:"contact_email"`
	ContactPhone  string `json:"contactPhone,omitempty" db:"contact_phone"`
	AccountNumber string `json:"accountNumber,omitempty" db:"account_number"`
	Website       string `json:"website,omitempty" db:"website"`

	IsActive bool `json:"isActive" db:"is_active"`
}
