package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a landlord account
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Email     string `json:"email" db:"email"`
	Username  string `json:"username" db:"username"`
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`

	PasswordHash string `json:"-" db:"password_hash"`

	IsAdmin  bool `json:"isAdmin" db:"is_admin"`
	IsActive bool `json:"isActive" db:"is_active"`

	EmailVerified   bool       `json:"emailVerified" db:"email_verified"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty" db:"email_verified_at"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`

	// MailAddress is the inbox watched for provider bills and tenant payments
	MailAddress string `json:"mailAddress,omitempty" db:"mail_address"`

	// MailToken is the sealed OAuth access token for the mail API
	MailToken string `json:"-" db:"mail_token"`

	Settings Variables `json:"settings" db:"settings"`
}
