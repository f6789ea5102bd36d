package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splitbill/splitbill-server/internal/models"
	"github.com/splitbill/splitbill-server/pkg/crypto"
)

// ========== User Methods ==========

// CreateUser creates a new user
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	// Hash password if provided in settings
	if pwd, ok := user.Settings["password"].(string); ok && pwd != "" {
		hash, err := crypto.HashPassword(pwd)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
		delete(user.Settings, "password")
	}

	query := `
        INSERT INTO users (
            id, created_at, updated_at, email, username, first_name, last_name,
            password_hash, is_admin, is_active, email_verified, mail_address,
            mail_token, settings
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.CreatedAt, user.UpdatedAt, user.Email, user.Username,
		user.FirstName, user.LastName, user.PasswordHash, user.IsAdmin,
		user.IsActive, user.EmailVerified, user.MailAddress, user.MailToken,
		user.Settings,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetUser gets a user by ID
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
        SELECT id, created_at, updated_at, email, username, first_name, last_name,
               password_hash, is_admin, is_active, email_verified, email_verified_at,
               last_login_at, mail_address, mail_token, settings
        FROM users
        WHERE id = $1`

	user := &models.User{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email, &user.Username,
		&user.FirstName, &user.LastName, &user.PasswordHash, &user.IsAdmin,
		&user.IsActive, &user.EmailVerified, &user.EmailVerifiedAt,
		&user.LastLoginAt, &user.MailAddress, &user.MailToken, &user.Settings,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return user, err
}

// GetUserByEmail gets a user by email
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
        SELECT id, created_at, updated_at, email, username, first_name, last_name,
               password_hash, is_admin, is_active, email_verified, email_verified_at,
               last_login_at, mail_address, mail_token, settings
        FROM users
        WHERE email = $1`

	user := &models.User{}
	err := s.getDB().QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email, &user.Username,
		&user.FirstName, &user.LastName, &user.PasswordHash, &user.IsAdmin,
		&user.IsActive, &user.EmailVerified, &user.EmailVerifiedAt,
		&user.LastLoginAt, &user.MailAddress, &user.MailToken, &user.Settings,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return user, err
}

// UpdateUser updates a user
func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `
        UPDATE users SET
            updated_at = $2, email = $3, username = $4, first_name = $5,
            last_name = $6, is_admin = $7, is_active = $8, email_verified = $9,
            email_verified_at = $10, last_login_at = $11, mail_address = $12,
            mail_token = $13, settings = $14
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.UpdatedAt, user.Email, user.Username, user.FirstName,
		user.LastName, user.IsAdmin, user.IsActive, user.EmailVerified,
		user.EmailVerifiedAt, user.LastLoginAt, user.MailAddress,
		user.MailToken, user.Settings,
	)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteUser deletes a user
func (s *PostgresStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListUsers lists users
func (s *PostgresStore) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
        SELECT id, created_at, updated_at, email, username, first_name, last_name,
               is_admin, is_active, email_verified, last_login_at, mail_address
        FROM users
        ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.Email, &user.Username,
			&user.FirstName, &user.LastName, &user.IsAdmin, &user.IsActive,
			&user.EmailVerified, &user.LastLoginAt, &user.MailAddress,
		)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}

	return users, count, rows.Err()
}

// ========== Provider Methods ==========

// CreateProvider creates a utility provider
func (s *PostgresStore) CreateProvider(ctx context.Context, provider *models.UtilityProvider) error {
	if provider.ID == uuid.Nil {
		provider.ID = uuid.New()
	}

	now := time.Now()
	provider.CreatedAt = now
	provider.UpdatedAt = now

	query := `
        INSERT INTO providers (
            id, created_at, updated_at, user_id, name, category,
            contact_email, contact_phone, account_number, website, is_active
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.getDB().ExecContext(ctx, query,
		provider.ID, provider.CreatedAt, provider.UpdatedAt, provider.UserID,
		provider.Name, provider.Category, provider.ContactEmail,
		provider.ContactPhone, provider.AccountNumber, provider.Website,
		provider.IsActive,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetProvider gets a provider owned by the user
func (s *PostgresStore) GetProvider(ctx context.Context, userID, id uuid.UUID) (*models.UtilityProvider, error) {
	query := `
        SELECT id, created_at, updated_at, user_id, name, category,
               contact_email, contact_phone, account_number, website, is_active
        FROM providers
        WHERE id = $1 AND user_id = $2`

	provider := &models.UtilityProvider{}
	err := s.getDB().QueryRowContext(ctx, query, id, userID).Scan(
		&provider.ID, &provider.CreatedAt, &provider.UpdatedAt, &provider.UserID,
		&provider.Name, &provider.Category, &provider.ContactEmail,
		&provider.ContactPhone, &provider.AccountNumber, &provider.Website,
		&provider.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return provider, err
}

// UpdateProvider updates a provider
func (s *PostgresStore) UpdateProvider(ctx context.Context, provider *models.UtilityProvider) error {
	provider.UpdatedAt = time.Now()

	query := `
        UPDATE providers SET
            updated_at = $3, name = $4, category = $5, contact_email = $6,
            contact_phone = $7, account_number = $8, website = $9, is_active = $10
        WHERE id = $1 AND user_id = $2`

	result, err := s.getDB().ExecContext(ctx, query,
		provider.ID, provider.UserID, provider.UpdatedAt, provider.Name,
		provider.Category, provider.ContactEmail, provider.ContactPhone,
		provider.AccountNumber, provider.Website, provider.IsActive,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteProvider deletes a provider owned by the user
func (s *PostgresStore) DeleteProvider(ctx context.Context, userID, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx,
		"DELETE FROM providers WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListProviders lists providers owned by the user
func (s *PostgresStore) ListProviders(ctx context.Context, userID uuid.UUID, category *models.ProviderCategory, limit, offset int) ([]*models.UtilityProvider, int64, error) {
	args := []interface{}{userID}
	where := ` WHERE user_id = $1`

	if category != nil {
		where += ` AND category = $2`
		args = append(args, *category)
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx, `SELECT COUNT(*) FROM providers`+where, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, updated_at, user_id, name, category,
               contact_email, contact_phone, account_number, website, is_active
        FROM providers` + where +
		fmt.Sprintf(` ORDER BY name LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var providers []*models.UtilityProvider
	for rows.Next() {
		provider := &models.UtilityProvider{}
		err := rows.Scan(
			&provider.ID, &provider.CreatedAt, &provider.UpdatedAt, &provider.UserID,
			&provider.Name, &provider.Category, &provider.ContactEmail,
			&provider.ContactPhone, &provider.AccountNumber, &provider.Website,
			&provider.IsActive,
		)
		if err != nil {
			return nil, 0, err
		}
		providers = append(providers, provider)
	}

	return providers, count, rows.Err()
}

// ========== Tenant Methods ==========

// CreateTenant creates a tenant
func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}

	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	query := `
        INSERT INTO tenants (
            id, created_at, updated_at, user_id, name, email, secondary_name,
            shares, outstanding_balance, is_active
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.getDB().ExecContext(ctx, query,
		tenant.ID, tenant.CreatedAt, tenant.UpdatedAt, tenant.UserID,
		tenant.Name, tenant.Email, tenant.SecondaryName, tenant.Shares,
		tenant.OutstandingBalance, tenant.IsActive,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetTenant gets a tenant owned by the user
func (s *PostgresStore) GetTenant(ctx context.Context, userID, id uuid.UUID) (*models.Tenant, error) {
	query := `
        SELECT id, created_at, updated_at, user_id, name, email, secondary_name,
               shares, outstanding_balance, is_active
        FROM tenants
        WHERE id = $1 AND user_id = $2`

	tenant := &models.Tenant{}
	err := s.getDB().QueryRowContext(ctx, query, id, userID).Scan(
		&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt, &tenant.UserID,
		&tenant.Name, &tenant.Email, &tenant.SecondaryName, &tenant.Shares,
		&tenant.OutstandingBalance, &tenant.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return tenant, err
}

// UpdateTenant updates a tenant
func (s *PostgresStore) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	tenant.UpdatedAt = time.Now()

	query := `
        UPDATE tenants SET
            updated_at = $3, name = $4, email = $5, secondary_name = $6,
            shares = $7, outstanding_balance = $8, is_active = $9
        WHERE id = $1 AND user_id = $2`

	result, err := s.getDB().ExecContext(ctx, query,
		tenant.ID, tenant.UserID, tenant.UpdatedAt, tenant.Name, tenant.Email,
		tenant.SecondaryName, tenant.Shares, tenant.OutstandingBalance,
		tenant.IsActive,
	)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteTenant deletes a tenant owned by the user
func (s *PostgresStore) DeleteTenant(ctx context.Context, userID, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx,
		"DELETE FROM tenants WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListTenants lists tenants owned by the user
func (s *PostgresStore) ListTenants(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Tenant, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tenants WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
        SELECT id, created_at, updated_at, user_id, name, email, secondary_name,
               shares, outstanding_balance, is_active
        FROM tenants
        WHERE user_id = $1
        ORDER BY name LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant := &models.Tenant{}
		err := rows.Scan(
			&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt, &tenant.UserID,
			&tenant.Name, &tenant.Email, &tenant.SecondaryName, &tenant.Shares,
			&tenant.OutstandingBalance, &tenant.IsActive,
		)
		if err != nil {
			return nil, 0, err
		}
		tenants = append(tenants, tenant)
	}

	return tenants, count, rows.Err()
}
