package storage

import "context"

// Schema statements run at startup, idempotent. One-off data migrations are
// applied manually.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		email TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		email_verified_at TIMESTAMPTZ,
		last_login_at TIMESTAMPTZ,
		mail_address TEXT NOT NULL DEFAULT '',
		mail_token TEXT NOT NULL DEFAULT '',
		settings JSONB
	)`,

	`CREATE TABLE IF NOT EXISTS providers (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		contact_email TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT '',
		account_number TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (user_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS tenants (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		secondary_name TEXT NOT NULL DEFAULT '',
		shares JSONB,
		outstanding_balance NUMERIC(12,2) NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE TABLE IF NOT EXISTS bills (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		tenant_id UUID REFERENCES tenants(id) ON DELETE SET NULL,
		lines JSONB,
		total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		sent_at TIMESTAMPTZ,
		paid_at TIMESTAMPTZ,
		payment_message_id TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_bills_user_period ON bills (user_id, year, month)`,
	`CREATE INDEX IF NOT EXISTS idx_bills_tenant_unpaid ON bills (tenant_id) WHERE NOT paid`,
	`CREATE INDEX IF NOT EXISTS idx_bills_payment_message ON bills (user_id, payment_message_id) WHERE payment_message_id <> ''`,

	`CREATE TABLE IF NOT EXISTS event_logs (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		user_id UUID,
		tenant_id UUID,
		bill_id UUID,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		code TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		details JSONB
	)`,

	`CREATE INDEX IF NOT EXISTS idx_event_logs_user_created ON event_logs (user_id, created_at DESC)`,
}

// migrate applies the schema statements in order
func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
