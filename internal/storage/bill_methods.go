package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/splitbill/splitbill-server/internal/models"
)

// CreateBill creates a consolidated bill
func (s *PostgresStore) CreateBill(ctx context.Context, bill *models.ConsolidatedBill) error {
	if bill.ID == uuid.Nil {
		bill.ID = uuid.New()
	}

	now := time.Now()
	bill.CreatedAt = now
	bill.UpdatedAt = now

	query := `
        INSERT INTO bills (
            id, created_at, updated_at, user_id, year, month, tenant_id,
            lines, total_amount, paid, sent_at, paid_at, payment_message_id
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.getDB().ExecContext(ctx, query,
		bill.ID, bill.CreatedAt, bill.UpdatedAt, bill.UserID, bill.Year,
		bill.Month, bill.TenantID, bill.Lines, bill.TotalAmount, bill.Paid,
		bill.SentAt, bill.PaidAt, bill.PaymentMessageID,
	)

	return err
}

// GetBill gets a bill owned by the user
func (s *PostgresStore) GetBill(ctx context.Context, userID, id uuid.UUID) (*models.ConsolidatedBill, error) {
	query := `
        SELECT id, created_at, updated_at, user_id, year, month, tenant_id,
               lines, total_amount, paid, sent_at, paid_at, payment_message_id
        FROM bills
        WHERE id = $1 AND user_id = $2`

	bill := &models.ConsolidatedBill{}
	err := s.getDB().QueryRowContext(ctx, query, id, userID).Scan(
		&bill.ID, &bill.CreatedAt, &bill.UpdatedAt, &bill.UserID, &bill.Year,
		&bill.Month, &bill.TenantID, &bill.Lines, &bill.TotalAmount, &bill.Paid,
		&bill.SentAt, &bill.PaidAt, &bill.PaymentMessageID,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return bill, err
}

// UpdateBill updates a bill
func (s *PostgresStore) UpdateBill(ctx context.Context, bill *models.ConsolidatedBill) error {
	bill.UpdatedAt = time.Now()

	query := `
        UPDATE bills SET
            updated_at = $3, year = $4, month = $5, tenant_id = $6, lines = $7,
            total_amount = $8, paid = $9, sent_at = $10, paid_at = $11,
            payment_message_id = $12
        WHERE id = $1 AND user_id = $2`

	result, err := s.getDB().ExecContext(ctx, query,
		bill.ID, bill.UserID, bill.UpdatedAt, bill.Year, bill.Month,
		bill.TenantID, bill.Lines, bill.TotalAmount, bill.Paid, bill.SentAt,
		bill.PaidAt, bill.PaymentMessageID,
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

// DeleteBill deletes a bill owned by the user
func (s *PostgresStore) DeleteBill(ctx context.Context, userID, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx,
		"DELETE FROM bills WHERE id = $1 AND user_id = $2", id, userID)
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

// ListBills lists bills owned by the user with optional filters
func (s *PostgresStore) ListBills(ctx context.Context, userID uuid.UUID, filters BillFilters, limit, offset int) ([]*models.ConsolidatedBill, int64, error) {
	where := " WHERE user_id = $1"
	args := []interface{}{userID}
	argCount := 1

	if filters.Year != nil {
		argCount++
		where += fmt.Sprintf(" AND year = $%d", argCount)
		args = append(args, *filters.Year)
	}
	if filters.Month != nil {
		argCount++
		where += fmt.Sprintf(" AND month = $%d", argCount)
		args = append(args, *filters.Month)
	}
	if filters.Paid != nil {
		argCount++
		where += fmt.Sprintf(" AND paid = $%d", argCount)
		args = append(args, *filters.Paid)
	}
	if filters.TenantID != nil {
		argCount++
		where += fmt.Sprintf(" AND tenant_id = $%d", argCount)
		args = append(args, *filters.TenantID)
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM bills"+where, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, updated_at, user_id, year, month, tenant_id,
               lines, total_amount, paid, sent_at, paid_at, payment_message_id
        FROM bills` + where +
		fmt.Sprintf(" ORDER BY year DESC, month DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	bills, err := scanBills(rows)
	if err != nil {
		return nil, 0, err
	}

	return bills, count, nil
}

// ListUnpaidBillsForTenant lists a tenant's unpaid bills, oldest first
func (s *PostgresStore) ListUnpaidBillsForTenant(ctx context.Context, userID, tenantID uuid.UUID) ([]*models.ConsolidatedBill, error) {
	query := `
        SELECT id, created_at, updated_at, user_id, year, month, tenant_id,
               lines, total_amount, paid, sent_at, paid_at, payment_message_id
        FROM bills
        WHERE user_id = $1 AND tenant_id = $2 AND NOT paid
        ORDER BY year, month`

	rows, err := s.getDB().QueryContext(ctx, query, userID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBills(rows)
}

// HasPaymentMessage reports whether a mail message already settled one of the
// user's bills
func (s *PostgresStore) HasPaymentMessage(ctx context.Context, userID uuid.UUID, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}

	query := `
        SELECT EXISTS (
            SELECT 1 FROM bills WHERE user_id = $1 AND payment_message_id = $2
        )`

	var exists bool
	err := s.getDB().QueryRowContext(ctx, query, userID, messageID).Scan(&exists)
	return exists, err
}

// scanBills scans bill rows
func scanBills(rows *sql.Rows) ([]*models.ConsolidatedBill, error) {
	var bills []*models.ConsolidatedBill
	for rows.Next() {
		bill := &models.ConsolidatedBill{}
		err := rows.Scan(
			&bill.ID, &bill.CreatedAt, &bill.UpdatedAt, &bill.UserID, &bill.Year,
			&bill.Month, &bill.TenantID, &bill.Lines, &bill.TotalAmount,
			&bill.Paid, &bill.SentAt, &bill.PaidAt, &bill.PaymentMessageID,
		)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	return bills, rows.Err()
}
