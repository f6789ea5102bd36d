package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/splitbill/splitbill-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error)

	// Provider methods, scoped to the owning user
	CreateProvider(ctx context.Context, provider *models.UtilityProvider) error
	GetProvider(ctx context.Context, userID, id uuid.UUID) (*models.UtilityProvider, error)
	UpdateProvider(ctx context.Context, provider *models.UtilityProvider) error
	DeleteProvider(ctx context.Context, userID, id uuid.UUID) error
	ListProviders(ctx context.Context, userID uuid.UUID, category *models.ProviderCategory, limit, offset int) ([]*models.UtilityProvider, int64, error)

	// Tenant methods, scoped to the owning user
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, userID, id uuid.UUID) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, tenant *models.Tenant) error
	DeleteTenant(ctx context.Context, userID, id uuid.UUID) error
	ListTenants(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Tenant, int64, error)

	// Bill methods, scoped to the owning user
	CreateBill(ctx context.Context, bill *models.ConsolidatedBill) error
	GetBill(ctx context.Context, userID, id uuid.UUID) (*models.ConsolidatedBill, error)
	UpdateBill(ctx context.Context, bill *models.ConsolidatedBill) error
	DeleteBill(ctx context.Context, userID, id uuid.UUID) error
	ListBills(ctx context.Context, userID uuid.UUID, filters BillFilters, limit, offset int) ([]*models.ConsolidatedBill, int64, error)
	ListUnpaidBillsForTenant(ctx context.Context, userID, tenantID uuid.UUID) ([]*models.ConsolidatedBill, error)
	HasPaymentMessage(ctx context.Context, userID uuid.UUID, messageID string) (bool, error)

	// Event log methods
	CreateEventLog(ctx context.Context, event *models.EventLog) error
	ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error)

	// Close the store
	Close() error
}

// BillFilters represents filters for bill lists
type BillFilters struct {
	Year     *int
	Month    *int
	Paid     *bool
	TenantID *uuid.UUID
}

// EventLogFilters represents filters for event logs
type EventLogFilters struct {
	UserID    *uuid.UUID
	TenantID  *uuid.UUID
	BillID    *uuid.UUID
	Type      *models.EventType
	Level     *models.EventLevel
	StartTime *time.Time
	EndTime   *time.Time
}
