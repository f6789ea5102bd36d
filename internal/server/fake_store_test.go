package server

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/splitbill/splitbill-server/internal/mail"
	"github.com/splitbill/splitbill-server/internal/models"
	"github.com/splitbill/splitbill-server/internal/storage"
)

// fakeStore is an in-memory Store for reconciler and subscriber tests
type fakeStore struct {
	users   map[uuid.UUID]*models.User
	tenants map[uuid.UUID]*models.Tenant
	bills   map[uuid.UUID]*models.ConsolidatedBill
	events  []*models.EventLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[uuid.UUID]*models.User),
		tenants: make(map[uuid.UUID]*models.Tenant),
		bills:   make(map[uuid.UUID]*models.ConsolidatedBill),
	}
}

func (f *fakeStore) BeginTx(ctx context.Context) (storage.Store, error) { return f, nil }
func (f *fakeStore) Commit() error                                      { return nil }
func (f *fakeStore) Rollback() error                                    { return nil }
func (f *fakeStore) Close() error                                       { return nil }

func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) UpdateUser(ctx context.Context, user *models.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	delete(f.users, id)
	return nil
}

func (f *fakeStore) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	var users []*models.User
	for _, u := range f.users {
		users = append(users, u)
	}
	return users, int64(len(users)), nil
}

func (f *fakeStore) CreateProvider(ctx context.Context, provider *models.UtilityProvider) error {
	return nil
}

func (f *fakeStore) GetProvider(ctx context.Context, userID, id uuid.UUID) (*models.UtilityProvider, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeStore) UpdateProvider(ctx context.Context, provider *models.UtilityProvider) error {
	return storage.ErrNotFound
}

func (f *fakeStore) DeleteProvider(ctx context.Context, userID, id uuid.UUID) error {
	return storage.ErrNotFound
}

func (f *fakeStore) ListProviders(ctx context.Context, userID uuid.UUID, category *models.ProviderCategory, limit, offset int) ([]*models.UtilityProvider, int64, error) {
	return nil, 0, nil
}

func (f *fakeStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}
	f.tenants[tenant.ID] = tenant
	return nil
}

func (f *fakeStore) GetTenant(ctx context.Context, userID, id uuid.UUID) (*models.Tenant, error) {
	t, ok := f.tenants[id]
	if !ok || t.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	if _, ok := f.tenants[tenant.ID]; !ok {
		return storage.ErrNotFound
	}
	f.tenants[tenant.ID] = tenant
	return nil
}

func (f *fakeStore) DeleteTenant(ctx context.Context, userID, id uuid.UUID) error {
	delete(f.tenants, id)
	return nil
}

func (f *fakeStore) ListTenants(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Tenant, int64, error) {
	var tenants []*models.Tenant
	for _, t := range f.tenants {
		if t.UserID == userID {
			tenants = append(tenants, t)
		}
	}
	return tenants, int64(len(tenants)), nil
}

func (f *fakeStore) CreateBill(ctx context.Context, bill *models.ConsolidatedBill) error {
	if bill.ID == uuid.Nil {
		bill.ID = uuid.New()
	}
	f.bills[bill.ID] = bill
	return nil
}

func (f *fakeStore) GetBill(ctx context.Context, userID, id uuid.UUID) (*models.ConsolidatedBill, error) {
	b, ok := f.bills[id]
	if !ok || b.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) UpdateBill(ctx context.Context, bill *models.ConsolidatedBill) error {
	if _, ok := f.bills[bill.ID]; !ok {
		return storage.ErrNotFound
	}
	f.bills[bill.ID] = bill
	return nil
}

func (f *fakeStore) DeleteBill(ctx context.Context, userID, id uuid.UUID) error {
	delete(f.bills, id)
	return nil
}

func (f *fakeStore) ListBills(ctx context.Context, userID uuid.UUID, filters storage.BillFilters, limit, offset int) ([]*models.ConsolidatedBill, int64, error) {
	var bills []*models.ConsolidatedBill
	for _, b := range f.bills {
		if b.UserID == userID {
			bills = append(bills, b)
		}
	}
	return bills, int64(len(bills)), nil
}

func (f *fakeStore) ListUnpaidBillsForTenant(ctx context.Context, userID, tenantID uuid.UUID) ([]*models.ConsolidatedBill, error) {
	var bills []*models.ConsolidatedBill
	for _, b := range f.bills {
		if b.UserID != userID || b.Paid {
			continue
		}
		if b.TenantID == nil || *b.TenantID != tenantID {
			continue
		}
		bills = append(bills, b)
	}
	sort.Slice(bills, func(i, j int) bool { return bills[i].Before(bills[j]) })
	return bills, nil
}

func (f *fakeStore) HasPaymentMessage(ctx context.Context, userID uuid.UUID, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	for _, b := range f.bills {
		if b.UserID == userID && b.PaymentMessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) ListEventLogs(ctx context.Context, filters storage.EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	var events []*models.EventLog
	for _, e := range f.events {
		if filters.Type != nil && e.Type != *filters.Type {
			continue
		}
		events = append(events, e)
	}
	return events, int64(len(events)), nil
}

// eventCount counts logged events of one type
func (f *fakeStore) eventCount(eventType models.EventType) int {
	n := 0
	for _, e := range f.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// fakeMailClient is an in-memory mail.Client counting full-body fetches
type fakeMailClient struct {
	messages []mail.Message
	fetches  int
}

func (f *fakeMailClient) ListMessages(ctx context.Context, token, query string, max int) ([]mail.Message, error) {
	return f.messages, nil
}

func (f *fakeMailClient) GetMessage(ctx context.Context, token, id string) (*mail.Message, error) {
	f.fetches++
	for i := range f.messages {
		if f.messages[i].ID == id {
			return &f.messages[i], nil
		}
	}
	return nil, fmt.Errorf("message %s not found", id)
}

func (f *fakeMailClient) SendMessage(ctx context.Context, token, to, subject, body string) error {
	return nil
}
