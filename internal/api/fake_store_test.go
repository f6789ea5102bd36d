package api

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splitbill/splitbill-server/internal/mail"
	"github.com/splitbill/splitbill-server/internal/models"
	"github.com/splitbill/splitbill-server/internal/storage"
	"github.com/splitbill/splitbill-server/pkg/crypto"
)

// fakeStore is an in-memory Store for handler tests
type fakeStore struct {
	users     map[uuid.UUID]*models.User
	providers map[uuid.UUID]*models.UtilityProvider
	tenants   map[uuid.UUID]*models.Tenant
	bills     map[uuid.UUID]*models.ConsolidatedBill
	events    []*models.EventLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[uuid.UUID]*models.User),
		providers: make(map[uuid.UUID]*models.UtilityProvider),
		tenants:   make(map[uuid.UUID]*models.Tenant),
		bills:     make(map[uuid.UUID]*models.ConsolidatedBill),
	}
}

func (f *fakeStore) BeginTx(ctx context.Context) (storage.Store, error) { return f, nil }
func (f *fakeStore) Commit() error                                      { return nil }
func (f *fakeStore) Rollback() error                                    { return nil }
func (f *fakeStore) Close() error                                       { return nil }

func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return storage.ErrDuplicateKey
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if pw, ok := user.Settings["password"].(string); ok {
		hash, err := crypto.HashPassword(pw)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		delete(user.Settings, "password")
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return user, nil
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
	user.UpdatedAt = time.Now()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.users[id]; !ok {
		return storage.ErrNotFound
	}
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
	for _, p := range f.providers {
		if p.UserID == provider.UserID && p.Name == provider.Name {
			return storage.ErrDuplicateKey
		}
	}
	if provider.ID == uuid.Nil {
		provider.ID = uuid.New()
	}
	f.providers[provider.ID] = provider
	return nil
}

func (f *fakeStore) GetProvider(ctx context.Context, userID, id uuid.UUID) (*models.UtilityProvider, error) {
	p, ok := f.providers[id]
	if !ok || p.UserID != userID {
		return nil, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) UpdateProvider(ctx context.Context, provider *models.UtilityProvider) error {
	if _, ok := f.providers[provider.ID]; !ok {
		return storage.ErrNotFound
	}
	f.providers[provider.ID] = provider
	return nil
}

func (f *fakeStore) DeleteProvider(ctx context.Context, userID, id uuid.UUID) error {
	p, ok := f.providers[id]
	if !ok || p.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.providers, id)
	return nil
}

func (f *fakeStore) ListProviders(ctx context.Context, userID uuid.UUID, category *models.ProviderCategory, limit, offset int) ([]*models.UtilityProvider, int64, error) {
	var providers []*models.UtilityProvider
	for _, p := range f.providers {
		if p.UserID != userID {
			continue
		}
		if category != nil && p.Category != *category {
			continue
		}
		providers = append(providers, p)
	}
	return providers, int64(len(providers)), nil
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
	t, ok := f.tenants[id]
	if !ok || t.UserID != userID {
		return storage.ErrNotFound
	}
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
	b, ok := f.bills[id]
	if !ok || b.UserID != userID {
		return storage.ErrNotFound
	}
	delete(f.bills, id)
	return nil
}

func (f *fakeStore) ListBills(ctx context.Context, userID uuid.UUID, filters storage.BillFilters, limit, offset int) ([]*models.ConsolidatedBill, int64, error) {
	var bills []*models.ConsolidatedBill
	for _, b := range f.bills {
		if b.UserID != userID {
			continue
		}
		if filters.Year != nil && b.Year != *filters.Year {
			continue
		}
		if filters.Month != nil && b.Month != *filters.Month {
			continue
		}
		if filters.Paid != nil && b.Paid != *filters.Paid {
			continue
		}
		if filters.TenantID != nil && (b.TenantID == nil || *b.TenantID != *filters.TenantID) {
			continue
		}
		bills = append(bills, b)
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
		if filters.UserID != nil && (e.UserID == nil || *e.UserID != *filters.UserID) {
			continue
		}
		if filters.Type != nil && e.Type != *filters.Type {
			continue
		}
		events = append(events, e)
	}
	return events, int64(len(events)), nil
}

// fakeMail is an in-memory mail.Client recording sends
type fakeMail struct {
	messages []mail.Message
	sent     []sentMail
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

func (f *fakeMail) ListMessages(ctx context.Context, token, query string, max int) ([]mail.Message, error) {
	return f.messages, nil
}

func (f *fakeMail) GetMessage(ctx context.Context, token, id string) (*mail.Message, error) {
	for i := range f.messages {
		if f.messages[i].ID == id {
			return &f.messages[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeMail) SendMessage(ctx context.Context, token, to, subject, body string) error {
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (f *fakeMail) hasSentTo(to string) bool {
	for _, m := range f.sent {
		if strings.EqualFold(m.To, to) {
			return true
		}
	}
	return false
}
