package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/splitbill/splitbill-server/internal/billing"
	"github.com/splitbill/splitbill-server/internal/mail"
	"github.com/splitbill/splitbill-server/internal/models"
	"github.com/splitbill/splitbill-server/internal/server"
	"github.com/splitbill/splitbill-server/internal/storage"
)

// ========== Consolidated bill handlers ==========

// HandleListBills lists bills with optional filters
func (s *RESTServer) HandleListBills(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	var filters storage.BillFilters

	if y := r.URL.Query().Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid year")
			return
		}
		filters.Year = &year
	}
	if m := r.URL.Query().Get("month"); m != "" {
		month, err := strconv.Atoi(m)
		if err != nil || month < 1 || month > 12 {
			s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid month")
			return
		}
		filters.Month = &month
	}
	if p := r.URL.Query().Get("paid"); p != "" {
		paid, err := strconv.ParseBool(p)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid paid flag")
			return
		}
		filters.Paid = &paid
	}
	if t := r.URL.Query().Get("tenant_id"); t != "" {
		tenantID, err := uuid.Parse(t)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid tenant id")
			return
		}
		filters.TenantID = &tenantID
	}

	limit, offset := pagination(r)

	bills, total, err := s.store.ListBills(ctx, claims.UserID, filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"bills": bills,
		"total": total,
	})
}

type billRequest struct {
	Year     int              `json:"year" validate:"required"`
	Month    int              `json:"month" validate:"required,min=1,max=12"`
	TenantID *uuid.UUID       `json:"tenantId,omitempty"`
	Charges  []billing.Charge `json:"charges"`
}

// HandleCreateBill creates a bill from explicit provider charges
func (s *RESTServer) HandleCreateBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	var req billRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, err.Error())
		return
	}

	if len(req.Charges) == 0 {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "at least one charge is required")
		return
	}

	bill := s.buildBill(w, r, claims.UserID, &req)
	if bill == nil {
		return
	}

	s.respondJSON(w, http.StatusCreated, bill)
}

// HandleConsolidateBill builds the month's bill; charges omitted from the
// request are sourced from provider mail in the landlord's inbox
func (s *RESTServer) HandleConsolidateBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	var req billRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, err.Error())
		return
	}

	if len(req.Charges) == 0 {
		charges, err := s.chargesFromMail(r, claims.UserID)
		if err != nil {
			s.respondError(w, http.StatusBadGateway, categoryNetwork, err.Error())
			return
		}
		if len(charges) == 0 {
			s.respondError(w, http.StatusUnprocessableEntity, categoryBusiness, "no provider charges found in recent mail")
			return
		}
		req.Charges = charges
	}

	bill := s.buildBill(w, r, claims.UserID, &req)
	if bill == nil {
		return
	}

	s.respondJSON(w, http.StatusCreated, bill)
}

// buildBill validates charges against registered providers and persists the
// bill. Writes the error response itself and returns nil when it fails.
func (s *RESTServer) buildBill(w http.ResponseWriter, r *http.Request, userID uuid.UUID, req *billRequest) *models.ConsolidatedBill {
	ctx := r.Context()

	providers, _, err := s.store.ListProviders(ctx, userID, nil, 200, 0)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return nil
	}

	if req.TenantID != nil {
		if _, err := s.store.GetTenant(ctx, userID, *req.TenantID); err != nil {
			s.respondError(w, http.StatusBadRequest, categoryValidation, "unknown tenant")
			return nil
		}
	}

	bill, err := billing.Consolidate(userID, req.Year, req.Month, req.TenantID, providers, req.Charges)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryBusiness, err.Error())
		return nil
	}

	if err := s.store.CreateBill(ctx, bill); err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return nil
	}

	s.logEvent(ctx, &models.EventLog{
		UserID:      &userID,
		TenantID:    bill.TenantID,
		BillID:      &bill.ID,
		Type:        models.EventTypeBillCreated,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("Consolidated bill %s for %s", bill.Period(), bill.TotalAmount),
	})

	s.publisher.Publish(server.BillingEvent{
		Type:     models.EventTypeBillCreated,
		UserID:   userID,
		TenantID: bill.TenantID,
		BillID:   &bill.ID,
		Period:   bill.Period(),
		Amount:   bill.TotalAmount.String(),
	})

	return bill
}

// chargesFromMail scans recent inbox mail for one charge per active provider
func (s *RESTServer) chargesFromMail(r *http.Request, userID uuid.UUID) ([]billing.Charge, error) {
	ctx := r.Context()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	token, err := s.reconciler.MailToken(user)
	if err != nil {
		return nil, err
	}

	providers, _, err := s.store.ListProviders(ctx, userID, nil, 200, 0)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("in:inbox newer_than:%dd", s.config.Mail.SearchWindowDays)
	messages, err := s.mailClient.ListMessages(ctx, token, query, 50)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}

	var charges []billing.Charge

	for _, p := range providers {
		if !p.IsActive {
			continue
		}

		for i := range messages {
			msg := &messages[i]
			if !messageFromProvider(msg, p) {
				continue
			}

			if msg.Body == "" && msg.Snippet == "" {
				full, err := s.mailClient.GetMessage(ctx, token, msg.ID)
				if err != nil {
					log.Warn().Err(err).Str("messageId", msg.ID).Msg("Failed to fetch message body")
					continue
				}
				msg = full
			}

			amount, err := mail.ParseProviderAmount(msg)
			if err != nil {
				continue
			}

			charges = append(charges, billing.Charge{
				ProviderID: p.ID,
				Amount:     amount,
			})
			break
		}
	}

	return charges, nil
}

// messageFromProvider reports whether a message looks like it came from the
// provider: name in the sender or subject, or sender matches the contact email
func messageFromProvider(msg *mail.Message, p *models.UtilityProvider) bool {
	name := strings.ToLower(p.Name)
	if strings.Contains(strings.ToLower(msg.From), name) {
		return true
	}
	if strings.Contains(strings.ToLower(msg.Subject), name) {
		return true
	}
	if p.ContactEmail != "" && strings.Contains(strings.ToLower(msg.From), strings.ToLower(p.ContactEmail)) {
		return true
	}
	return false
}

// HandleGetBill gets a bill
func (s *RESTServer) HandleGetBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid bill id")
		return
	}

	bill, err := s.store.GetBill(ctx, claims.UserID, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "bill not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, bill)
}

// HandleUpdateBill updates a bill's tenant assignment or line items
func (s *RESTServer) HandleUpdateBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid bill id")
		return
	}

	var req struct {
		TenantID *uuid.UUID       `json:"tenantId,omitempty"`
		Charges  []billing.Charge `json:"charges,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid request body")
		return
	}

	bill, err := s.store.GetBill(ctx, claims.UserID, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "bill not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	if bill.Paid {
		s.respondError(w, http.StatusConflict, categoryBusiness, "bill is already paid")
		return
	}

	if req.TenantID != nil {
		if _, err := s.store.GetTenant(ctx, claims.UserID, *req.TenantID); err != nil {
			s.respondError(w, http.StatusBadRequest, categoryValidation, "unknown tenant")
			return
		}
		bill.TenantID = req.TenantID
	}

	if len(req.Charges) > 0 {
		providers, _, err := s.store.ListProviders(ctx, claims.UserID, nil, 200, 0)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
			return
		}

		rebuilt, err := billing.Consolidate(claims.UserID, bill.Year, bill.Month, bill.TenantID, providers, req.Charges)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, categoryBusiness, err.Error())
			return
		}

		bill.Lines = rebuilt.Lines
		bill.TotalAmount = rebuilt.TotalAmount
	}

	if err := s.store.UpdateBill(ctx, bill); err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, bill)
}

// HandleDeleteBill deletes a bill
func (s *RESTServer) HandleDeleteBill(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid bill id")
		return
	}

	if err := s.store.DeleteBill(r.Context(), claims.UserID, id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "bill not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSendBill emails the split bill to the assigned tenant
func (s *RESTServer) HandleSendBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid bill id")
		return
	}

	bill, err := s.store.GetBill(ctx, claims.UserID, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "bill not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	if bill.TenantID == nil {
		s.respondError(w, http.StatusUnprocessableEntity, categoryBusiness, "bill has no tenant assigned")
		return
	}
	if bill.Paid {
		s.respondError(w, http.StatusConflict, categoryBusiness, "bill is already paid")
		return
	}

	tenant, err := s.store.GetTenant(ctx, claims.UserID, *bill.TenantID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	token, err := s.reconciler.MailToken(user)
	if err != nil {
		s.respondError(w, http.StatusPreconditionFailed, categoryBusiness, err.Error())
		return
	}

	split := billing.SplitBill(bill, tenant)
	due := billing.AmountDue(bill, tenant)

	subject := fmt.Sprintf("Utility bill %s", bill.Period())
	body := s.composeBillMail(bill, tenant, split, due)

	if err := s.mailClient.SendMessage(ctx, token, tenant.Email, subject, body); err != nil {
		s.respondError(w, http.StatusBadGateway, categoryNetwork, fmt.Sprintf("send mail: %v", err))
		return
	}

	now := time.Now()
	bill.SentAt = &now
	if err := s.store.UpdateBill(ctx, bill); err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.logEvent(ctx, &models.EventLog{
		UserID:      &claims.UserID,
		TenantID:    bill.TenantID,
		BillID:      &bill.ID,
		Type:        models.EventTypeBillSent,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("Bill %s sent to %s, %s %s due", bill.Period(), tenant.Email, s.config.Billing.Currency, due),
	})

	s.publisher.Publish(server.BillingEvent{
		Type:     models.EventTypeBillSent,
		UserID:   claims.UserID,
		TenantID: bill.TenantID,
		BillID:   &bill.ID,
		Period:   bill.Period(),
		Amount:   due.String(),
	})

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"bill":      bill,
		"split":     split,
		"amountDue": due,
	})
}

// HandlePayBill manually marks a bill paid and reduces the tenant balance
func (s *RESTServer) HandlePayBill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid bill id")
		return
	}

	var req struct {
		Amount *decimal.Decimal `json:"amount,omitempty"`
	}
	// Body is optional for a plain mark-paid
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	bill, err := s.store.GetBill(ctx, claims.UserID, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "bill not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	if bill.Paid {
		s.respondError(w, http.StatusConflict, categoryBusiness, "bill is already paid")
		return
	}

	var tenant *models.Tenant
	if bill.TenantID != nil {
		tenant, err = s.store.GetTenant(ctx, claims.UserID, *bill.TenantID)
		if err != nil && err != storage.ErrNotFound {
			s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
			return
		}
	}

	paid := decimal.Zero
	if req.Amount != nil {
		paid = *req.Amount
	} else if tenant != nil {
		paid = billing.AmountDue(bill, tenant)
	} else {
		paid = bill.TotalAmount
	}

	if paid.IsNegative() {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "amount cannot be negative")
		return
	}

	now := time.Now()
	bill.Paid = true
	bill.PaidAt = &now

	if err := s.store.UpdateBill(ctx, bill); err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	if tenant != nil {
		balance := tenant.OutstandingBalance.Sub(paid)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		tenant.OutstandingBalance = balance

		if err := s.store.UpdateTenant(ctx, tenant); err != nil {
			log.Error().Err(err).Str("tenantId", tenant.ID.String()).Msg("Failed to update tenant balance")
		}
	}

	s.logEvent(ctx, &models.EventLog{
		UserID:      &claims.UserID,
		TenantID:    bill.TenantID,
		BillID:      &bill.ID,
		Type:        models.EventTypeBillPaid,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("Bill %s marked paid, %s received", bill.Period(), paid),
	})

	s.publisher.Publish(server.BillingEvent{
		Type:     models.EventTypeBillPaid,
		UserID:   claims.UserID,
		TenantID: bill.TenantID,
		BillID:   &bill.ID,
		Period:   bill.Period(),
		Amount:   paid.String(),
	})

	s.respondJSON(w, http.StatusOK, bill)
}

// composeBillMail renders the plain-text bill breakdown
func (s *RESTServer) composeBillMail(bill *models.ConsolidatedBill, tenant *models.Tenant, split []billing.ShareLine, due decimal.Decimal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hi %s,\n\n", tenant.Name)
	fmt.Fprintf(&b, "Here is your utility bill for %s.\n\n", bill.Period())

	for _, line := range split {
		fmt.Fprintf(&b, "  %-12s %-24s %8s x %5s%% = %8s\n",
			line.Category, line.ProviderName, line.Amount.StringFixed(2),
			line.SharePercent.String(), line.Owed.StringFixed(2))
	}

	if tenant.OutstandingBalance.IsPositive() {
		fmt.Fprintf(&b, "\n  Carried balance: %s\n", tenant.OutstandingBalance.StringFixed(2))
	}

	fmt.Fprintf(&b, "\nTotal due: %s %s\n", s.config.Billing.Currency, due.StringFixed(2))

	if s.config.Mail.FromName != "" {
		fmt.Fprintf(&b, "\n%s\n", s.config.Mail.FromName)
	}

	return b.String()
}

// logEvent records an event log entry, logging failures instead of failing
// the request
func (s *RESTServer) logEvent(ctx context.Context, event *models.EventLog) {
	if err := s.store.CreateEventLog(ctx, event); err != nil {
		log.Error().Err(err).Msg("Failed to create event log")
	}
}
