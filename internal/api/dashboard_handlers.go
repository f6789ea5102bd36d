package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/splitbill/splitbill-server/internal/models"
	"github.com/splitbill/splitbill-server/internal/storage"
)

// ========== Dashboard handlers ==========

// HandleDashboard aggregates the landlord's billing overview
func (s *RESTServer) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	unpaid := false
	unpaidBills, unpaidCount, err := s.store.ListBills(ctx, claims.UserID, storage.BillFilters{Paid: &unpaid}, 200, 0)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	unpaidTotal := decimal.Zero
	for _, bill := range unpaidBills {
		unpaidTotal = unpaidTotal.Add(bill.TotalAmount)
	}

	tenants, _, err := s.store.ListTenants(ctx, claims.UserID, 200, 0)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	outstandingTotal := decimal.Zero
	for _, tenant := range tenants {
		outstandingTotal = outstandingTotal.Add(tenant.OutstandingBalance)
	}

	now := time.Now()
	year, month := now.Year(), int(now.Month())
	monthBills, _, err := s.store.ListBills(ctx, claims.UserID, storage.BillFilters{Year: &year, Month: &month}, 200, 0)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	byCategory := make(map[models.ProviderCategory]decimal.Decimal)
	for _, bill := range monthBills {
		for _, line := range bill.Lines {
			byCategory[line.Category] = byCategory[line.Category].Add(line.Amount)
		}
	}

	events, _, err := s.store.ListEventLogs(ctx, storage.EventLogFilters{UserID: &claims.UserID}, 10, 0)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"unpaidBillCount":  unpaidCount,
		"unpaidBillTotal":  unpaidTotal,
		"outstandingTotal": outstandingTotal,
		"tenantCount":      len(tenants),
		"monthByCategory":  byCategory,
		"recentEvents":     events,
	})
}

// ========== Event handlers ==========

// HandleListEvents lists the landlord's event log
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	filters := storage.EventLogFilters{
		UserID: &claims.UserID,
	}

	if t := r.URL.Query().Get("type"); t != "" {
		eventType := models.EventType(t)
		filters.Type = &eventType
	}
	if l := r.URL.Query().Get("level"); l != "" {
		level := models.EventLevel(l)
		filters.Level = &level
	}
	if tid := r.URL.Query().Get("tenant_id"); tid != "" {
		tenantID, err := uuid.Parse(tid)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid tenant id")
			return
		}
		filters.TenantID = &tenantID
	}
	if bid := r.URL.Query().Get("bill_id"); bid != "" {
		billID, err := uuid.Parse(bid)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid bill id")
			return
		}
		filters.BillID = &billID
	}
	if st := r.URL.Query().Get("start_time"); st != "" {
		start, err := time.Parse(time.RFC3339, st)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid start_time")
			return
		}
		filters.StartTime = &start
	}
	if et := r.URL.Query().Get("end_time"); et != "" {
		end, err := time.Parse(time.RFC3339, et)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid end_time")
			return
		}
		filters.EndTime = &end
	}

	limit, offset := pagination(r)

	events, total, err := s.store.ListEventLogs(ctx, filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}
