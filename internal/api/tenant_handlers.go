package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/splitbill/splitbill-server/internal/models"
	"github.com/splitbill/splitbill-server/internal/storage"
)

// ========== Tenant handlers ==========

// HandleListTenants lists the landlord's tenants
func (s *RESTServer) HandleListTenants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	limit, offset := pagination(r)

	tenants, total, err := s.store.ListTenants(ctx, claims.UserID, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"total":   total,
	})
}

// HandleCreateTenant creates a tenant
func (s *RESTServer) HandleCreateTenant(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	var req struct {
		Name          string          `json:"name" validate:"required,min=2,max=100"`
		Email         string          `json:"email" validate:"required,email"`
		SecondaryName string          `json:"secondaryName,omitempty"`
		Shares        models.ShareMap `json:"shares"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, err.Error())
		return
	}

	if err := validateShares(req.Shares); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, err.Error())
		return
	}

	tenant := &models.Tenant{
		OwnedModel: models.OwnedModel{
			UserID: claims.UserID,
		},
		Name:               req.Name,
		Email:              req.Email,
		SecondaryName:      req.SecondaryName,
		Shares:             req.Shares,
		OutstandingBalance: decimal.Zero,
		IsActive:           true,
	}

	if tenant.Shares == nil {
		tenant.Shares = make(models.ShareMap)
	}

	if err := s.store.CreateTenant(r.Context(), tenant); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, categoryDatabase, "tenant already exists")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, tenant)
}

// HandleGetTenant gets a tenant
func (s *RESTServer) HandleGetTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid tenant id")
		return
	}

	tenant, err := s.store.GetTenant(ctx, claims.UserID, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "tenant not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, tenant)
}

// HandleUpdateTenant updates a tenant
func (s *RESTServer) HandleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid tenant id")
		return
	}

	var req struct {
		Name               string           `json:"name" validate:"required,min=2,max=100"`
		Email              string           `json:"email" validate:"required,email"`
		SecondaryName      string           `json:"secondaryName,omitempty"`
		Shares             models.ShareMap  `json:"shares"`
		OutstandingBalance *decimal.Decimal `json:"outstandingBalance,omitempty"`
		IsActive           bool             `json:"isActive"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, err.Error())
		return
	}

	if err := validateShares(req.Shares); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, err.Error())
		return
	}

	tenant, err := s.store.GetTenant(ctx, claims.UserID, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "tenant not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	tenant.Name = req.Name
	tenant.Email = req.Email
	tenant.SecondaryName = req.SecondaryName
	if req.Shares != nil {
		tenant.Shares = req.Shares
	}
	if req.OutstandingBalance != nil {
		if req.OutstandingBalance.IsNegative() {
			s.respondError(w, http.StatusBadRequest, categoryBusiness, "outstanding balance cannot be negative")
			return
		}
		tenant.OutstandingBalance = *req.OutstandingBalance
	}
	tenant.IsActive = req.IsActive

	if err := s.store.UpdateTenant(ctx, tenant); err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, tenant)
}

// HandleDeleteTenant deletes a tenant
func (s *RESTServer) HandleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid tenant id")
		return
	}

	if err := s.store.DeleteTenant(r.Context(), claims.UserID, id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "tenant not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleReconcileTenant scans recent inbox mail for the tenant's payments and
// settles matching unpaid bills
func (s *RESTServer) HandleReconcileTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid tenant id")
		return
	}

	tenant, err := s.store.GetTenant(ctx, claims.UserID, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "tenant not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	if user.MailToken == "" {
		s.respondError(w, http.StatusPreconditionFailed, categoryBusiness, "mail account not connected")
		return
	}

	settled, err := s.reconciler.ReconcileTenant(ctx, user, tenant)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, categoryNetwork, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"settled":            settled,
		"count":              len(settled),
		"outstandingBalance": tenant.OutstandingBalance,
	})
}

// validateShares checks that every share is a known category in 0..100
func validateShares(shares models.ShareMap) error {
	for category, pct := range shares {
		if !category.Valid() {
			return fmt.Errorf("unknown share category %q", category)
		}
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("share for %s must be between 0 and 100", category)
		}
	}
	return nil
}
