package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/splitbill/splitbill-server/internal/models"
	"github.com/splitbill/splitbill-server/internal/storage"
)

// ========== Utility provider handlers ==========

// HandleListProviders lists the landlord's utility providers
func (s *RESTServer) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	var category *models.ProviderCategory
	if c := r.URL.Query().Get("category"); c != "" {
		pc := models.ProviderCategory(c)
		if !pc.Valid() {
			s.respondError(w, http.StatusBadRequest, categoryValidation, "unknown category")
			return
		}
		category = &pc
	}

	limit, offset := pagination(r)

	providers, total, err := s.store.ListProviders(ctx, claims.UserID, category, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"providers": providers,
		"total":     total,
	})
}

// HandleCreateProvider registers a utility provider
func (s *RESTServer) HandleCreateProvider(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	var req struct {
		Name          string `json:"name" validate:"required,min=2,max=100"`
		Category      string `json:"category" validate:"required,oneof=water gas electricity internet other"`
		ContactEmail  string `json:"contactEmail,omitempty"`
		ContactPhone  string `json:"contactPhone,omitempty"`
		AccountNumber string `json:"accountNumber,omitempty"`
		Website       string `json:"website,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, err.Error())
		return
	}

	provider := &models.UtilityProvider{
		OwnedModel: models.OwnedModel{
			UserID: claims.UserID,
		},
		Name:          req.Name,
		Category:      models.ProviderCategory(req.Category),
		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,
		AccountNumber: req.AccountNumber,
		Website:       req.Website,
		IsActive:      true,
	}

	if err := s.store.CreateProvider(r.Context(), provider); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, categoryDatabase, "provider with this name already exists")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, provider)
}

// HandleGetProvider gets a provider
func (s *RESTServer) HandleGetProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid provider id")
		return
	}

	provider, err := s.store.GetProvider(ctx, claims.UserID, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "provider not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, provider)
}

// HandleUpdateProvider updates a provider
func (s *RESTServer) HandleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid provider id")
		return
	}

	var req struct {
		Name          string `json:"name" validate:"required,min=2,max=100"`
		Category      string `json:"category" validate:"required,oneof=water gas electricity internet other"`
		ContactEmail  string `json:"contactEmail,omitempty"`
		ContactPhone  string `json:"contactPhone,omitempty"`
		AccountNumber string `json:"accountNumber,omitempty"`
		Website       string `json:"website,omitempty"`
		IsActive      bool   `json:"isActive"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, err.Error())
		return
	}

	provider, err := s.store.GetProvider(ctx, claims.UserID, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "provider not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	provider.Name = req.Name
	provider.Category = models.ProviderCategory(req.Category)
	provider.ContactEmail = req.ContactEmail
	provider.ContactPhone = req.ContactPhone
	provider.AccountNumber = req.AccountNumber
	provider.Website = req.Website
	provider.IsActive = req.IsActive

	if err := s.store.UpdateProvider(ctx, provider); err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, provider)
}

// HandleDeleteProvider deletes a provider
func (s *RESTServer) HandleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid provider id")
		return
	}

	if err := s.store.DeleteProvider(r.Context(), claims.UserID, id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "provider not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
