package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/splitbill/splitbill-server/internal/models"
	"github.com/splitbill/splitbill-server/internal/storage"
	"github.com/splitbill/splitbill-server/pkg/crypto"
)

// Error categories, carried on every error response. Formatting only, the
// client does not branch on them.
const (
	categoryValidation     = "validation"
	categoryDatabase       = "database"
	categoryAuthentication = "authentication"
	categoryNetwork        = "network"
	categoryBusiness       = "business"
	categoryUnknown        = "unknown"
)

// ========== Auth handlers ==========

// HandleLogin handles user login
func (s *RESTServer) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid request body")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, categoryAuthentication, "invalid credentials")
		return
	}

	if !s.auth.VerifyPassword(req.Password, user.PasswordHash) {
		s.respondError(w, http.StatusUnauthorized, categoryAuthentication, "invalid credentials")
		return
	}

	if !user.IsActive {
		s.respondError(w, http.StatusForbidden, categoryAuthentication, "account is disabled")
		return
	}

	accessToken, refreshToken, err := s.auth.GenerateTokenPair(user)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryUnknown, "failed to generate tokens")
		return
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		log.Warn().Err(err).Msg("Failed to record last login")
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":    "Bearer",
	})
}

// HandleRefresh handles token refresh
func (s *RESTServer) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid request body")
		return
	}

	userID, err := s.auth.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, categoryAuthentication, "invalid refresh token")
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil || !user.IsActive {
		s.respondError(w, http.StatusUnauthorized, categoryAuthentication, "invalid refresh token")
		return
	}

	accessToken, refreshToken, err := s.auth.GenerateTokenPair(user)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryUnknown, "failed to generate tokens")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":    "Bearer",
	})
}

// ========== User handlers ==========

// HandleGetCurrentUser gets the authenticated user
func (s *RESTServer) HandleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	user, err := s.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "user not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// HandleListUsers lists users (admin)
func (s *RESTServer) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if !claims.IsAdmin {
		s.respondError(w, http.StatusForbidden, categoryAuthentication, "admin access required")
		return
	}

	limit, offset := pagination(r)

	users, total, err := s.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
	})
}

// HandleCreateUser creates a user
func (s *RESTServer) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if !claims.IsAdmin {
		s.respondError(w, http.StatusForbidden, categoryAuthentication, "admin access required")
		return
	}

	var req struct {
		Email       string `json:"email" validate:"required,email"`
		Password    string `json:"password" validate:"required,min=6"`
		Username    string `json:"username,omitempty"`
		FirstName   string `json:"firstName,omitempty"`
		LastName    string `json:"lastName,omitempty"`
		MailAddress string `json:"mailAddress,omitempty"`
		IsAdmin     bool   `json:"is_admin"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, err.Error())
		return
	}

	if req.Username == "" {
		req.Username = req.Email
	}

	user := &models.User{
		Email:       req.Email,
		Username:    req.Username,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		MailAddress: req.MailAddress,
		IsAdmin:     req.IsAdmin,
		IsActive:    true,
		Settings:    make(models.Variables),
	}

	// Store password temporarily, hashed on insert
	user.Settings["password"] = req.Password

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, categoryDatabase, "user with this email already exists")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	delete(user.Settings, "password")

	s.respondJSON(w, http.StatusCreated, user)
}

// HandleGetUser gets a user
func (s *RESTServer) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid user id")
		return
	}

	if id != claims.UserID && !claims.IsAdmin {
		s.respondError(w, http.StatusForbidden, categoryAuthentication, "access denied")
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "user not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// HandleUpdateUser updates a user
func (s *RESTServer) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid user id")
		return
	}

	if id != claims.UserID && !claims.IsAdmin {
		s.respondError(w, http.StatusForbidden, categoryAuthentication, "access denied")
		return
	}

	var req struct {
		Username    string `json:"username,omitempty"`
		FirstName   string `json:"firstName,omitempty"`
		LastName    string `json:"lastName,omitempty"`
		Email       string `json:"email" validate:"required,email"`
		MailAddress string `json:"mailAddress,omitempty"`
		IsActive    bool   `json:"is_active"`
		IsAdmin     bool   `json:"is_admin"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, err.Error())
		return
	}

	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "user not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	if req.Username != "" {
		user.Username = req.Username
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	user.Email = req.Email
	user.MailAddress = req.MailAddress
	if claims.IsAdmin {
		user.IsActive = req.IsActive
		user.IsAdmin = req.IsAdmin
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// HandleDeleteUser deletes a user (admin)
func (s *RESTServer) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if !claims.IsAdmin {
		s.respondError(w, http.StatusForbidden, categoryAuthentication, "admin access required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid user id")
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "user not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleSetMailToken stores the user's mail OAuth token, sealed at rest
func (s *RESTServer) HandleSetMailToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := claimsFrom(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid user id")
		return
	}

	if id != claims.UserID && !claims.IsAdmin {
		s.respondError(w, http.StatusForbidden, categoryAuthentication, "access denied")
		return
	}

	var req struct {
		Token       string `json:"token" validate:"required"`
		MailAddress string `json:"mailAddress,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, categoryValidation, err.Error())
		return
	}

	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, categoryDatabase, "user not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	sealed, err := crypto.SealToken(s.reconciler.TokenKey(), req.Token)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryUnknown, "failed to seal token")
		return
	}

	user.MailToken = sealed
	if req.MailAddress != "" {
		user.MailAddress = req.MailAddress
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.respondError(w, http.StatusInternalServerError, categoryDatabase, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "mail token stored",
	})
}

// ========== Helper methods ==========

// HandleHealth health check
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now(),
	})
}

// HandleRoot root handler
func (s *RESTServer) HandleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Split Bill Server",
		"version": s.config.Server.Version,
		"health":  "/api/v1/health",
	})
}

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError responds with error
func (s *RESTServer) respondError(w http.ResponseWriter, status int, category, message string) {
	s.respondJSON(w, status, map[string]string{
		"error":    message,
		"category": category,
	})
}

// pagination reads limit/offset query params with a default page size
func pagination(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
