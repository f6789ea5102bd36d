package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		// Users
		r.Route("/users", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListUsers)
			r.Post("/", s.HandleCreateUser)
			r.Get("/me", s.HandleGetCurrentUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetUser)
				r.Put("/", s.HandleUpdateUser)
				r.Delete("/", s.HandleDeleteUser)
				r.Put("/mail-token", s.HandleSetMailToken)
			})
		})

		// Utility providers
		r.Route("/providers", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListProviders)
			r.Post("/", s.HandleCreateProvider)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetProvider)
				r.Put("/", s.HandleUpdateProvider)
				r.Delete("/", s.HandleDeleteProvider)
			})
		})

		// Tenants
		r.Route("/tenants", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListTenants)
			r.Post("/", s.HandleCreateTenant)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetTenant)
				r.Put("/", s.HandleUpdateTenant)
				r.Delete("/", s.HandleDeleteTenant)
				r.Post("/reconcile", s.HandleReconcileTenant)
			})
		})

		// Consolidated bills
		r.Route("/bills", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListBills)
			r.Post("/", s.HandleCreateBill)
			r.Post("/consolidate", s.HandleConsolidateBill)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetBill)
				r.Put("/", s.HandleUpdateBill)
				r.Delete("/", s.HandleDeleteBill)
				r.Post("/send", s.HandleSendBill)
				r.Post("/pay", s.HandlePayBill)
			})
		})

		// Dashboard
		r.Route("/dashboard", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleDashboard)
		})

		// Events
		r.Route("/events", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListEvents)
		})
	})
}
