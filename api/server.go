/*
server.go - Router and middleware for the mirror API

PURPOSE:
  Wires URLs to handlers with chi. Middleware stack:

  1. Logger:     request logging
  2. Recoverer:  panic recovery (500 instead of crash)
  3. RequestID:  unique id per request for tracing
  4. CORS:       the dashboard frontend is served from another origin
  5. Bearer:     static-token credential check (session management
                 itself is an external collaborator)
*/
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the router with all routes configured. An empty
// token disables the credential check (tests, local dev).
func NewRouter(h *Handler, token string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(requireBearer(token))

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Put("/{id}", h.UpdateInvoice)
			r.Delete("/{id}", h.DeleteInvoice)
		})

		r.Route("/quotations", func(r chi.Router) {
			r.Get("/", h.ListQuotations)
			r.Post("/", h.CreateQuotation)
			r.Get("/{id}", h.GetQuotation)
			r.Put("/{id}", h.UpdateQuotation)
			r.Delete("/{id}", h.DeleteQuotation)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.CreatePayment)
			r.Get("/{id}", h.GetPayment)
			r.Put("/{id}", h.RejectPaymentUpdate)
			r.Delete("/{id}", h.DeletePayment)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", h.ListNotes)
			r.Post("/", h.CreateNote)
			r.Put("/{id}", h.UpdateNote)
			r.Delete("/{id}", h.DeleteNote)
		})

		r.Route("/attachments", func(r chi.Router) {
			r.Get("/", h.ListAttachments)
			r.Post("/", h.CreateAttachment)
			r.Put("/{id}", h.RejectAttachmentUpdate)
			r.Delete("/{id}", h.DeleteAttachment)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Post("/seed", h.SeedScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}

// requireBearer checks the Authorization header against a static token.
func requireBearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeError(w, http.StatusUnauthorized, "missing or invalid credential", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
