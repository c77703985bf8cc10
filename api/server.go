/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     slog request logging, request-scoped logger in context
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/health           Liveness + store ping
  /api/summary          Dashboard figures
  /api/balances/*       Named balances
  /api/periods/*        Period lifecycle + settlement
  /api/entries/*        Ledger Log (expenses, transfers, withdrawals)
  /api/wallet/*         Wallet Log (income, adjustments)
  /api/categories/*     Category catalog
  /api/goals/*          Saving goals
  /api/banks/*          Bank accounts
  /api/rollover/*       Four-stage rollover wizard
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public; the service is
  meant to run on a trusted single-user host.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/summary", h.GetSummary)
		r.Get("/balances/{account}", h.GetBalance)

		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Post("/", h.CreatePeriod)
			r.Get("/current", h.GetCurrentPeriod)
			r.Get("/default-bounds", h.GetDefaultBounds)
			r.Get("/{id}", h.GetPeriod)
			r.Get("/{id}/settlement", h.PreviewSettlement)
			r.Post("/{id}/settlement", h.SettlePeriod)
		})
		r.Get("/settlements", h.ListSettlements)

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/expenses", h.RecordExpense)
			r.Post("/transfers", h.Transfer)
			r.Post("/withdrawals", h.WithdrawSaving)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", h.ListWallet)
			r.Post("/income", h.RecordIncome)
			r.Post("/adjustments", h.AdjustWallet)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
			r.Put("/{id}/budget", h.SetCategoryBudget)
			r.Get("/{id}/sub-tags", h.ListSubTags)
			r.Post("/{id}/sub-tags", h.CreateSubTag)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Get("/", h.ListGoals)
			r.Post("/", h.CreateGoal)
			r.Post("/{id}/complete", h.CompleteGoal)
		})

		r.Route("/banks", func(r chi.Router) {
			r.Get("/", h.ListBanks)
			r.Post("/", h.CreateBank)
			r.Put("/{id}/status", h.SetBankStatus)
		})

		r.Route("/rollover", func(r chi.Router) {
			r.Get("/", h.GetRollover)
			r.Post("/begin", h.BeginRollover)
			r.Get("/settlement", h.PreviewRolloverSettlement)
			r.Post("/settle", h.SettlePrevious)
			r.Post("/period", h.DefineRolloverPeriod)
			r.Post("/budgets", h.SetRolloverBudgets)
			r.Post("/allocations", h.AllocateRollover)
			r.Get("/plan", h.GetRolloverPlan)
			r.Post("/commit", h.CommitRollover)
			r.Post("/back", h.RolloverBack)
			r.Delete("/", h.CancelRollover)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
