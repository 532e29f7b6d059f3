package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/expenseflow/expense-approval/internal/approval"
	"github.com/expenseflow/expense-approval/internal/auth"
	"github.com/expenseflow/expense-approval/internal/expense"
	"github.com/expenseflow/expense-approval/internal/notification"
	"github.com/expenseflow/expense-approval/internal/organization"
	"github.com/expenseflow/expense-approval/internal/transport/middleware"
	"github.com/expenseflow/expense-approval/internal/transport/swagger"
	"github.com/expenseflow/expense-approval/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers collects every HTTP handler the router mounts. Nil entries are
// skipped so tests can wire a subset.
type Handlers struct {
	Auth         *auth.Handler
	User         *user.Handler
	Expense      *expense.Handler
	Approval     *approval.Handler
	Organization *organization.Handler
	Notification *notification.Handler
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if h.Auth != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", h.Auth.Login)
				sr.Post("/refresh", h.Auth.RefreshToken)
				sr.Post("/logout", h.Auth.Logout)
			})
		}

		if h.Auth == nil {
			return
		}

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)

				pr.Group(func(mr chi.Router) {
					mr.Use(auth.RequireManager(logger))
					mr.Get("/users", h.User.ListUsers)
				})

				pr.Group(func(ar chi.Router) {
					ar.Use(auth.RequireAdmin(logger))
					ar.Post("/users", h.User.CreateUser)
					ar.Patch("/users/{id}", h.User.UpdateUser)
				})
			}

			if h.Organization != nil {
				pr.Get("/organizations/{id}", h.Organization.GetOrganization)
				pr.Group(func(ar chi.Router) {
					ar.Use(auth.RequireAdmin(logger))
					ar.Post("/organizations", h.Organization.CreateOrganization)
				})
			}

			if h.Expense != nil {
				pr.Route("/expenses", func(er chi.Router) {
					er.Post("/", h.Expense.SubmitExpense)
					er.Get("/", h.Expense.GetMyExpenses)
					er.Get("/{id}", h.Expense.GetExpense)

					// Approval decisions require a manager or admin role,
					// membership on the rule is checked by the engine.
					er.Group(func(mr chi.Router) {
						mr.Use(auth.RequireManager(logger))
						mr.Get("/pending", h.Expense.GetPendingExpenses)
						mr.Get("/organization", h.Expense.GetOrganizationExpenses)
						if h.Approval != nil {
							mr.Patch("/{id}/approve", h.Approval.ApproveExpense)
							mr.Patch("/{id}/reject", h.Approval.RejectExpense)
						}
					})
				})
			}

			if h.Approval != nil {
				pr.Route("/approval-rules", func(rr chi.Router) {
					rr.Group(func(mr chi.Router) {
						mr.Use(auth.RequireManager(logger))
						mr.Get("/", h.Approval.ListRules)
						mr.Get("/{id}", h.Approval.GetRule)
					})
					rr.Group(func(ar chi.Router) {
						ar.Use(auth.RequireAdmin(logger))
						ar.Post("/", h.Approval.CreateRule)
						ar.Patch("/{id}", h.Approval.UpdateRule)
						ar.Delete("/{id}", h.Approval.DeleteRule)
					})
				})
			}

			if h.Notification != nil {
				pr.Get("/notifications", h.Notification.ListNotifications)
				pr.Patch("/notifications/{id}/read", h.Notification.MarkRead)
			}
		})
	})
}
