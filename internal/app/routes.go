package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// User management
	r.HandleFunc("/api/user", deps.UserHandler.CreateUser).Methods("POST")
	r.HandleFunc("/api/user", deps.UserHandler.GetAvailableUsers).Methods("GET")
	r.HandleFunc("/api/user/name-availability", deps.UserHandler.IsUsernameAvailable).Methods("GET").Queries("username", "{username}")

	api := r.NewRoute().Subrouter()
	api.Use(requireUser)

	api.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")
	api.HandleFunc("/api/user/current", deps.UserHandler.UpdateUser).Methods("PUT")
	api.HandleFunc("/api/user/{userUid}", deps.UserHandler.DeleteUser).Methods("DELETE")

	// Transactions
	api.HandleFunc("/api/transactions", deps.TransactionHandler.Create).Methods("POST")
	api.HandleFunc("/api/transactions", deps.TransactionHandler.List).Methods("GET")
	api.HandleFunc("/api/transactions/{id}", deps.TransactionHandler.Get).Methods("GET")
	api.HandleFunc("/api/transactions/{id}", deps.TransactionHandler.Update).Methods("PUT")
	api.HandleFunc("/api/transactions/{id}", deps.TransactionHandler.Delete).Methods("DELETE")

	// Budgets
	api.HandleFunc("/api/budgets", deps.BudgetHandler.SetBudget).Methods("POST")
	api.HandleFunc("/api/budgets/current", deps.BudgetHandler.GetCurrent).Methods("GET")
	api.HandleFunc("/api/budgets/{year:[0-9]+}/{month:[0-9]+}", deps.BudgetHandler.GetByMonth).Methods("GET")
	api.HandleFunc("/api/budgets/{id}", deps.BudgetHandler.Delete).Methods("DELETE")

	// Analytics
	api.HandleFunc("/api/analytics/summary", deps.AnalyticsHandler.Summary).Methods("GET")
	api.HandleFunc("/api/analytics/trends", deps.AnalyticsHandler.Trends).Methods("GET")
	api.HandleFunc("/api/analytics/categories", deps.AnalyticsHandler.CategoryAnalysis).Methods("GET")
	api.HandleFunc("/api/analytics/budgets", deps.AnalyticsHandler.Performance).Methods("GET")

	// Snapshot for the assistant
	api.HandleFunc("/api/snapshot", deps.SnapshotHandler.Get).Methods("GET")
}
