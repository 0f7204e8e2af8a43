package app

import (
	"github.com/finbot-app/finbot/internal/clock"
	"github.com/finbot-app/finbot/internal/config"
	"github.com/finbot-app/finbot/internal/database"
	"github.com/finbot-app/finbot/internal/event_bus"
	"github.com/finbot-app/finbot/pkg/analytics"
	"github.com/finbot-app/finbot/pkg/budget"
	"github.com/finbot-app/finbot/pkg/snapshot"
	"github.com/finbot-app/finbot/pkg/transaction"
	"github.com/finbot-app/finbot/pkg/user"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock     clock.Clock
	EventBus  *event_bus.EventBus
	TxManager database.TxManager

	UserService user.Service
	UserHandler *user.Handler

	TransactionRepo    *transaction.RepositoryImpl
	TransactionService *transaction.ServiceImpl
	TransactionHandler *transaction.Handler

	BudgetRepo    *budget.RepositoryImpl
	BudgetService *budget.ServiceImpl
	BudgetHandler *budget.Handler

	TrendsCache       *analytics.TrendsCache
	AnalyticsService  *analytics.ServiceImpl
	CsvTrendsRenderer *analytics.CsvTrendsRendererImpl
	AnalyticsHandler  *analytics.Handler
	SnapshotBuilder   *snapshot.BuilderImpl
	SnapshotHandler   *snapshot.Handler
	unsubscribeAll    []func()
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) (*Dependencies, error) {
	deps := &Dependencies{}

	deps.Clock = clock.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()
	deps.TxManager = database.NewTxManager(db)

	userService := user.NewUserService(user.NewUserRepo(db))
	deps.UserService = userService
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.TransactionRepo = transaction.NewRepository(db)
	deps.BudgetRepo = budget.NewRepository(db)

	deps.BudgetService = budget.NewService(deps.BudgetRepo, deps.TxManager, deps.TransactionRepo, deps.EventBus, deps.Clock, cfg.Budget)
	deps.BudgetHandler = budget.NewHandler(deps.BudgetService)

	deps.TransactionService = transaction.NewService(deps.TransactionRepo, deps.BudgetService, deps.TxManager, deps.EventBus, deps.Clock, cfg.Transactions)
	deps.TransactionHandler = transaction.NewHandler(deps.TransactionService)

	cache, err := analytics.NewTrendsCache(cfg.Analytics.Cache)
	if err != nil {
		return nil, err
	}
	deps.TrendsCache = cache
	deps.AnalyticsService = analytics.NewService(deps.TransactionRepo, deps.BudgetRepo, deps.TrendsCache, deps.Clock, cfg.Analytics)
	deps.CsvTrendsRenderer = analytics.NewCsvTrendsRenderer()
	deps.AnalyticsHandler = analytics.NewHandler(deps.AnalyticsService, deps.CsvTrendsRenderer)

	deps.SnapshotBuilder = snapshot.NewBuilder(deps.TransactionRepo, deps.BudgetRepo, userService, deps.Clock, cfg.Snapshot)
	deps.SnapshotHandler = snapshot.NewHandler(deps.SnapshotBuilder)

	deps.unsubscribeAll = append(deps.unsubscribeAll,
		budget.AlertLogger(deps.EventBus),
		deps.TrendsCache.InvalidateOnLedgerChange(deps.EventBus),
	)

	return deps, nil
}

// Close detaches event subscribers and releases the cache.
func (d *Dependencies) Close() {
	for _, unsubscribe := range d.unsubscribeAll {
		unsubscribe()
	}
	d.TrendsCache.Close()
}
