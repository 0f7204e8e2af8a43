package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finbot-app/finbot/internal/apperr"
	"github.com/finbot-app/finbot/internal/clock"
	"github.com/finbot-app/finbot/internal/config"
	"github.com/finbot-app/finbot/internal/event_bus"
	"github.com/finbot-app/finbot/pkg/budget"
	"github.com/finbot-app/finbot/pkg/category"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/finbot-app/finbot/pkg/transaction"
	"github.com/finbot-app/finbot/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = user.WithUser(context.Background(), user.User{Id: 1})

var analyticsConfig = config.Analytics{
	TrendMonths:    6,
	CategoryMonths: 3,
	Cache:          config.Cache{Enabled: true, NumCounters: 1000, MaxCost: 100, TTL: time.Minute},
}

type testEnv struct {
	service *ServiceImpl
	ledger  *transaction.RepositoryStub
	budgets *budget.RepositoryStub
	cache   *TrendsCache
	bus     *event_bus.EventBus
	clock   *clock.MockClock
}

func setup(t *testing.T) testEnv {
	ledger := transaction.NewRepositoryStub()
	budgets := budget.NewRepositoryStub()
	cache, err := NewTrendsCache(analyticsConfig.Cache)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	bus := event_bus.NewEventBus()
	cache.InvalidateOnLedgerChange(bus)
	mockClock := &clock.MockClock{FixedNow: time.Date(2024, time.March, 20, 15, 0, 0, 0, time.UTC)}
	service := NewService(ledger, budgets, cache, mockClock, analyticsConfig)
	return testEnv{service, ledger, budgets, cache, bus, mockClock}
}

func (env testEnv) store(t *testing.T, userId int, kind transaction.Kind, c category.Category, amount string, date time.Time) {
	t.Helper()
	_, err := env.ledger.Store(ctx, transaction.Transaction{
		UserId: userId, Kind: kind, Amount: d(amount), Category: c, Date: date,
	})
	require.NoError(t, err)
}

func (env testEnv) insertBudget(t *testing.T, c category.Category, month period.Month, limit, cachedSpent string) {
	t.Helper()
	_, err := env.budgets.Insert(ctx, budget.Budget{
		UserId: 1, Category: c, Month: month.Month, Year: month.Year, Limit: d(limit), Spent: d(cachedSpent), AlertThreshold: 80,
	})
	require.NoError(t, err)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func seedSixMonths(t *testing.T, env testEnv) {
	months := period.Trailing(env.clock.Now(), 6)
	for i, e := range []string{"100", "120", "90", "200", "210", "220"} {
		start, _ := months[i].Bounds()
		env.store(t, 1, transaction.Income, category.Salary, "1000", start)
		env.store(t, 1, transaction.Expense, category.Groceries, e, start.AddDate(0, 0, 14))
	}
}

func TestServiceImpl_Trends(t *testing.T) {
	env := setup(t)
	seedSixMonths(t, env)
	env.store(t, 2, transaction.Expense, category.Groceries, "5000", date(2024, 3, 1))

	trends, err := env.service.Trends(ctx, 6)

	require.NoError(t, err)
	require.Len(t, trends.Months, 6)
	assert.Equal(t, period.Month{Month: 10, Year: 2023}, trends.Months[0].Month)
	assert.Equal(t, period.Month{Month: 3, Year: 2024}, trends.Months[5].Month)
	assert.Equal(t, "156.67", trends.Averages.Expenses.String())
	assert.Equal(t, Increasing, trends.Trend.Direction)
	assert.Equal(t, "103.23", trends.Trend.ChangePercent.String())
}

func TestServiceImpl_Trends_DefaultsAndLimits(t *testing.T) {
	env := setup(t)

	trends, err := env.service.Trends(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, trends.Months, 6)
	for _, m := range trends.Months {
		assert.True(t, m.Expenses.IsZero())
	}

	_, err = env.service.Trends(ctx, -1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = env.service.Trends(ctx, 25)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	trends, err = env.service.Trends(ctx, 24)
	require.NoError(t, err)
	assert.Len(t, trends.Months, 24)
}

func TestServiceImpl_Trends_CachedUntilLedgerChanges(t *testing.T) {
	env := setup(t)
	env.store(t, 1, transaction.Expense, category.Food, "10", date(2024, 3, 1))

	first, err := env.service.Trends(ctx, 3)
	require.NoError(t, err)
	env.cache.Wait()
	env.store(t, 1, transaction.Expense, category.Food, "90", date(2024, 3, 2))

	cached, err := env.service.Trends(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, first.Months[2].Expenses.String(), cached.Months[2].Expenses.String())

	require.NoError(t, env.bus.Publish(event_bus.NewEvent(ctx, event_bus.LedgerChangedType,
		event_bus.LedgerChanged{UserId: 1, Source: "transaction.created"})))

	fresh, err := env.service.Trends(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "100", fresh.Months[2].Expenses.String())
}

func TestServiceImpl_Summary(t *testing.T) {
	env := setup(t)
	march := period.Month{Month: 3, Year: 2024}
	env.store(t, 1, transaction.Income, category.Salary, "2000", date(2024, 3, 1))
	env.store(t, 1, transaction.Expense, category.Food, "300", date(2024, 3, 2))
	env.store(t, 1, transaction.Expense, category.Rent, "700", date(2024, 3, 3))
	env.store(t, 1, transaction.Expense, category.Food, "200", date(2024, 3, 31))
	env.store(t, 1, transaction.Expense, category.Food, "999", date(2024, 4, 1))
	env.insertBudget(t, category.Food, march, "600", "500")

	t.Run("defaults to the current month", func(t *testing.T) {
		summary, err := env.service.Summary(ctx, period.Month{})

		require.NoError(t, err)
		assert.Equal(t, march, summary.Month)
		assert.Equal(t, "2000", summary.Stats.Income.String())
		assert.Equal(t, "1200", summary.Stats.Expenses.String())
		assert.Equal(t, "800", summary.Stats.Savings.String())
		assert.Equal(t, "40", summary.Stats.SavingsRate.String())
		assert.Equal(t, 4, summary.Stats.TransactionCount)
		require.Len(t, summary.Categories, 2)
		assert.Equal(t, category.Rent, summary.Categories[0].Category)
		assert.Equal(t, "58.33", summary.Categories[0].Percentage.String())
		assert.Equal(t, "41.67", summary.Categories[1].Percentage.String())
		require.Len(t, summary.Budgets, 1)
	})

	t.Run("explicit month", func(t *testing.T) {
		summary, err := env.service.Summary(ctx, period.Month{Month: 4, Year: 2024})

		require.NoError(t, err)
		assert.Equal(t, "999", summary.Stats.Expenses.String())
		assert.Empty(t, summary.Budgets)
	})

	t.Run("invalid month", func(t *testing.T) {
		_, err := env.service.Summary(ctx, period.Month{Month: 13, Year: 2024})

		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("invalid year", func(t *testing.T) {
		for _, year := range []int{-1, 10000, 40000} {
			_, err := env.service.Summary(ctx, period.Month{Month: 1, Year: year})

			assert.ErrorIs(t, err, apperr.ErrValidation, year)
		}
	})
}

type failingLedger struct {
	LedgerReader
}

func (failingLedger) Totals(ctx context.Context, userId int, from, to time.Time) (transaction.Totals, error) {
	return transaction.Totals{}, apperr.Persistence("sum transactions", errors.New("connection refused"))
}

func TestServiceImpl_Summary_PropagatesReadFailure(t *testing.T) {
	env := setup(t)
	service := NewService(failingLedger{env.ledger}, env.budgets, nil, env.clock, analyticsConfig)

	_, err := service.Summary(ctx, period.Month{})

	assert.ErrorIs(t, err, apperr.ErrPersistence)
}

func TestServiceImpl_CategoryAnalysis(t *testing.T) {
	env := setup(t)
	env.store(t, 1, transaction.Expense, category.Food, "300", date(2023, 12, 19))
	env.store(t, 1, transaction.Expense, category.Food, "50", date(2023, 12, 20))
	env.store(t, 1, transaction.Expense, category.Rent, "700", date(2024, 3, 20))
	env.store(t, 1, transaction.Expense, category.Food, "200", date(2024, 2, 1))
	env.store(t, 1, transaction.Income, category.Gift, "200", date(2024, 2, 1))

	t.Run("defaults to the trailing three months including today", func(t *testing.T) {
		stats, err := env.service.CategoryAnalysis(ctx, nil, nil)

		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, category.Rent, stats[0].Category)
		assert.Equal(t, "250", stats[1].Total.String())
		assert.Equal(t, 2, stats[1].Count)
	})

	t.Run("explicit inclusive range", func(t *testing.T) {
		from, to := date(2024, 2, 1), date(2024, 2, 1)

		stats, err := env.service.CategoryAnalysis(ctx, &from, &to)

		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, "100", stats[0].Percentage.String())
	})

	t.Run("empty range", func(t *testing.T) {
		from, to := date(2020, 1, 1), date(2020, 1, 31)

		stats, err := env.service.CategoryAnalysis(ctx, &from, &to)

		require.NoError(t, err)
		assert.Empty(t, stats)
	})

	t.Run("reversed range", func(t *testing.T) {
		from, to := date(2024, 2, 2), date(2024, 2, 1)

		_, err := env.service.CategoryAnalysis(ctx, &from, &to)

		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestServiceImpl_Performance_RecomputesSpent(t *testing.T) {
	env := setup(t)
	march := period.Month{Month: 3, Year: 2024}
	env.insertBudget(t, category.Food, march, "500", "12345")
	env.insertBudget(t, category.Rent, march, "1000", "0")
	env.insertBudget(t, category.Food, period.Month{Month: 2, Year: 2024}, "500", "0")
	env.store(t, 1, transaction.Expense, category.Food, "120", date(2024, 3, 10))
	env.store(t, 1, transaction.Expense, category.Food, "80", date(2024, 3, 15))
	env.store(t, 1, transaction.Expense, category.Rent, "1000", date(2024, 3, 1))

	performance, err := env.service.Performance(ctx)

	require.NoError(t, err)
	assert.Equal(t, march, performance.Month)
	require.Len(t, performance.Budgets, 2)
	food := performance.Budgets[0]
	assert.Equal(t, category.Food, food.Budget.Category)
	assert.Equal(t, "200", food.Spent.String())
	assert.Equal(t, "40", food.PercentUsed.String())
	assert.Equal(t, OnTrack, food.Status)
	assert.Equal(t, Exceeded, performance.Budgets[1].Status)
	assert.Equal(t, "1200", performance.Overall.TotalSpent.String())
}
