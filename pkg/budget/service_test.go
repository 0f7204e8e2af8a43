package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finbot-app/finbot/internal/apperr"
	"github.com/finbot-app/finbot/internal/clock"
	"github.com/finbot-app/finbot/internal/config"
	"github.com/finbot-app/finbot/internal/database"
	"github.com/finbot-app/finbot/internal/event_bus"
	"github.com/finbot-app/finbot/pkg/category"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/finbot-app/finbot/pkg/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = user.WithUser(context.Background(), user.User{Id: 1})

type expensesStub map[period.Key]decimal.Decimal

func (e expensesStub) SumExpenses(ctx context.Context, userId int, key period.Key) (decimal.Decimal, error) {
	return e[key], nil
}

type testEnv struct {
	service  *ServiceImpl
	repo     *RepositoryStub
	tx       *database.StubTxManager
	expenses expensesStub
	bus      *event_bus.EventBus
	clock    *clock.MockClock
}

func setup(t *testing.T) testEnv {
	repo := NewRepositoryStub()
	tx := database.NewStubTxManager(repo)
	expenses := expensesStub{}
	bus := event_bus.NewEventBus()
	mockClock := &clock.MockClock{FixedNow: time.Date(2024, time.March, 20, 10, 0, 0, 0, time.UTC)}
	service := NewService(repo, tx, expenses, bus, mockClock, config.Budget{YearFloor: 2020, AlertThreshold: 80})
	return testEnv{service: service, repo: repo, tx: tx, expenses: expenses, bus: bus, clock: mockClock}
}

func foodMarch() Settings {
	return Settings{Category: category.Food, Month: 3, Year: 2024, Limit: decimal.NewFromInt(500)}
}

func TestServiceImpl_SetBudget(t *testing.T) {
	t.Run("should compute spent from the ledger", func(t *testing.T) {
		env := setup(t)
		env.expenses[foodMarch().Key()] = decimal.RequireFromString("120.50")

		b, err := env.service.SetBudget(ctx, foodMarch())

		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("120.50").Equal(b.Spent))
		assert.Equal(t, 80, b.AlertThreshold)
		assert.Equal(t, 1, b.UserId)
		assert.NotEqual(t, uuid.Nil, b.Id)
	})

	t.Run("should be idempotent and recompute instead of accumulating", func(t *testing.T) {
		env := setup(t)
		env.expenses[foodMarch().Key()] = decimal.NewFromInt(200)

		first, err := env.service.SetBudget(ctx, foodMarch())
		require.NoError(t, err)
		second, err := env.service.SetBudget(ctx, foodMarch())
		require.NoError(t, err)

		assert.Equal(t, first.Id, second.Id)
		assert.True(t, first.Spent.Equal(second.Spent))
		budgets, _ := env.service.GetByMonth(ctx, period.Month{Month: 3, Year: 2024})
		assert.Len(t, budgets, 1)
	})

	t.Run("should heal drift and reset the notification flag", func(t *testing.T) {
		env := setup(t)
		created, err := env.service.SetBudget(ctx, foodMarch())
		require.NoError(t, err)
		_, _, err = env.repo.AdjustSpent(ctx, 1, created.Key(), decimal.NewFromInt(999))
		require.NoError(t, err)
		require.NoError(t, env.repo.MarkNotified(ctx, 1, created.Id))
		threshold := 50

		settings := foodMarch()
		settings.Limit = decimal.NewFromInt(600)
		settings.AlertThreshold = &threshold
		updated, err := env.service.SetBudget(ctx, settings)

		require.NoError(t, err)
		assert.True(t, updated.Spent.IsZero())
		assert.False(t, updated.NotificationSent)
		assert.Equal(t, 50, updated.AlertThreshold)
		assert.True(t, decimal.NewFromInt(600).Equal(updated.Limit))
	})

	t.Run("should reject invalid settings before writing", func(t *testing.T) {
		env := setup(t)
		tooHigh := 101
		tests := []struct {
			name     string
			settings Settings
			field    string
		}{
			{"income category", Settings{Category: category.Salary, Month: 3, Year: 2024, Limit: decimal.NewFromInt(1)}, "category"},
			{"unknown category", Settings{Category: "Pets", Month: 3, Year: 2024, Limit: decimal.NewFromInt(1)}, "category"},
			{"zero limit", Settings{Category: category.Food, Month: 3, Year: 2024, Limit: decimal.Zero}, "limit"},
			{"month 13", Settings{Category: category.Food, Month: 13, Year: 2024, Limit: decimal.NewFromInt(1)}, "month"},
			{"year before floor", Settings{Category: category.Food, Month: 1, Year: 2019, Limit: decimal.NewFromInt(1)}, "year"},
			{"year beyond 9999", Settings{Category: category.Food, Month: 1, Year: 40000, Limit: decimal.NewFromInt(1)}, "year"},
			{"sub-cent limit", Settings{Category: category.Food, Month: 3, Year: 2024, Limit: decimal.RequireFromString("100.005")}, "limit"},
			{"limit at ceiling", Settings{Category: category.Food, Month: 3, Year: 2024, Limit: MaxLimit}, "limit"},
			{"threshold", Settings{Category: category.Food, Month: 1, Year: 2024, Limit: decimal.NewFromInt(1), AlertThreshold: &tooHigh}, "alertThreshold"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := env.service.SetBudget(ctx, tt.settings)

				assert.ErrorIs(t, err, apperr.ErrValidation)
				var validationErr *apperr.ValidationError
				require.True(t, errors.As(err, &validationErr))
				assert.Equal(t, tt.field, validationErr.Field)
			})
		}
		assert.Zero(t, env.tx.Commits()+env.tx.Rollbacks())
	})

	t.Run("should publish ledger change", func(t *testing.T) {
		env := setup(t)
		var received []event_bus.LedgerChanged
		event_bus.SubscribeTyped[event_bus.LedgerChanged](env.bus, event_bus.LedgerChangedType,
			func(e event_bus.EventT[event_bus.LedgerChanged]) error {
				received = append(received, e.Data)
				return nil
			})

		_, err := env.service.SetBudget(ctx, foodMarch())

		require.NoError(t, err)
		assert.Equal(t, []event_bus.LedgerChanged{{UserId: 1, Source: "budget.set"}}, received)
	})

	t.Run("should return error when context has no user", func(t *testing.T) {
		env := setup(t)

		_, err := env.service.SetBudget(context.Background(), foodMarch())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get current user")
	})
}

func TestServiceImpl_AdjustSpent(t *testing.T) {
	t.Run("should be a no-op without a budget", func(t *testing.T) {
		env := setup(t)

		adjustment, err := env.service.AdjustSpent(ctx, 1, foodMarch().Key(), decimal.NewFromInt(10))

		require.NoError(t, err)
		assert.False(t, adjustment.Found)
		budgets, _ := env.service.GetByMonth(ctx, period.Month{Month: 3, Year: 2024})
		assert.Empty(t, budgets)
	})

	t.Run("should raise the alert once when crossing the threshold", func(t *testing.T) {
		env := setup(t)
		_, err := env.service.SetBudget(ctx, foodMarch())
		require.NoError(t, err)
		key := foodMarch().Key()

		below, err := env.service.AdjustSpent(ctx, 1, key, decimal.NewFromInt(399))
		require.NoError(t, err)
		crossing, err := env.service.AdjustSpent(ctx, 1, key, decimal.NewFromInt(1))
		require.NoError(t, err)
		after, err := env.service.AdjustSpent(ctx, 1, key, decimal.NewFromInt(50))
		require.NoError(t, err)

		assert.False(t, below.AlertRaised)
		assert.True(t, crossing.AlertRaised)
		assert.True(t, crossing.Budget.NotificationSent)
		assert.False(t, after.AlertRaised)
		stored, _, _ := env.repo.FindByKey(ctx, 1, key)
		assert.True(t, stored.NotificationSent)
		assert.True(t, decimal.NewFromInt(450).Equal(stored.Spent))
	})

	t.Run("should not alert on a decrease", func(t *testing.T) {
		env := setup(t)
		env.expenses[foodMarch().Key()] = decimal.NewFromInt(490)
		_, err := env.service.SetBudget(ctx, foodMarch())
		require.NoError(t, err)

		adjustment, err := env.service.AdjustSpent(ctx, 1, foodMarch().Key(), decimal.NewFromInt(-10))

		require.NoError(t, err)
		assert.False(t, adjustment.AlertRaised)
	})
}

func TestServiceImpl_PublishAlert(t *testing.T) {
	env := setup(t)
	var alerts []event_bus.BudgetAlert
	event_bus.SubscribeTyped[event_bus.BudgetAlert](env.bus, event_bus.BudgetAlertType,
		func(e event_bus.EventT[event_bus.BudgetAlert]) error {
			alerts = append(alerts, e.Data)
			return nil
		})
	AlertLogger(env.bus)
	b := Budget{Id: uuid.New(), UserId: 1, Category: category.Food, Month: 3, Year: 2024,
		Limit: decimal.NewFromInt(300), Spent: decimal.NewFromInt(250), AlertThreshold: 80}

	env.service.PublishAlert(ctx, b)

	require.Len(t, alerts, 1)
	assert.Equal(t, "Food", alerts[0].Category)
	assert.Equal(t, "83.33", alerts[0].PercentUsed.String())
}

func TestServiceImpl_GetCurrent(t *testing.T) {
	env := setup(t)
	_, err := env.service.SetBudget(ctx, Settings{Category: category.Rent, Month: 3, Year: 2024, Limit: decimal.NewFromInt(900)})
	require.NoError(t, err)
	_, err = env.service.SetBudget(ctx, foodMarch())
	require.NoError(t, err)
	_, err = env.service.SetBudget(ctx, Settings{Category: category.Food, Month: 4, Year: 2024, Limit: decimal.NewFromInt(10)})
	require.NoError(t, err)

	budgets, err := env.service.GetCurrent(ctx)

	require.NoError(t, err)
	require.Len(t, budgets, 2)
	assert.Equal(t, category.Food, budgets[0].Category)
	assert.Equal(t, category.Rent, budgets[1].Category)

	env.clock.SetNow(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC))
	budgets, err = env.service.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Empty(t, budgets)
}

func TestServiceImpl_Delete(t *testing.T) {
	t.Run("should delete own budget", func(t *testing.T) {
		env := setup(t)
		b, err := env.service.SetBudget(ctx, foodMarch())
		require.NoError(t, err)

		err = env.service.Delete(ctx, b.Id)

		require.NoError(t, err)
		_, found, _ := env.repo.FindByKey(ctx, 1, b.Key())
		assert.False(t, found)
	})

	t.Run("should not delete budget of another user", func(t *testing.T) {
		env := setup(t)
		b, err := env.service.SetBudget(ctx, foodMarch())
		require.NoError(t, err)
		otherCtx := user.WithUser(context.Background(), user.User{Id: 2})

		err = env.service.Delete(otherCtx, b.Id)

		assert.ErrorIs(t, err, ErrBudgetNotFound)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestServiceImpl_SetBudget_RollsBackOnFailure(t *testing.T) {
	env := setup(t)
	failing := &failingInsertRepo{RepositoryStub: env.repo}
	service := NewService(failing, env.tx, env.expenses, env.bus, env.clock, config.Budget{YearFloor: 2020, AlertThreshold: 80})

	_, err := service.SetBudget(ctx, foodMarch())

	assert.ErrorIs(t, err, apperr.ErrPersistence)
	assert.Equal(t, 1, env.tx.Rollbacks())
	budgets, _ := env.repo.ListForMonth(ctx, 1, period.Month{Month: 3, Year: 2024})
	assert.Empty(t, budgets)
}

type failingInsertRepo struct {
	*RepositoryStub
}

func (f *failingInsertRepo) Insert(ctx context.Context, budget Budget) (Budget, error) {
	if _, err := f.RepositoryStub.Insert(ctx, budget); err != nil {
		return Budget{}, err
	}
	return Budget{}, apperr.Persistence("insert budget", errors.New("connection reset"))
}
