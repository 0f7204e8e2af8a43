package budget

import (
	"context"
	"fmt"

	"github.com/finbot-app/finbot/internal/clock"
	"github.com/finbot-app/finbot/internal/config"
	"github.com/finbot-app/finbot/internal/database"
	"github.com/finbot-app/finbot/internal/event_bus"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/finbot-app/finbot/pkg/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	SetBudget(ctx context.Context, settings Settings) (Budget, error)
	GetCurrent(ctx context.Context) ([]Budget, error)
	GetByMonth(ctx context.Context, month period.Month) ([]Budget, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ExpenseSummer totals the ledger's expenses for one period. The ledger store implements it.
type ExpenseSummer interface {
	SumExpenses(ctx context.Context, userId int, key period.Key) (decimal.Decimal, error)
}

type ServiceImpl struct {
	repo      Repository
	txManager database.TxManager
	expenses  ExpenseSummer
	eventBus  event_bus.Publisher
	clock     clock.Clock
	cfg       config.Budget
}

func NewService(
	repo Repository,
	txManager database.TxManager,
	expenses ExpenseSummer,
	eventBus event_bus.Publisher,
	clock clock.Clock,
	cfg config.Budget,
) *ServiceImpl {
	return &ServiceImpl{
		repo:      repo,
		txManager: txManager,
		expenses:  expenses,
		eventBus:  eventBus,
		clock:     clock,
		cfg:       cfg,
	}
}

// SetBudget creates or replaces the budget of a period. Spent is recomputed from the ledger,
// never carried over, and the notification flag starts cleared.
func (s *ServiceImpl) SetBudget(ctx context.Context, settings Settings) (Budget, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Budget{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := settings.Validate(s.cfg.YearFloor); err != nil {
		return Budget{}, err
	}
	threshold := s.cfg.AlertThreshold
	if settings.AlertThreshold != nil {
		threshold = *settings.AlertThreshold
	}
	key := settings.Key()

	var result Budget
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockPeriods(ctx, userId, []period.Key{key}); err != nil {
			return err
		}
		spent, err := s.expenses.SumExpenses(ctx, userId, key)
		if err != nil {
			return err
		}
		existing, found, err := s.repo.FindByKey(ctx, userId, key)
		if err != nil {
			return err
		}
		if found {
			existing.Limit = settings.Limit
			existing.AlertThreshold = threshold
			existing.Spent = spent
			result, err = s.repo.UpdateSettings(ctx, existing)
			return err
		}
		result, err = s.repo.Insert(ctx, Budget{
			UserId:         userId,
			Category:       settings.Category,
			Month:          settings.Month,
			Year:           settings.Year,
			Limit:          settings.Limit,
			Spent:          spent,
			AlertThreshold: threshold,
		})
		return err
	})
	if err != nil {
		return Budget{}, err
	}
	log.Debugf("budget %s set for user %d: limit %s, spent %s", key, userId, result.Limit, result.Spent)
	s.publishLedgerChanged(ctx, userId, "budget.set")
	return result, nil
}

func (s *ServiceImpl) GetCurrent(ctx context.Context) ([]Budget, error) {
	return s.GetByMonth(ctx, period.MonthOf(s.clock.Now()))
}

func (s *ServiceImpl) GetByMonth(ctx context.Context, month period.Month) ([]Budget, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := month.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListForMonth(ctx, userId, month)
}

func (s *ServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	deleted, err := s.repo.Delete(ctx, userId, id)
	if err != nil {
		return err
	}
	if !deleted {
		log.Warnf("budget not deleted, probably because it does not exist (%s) or the user (%d) is not the owner", id, userId)
		return ErrBudgetNotFound
	}
	s.publishLedgerChanged(ctx, userId, "budget.deleted")
	return nil
}

// LockPeriods must be called inside a unit of work before any AdjustSpent on the same keys.
func (s *ServiceImpl) LockPeriods(ctx context.Context, userId int, keys []period.Key) error {
	return s.repo.LockPeriods(ctx, userId, keys)
}

// AdjustSpent moves the spent total of the period's budget by delta. A period without a budget
// is left alone. When an increase crosses the alert threshold the budget is flagged in the
// same unit of work; publishing the alert is up to the caller, after commit.
func (s *ServiceImpl) AdjustSpent(ctx context.Context, userId int, key period.Key, delta decimal.Decimal) (Adjustment, error) {
	b, found, err := s.repo.AdjustSpent(ctx, userId, key, delta)
	if err != nil {
		return Adjustment{}, err
	}
	if !found {
		log.Tracef("no budget for %s (user %d), skipping adjustment", key, userId)
		return Adjustment{}, nil
	}
	adjustment := Adjustment{Budget: b, Found: true}
	if delta.IsPositive() && b.ShouldAlert() {
		if err := s.repo.MarkNotified(ctx, userId, b.Id); err != nil {
			return Adjustment{}, err
		}
		adjustment.Budget.NotificationSent = true
		adjustment.AlertRaised = true
	}
	return adjustment, nil
}

// PublishAlert announces a budget whose alert was raised by a committed adjustment.
func (s *ServiceImpl) PublishAlert(ctx context.Context, b Budget) {
	err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.BudgetAlertType, event_bus.BudgetAlert{
		UserId:      b.UserId,
		BudgetId:    b.Id.String(),
		Category:    string(b.Category),
		Month:       b.Month,
		Year:        b.Year,
		Limit:       b.Limit,
		Spent:       b.Spent,
		PercentUsed: b.PercentUsed().Round(2),
		Threshold:   b.AlertThreshold,
	}))
	if err != nil {
		log.Errorf("failed to publish budget alert for %s: %v", b.Id, err)
	}
}

// The write has already committed when this runs, so a failing subscriber is only logged.
func (s *ServiceImpl) publishLedgerChanged(ctx context.Context, userId int, source string) {
	err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.LedgerChangedType, event_bus.LedgerChanged{
		UserId: userId,
		Source: source,
	}))
	if err != nil {
		log.Errorf("failed to publish %s event: %v", source, err)
	}
}

// AlertLogger subscribes to budget alerts and logs them. It is the only consumer until
// notifications are delivered to users.
func AlertLogger(bus *event_bus.EventBus) (unsubscribe func()) {
	return event_bus.SubscribeTyped[event_bus.BudgetAlert](bus, event_bus.BudgetAlertType,
		func(e event_bus.EventT[event_bus.BudgetAlert]) error {
			log.WithFields(log.Fields{
				"userId":    e.Data.UserId,
				"budgetId":  e.Data.BudgetId,
				"category":  e.Data.Category,
				"period":    fmt.Sprintf("%04d-%02d", e.Data.Year, e.Data.Month),
				"spent":     e.Data.Spent.StringFixed(2),
				"limit":     e.Data.Limit.StringFixed(2),
				"threshold": e.Data.Threshold,
			}).Warnf("budget reached %s%% of its limit", e.Data.PercentUsed.String())
			return nil
		})
}
