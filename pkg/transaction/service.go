package transaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/finbot-app/finbot/internal/apperr"
	"github.com/finbot-app/finbot/internal/clock"
	"github.com/finbot-app/finbot/internal/config"
	"github.com/finbot-app/finbot/internal/database"
	"github.com/finbot-app/finbot/internal/event_bus"
	"github.com/finbot-app/finbot/pkg/budget"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/finbot-app/finbot/pkg/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	Create(ctx context.Context, t Transaction) (Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (Transaction, error)
	List(ctx context.Context, filter Filter) (Page, error)
	Update(ctx context.Context, id uuid.UUID, update Update) (Transaction, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// BudgetSynchronizer is the part of the budget service that keeps spent totals in step with
// ledger writes.
type BudgetSynchronizer interface {
	LockPeriods(ctx context.Context, userId int, keys []period.Key) error
	AdjustSpent(ctx context.Context, userId int, key period.Key, delta decimal.Decimal) (budget.Adjustment, error)
	PublishAlert(ctx context.Context, b budget.Budget)
}

type ServiceImpl struct {
	repo      Repository
	budgets   BudgetSynchronizer
	txManager database.TxManager
	eventBus  event_bus.Publisher
	clock     clock.Clock
	cfg       config.Transactions
}

func NewService(
	repo Repository,
	budgets BudgetSynchronizer,
	txManager database.TxManager,
	eventBus event_bus.Publisher,
	clock clock.Clock,
	cfg config.Transactions,
) *ServiceImpl {
	return &ServiceImpl{
		repo:      repo,
		budgets:   budgets,
		txManager: txManager,
		eventBus:  eventBus,
		clock:     clock,
		cfg:       cfg,
	}
}

// Create stores t and, for an expense, adds its amount to the budget of its period.
// A missing date means today.
func (s *ServiceImpl) Create(ctx context.Context, t Transaction) (Transaction, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to get current user: %w", err)
	}
	t.Id = uuid.Nil
	t.UserId = userId
	if t.Date.IsZero() {
		t.Date = s.clock.Now()
	}
	t.Date = period.Day(t.Date)
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}

	var created Transaction
	var alerts []budget.Budget
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		if alerts, err = s.applyDeltas(ctx, userId, budgetDeltas(nil, &t)); err != nil {
			return err
		}
		created, err = s.repo.Store(ctx, t)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	log.Debugf("created %s transaction %s for user %d", created.Kind, created.Id, userId)
	s.afterCommit(ctx, userId, "transaction.created", alerts)
	return created, nil
}

func (s *ServiceImpl) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.Get(ctx, userId, id)
}

func (s *ServiceImpl) List(ctx context.Context, filter Filter) (Page, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Page > MaxPage {
		return Page{}, apperr.Invalid("page", fmt.Sprintf("must not exceed %d", MaxPage))
	}
	if filter.PageSize < 1 {
		filter.PageSize = s.cfg.PageSize
	}
	if filter.PageSize > s.cfg.MaxPageSize {
		filter.PageSize = s.cfg.MaxPageSize
	}
	if filter.From != nil && filter.To != nil && period.Day(*filter.From).After(period.Day(*filter.To)) {
		return Page{}, apperr.Invalid("from", "must not be after to")
	}

	items, total, err := s.repo.List(ctx, userId, filter)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, Page: filter.Page, PageSize: filter.PageSize, Total: total}, nil
}

// Update merges update into the stored transaction. Budgets of the old and the new period are
// reconciled in the same unit of work as the ledger write.
func (s *ServiceImpl) Update(ctx context.Context, id uuid.UUID, update Update) (Transaction, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := update.Validate(); err != nil {
		return Transaction{}, err
	}

	var updated Transaction
	var alerts []budget.Budget
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, userId, id)
		if err != nil {
			return err
		}
		merged := update.ApplyTo(current)
		if err := merged.Validate(); err != nil {
			return err
		}
		if alerts, err = s.applyDeltas(ctx, userId, budgetDeltas(&current, &merged)); err != nil {
			return err
		}
		updated, err = s.repo.Update(ctx, merged)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	log.Debugf("updated transaction %s for user %d", id, userId)
	s.afterCommit(ctx, userId, "transaction.updated", alerts)
	return updated, nil
}

// Delete removes the transaction and takes an expense back out of its period's budget.
func (s *ServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetForUpdate(ctx, userId, id)
		if err != nil {
			return err
		}
		if _, err := s.applyDeltas(ctx, userId, budgetDeltas(&current, nil)); err != nil {
			return err
		}
		deleted, err := s.repo.Delete(ctx, userId, id)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrTransactionNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			log.Warnf("transaction not deleted, probably because it does not exist (%s) or the user (%d) is not the owner", id, userId)
		}
		return err
	}
	s.afterCommit(ctx, userId, "transaction.deleted", nil)
	return nil
}

// applyDeltas locks every affected period, then applies the deltas in order. It returns the
// budgets whose alert was raised.
func (s *ServiceImpl) applyDeltas(ctx context.Context, userId int, deltas []delta) ([]budget.Budget, error) {
	if len(deltas) == 0 {
		return nil, nil
	}
	if err := s.budgets.LockPeriods(ctx, userId, deltaKeys(deltas)); err != nil {
		return nil, err
	}
	var alerts []budget.Budget
	for _, d := range deltas {
		adjustment, err := s.budgets.AdjustSpent(ctx, userId, d.key, d.amount)
		if err != nil {
			return nil, err
		}
		if adjustment.AlertRaised {
			alerts = append(alerts, adjustment.Budget)
		}
	}
	return alerts, nil
}

func (s *ServiceImpl) afterCommit(ctx context.Context, userId int, source string, alerts []budget.Budget) {
	for _, b := range alerts {
		s.budgets.PublishAlert(ctx, b)
	}
	err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.LedgerChangedType, event_bus.LedgerChanged{
		UserId: userId,
		Source: source,
	}))
	if err != nil {
		log.Errorf("failed to publish %s event: %v", source, err)
	}
}
