package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/finbot-app/finbot/internal/clock"
	"github.com/finbot-app/finbot/internal/config"
	"github.com/finbot-app/finbot/pkg/analytics"
	"github.com/finbot-app/finbot/pkg/budget"
	"github.com/finbot-app/finbot/pkg/category"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/finbot-app/finbot/pkg/transaction"
	"github.com/finbot-app/finbot/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Builder interface {
	Build(ctx context.Context) (Snapshot, error)
}

type LedgerReader interface {
	Totals(ctx context.Context, userId int, from, to time.Time) (transaction.Totals, error)
	ExpensesByCategory(ctx context.Context, userId int, from, to time.Time) ([]transaction.CategoryTotal, error)
	List(ctx context.Context, userId int, filter transaction.Filter) ([]transaction.Transaction, int, error)
}

type BuilderImpl struct {
	ledger  LedgerReader
	budgets analytics.BudgetReader
	users   user.Provider
	clock   clock.Clock
	cfg     config.Snapshot
}

func NewBuilder(ledger LedgerReader, budgets analytics.BudgetReader, users user.Provider, clock clock.Clock, cfg config.Snapshot) *BuilderImpl {
	return &BuilderImpl{
		ledger:  ledger,
		budgets: budgets,
		users:   users,
		clock:   clock,
		cfg:     cfg,
	}
}

// Build reads the current month of the ledger and the budget store in parallel and combines
// them with the user's declared income.
func (b *BuilderImpl) Build(ctx context.Context) (Snapshot, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get current user: %w", err)
	}
	now := b.clock.Now()
	month := period.MonthOf(now)
	from, to := month.Bounds()
	lastDay := to.AddDate(0, 0, -1)

	var (
		profile  user.User
		totals   transaction.Totals
		spending []transaction.CategoryTotal
		budgets  []budget.Budget
		recent   []transaction.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = b.users.GetCurrentUser(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = b.ledger.Totals(gctx, userId, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		spending, err = b.ledger.ExpensesByCategory(gctx, userId, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = b.budgets.ListForMonth(gctx, userId, month)
		return err
	})
	g.Go(func() error {
		var err error
		recent, _, err = b.ledger.List(gctx, userId, transaction.Filter{From: &from, To: &lastDay, Page: 1, PageSize: b.cfg.Recent})
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	byCategory := make(map[category.Category]decimal.Decimal, len(spending))
	for _, s := range spending {
		byCategory[s.Category] = s.Total.Round(2)
	}
	log.Debugf("built snapshot for user %d: %d transactions, %d budgets", userId, totals.Count, len(budgets))

	return Snapshot{
		Month:              month,
		GeneratedAt:        now,
		Totals:             analytics.NewMonthlyStats(month, totals),
		SpendingByCategory: byCategory,
		TopCategories:      topCategories(analytics.Breakdown(spending), b.cfg.TopCategories),
		Budgets:            analytics.NewPerformance(month, budgets, spending).Budgets,
		Recent:             recent,
		User: UserInfo{
			MonthlyIncome: profile.MonthlyIncome.Round(2),
			Currency:      profile.Currency,
		},
	}, nil
}
