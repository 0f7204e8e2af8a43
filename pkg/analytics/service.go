package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/finbot-app/finbot/internal/apperr"
	"github.com/finbot-app/finbot/internal/clock"
	"github.com/finbot-app/finbot/internal/config"
	"github.com/finbot-app/finbot/pkg/budget"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/finbot-app/finbot/pkg/transaction"
	"github.com/finbot-app/finbot/pkg/user"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const MaxTrendMonths = 24

type Service interface {
	// Summary reports on month. A zero Month or Year is taken from the current month.
	Summary(ctx context.Context, month period.Month) (Summary, error)
	// Trends covers monthsBack months; zero means the configured default.
	Trends(ctx context.Context, monthsBack int) (Trends, error)
	// CategoryAnalysis breaks down spending between two inclusive dates. A nil to means today and
	// a nil from goes back the configured number of months from to.
	CategoryAnalysis(ctx context.Context, from, to *time.Time) ([]CategoryStats, error)
	Performance(ctx context.Context) (Performance, error)
}

// LedgerReader is the read side of the transaction store.
type LedgerReader interface {
	Totals(ctx context.Context, userId int, from, to time.Time) (transaction.Totals, error)
	MonthlyTotals(ctx context.Context, userId int, from, to time.Time) (map[period.Month]transaction.Totals, error)
	ExpensesByCategory(ctx context.Context, userId int, from, to time.Time) ([]transaction.CategoryTotal, error)
}

type BudgetReader interface {
	ListForMonth(ctx context.Context, userId int, month period.Month) ([]budget.Budget, error)
}

type ServiceImpl struct {
	ledger  LedgerReader
	budgets BudgetReader
	cache   *TrendsCache
	clock   clock.Clock
	cfg     config.Analytics
}

func NewService(ledger LedgerReader, budgets BudgetReader, cache *TrendsCache, clock clock.Clock, cfg config.Analytics) *ServiceImpl {
	return &ServiceImpl{
		ledger:  ledger,
		budgets: budgets,
		cache:   cache,
		clock:   clock,
		cfg:     cfg,
	}
}

func (s *ServiceImpl) currentMonth() period.Month {
	return period.MonthOf(s.clock.Now())
}

func (s *ServiceImpl) Summary(ctx context.Context, month period.Month) (Summary, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to get current user: %w", err)
	}
	current := s.currentMonth()
	if month.Month == 0 {
		month.Month = current.Month
	}
	if month.Year == 0 {
		month.Year = current.Year
	}
	if err := month.Validate(); err != nil {
		return Summary{}, err
	}
	from, to := month.Bounds()

	var (
		totals     transaction.Totals
		categories []transaction.CategoryTotal
		budgets    []budget.Budget
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.ledger.Totals(gctx, userId, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.ledger.ExpensesByCategory(gctx, userId, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		budgets, err = s.budgets.ListForMonth(gctx, userId, month)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	return Summary{
		Month:      month,
		Stats:      NewMonthlyStats(month, totals),
		Categories: Breakdown(categories),
		Budgets:    budgets,
	}, nil
}

// Trends reports the trailing monthsBack months up to and including the current one. Months
// without any transaction count as zero.
func (s *ServiceImpl) Trends(ctx context.Context, monthsBack int) (Trends, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Trends{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if monthsBack == 0 {
		monthsBack = s.cfg.TrendMonths
	}
	if monthsBack < 1 || monthsBack > MaxTrendMonths {
		return Trends{}, apperr.Invalid("months", fmt.Sprintf("must be between 1 and %d", MaxTrendMonths))
	}

	current := s.currentMonth()
	key := s.cache.Key(userId, current, monthsBack)
	if cached, ok := s.cache.Get(key); ok {
		log.Tracef("trends for user %d served from cache", userId)
		return cached, nil
	}

	months := period.Trailing(s.clock.Now(), monthsBack)
	from, _ := months[0].Bounds()
	_, to := months[len(months)-1].Bounds()
	byMonth, err := s.ledger.MonthlyTotals(ctx, userId, from, to)
	if err != nil {
		return Trends{}, err
	}
	totals := make([]transaction.Totals, len(months))
	for i, m := range months {
		totals[i] = byMonth[m]
	}

	trends := NewTrends(months, totals)
	s.cache.Set(key, trends)
	return trends, nil
}

func (s *ServiceImpl) CategoryAnalysis(ctx context.Context, from, to *time.Time) ([]CategoryStats, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	end := period.Day(s.clock.Now())
	if to != nil {
		end = period.Day(*to)
	}
	start := end.AddDate(0, -s.cfg.CategoryMonths, 0)
	if from != nil {
		start = period.Day(*from)
	}
	if start.After(end) {
		return nil, apperr.Invalid("from", "must not be after to")
	}

	totals, err := s.ledger.ExpensesByCategory(ctx, userId, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return Breakdown(totals), nil
}

// Performance measures the budgets of the current month against spending recomputed from the
// ledger.
func (s *ServiceImpl) Performance(ctx context.Context) (Performance, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Performance{}, fmt.Errorf("failed to get current user: %w", err)
	}
	month := s.currentMonth()
	from, to := month.Bounds()

	var (
		budgets  []budget.Budget
		spending []transaction.CategoryTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budgets, err = s.budgets.ListForMonth(gctx, userId, month)
		return err
	})
	g.Go(func() error {
		var err error
		spending, err = s.ledger.ExpensesByCategory(gctx, userId, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return Performance{}, err
	}
	return NewPerformance(month, budgets, spending), nil
}
