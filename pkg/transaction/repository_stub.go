package transaction

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finbot-app/finbot/pkg/category"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RepositoryStub struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]Transaction
	// FailUpdate and FailStore make the matching write fail, to exercise rollbacks.
	FailUpdate error
	FailStore  error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{transactions: map[uuid.UUID]Transaction{}}
}

func (s *RepositoryStub) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make(map[uuid.UUID]Transaction, len(s.transactions))
	for id, t := range s.transactions {
		saved[id] = t
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.transactions = saved
	}
}

func (s *RepositoryStub) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = map[uuid.UUID]Transaction{}
	s.FailUpdate = nil
	s.FailStore = nil
}

func (s *RepositoryStub) Store(ctx context.Context, t Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailStore != nil {
		return Transaction{}, s.FailStore
	}
	if t.Id == uuid.Nil {
		t.Id = uuid.New()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.transactions[t.Id] = t
	return t, nil
}

func (s *RepositoryStub) Get(ctx context.Context, userId int, id uuid.UUID) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || t.UserId != userId {
		return Transaction{}, ErrTransactionNotFound
	}
	return t, nil
}

func (s *RepositoryStub) GetForUpdate(ctx context.Context, userId int, id uuid.UUID) (Transaction, error) {
	return s.Get(ctx, userId, id)
}

func (s *RepositoryStub) Update(ctx context.Context, t Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdate != nil {
		return Transaction{}, s.FailUpdate
	}
	stored, ok := s.transactions[t.Id]
	if !ok || stored.UserId != t.UserId {
		return Transaction{}, ErrTransactionNotFound
	}
	t.CreatedAt = stored.CreatedAt
	t.UpdatedAt = time.Now()
	s.transactions[t.Id] = t
	return t, nil
}

func (s *RepositoryStub) Delete(ctx context.Context, userId int, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || t.UserId != userId {
		return false, nil
	}
	delete(s.transactions, id)
	return true, nil
}

func (s *RepositoryStub) List(ctx context.Context, userId int, filter Filter) ([]Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []Transaction
	for _, t := range s.transactions {
		if t.UserId != userId {
			continue
		}
		if filter.Kind != nil && t.Kind != *filter.Kind {
			continue
		}
		if filter.Category != nil && t.Category != *filter.Category {
			continue
		}
		if filter.From != nil && t.Date.Before(period.Day(*filter.From)) {
			continue
		}
		if filter.To != nil && t.Date.After(period.Day(*filter.To)) {
			continue
		}
		matches = append(matches, t)
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].Date.Equal(matches[j].Date) {
			return matches[i].Date.After(matches[j].Date)
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	start := (filter.Page - 1) * filter.PageSize
	if start > len(matches) {
		start = len(matches)
	}
	end := start + filter.PageSize
	if end > len(matches) {
		end = len(matches)
	}
	return append([]Transaction{}, matches[start:end]...), len(matches), nil
}

func (s *RepositoryStub) inRange(userId int, from, to time.Time) []Transaction {
	var result []Transaction
	for _, t := range s.transactions {
		if t.UserId == userId && !t.Date.Before(from) && t.Date.Before(to) {
			result = append(result, t)
		}
	}
	return result
}

func (s *RepositoryStub) Totals(ctx context.Context, userId int, from, to time.Time) (Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sumTotals(s.inRange(userId, from, to)), nil
}

func (s *RepositoryStub) MonthlyTotals(ctx context.Context, userId int, from, to time.Time) (map[period.Month]Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byMonth := make(map[period.Month][]Transaction)
	for _, t := range s.inRange(userId, from, to) {
		m := period.MonthOf(t.Date)
		byMonth[m] = append(byMonth[m], t)
	}
	result := make(map[period.Month]Totals, len(byMonth))
	for m, ts := range byMonth {
		result[m] = sumTotals(ts)
	}
	return result, nil
}

func (s *RepositoryStub) ExpensesByCategory(ctx context.Context, userId int, from, to time.Time) ([]CategoryTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCategory := make(map[category.Category]*CategoryTotal)
	for _, t := range s.inRange(userId, from, to) {
		if !t.IsExpense() {
			continue
		}
		ct, ok := byCategory[t.Category]
		if !ok {
			ct = &CategoryTotal{Category: t.Category, Total: decimal.Zero}
			byCategory[t.Category] = ct
		}
		ct.Total = ct.Total.Add(t.Amount)
		ct.Count++
	}
	totals := make([]CategoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		totals = append(totals, *ct)
	}
	sort.Slice(totals, func(i, j int) bool {
		if !totals[i].Total.Equal(totals[j].Total) {
			return totals[i].Total.GreaterThan(totals[j].Total)
		}
		return totals[i].Category < totals[j].Category
	})
	return totals, nil
}

func (s *RepositoryStub) SumExpenses(ctx context.Context, userId int, key period.Key) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, to := key.Period().Bounds()
	sum := decimal.Zero
	for _, t := range s.inRange(userId, from, to) {
		if t.IsExpense() && t.Category == key.Category {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

func sumTotals(transactions []Transaction) Totals {
	totals := Totals{Income: decimal.Zero, Expenses: decimal.Zero}
	for _, t := range transactions {
		if t.IsExpense() {
			totals.Expenses = totals.Expenses.Add(t.Amount)
		} else {
			totals.Income = totals.Income.Add(t.Amount)
		}
		totals.Count++
	}
	return totals
}
