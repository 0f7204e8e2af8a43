package budget

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finbot-app/finbot/pkg/period"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RepositoryStub struct {
	mu      sync.Mutex
	budgets map[uuid.UUID]Budget
	// FailAdjust makes AdjustSpent fail, to exercise rollbacks.
	FailAdjust error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{budgets: map[uuid.UUID]Budget{}}
}

func (s *RepositoryStub) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := make(map[uuid.UUID]Budget, len(s.budgets))
	for id, b := range s.budgets {
		saved[id] = b
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.budgets = saved
	}
}

func (s *RepositoryStub) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets = map[uuid.UUID]Budget{}
	s.FailAdjust = nil
}

func (s *RepositoryStub) LockPeriods(ctx context.Context, userId int, keys []period.Key) error {
	return nil
}

func (s *RepositoryStub) FindByKey(ctx context.Context, userId int, key period.Key) (Budget, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.findByKey(userId, key)
	return b, ok, nil
}

func (s *RepositoryStub) findByKey(userId int, key period.Key) (Budget, bool) {
	for _, b := range s.budgets {
		if b.UserId == userId && b.Key() == key {
			return b, true
		}
	}
	return Budget{}, false
}

func (s *RepositoryStub) Get(ctx context.Context, userId int, id uuid.UUID) (Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.UserId != userId {
		return Budget{}, ErrBudgetNotFound
	}
	return b, nil
}

func (s *RepositoryStub) Insert(ctx context.Context, budget Budget) (Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.findByKey(budget.UserId, budget.Key()); exists {
		return Budget{}, ErrBudgetConflict
	}
	if budget.Id == uuid.Nil {
		budget.Id = uuid.New()
	}
	now := time.Now()
	budget.CreatedAt = now
	budget.UpdatedAt = now
	s.budgets[budget.Id] = budget
	return budget, nil
}

func (s *RepositoryStub) UpdateSettings(ctx context.Context, budget Budget) (Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.budgets[budget.Id]
	if !ok || stored.UserId != budget.UserId {
		return Budget{}, ErrBudgetNotFound
	}
	stored.Limit = budget.Limit
	stored.Spent = budget.Spent
	stored.AlertThreshold = budget.AlertThreshold
	stored.NotificationSent = false
	stored.UpdatedAt = time.Now()
	s.budgets[stored.Id] = stored
	return stored, nil
}

func (s *RepositoryStub) AdjustSpent(ctx context.Context, userId int, key period.Key, delta decimal.Decimal) (Budget, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAdjust != nil {
		return Budget{}, false, s.FailAdjust
	}
	b, ok := s.findByKey(userId, key)
	if !ok {
		return Budget{}, false, nil
	}
	b.Spent = b.Spent.Add(delta)
	b.UpdatedAt = time.Now()
	s.budgets[b.Id] = b
	return b, true, nil
}

func (s *RepositoryStub) MarkNotified(ctx context.Context, userId int, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.UserId != userId {
		return nil
	}
	b.NotificationSent = true
	s.budgets[id] = b
	return nil
}

func (s *RepositoryStub) ListForMonth(ctx context.Context, userId int, month period.Month) ([]Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	budgets := make([]Budget, 0)
	for _, b := range s.budgets {
		if b.UserId == userId && b.Period() == month {
			budgets = append(budgets, b)
		}
	}
	sort.Slice(budgets, func(i, j int) bool { return budgets[i].Category < budgets[j].Category })
	return budgets, nil
}

func (s *RepositoryStub) Delete(ctx context.Context, userId int, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.UserId != userId {
		return false, nil
	}
	delete(s.budgets, id)
	return true, nil
}
