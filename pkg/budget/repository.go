package budget

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/finbot-app/finbot/internal/apperr"
	"github.com/finbot-app/finbot/internal/database"
	"github.com/finbot-app/finbot/pkg/category"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// periodLockNamespace is the first key of the advisory locks guarding budget periods.
const periodLockNamespace int32 = 7301

type Repository interface {
	// LockPeriods blocks until the caller holds every period lock for the current unit of work.
	LockPeriods(ctx context.Context, userId int, keys []period.Key) error
	FindByKey(ctx context.Context, userId int, key period.Key) (Budget, bool, error)
	Get(ctx context.Context, userId int, id uuid.UUID) (Budget, error)
	Insert(ctx context.Context, budget Budget) (Budget, error)
	// UpdateSettings overwrites limit, threshold and spent, and clears the notification flag.
	UpdateSettings(ctx context.Context, budget Budget) (Budget, error)
	AdjustSpent(ctx context.Context, userId int, key period.Key, delta decimal.Decimal) (Budget, bool, error)
	MarkNotified(ctx context.Context, userId int, id uuid.UUID) error
	ListForMonth(ctx context.Context, userId int, month period.Month) ([]Budget, error)
	Delete(ctx context.Context, userId int, id uuid.UUID) (bool, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const budgetColumns = `id, user_id, category, month, year, limit_amount, spent, alert_threshold, notification_sent,
				created_at, updated_at`

// SortKeys orders keys the way every caller must acquire their locks, dropping duplicates.
func SortKeys(keys []period.Key) []period.Key {
	sorted := make([]period.Key, 0, len(keys))
	seen := make(map[period.Key]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		sorted = append(sorted, key)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	return sorted
}

func (r *RepositoryImpl) LockPeriods(ctx context.Context, userId int, keys []period.Key) error {
	q := database.Conn(ctx, r.db)
	for _, key := range SortKeys(keys) {
		if err := database.LockKey(ctx, q, periodLockNamespace, fmt.Sprintf("%d/%s", userId, key)); err != nil {
			log.Errorf("failed to lock budget period %s: %v", key, err)
			return err
		}
	}
	return nil
}

func (r *RepositoryImpl) FindByKey(ctx context.Context, userId int, key period.Key) (Budget, bool, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets
				WHERE user_id = $1 AND category = $2 AND month = $3 AND year = $4`
	b, err := scanBudget(database.Conn(ctx, r.db).QueryRow(ctx, query, userId, string(key.Category), key.Month, key.Year))
	if errors.Is(err, pgx.ErrNoRows) {
		return Budget{}, false, nil
	}
	if err != nil {
		log.Errorf("failed to find budget %s: %v", key, err)
		return Budget{}, false, apperr.Persistence("find budget", err)
	}
	return b, true, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, userId int, id uuid.UUID) (Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = $1 AND id = $2`
	b, err := scanBudget(database.Conn(ctx, r.db).QueryRow(ctx, query, userId, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Budget{}, ErrBudgetNotFound
	}
	if err != nil {
		log.Errorf("failed to get budget %s: %v", id, err)
		return Budget{}, apperr.Persistence("get budget", err)
	}
	return b, nil
}

func (r *RepositoryImpl) Insert(ctx context.Context, budget Budget) (Budget, error) {
	if budget.Id == uuid.Nil {
		budget.Id = uuid.New()
	}
	query := `INSERT INTO budgets (id, user_id, category, month, year, limit_amount, spent, alert_threshold, notification_sent)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING ` + budgetColumns
	stored, err := scanBudget(database.Conn(ctx, r.db).QueryRow(ctx, query,
		budget.Id,
		budget.UserId,
		string(budget.Category),
		budget.Month,
		budget.Year,
		database.Numeric(budget.Limit),
		database.Numeric(budget.Spent),
		budget.AlertThreshold,
		budget.NotificationSent,
	))
	if database.IsUniqueViolation(err) {
		log.Warnf("budget for %s already exists (user %d)", budget.Key(), budget.UserId)
		return Budget{}, ErrBudgetConflict
	}
	if err != nil {
		log.Errorf("failed to insert budget: %v", err)
		return Budget{}, apperr.Persistence("insert budget", err)
	}
	return stored, nil
}

func (r *RepositoryImpl) UpdateSettings(ctx context.Context, budget Budget) (Budget, error) {
	query := `UPDATE budgets SET limit_amount = $1, spent = $2, alert_threshold = $3, notification_sent = FALSE,
				updated_at = now()
				WHERE user_id = $4 AND id = $5 RETURNING ` + budgetColumns
	stored, err := scanBudget(database.Conn(ctx, r.db).QueryRow(ctx, query,
		database.Numeric(budget.Limit),
		database.Numeric(budget.Spent),
		budget.AlertThreshold,
		budget.UserId,
		budget.Id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Budget{}, ErrBudgetNotFound
	}
	if err != nil {
		log.Errorf("failed to update budget %s: %v", budget.Id, err)
		return Budget{}, apperr.Persistence("update budget", err)
	}
	return stored, nil
}

func (r *RepositoryImpl) AdjustSpent(ctx context.Context, userId int, key period.Key, delta decimal.Decimal) (Budget, bool, error) {
	query := `UPDATE budgets SET spent = spent + $1, updated_at = now()
				WHERE user_id = $2 AND category = $3 AND month = $4 AND year = $5 RETURNING ` + budgetColumns
	b, err := scanBudget(database.Conn(ctx, r.db).QueryRow(ctx, query,
		database.Numeric(delta), userId, string(key.Category), key.Month, key.Year))
	if errors.Is(err, pgx.ErrNoRows) {
		return Budget{}, false, nil
	}
	if err != nil {
		log.Errorf("failed to adjust budget %s by %s: %v", key, delta, err)
		return Budget{}, false, apperr.Persistence("adjust budget", err)
	}
	return b, true, nil
}

func (r *RepositoryImpl) MarkNotified(ctx context.Context, userId int, id uuid.UUID) error {
	_, err := database.Conn(ctx, r.db).Exec(ctx,
		"UPDATE budgets SET notification_sent = TRUE WHERE user_id = $1 AND id = $2", userId, id)
	if err != nil {
		log.Errorf("failed to mark budget %s notified: %v", id, err)
		return apperr.Persistence("mark budget notified", err)
	}
	return nil
}

func (r *RepositoryImpl) ListForMonth(ctx context.Context, userId int, month period.Month) ([]Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets
				WHERE user_id = $1 AND month = $2 AND year = $3 ORDER BY category`
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, userId, month.Month, month.Year)
	if err != nil {
		log.Errorf("failed to query budgets for %s: %v", month, err)
		return nil, apperr.Persistence("list budgets", err)
	}
	defer rows.Close()

	budgets := make([]Budget, 0)
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			log.Errorf("failed to scan budget: %v", err)
			return nil, apperr.Persistence("scan budget", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		log.Errorf("error iterating over budgets: %v", err)
		return nil, apperr.Persistence("list budgets", err)
	}
	return budgets, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userId int, id uuid.UUID) (bool, error) {
	tag, err := database.Conn(ctx, r.db).Exec(ctx, "DELETE FROM budgets WHERE user_id = $1 AND id = $2", userId, id)
	if err != nil {
		log.Errorf("failed to delete budget %s: %v", id, err)
		return false, apperr.Persistence("delete budget", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanBudget(row pgx.Row) (Budget, error) {
	var (
		b            Budget
		categoryName string
		limit, spent pgtype.Numeric
		month, year  int16
		threshold    int16
	)
	err := row.Scan(
		&b.Id,
		&b.UserId,
		&categoryName,
		&month,
		&year,
		&limit,
		&spent,
		&threshold,
		&b.NotificationSent,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return Budget{}, err
	}
	b.Category = category.Category(categoryName)
	b.Month = int(month)
	b.Year = int(year)
	b.Limit = database.Decimal(limit)
	b.Spent = database.Decimal(spent)
	b.AlertThreshold = int(threshold)
	return b, nil
}
