package transaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

type Repository interface {
	Store(ctx context.Context, t Transaction) (Transaction, error)
	Get(ctx context.Context, userId int, id uuid.UUID) (Transaction, error)
	// GetForUpdate reads the transaction and locks it until the current unit of work ends.
	GetForUpdate(ctx context.Context, userId int, id uuid.UUID) (Transaction, error)
	Update(ctx context.Context, t Transaction) (Transaction, error)
	Delete(ctx context.Context, userId int, id uuid.UUID) (bool, error)
	// List returns one page of matching transactions, newest first, and the number of matches.
	List(ctx context.Context, userId int, filter Filter) ([]Transaction, int, error)
	Totals(ctx context.Context, userId int, from, to time.Time) (Totals, error)
	MonthlyTotals(ctx context.Context, userId int, from, to time.Time) (map[period.Month]Totals, error)
	ExpensesByCategory(ctx context.Context, userId int, from, to time.Time) ([]CategoryTotal, error)
	SumExpenses(ctx context.Context, userId int, key period.Key) (decimal.Decimal, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const transactionColumns = "id, user_id, kind, amount, category, description, occurred_on, created_at, updated_at"

func (r *RepositoryImpl) Store(ctx context.Context, t Transaction) (Transaction, error) {
	if t.Id == uuid.Nil {
		t.Id = uuid.New()
	}
	query := `INSERT INTO transactions (id, user_id, kind, amount, category, description, occurred_on)
				VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING ` + transactionColumns
	stored, err := scanTransaction(database.Conn(ctx, r.db).QueryRow(ctx, query,
		t.Id,
		t.UserId,
		string(t.Kind),
		database.Numeric(t.Amount),
		string(t.Category),
		t.Description,
		t.Date,
	))
	if err != nil {
		log.Errorf("failed to store transaction: %v", err)
		return Transaction{}, apperr.Persistence("store transaction", err)
	}
	return stored, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, userId int, id uuid.UUID) (Transaction, error) {
	return r.get(ctx, userId, id, "")
}

func (r *RepositoryImpl) GetForUpdate(ctx context.Context, userId int, id uuid.UUID) (Transaction, error) {
	return r.get(ctx, userId, id, " FOR UPDATE")
}

func (r *RepositoryImpl) get(ctx context.Context, userId int, id uuid.UUID, lock string) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 AND id = $2` + lock
	t, err := scanTransaction(database.Conn(ctx, r.db).QueryRow(ctx, query, userId, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		log.Errorf("failed to get transaction %s: %v", id, err)
		return Transaction{}, apperr.Persistence("get transaction", err)
	}
	return t, nil
}

func (r *RepositoryImpl) Update(ctx context.Context, t Transaction) (Transaction, error) {
	query := `UPDATE transactions SET kind = $1, amount = $2, category = $3, description = $4, occurred_on = $5,
				updated_at = now()
				WHERE user_id = $6 AND id = $7 RETURNING ` + transactionColumns
	updated, err := scanTransaction(database.Conn(ctx, r.db).QueryRow(ctx, query,
		string(t.Kind),
		database.Numeric(t.Amount),
		string(t.Category),
		t.Description,
		t.Date,
		t.UserId,
		t.Id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		log.Errorf("failed to update transaction %s: %v", t.Id, err)
		return Transaction{}, apperr.Persistence("update transaction", err)
	}
	return updated, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userId int, id uuid.UUID) (bool, error) {
	tag, err := database.Conn(ctx, r.db).Exec(ctx, "DELETE FROM transactions WHERE user_id = $1 AND id = $2", userId, id)
	if err != nil {
		log.Errorf("failed to delete transaction %s: %v", id, err)
		return false, apperr.Persistence("delete transaction", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RepositoryImpl) List(ctx context.Context, userId int, filter Filter) ([]Transaction, int, error) {
	conditions := []string{"user_id = $1"}
	args := []any{userId}
	addCondition := func(format string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}
	if filter.Kind != nil {
		addCondition("kind = $%d", string(*filter.Kind))
	}
	if filter.Category != nil {
		addCondition("category = $%d", string(*filter.Category))
	}
	if filter.From != nil {
		addCondition("occurred_on >= $%d", period.Day(*filter.From))
	}
	if filter.To != nil {
		addCondition("occurred_on < $%d", period.Day(*filter.To).AddDate(0, 0, 1))
	}
	where := strings.Join(conditions, " AND ")
	q := database.Conn(ctx, r.db)

	var total int
	if err := q.QueryRow(ctx, "SELECT COUNT(*) FROM transactions WHERE "+where, args...).Scan(&total); err != nil {
		log.Errorf("failed to count transactions: %v", err)
		return nil, 0, apperr.Persistence("count transactions", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s
				ORDER BY occurred_on DESC, created_at DESC, id LIMIT $%d OFFSET $%d`,
		transactionColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		log.Errorf("failed to query transactions: %v", err)
		return nil, 0, apperr.Persistence("list transactions", err)
	}
	defer rows.Close()

	items := make([]Transaction, 0, filter.PageSize)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			log.Errorf("failed to scan transaction: %v", err)
			return nil, 0, apperr.Persistence("scan transaction", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		log.Errorf("error iterating over transactions: %v", err)
		return nil, 0, apperr.Persistence("list transactions", err)
	}
	return items, total, nil
}

func (r *RepositoryImpl) Totals(ctx context.Context, userId int, from, to time.Time) (Totals, error) {
	query := `SELECT COALESCE(SUM(amount) FILTER (WHERE kind = 'income'), 0),
				COALESCE(SUM(amount) FILTER (WHERE kind = 'expense'), 0),
				COUNT(*)
				FROM transactions WHERE user_id = $1 AND occurred_on >= $2 AND occurred_on < $3`
	var income, expenses pgtype.Numeric
	var totals Totals
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, userId, from, to).Scan(&income, &expenses, &totals.Count)
	if err != nil {
		log.Errorf("failed to sum transactions: %v", err)
		return Totals{}, apperr.Persistence("sum transactions", err)
	}
	totals.Income = database.Decimal(income)
	totals.Expenses = database.Decimal(expenses)
	return totals, nil
}

func (r *RepositoryImpl) MonthlyTotals(ctx context.Context, userId int, from, to time.Time) (map[period.Month]Totals, error) {
	query := `SELECT EXTRACT(YEAR FROM occurred_on)::int AS y, EXTRACT(MONTH FROM occurred_on)::int AS m,
				COALESCE(SUM(amount) FILTER (WHERE kind = 'income'), 0),
				COALESCE(SUM(amount) FILTER (WHERE kind = 'expense'), 0),
				COUNT(*)
				FROM transactions WHERE user_id = $1 AND occurred_on >= $2 AND occurred_on < $3
				GROUP BY y, m`
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, userId, from, to)
	if err != nil {
		log.Errorf("failed to query monthly totals: %v", err)
		return nil, apperr.Persistence("monthly totals", err)
	}
	defer rows.Close()

	result := make(map[period.Month]Totals)
	for rows.Next() {
		var (
			month            period.Month
			income, expenses pgtype.Numeric
			totals           Totals
		)
		if err := rows.Scan(&month.Year, &month.Month, &income, &expenses, &totals.Count); err != nil {
			log.Errorf("failed to scan monthly totals: %v", err)
			return nil, apperr.Persistence("scan monthly totals", err)
		}
		totals.Income = database.Decimal(income)
		totals.Expenses = database.Decimal(expenses)
		result[month] = totals
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("monthly totals", err)
	}
	return result, nil
}

func (r *RepositoryImpl) ExpensesByCategory(ctx context.Context, userId int, from, to time.Time) ([]CategoryTotal, error) {
	query := `SELECT category, SUM(amount), COUNT(*) FROM transactions
				WHERE user_id = $1 AND kind = 'expense' AND occurred_on >= $2 AND occurred_on < $3
				GROUP BY category ORDER BY SUM(amount) DESC, category`
	rows, err := database.Conn(ctx, r.db).Query(ctx, query, userId, from, to)
	if err != nil {
		log.Errorf("failed to query expenses by category: %v", err)
		return nil, apperr.Persistence("expenses by category", err)
	}
	defer rows.Close()

	totals := make([]CategoryTotal, 0)
	for rows.Next() {
		var (
			name  string
			total pgtype.Numeric
			ct    CategoryTotal
		)
		if err := rows.Scan(&name, &total, &ct.Count); err != nil {
			log.Errorf("failed to scan category total: %v", err)
			return nil, apperr.Persistence("scan category total", err)
		}
		ct.Category = category.Category(name)
		ct.Total = database.Decimal(total)
		totals = append(totals, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("expenses by category", err)
	}
	return totals, nil
}

func (r *RepositoryImpl) SumExpenses(ctx context.Context, userId int, key period.Key) (decimal.Decimal, error) {
	from, to := key.Period().Bounds()
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions
				WHERE user_id = $1 AND kind = 'expense' AND category = $2 AND occurred_on >= $3 AND occurred_on < $4`
	var sum pgtype.Numeric
	err := database.Conn(ctx, r.db).QueryRow(ctx, query, userId, string(key.Category), from, to).Scan(&sum)
	if err != nil {
		log.Errorf("failed to sum expenses of %s: %v", key, err)
		return decimal.Zero, apperr.Persistence("sum expenses", err)
	}
	return database.Decimal(sum), nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var (
		t          Transaction
		kind, name string
		amount     pgtype.Numeric
		occurredOn time.Time
	)
	err := row.Scan(&t.Id, &t.UserId, &kind, &amount, &name, &t.Description, &occurredOn, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Transaction{}, err
	}
	t.Kind = Kind(kind)
	t.Amount = database.Decimal(amount)
	t.Category = category.Category(name)
	t.Date = period.Day(occurredOn)
	return t, nil
}
