package transaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/finbot-app/finbot/internal/apperr"
	"github.com/finbot-app/finbot/pkg/category"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrTransactionNotFound = fmt.Errorf("transaction %w", apperr.ErrNotFound)

// MaxAmount is the exclusive ceiling of an amount; the store keeps twelve integer digits.
var MaxAmount = decimal.New(1, 12)

type Kind string

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Income, Expense:
		return Kind(s), nil
	}
	return "", apperr.Invalid("kind", fmt.Sprintf("must be %q or %q", Income, Expense))
}

type Transaction struct {
	Id          uuid.UUID
	UserId      int
	Kind        Kind
	Amount      decimal.Decimal
	Category    category.Category
	Description string
	// Date is a calendar date at UTC midnight.
	Date      time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t Transaction) Key() period.Key {
	return period.KeyOf(t.Category, t.Date)
}

func (t Transaction) IsExpense() bool {
	return t.Kind == Expense
}

func (t Transaction) Validate() error {
	var errs []error
	if _, err := ParseKind(string(t.Kind)); err != nil {
		errs = append(errs, err)
	}
	if err := validateAmount(t.Amount); err != nil {
		errs = append(errs, err)
	}
	if !t.Category.Valid() {
		errs = append(errs, apperr.Invalid("category", fmt.Sprintf("unknown category %q", t.Category)))
	}
	if err := validateDate(t.Date); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateDate(date time.Time) error {
	if date.IsZero() {
		return apperr.Invalid("date", "is required")
	}
	if date.Year() < 1 || date.Year() > period.MaxYear {
		return apperr.Invalid("date", fmt.Sprintf("year must be between 1 and %d", period.MaxYear))
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Invalid("amount", "must be greater than 0")
	}
	if !amount.Equal(amount.Round(2)) {
		return apperr.Invalid("amount", "must not have more than two decimal places")
	}
	if amount.GreaterThanOrEqual(MaxAmount) {
		return apperr.Invalid("amount", "must be less than "+MaxAmount.String())
	}
	return nil
}

// Update holds the fields of a partial edit. Nil means unchanged.
type Update struct {
	Kind        *Kind
	Amount      *decimal.Decimal
	Category    *category.Category
	Description *string
	Date        *time.Time
}

// ApplyTo merges the set fields into t.
func (u Update) ApplyTo(t Transaction) Transaction {
	if u.Kind != nil {
		t.Kind = *u.Kind
	}
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Date != nil {
		t.Date = period.Day(*u.Date)
	}
	return t
}

// Validate checks only the fields that are set.
func (u Update) Validate() error {
	var errs []error
	if u.Kind != nil {
		if _, err := ParseKind(string(*u.Kind)); err != nil {
			errs = append(errs, err)
		}
	}
	if u.Amount != nil {
		if err := validateAmount(*u.Amount); err != nil {
			errs = append(errs, err)
		}
	}
	if u.Category != nil && !u.Category.Valid() {
		errs = append(errs, apperr.Invalid("category", fmt.Sprintf("unknown category %q", *u.Category)))
	}
	if u.Date != nil {
		if err := validateDate(*u.Date); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MaxPage bounds the page number so the row offset stays representable.
const MaxPage = 1_000_000

// Filter narrows listTransactions. From and To are inclusive calendar dates.
type Filter struct {
	Kind     *Kind
	Category *category.Category
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type Page struct {
	Items    []Transaction
	Page     int
	PageSize int
	Total    int
}

func (p Page) Pages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

// Totals sums a set of transactions by kind.
type Totals struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Count    int
}

type CategoryTotal struct {
	Category category.Category
	Total    decimal.Decimal
	Count    int
}

// delta is a single change to the spent total of a period.
type delta struct {
	key    period.Key
	amount decimal.Decimal
}

// budgetDeltas lists the adjustments that move the budgets from reflecting before to reflecting
// after. A nil before is a creation, a nil after a deletion. Decrements come first.
func budgetDeltas(before, after *Transaction) []delta {
	var deltas []delta
	if before != nil && before.IsExpense() {
		deltas = append(deltas, delta{key: before.Key(), amount: before.Amount.Neg()})
	}
	if after != nil && after.IsExpense() {
		deltas = append(deltas, delta{key: after.Key(), amount: after.Amount})
	}
	return deltas
}

func deltaKeys(deltas []delta) []period.Key {
	keys := make([]period.Key, 0, len(deltas))
	for _, d := range deltas {
		keys = append(keys, d.key)
	}
	return keys
}
