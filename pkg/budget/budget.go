package budget

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

var ErrBudgetNotFound = fmt.Errorf("budget %w", apperr.ErrNotFound)
var ErrBudgetConflict = fmt.Errorf("budget already exists for period: %w", apperr.ErrConflict)

var hundred = decimal.NewFromInt(100)

// MaxLimit is the exclusive ceiling of a budget limit; the store keeps twelve integer digits.
var MaxLimit = decimal.New(1, 12)

type Budget struct {
	Id       uuid.UUID
	UserId   int
	Category category.Category
	Month    int
	Year     int
	Limit    decimal.Decimal
	// Spent is the running total of expenses in the budget's period, kept in step with the ledger.
	Spent            decimal.Decimal
	AlertThreshold   int
	NotificationSent bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Settings is what a user provides when setting a budget. A nil AlertThreshold means the default.
type Settings struct {
	Category       category.Category
	Month          int
	Year           int
	Limit          decimal.Decimal
	AlertThreshold *int
}

// Adjustment is the outcome of applying a spending delta to a period.
type Adjustment struct {
	Budget      Budget
	Found       bool
	AlertRaised bool
}

func (b Budget) Key() period.Key {
	return period.Key{Category: b.Category, Month: b.Month, Year: b.Year}
}

func (b Budget) Period() period.Month {
	return period.Month{Month: b.Month, Year: b.Year}
}

// PercentUsed returns spent as a percentage of the limit at full precision.
func (b Budget) PercentUsed() decimal.Decimal {
	return PercentUsed(b.Spent, b.Limit)
}

func (b Budget) Remaining() decimal.Decimal {
	return b.Limit.Sub(b.Spent)
}

// ShouldAlert reports whether spending crossed the alert threshold and nobody was notified yet.
func (b Budget) ShouldAlert() bool {
	if b.NotificationSent || !b.Spent.IsPositive() {
		return false
	}
	return b.PercentUsed().GreaterThanOrEqual(decimal.NewFromInt(int64(b.AlertThreshold)))
}

// PercentUsed is spent/limit*100. A zero limit counts as fully used as soon as anything is spent.
func PercentUsed(spent, limit decimal.Decimal) decimal.Decimal {
	if !limit.IsPositive() {
		if spent.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	return spent.Div(limit).Mul(hundred)
}

func (s Settings) Key() period.Key {
	return period.Key{Category: s.Category, Month: s.Month, Year: s.Year}
}

// Validate checks the settings against the year floor before anything is written.
func (s Settings) Validate(yearFloor int) error {
	var errs []error
	if !s.Category.Budgetable() {
		errs = append(errs, apperr.Invalid("category", fmt.Sprintf("%q cannot be budgeted", s.Category)))
	}
	switch {
	case !s.Limit.IsPositive():
		errs = append(errs, apperr.Invalid("limit", "must be greater than 0"))
	case !s.Limit.Equal(s.Limit.Round(2)):
		errs = append(errs, apperr.Invalid("limit", "must not have more than two decimal places"))
	case s.Limit.GreaterThanOrEqual(MaxLimit):
		errs = append(errs, apperr.Invalid("limit", "must be less than "+MaxLimit.String()))
	}
	if s.Month < 1 || s.Month > 12 {
		errs = append(errs, apperr.Invalid("month", "must be between 1 and 12"))
	}
	if s.Year < yearFloor {
		errs = append(errs, apperr.Invalid("year", fmt.Sprintf("must be %d or later", yearFloor)))
	} else if err := period.ValidateYear(s.Year); err != nil {
		errs = append(errs, err)
	}
	if s.AlertThreshold != nil && (*s.AlertThreshold < 0 || *s.AlertThreshold > 100) {
		errs = append(errs, apperr.Invalid("alertThreshold", "must be between 0 and 100"))
	}
	return errors.Join(errs...)
}
