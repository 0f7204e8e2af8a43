package user

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/finbot-app/finbot/internal/apperr"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

var ErrUserNotFound = fmt.Errorf("user %w", apperr.ErrNotFound)
var ErrUserDataInvalid = fmt.Errorf("user data: %w", apperr.ErrValidation)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type User struct {
	Id          int
	Uid         string
	Username    string
	DisplayName string
	// MonthlyIncome is the income the user declares, independent of recorded transactions.
	MonthlyIncome decimal.Decimal
	Currency      string
}

// Validate checks the editable profile fields.
func (u User) Validate() error {
	var errs []error
	if u.Username == "" {
		errs = append(errs, apperr.Invalid("username", "is required"))
	}
	if u.DisplayName == "" {
		errs = append(errs, apperr.Invalid("displayName", "is required"))
	}
	if u.MonthlyIncome.IsNegative() {
		errs = append(errs, apperr.Invalid("monthlyIncome", "cannot be negative"))
	}
	if !currencyPattern.MatchString(u.Currency) {
		errs = append(errs, apperr.Invalid("currency", "must be a three letter ISO code"))
	}
	return errors.Join(errs...)
}
