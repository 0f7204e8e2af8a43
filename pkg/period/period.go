// Package period derives the calendar month a dated record belongs to. Every component that
// needs month boundaries goes through it so budgets, the ledger and reports agree on them.
package period

import (
	"fmt"
	"time"

	"github.com/finbot-app/finbot/internal/apperr"
	"github.com/finbot-app/finbot/pkg/category"
)

// MaxYear is the last year the stores can address.
const MaxYear = 9999

// Month is a calendar month of a year.
type Month struct {
	Month int
	Year  int
}

// Key addresses a single budget: (category, month, year).
type Key struct {
	Category category.Category
	Month    int
	Year     int
}

// Of returns the month and year of date's calendar day. Time of day is irrelevant.
func Of(date time.Time) (month, year int) {
	return int(date.Month()), date.Year()
}

func MonthOf(date time.Time) Month {
	m, y := Of(date)
	return Month{Month: m, Year: y}
}

func KeyOf(c category.Category, date time.Time) Key {
	m, y := Of(date)
	return Key{Category: c, Month: m, Year: y}
}

// ValidateYear rejects years outside 1..MaxYear.
func ValidateYear(year int) error {
	if year < 1 || year > MaxYear {
		return apperr.Invalid("year", fmt.Sprintf("must be between 1 and %d", MaxYear))
	}
	return nil
}

// Validate checks that m names a month the stores can address.
func (m Month) Validate() error {
	if m.Month < 1 || m.Month > 12 {
		return apperr.Invalid("month", "must be between 1 and 12")
	}
	return ValidateYear(m.Year)
}

// Day strips the time of day from date, keeping its calendar day, in UTC.
func Day(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
}

// Bounds returns the half-open interval [start, end) covering the month.
func (m Month) Bounds() (start, end time.Time) {
	start = time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Add moves n months forward (or backward when n is negative).
func (m Month) Add(n int) Month {
	start, _ := m.Bounds()
	return MonthOf(start.AddDate(0, n, 0))
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

func (k Key) Period() Month {
	return Month{Month: k.Month, Year: k.Year}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Category, k.Period())
}

// Less orders keys so that locks over several keys are always taken in the same order.
func (k Key) Less(other Key) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	if k.Month != other.Month {
		return k.Month < other.Month
	}
	return k.Category < other.Category
}

// Trailing returns n consecutive months ending with the month of now, oldest first.
func Trailing(now time.Time, n int) []Month {
	if n <= 0 {
		return nil
	}
	current := MonthOf(now)
	months := make([]Month, 0, n)
	for i := n - 1; i >= 0; i-- {
		months = append(months, current.Add(-i))
	}
	return months
}
