// Package snapshot assembles the point-in-time financial document handed to the chat assistant
// as context. It only reads; how the document is turned into a prompt is not its concern.
package snapshot

import (
	"time"

	"github.com/finbot-app/finbot/pkg/analytics"
	"github.com/finbot-app/finbot/pkg/category"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/finbot-app/finbot/pkg/transaction"
	"github.com/shopspring/decimal"
)

type CategorySpend struct {
	Category category.Category
	Spent    decimal.Decimal
}

type UserInfo struct {
	MonthlyIncome decimal.Decimal
	Currency      string
}

type Snapshot struct {
	Month       period.Month
	GeneratedAt time.Time
	Totals      analytics.MonthlyStats
	// SpendingByCategory holds every expense category of the month.
	SpendingByCategory map[category.Category]decimal.Decimal
	TopCategories      []CategorySpend
	Budgets            []analytics.BudgetPerformance
	Recent             []transaction.Transaction
	User               UserInfo
}

// topCategories keeps the n largest entries of a breakdown that is already sorted by total.
func topCategories(breakdown []analytics.CategoryStats, n int) []CategorySpend {
	top := make([]CategorySpend, 0, min(n, len(breakdown)))
	for _, c := range breakdown {
		if len(top) == n {
			break
		}
		top = append(top, CategorySpend{Category: c.Category, Spent: c.Total})
	}
	return top
}
