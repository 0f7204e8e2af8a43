// Package analytics derives read-only reports from the ledger and the budget store. The
// calculators in this file work on pre-aggregated totals and keep full precision until the
// result is built, where money and percentages are rounded to two decimals.
package analytics

import (
	"sort"

	"github.com/finbot-app/finbot/pkg/budget"
	"github.com/finbot-app/finbot/pkg/category"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/finbot-app/finbot/pkg/transaction"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Status string

const (
	OnTrack  Status = "on-track"
	Warning  Status = "warning"
	Exceeded Status = "exceeded"
)

// StatusOf classifies a percentage of a budget limit. The percentage is compared after rounding
// so that the reported number and the status always agree.
func StatusOf(percentUsed decimal.Decimal) Status {
	p := percentUsed.Round(2)
	switch {
	case p.GreaterThanOrEqual(hundred):
		return Exceeded
	case p.GreaterThanOrEqual(decimal.NewFromInt(80)):
		return Warning
	default:
		return OnTrack
	}
}

type MonthlyStats struct {
	Month            period.Month
	Income           decimal.Decimal
	Expenses         decimal.Decimal
	Savings          decimal.Decimal
	SavingsRate      decimal.Decimal
	TransactionCount int
}

func NewMonthlyStats(month period.Month, totals transaction.Totals) MonthlyStats {
	savings := totals.Income.Sub(totals.Expenses)
	return MonthlyStats{
		Month:            month,
		Income:           totals.Income.Round(2),
		Expenses:         totals.Expenses.Round(2),
		Savings:          savings.Round(2),
		SavingsRate:      percentOf(savings, totals.Income),
		TransactionCount: totals.Count,
	}
}

type CategoryStats struct {
	Category   category.Category
	Total      decimal.Decimal
	Count      int
	Average    decimal.Decimal
	Percentage decimal.Decimal
}

// Breakdown turns per-category expense totals into shares of the overall spending, largest
// first. Categories with equal totals are ordered by name.
func Breakdown(totals []transaction.CategoryTotal) []CategoryStats {
	all := decimal.Zero
	for _, t := range totals {
		all = all.Add(t.Total)
	}

	stats := make([]CategoryStats, 0, len(totals))
	for _, t := range totals {
		if t.Count == 0 {
			continue
		}
		stats = append(stats, CategoryStats{
			Category:   t.Category,
			Total:      t.Total.Round(2),
			Count:      t.Count,
			Average:    t.Total.Div(decimal.NewFromInt(int64(t.Count))).Round(2),
			Percentage: percentOf(t.Total, all),
		})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if !stats[i].Total.Equal(stats[j].Total) {
			return stats[i].Total.GreaterThan(stats[j].Total)
		}
		return stats[i].Category < stats[j].Category
	})
	return stats
}

type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
)

type Averages struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Savings  decimal.Decimal
}

type Trend struct {
	Direction     Direction
	ChangePercent decimal.Decimal
	// Window is the number of months averaged at each end of the series.
	Window int
}

type Trends struct {
	Months   []MonthlyStats
	Averages Averages
	Trend    Trend
}

// trendWindow is the number of months compared at each end of a series of n months: three
// when there are at least six, half of the series below that, and the single month for n = 1.
func trendWindow(n int) int {
	w := min(3, n/2)
	if w == 0 && n > 0 {
		return 1
	}
	return w
}

// NewTrends summarises monthly raw totals ordered oldest first.
func NewTrends(months []period.Month, totals []transaction.Totals) Trends {
	stats := make([]MonthlyStats, 0, len(months))
	income, expenses := decimal.Zero, decimal.Zero
	for i, m := range months {
		stats = append(stats, NewMonthlyStats(m, totals[i]))
		income = income.Add(totals[i].Income)
		expenses = expenses.Add(totals[i].Expenses)
	}
	if len(months) == 0 {
		return Trends{Months: stats, Trend: Trend{Direction: Increasing, ChangePercent: decimal.Zero}}
	}

	n := decimal.NewFromInt(int64(len(months)))
	avgIncome := income.Div(n)
	avgExpenses := expenses.Div(n)

	w := trendWindow(len(months))
	older := meanExpenses(totals[:w])
	recent := meanExpenses(totals[len(totals)-w:])
	direction := Decreasing
	if recent.GreaterThanOrEqual(older) {
		direction = Increasing
	}
	change := decimal.Zero
	if !older.IsZero() {
		change = recent.Sub(older).Div(older).Mul(hundred).Round(2)
	}

	return Trends{
		Months: stats,
		Averages: Averages{
			Income:   avgIncome.Round(2),
			Expenses: avgExpenses.Round(2),
			Savings:  avgIncome.Sub(avgExpenses).Round(2),
		},
		Trend: Trend{Direction: direction, ChangePercent: change, Window: w},
	}
}

func meanExpenses(totals []transaction.Totals) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t.Expenses)
	}
	return sum.Div(decimal.NewFromInt(int64(len(totals))))
}

type BudgetPerformance struct {
	Budget      budget.Budget
	Spent       decimal.Decimal
	Remaining   decimal.Decimal
	PercentUsed decimal.Decimal
	Status      Status
}

type Overall struct {
	TotalBudget decimal.Decimal
	TotalSpent  decimal.Decimal
	Remaining   decimal.Decimal
	PercentUsed decimal.Decimal
	Status      Status
}

type Performance struct {
	Month   period.Month
	Budgets []BudgetPerformance
	Overall Overall
}

// NewPerformance measures each budget against spending taken from the ledger, ignoring the
// cached spent of the budget. Categories without a budget do not count toward the overall.
func NewPerformance(month period.Month, budgets []budget.Budget, spending []transaction.CategoryTotal) Performance {
	spentByCategory := make(map[category.Category]decimal.Decimal, len(spending))
	for _, s := range spending {
		spentByCategory[s.Category] = s.Total
	}

	result := Performance{Month: month, Budgets: make([]BudgetPerformance, 0, len(budgets))}
	totalBudget, totalSpent := decimal.Zero, decimal.Zero
	for _, b := range budgets {
		spent := spentByCategory[b.Category]
		percent := budget.PercentUsed(spent, b.Limit)
		result.Budgets = append(result.Budgets, BudgetPerformance{
			Budget:      b,
			Spent:       spent.Round(2),
			Remaining:   b.Limit.Sub(spent).Round(2),
			PercentUsed: percent.Round(2),
			Status:      StatusOf(percent),
		})
		totalBudget = totalBudget.Add(b.Limit)
		totalSpent = totalSpent.Add(spent)
	}

	overallPercent := percentOf(totalSpent, totalBudget)
	result.Overall = Overall{
		TotalBudget: totalBudget.Round(2),
		TotalSpent:  totalSpent.Round(2),
		Remaining:   totalBudget.Sub(totalSpent).Round(2),
		PercentUsed: overallPercent,
		Status:      StatusOf(overallPercent),
	}
	return result
}

type Summary struct {
	Month      period.Month
	Stats      MonthlyStats
	Categories []CategoryStats
	Budgets    []budget.Budget
}

// percentOf returns part/whole*100 rounded to two decimals, or zero for a zero whole.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}
