package analytics

import (
	"testing"

	"github.com/finbot-app/finbot/pkg/budget"
	"github.com/finbot-app/finbot/pkg/category"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/finbot-app/finbot/pkg/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func monthsFrom(start period.Month, n int) []period.Month {
	months := make([]period.Month, 0, n)
	for i := 0; i < n; i++ {
		months = append(months, start.Add(i))
	}
	return months
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		percent string
		want    Status
	}{
		{"0", OnTrack},
		{"40", OnTrack},
		{"79.994", OnTrack},
		{"79.995", Warning},
		{"80", Warning},
		{"99.99", Warning},
		{"99.995", Exceeded},
		{"100", Exceeded},
		{"250", Exceeded},
	}
	for _, tt := range tests {
		t.Run(tt.percent, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(d(tt.percent)))
		})
	}
}

func TestNewMonthlyStats(t *testing.T) {
	march := period.Month{Month: 3, Year: 2024}

	t.Run("savings rate is rounded to two decimals", func(t *testing.T) {
		stats := NewMonthlyStats(march, transaction.Totals{Income: d("3000"), Expenses: d("1234.56"), Count: 7})

		assert.Equal(t, "1765.44", stats.Savings.String())
		assert.Equal(t, "58.85", stats.SavingsRate.String())
		assert.Equal(t, 7, stats.TransactionCount)
	})

	t.Run("zero income gives zero savings rate", func(t *testing.T) {
		stats := NewMonthlyStats(march, transaction.Totals{Expenses: d("50"), Count: 1})

		assert.True(t, stats.SavingsRate.IsZero())
		assert.Equal(t, "-50", stats.Savings.String())
	})
}

func TestBreakdown_SharesSortedByTotal(t *testing.T) {
	stats := Breakdown([]transaction.CategoryTotal{
		{Category: category.Food, Total: d("500"), Count: 2},
		{Category: category.Rent, Total: d("700"), Count: 1},
	})

	require.Len(t, stats, 2)
	assert.Equal(t, category.Rent, stats[0].Category)
	assert.Equal(t, "700", stats[0].Total.String())
	assert.Equal(t, 1, stats[0].Count)
	assert.Equal(t, "58.33", stats[0].Percentage.String())
	assert.Equal(t, category.Food, stats[1].Category)
	assert.Equal(t, "500", stats[1].Total.String())
	assert.Equal(t, 2, stats[1].Count)
	assert.Equal(t, "250", stats[1].Average.String())
	assert.Equal(t, "41.67", stats[1].Percentage.String())
}

func TestBreakdown_Empty(t *testing.T) {
	stats := Breakdown(nil)

	assert.NotNil(t, stats)
	assert.Empty(t, stats)
}

func TestNewTrends_SixMonths(t *testing.T) {
	months := monthsFrom(period.Month{Month: 10, Year: 2023}, 6)
	var totals []transaction.Totals
	for _, e := range []string{"100", "120", "90", "200", "210", "220"} {
		totals = append(totals, transaction.Totals{Income: d("1000"), Expenses: d(e), Count: 2})
	}

	trends := NewTrends(months, totals)

	require.Len(t, trends.Months, 6)
	assert.Equal(t, period.Month{Month: 10, Year: 2023}, trends.Months[0].Month)
	assert.Equal(t, period.Month{Month: 3, Year: 2024}, trends.Months[5].Month)
	assert.Equal(t, "1000", trends.Averages.Income.String())
	assert.Equal(t, "156.67", trends.Averages.Expenses.String())
	assert.Equal(t, "843.33", trends.Averages.Savings.String())
	assert.Equal(t, Increasing, trends.Trend.Direction)
	assert.Equal(t, "103.23", trends.Trend.ChangePercent.String())
	assert.Equal(t, 3, trends.Trend.Window)
}

func TestNewTrends_Decreasing(t *testing.T) {
	months := monthsFrom(period.Month{Month: 1, Year: 2024}, 4)
	totals := []transaction.Totals{
		{Expenses: d("400")}, {Expenses: d("200")}, {Expenses: d("100")}, {Expenses: d("200")},
	}

	trends := NewTrends(months, totals)

	assert.Equal(t, 2, trends.Trend.Window)
	assert.Equal(t, Decreasing, trends.Trend.Direction)
	assert.Equal(t, "-50", trends.Trend.ChangePercent.String())
}

func TestNewTrends_EqualEndsAreIncreasing(t *testing.T) {
	months := monthsFrom(period.Month{Month: 1, Year: 2024}, 1)

	trends := NewTrends(months, []transaction.Totals{{Expenses: d("75")}})

	assert.Equal(t, 1, trends.Trend.Window)
	assert.Equal(t, Increasing, trends.Trend.Direction)
	assert.True(t, trends.Trend.ChangePercent.IsZero())
}

func TestNewTrends_NoOlderSpendingGivesZeroChange(t *testing.T) {
	months := monthsFrom(period.Month{Month: 1, Year: 2024}, 2)

	trends := NewTrends(months, []transaction.Totals{{}, {Expenses: d("10")}})

	assert.Equal(t, Increasing, trends.Trend.Direction)
	assert.True(t, trends.Trend.ChangePercent.IsZero())
}

func TestTrendWindow(t *testing.T) {
	for n, want := range map[int]int{1: 1, 2: 1, 3: 1, 4: 2, 5: 2, 6: 3, 7: 3, 12: 3, 24: 3} {
		assert.Equal(t, want, trendWindow(n), "n=%d", n)
	}
}

func TestNewPerformance(t *testing.T) {
	march := period.Month{Month: 3, Year: 2024}
	budgets := []budget.Budget{
		{Category: category.Food, Month: 3, Year: 2024, Limit: d("500"), Spent: d("999")},
		{Category: category.Rent, Month: 3, Year: 2024, Limit: d("1000")},
		{Category: category.Travel, Month: 3, Year: 2024, Limit: d("300")},
	}
	spending := []transaction.CategoryTotal{
		{Category: category.Rent, Total: d("1000"), Count: 1},
		{Category: category.Food, Total: d("200"), Count: 3},
		{Category: category.Travel, Total: d("240"), Count: 1},
		{Category: category.Shopping, Total: d("80"), Count: 1},
	}

	performance := NewPerformance(march, budgets, spending)

	require.Len(t, performance.Budgets, 3)
	food := performance.Budgets[0]
	assert.Equal(t, "200", food.Spent.String())
	assert.Equal(t, "300", food.Remaining.String())
	assert.Equal(t, "40", food.PercentUsed.String())
	assert.Equal(t, OnTrack, food.Status)
	assert.Equal(t, Exceeded, performance.Budgets[1].Status)
	assert.Equal(t, Warning, performance.Budgets[2].Status)

	assert.Equal(t, "1800", performance.Overall.TotalBudget.String())
	assert.Equal(t, "1440", performance.Overall.TotalSpent.String())
	assert.Equal(t, "360", performance.Overall.Remaining.String())
	assert.Equal(t, "80", performance.Overall.PercentUsed.String())
	assert.Equal(t, Warning, performance.Overall.Status)
}

func TestNewPerformance_NoBudgets(t *testing.T) {
	performance := NewPerformance(period.Month{Month: 3, Year: 2024}, nil, nil)

	assert.Empty(t, performance.Budgets)
	assert.True(t, performance.Overall.PercentUsed.IsZero())
	assert.Equal(t, OnTrack, performance.Overall.Status)
}
