package analytics

import (
	"testing"

	"github.com/finbot-app/finbot/pkg/period"
	"github.com/finbot-app/finbot/pkg/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCsvTrendsRendererImpl_RenderTrends(t *testing.T) {
	tests := []struct {
		name   string
		trends Trends
		want   string
	}{
		{
			name: "two months",
			trends: NewTrends(
				[]period.Month{{Month: 1, Year: 2024}, {Month: 2, Year: 2024}},
				[]transaction.Totals{
					{Income: decimal.NewFromInt(1000), Expenses: decimal.NewFromInt(100), Count: 3},
					{Income: decimal.NewFromInt(1000), Expenses: decimal.NewFromInt(300), Count: 2},
				},
			),
			want: "Month,Income,Expenses,Savings,Savings rate,Transactions\n" +
				"2024-01,1000.00,100.00,900.00,90.00,3\n" +
				"2024-02,1000.00,300.00,700.00,70.00,2\n" +
				"Average,1000.00,200.00,800.00,,\n" +
				"Trend,increasing,200.00,,,\n",
		},
		{
			name:   "no months",
			trends: NewTrends(nil, nil),
			want: "Month,Income,Expenses,Savings,Savings rate,Transactions\n" +
				"Average,0.00,0.00,0.00,,\n" +
				"Trend,increasing,0.00,,,\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCsvTrendsRenderer()
			got, err := r.RenderTrends(tt.trends)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
