package analytics

import (
	"bytes"
	"encoding/csv"
	"strconv"

	log "github.com/sirupsen/logrus"
)

type TrendsRenderer interface {
	RenderTrends(trends Trends) (string, error)
}

type CsvTrendsRendererImpl struct {
}

func NewCsvTrendsRenderer() *CsvTrendsRendererImpl {
	return &CsvTrendsRendererImpl{}
}

// RenderTrends writes one row per month, oldest first, followed by the averages row and the
// trend row.
func (r *CsvTrendsRendererImpl) RenderTrends(trends Trends) (string, error) {
	data := make([][]string, 0, len(trends.Months)+3)
	data = append(data, []string{"Month", "Income", "Expenses", "Savings", "Savings rate", "Transactions"})
	for _, m := range trends.Months {
		data = append(data, []string{
			m.Month.String(),
			m.Income.StringFixed(2),
			m.Expenses.StringFixed(2),
			m.Savings.StringFixed(2),
			m.SavingsRate.StringFixed(2),
			strconv.Itoa(m.TransactionCount),
		})
	}
	data = append(data,
		[]string{
			"Average",
			trends.Averages.Income.StringFixed(2),
			trends.Averages.Expenses.StringFixed(2),
			trends.Averages.Savings.StringFixed(2),
			"",
			"",
		},
		[]string{"Trend", string(trends.Trend.Direction), trends.Trend.ChangePercent.StringFixed(2), "", "", ""},
	)

	var b bytes.Buffer
	writer := csv.NewWriter(&b)
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return "", err
	}

	return b.String(), nil
}
