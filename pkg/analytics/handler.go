package analytics

import (
	"net/http"
	"time"

	"github.com/finbot-app/finbot/internal/rest"
	"github.com/finbot-app/finbot/pkg/budget"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type PeriodDTO struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

type MonthlyStatsDTO struct {
	Month            int             `json:"month"`
	Year             int             `json:"year"`
	Income           decimal.Decimal `json:"income"`
	Expenses         decimal.Decimal `json:"expenses"`
	Savings          decimal.Decimal `json:"savings"`
	SavingsRate      decimal.Decimal `json:"savingsRate"`
	TransactionCount int             `json:"transactionCount"`
}

type CategoryStatsDTO struct {
	Category   string          `json:"category"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Average    decimal.Decimal `json:"average"`
	Percentage decimal.Decimal `json:"percentage"`
}

type SummaryDTO struct {
	Period            PeriodDTO          `json:"period"`
	Summary           MonthlyStatsDTO    `json:"summary"`
	CategoryBreakdown []CategoryStatsDTO `json:"categoryBreakdown"`
	Budgets           []budget.BudgetDTO `json:"budgets"`
}

type AveragesDTO struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Savings  decimal.Decimal `json:"savings"`
}

type TrendDTO struct {
	Direction     string          `json:"direction"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Window        int             `json:"window"`
}

type TrendsDTO struct {
	MonthlyData []MonthlyStatsDTO `json:"monthlyData"`
	Averages    AveragesDTO       `json:"averages"`
	Trend       TrendDTO          `json:"trend"`
}

type BudgetPerformanceDTO struct {
	Id          uuid.UUID       `json:"id"`
	Category    string          `json:"category"`
	Limit       decimal.Decimal `json:"limit"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed decimal.Decimal `json:"percentUsed"`
	Status      string          `json:"status"`
}

type OverallDTO struct {
	TotalBudget decimal.Decimal `json:"totalBudget"`
	TotalSpent  decimal.Decimal `json:"totalSpent"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed decimal.Decimal `json:"percentUsed"`
	Status      string          `json:"status"`
}

type PerformanceDTO struct {
	Period  PeriodDTO              `json:"period"`
	Budgets []BudgetPerformanceDTO `json:"budgets"`
	Overall OverallDTO             `json:"overall"`
}

type Handler struct {
	service        Service
	trendsRenderer TrendsRenderer
}

func NewHandler(service Service, trendsRenderer TrendsRenderer) *Handler {
	return &Handler{service, trendsRenderer}
}

// Summary godoc
// @Summary Monthly summary
// @Description Income, expenses, savings and the category breakdown of a month, with its budgets.
// @Tags Analytics
// @Produce json
// @Param month query int false "Month (1-12), defaults to the current month"
// @Param year query int false "Year, defaults to the current year"
// @Success 200 {object} SummaryDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid month or year"
// @Router /api/analytics/summary [get]
// @Security XUserId
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	log.Debug("Getting summary")
	month, err := rest.QueryInt(r, "month", 0)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	year, err := rest.QueryInt(r, "year", 0)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	summary, err := h.service.Summary(r.Context(), period.Month{Month: month, Year: year})
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	budgets := make([]budget.BudgetDTO, 0, len(summary.Budgets))
	for _, b := range summary.Budgets {
		budgets = append(budgets, budget.ToDTO(b))
	}
	rest.WriteJSON(w, http.StatusOK, SummaryDTO{
		Period:            PeriodDTO{Month: summary.Month.Month, Year: summary.Month.Year},
		Summary:           monthlyStatsToDTO(summary.Stats),
		CategoryBreakdown: categoriesToDTO(summary.Categories),
		Budgets:           budgets,
	})
}

// Trends godoc
// @Summary Spending trends
// @Description Monthly totals of the trailing months, oldest first, with averages and the spending trend.
// @Description Send Accept: text/csv to get the table as CSV.
// @Tags Analytics
// @Produce json,text/csv
// @Param months query int false "Number of months, 1 to 24" default(6)
// @Success 200 {object} TrendsDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid number of months"
// @Router /api/analytics/trends [get]
// @Security XUserId
func (h *Handler) Trends(w http.ResponseWriter, r *http.Request) {
	log.Debug("Getting trends")
	months, err := rest.QueryInt(r, "months", 0)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	trends, err := h.service.Trends(r.Context(), months)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	if r.Header.Get("Accept") == "text/csv" {
		csv, err := h.trendsRenderer.RenderTrends(trends)
		if err != nil {
			rest.WriteError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(csv)); err != nil {
			log.Errorf("failed to write csv response: %v", err)
		}
		return
	}

	monthly := make([]MonthlyStatsDTO, 0, len(trends.Months))
	for _, m := range trends.Months {
		monthly = append(monthly, monthlyStatsToDTO(m))
	}
	rest.WriteJSON(w, http.StatusOK, TrendsDTO{
		MonthlyData: monthly,
		Averages: AveragesDTO{
			Income:   trends.Averages.Income,
			Expenses: trends.Averages.Expenses,
			Savings:  trends.Averages.Savings,
		},
		Trend: TrendDTO{
			Direction:     string(trends.Trend.Direction),
			ChangePercent: trends.Trend.ChangePercent,
			Window:        trends.Trend.Window,
		},
	})
}

// CategoryAnalysis godoc
// @Summary Spending by category
// @Description Expense totals per category between two inclusive dates, largest first.
// @Tags Analytics
// @Produce json
// @Param from query string false "First date (YYYY-MM-DD), defaults to three months before to"
// @Param to query string false "Last date (YYYY-MM-DD), defaults to today"
// @Success 200 {array} CategoryStatsDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid date range"
// @Router /api/analytics/categories [get]
// @Security XUserId
func (h *Handler) CategoryAnalysis(w http.ResponseWriter, r *http.Request) {
	var from, to *time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		date, err := rest.ParseDate("from", raw)
		if err != nil {
			rest.WriteError(w, err)
			return
		}
		from = &date
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		date, err := rest.ParseDate("to", raw)
		if err != nil {
			rest.WriteError(w, err)
			return
		}
		to = &date
	}

	stats, err := h.service.CategoryAnalysis(r.Context(), from, to)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, categoriesToDTO(stats))
}

// Performance godoc
// @Summary Budget performance
// @Description Budgets of the current month against spending recomputed from transactions.
// @Tags Analytics
// @Produce json
// @Success 200 {object} PerformanceDTO
// @Router /api/analytics/budgets [get]
// @Security XUserId
func (h *Handler) Performance(w http.ResponseWriter, r *http.Request) {
	performance, err := h.service.Performance(r.Context())
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	budgets := make([]BudgetPerformanceDTO, 0, len(performance.Budgets))
	for _, p := range performance.Budgets {
		budgets = append(budgets, BudgetPerformanceDTO{
			Id:          p.Budget.Id,
			Category:    string(p.Budget.Category),
			Limit:       p.Budget.Limit.Round(2),
			Spent:       p.Spent,
			Remaining:   p.Remaining,
			PercentUsed: p.PercentUsed,
			Status:      string(p.Status),
		})
	}
	rest.WriteJSON(w, http.StatusOK, PerformanceDTO{
		Period:  PeriodDTO{Month: performance.Month.Month, Year: performance.Month.Year},
		Budgets: budgets,
		Overall: OverallDTO{
			TotalBudget: performance.Overall.TotalBudget,
			TotalSpent:  performance.Overall.TotalSpent,
			Remaining:   performance.Overall.Remaining,
			PercentUsed: performance.Overall.PercentUsed,
			Status:      string(performance.Overall.Status),
		},
	})
}

func monthlyStatsToDTO(m MonthlyStats) MonthlyStatsDTO {
	return MonthlyStatsDTO{
		Month:            m.Month.Month,
		Year:             m.Month.Year,
		Income:           m.Income,
		Expenses:         m.Expenses,
		Savings:          m.Savings,
		SavingsRate:      m.SavingsRate,
		TransactionCount: m.TransactionCount,
	}
}

func categoriesToDTO(stats []CategoryStats) []CategoryStatsDTO {
	dtos := make([]CategoryStatsDTO, 0, len(stats))
	for _, s := range stats {
		dtos = append(dtos, CategoryStatsDTO{
			Category:   string(s.Category),
			Total:      s.Total,
			Count:      s.Count,
			Average:    s.Average,
			Percentage: s.Percentage,
		})
	}
	return dtos
}
