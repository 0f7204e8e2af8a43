package snapshot

import (
	"net/http"
	"time"

	"github.com/finbot-app/finbot/internal/rest"
	"github.com/finbot-app/finbot/pkg/analytics"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type CategorySpendDTO struct {
	Category string          `json:"category"`
	Spent    decimal.Decimal `json:"spent"`
}

type BudgetStatusDTO struct {
	Category    string          `json:"category"`
	Limit       decimal.Decimal `json:"limit"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentUsed decimal.Decimal `json:"percentUsed"`
	Status      string          `json:"status"`
}

type RecentTransactionDTO struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Kind        string          `json:"kind"`
	Date        string          `json:"date"`
}

type UserInfoDTO struct {
	MonthlyIncome decimal.Decimal `json:"monthlyIncome"`
	Currency      string          `json:"currency"`
}

type SnapshotDTO struct {
	CurrentMonth       analytics.PeriodDTO        `json:"currentMonth"`
	GeneratedAt        time.Time                  `json:"generatedAt"`
	TotalIncome        decimal.Decimal            `json:"totalIncome"`
	TotalExpenses      decimal.Decimal            `json:"totalExpenses"`
	Savings            decimal.Decimal            `json:"savings"`
	SavingsRate        decimal.Decimal            `json:"savingsRate"`
	TransactionCount   int                        `json:"transactionCount"`
	SpendingByCategory map[string]decimal.Decimal `json:"spendingByCategory"`
	TopCategories      []CategorySpendDTO         `json:"topCategories"`
	Budgets            []BudgetStatusDTO          `json:"budgets"`
	RecentTransactions []RecentTransactionDTO     `json:"recentTransactions"`
	UserInfo           UserInfoDTO                `json:"userInfo"`
}

type Handler struct {
	builder Builder
}

func NewHandler(builder Builder) *Handler {
	return &Handler{builder: builder}
}

// Get godoc
// @Summary Financial snapshot
// @Description Current month totals, spending per category, budget statuses, recent transactions
// @Description and the declared income, as one document for the assistant.
// @Tags Snapshot
// @Produce json
// @Success 200 {object} SnapshotDTO
// @Router /api/snapshot [get]
// @Security XUserId
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log.Debug("Building financial snapshot")
	s, err := h.builder.Build(r.Context())
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ToDTO(s))
}

func ToDTO(s Snapshot) SnapshotDTO {
	spending := make(map[string]decimal.Decimal, len(s.SpendingByCategory))
	for c, spent := range s.SpendingByCategory {
		spending[string(c)] = spent
	}
	top := make([]CategorySpendDTO, 0, len(s.TopCategories))
	for _, c := range s.TopCategories {
		top = append(top, CategorySpendDTO{Category: string(c.Category), Spent: c.Spent})
	}
	budgets := make([]BudgetStatusDTO, 0, len(s.Budgets))
	for _, b := range s.Budgets {
		budgets = append(budgets, BudgetStatusDTO{
			Category:    string(b.Budget.Category),
			Limit:       b.Budget.Limit.Round(2),
			Spent:       b.Spent,
			Remaining:   b.Remaining,
			PercentUsed: b.PercentUsed,
			Status:      string(b.Status),
		})
	}
	recent := make([]RecentTransactionDTO, 0, len(s.Recent))
	for _, t := range s.Recent {
		recent = append(recent, RecentTransactionDTO{
			Description: t.Description,
			Amount:      t.Amount.Round(2),
			Category:    string(t.Category),
			Kind:        string(t.Kind),
			Date:        t.Date.Format(rest.DateLayout),
		})
	}

	return SnapshotDTO{
		CurrentMonth:       analytics.PeriodDTO{Month: s.Month.Month, Year: s.Month.Year},
		GeneratedAt:        s.GeneratedAt,
		TotalIncome:        s.Totals.Income,
		TotalExpenses:      s.Totals.Expenses,
		Savings:            s.Totals.Savings,
		SavingsRate:        s.Totals.SavingsRate,
		TransactionCount:   s.Totals.TransactionCount,
		SpendingByCategory: spending,
		TopCategories:      top,
		Budgets:            budgets,
		RecentTransactions: recent,
		UserInfo: UserInfoDTO{
			MonthlyIncome: s.User.MonthlyIncome,
			Currency:      s.User.Currency,
		},
	}
}
