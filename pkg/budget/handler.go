package budget

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/finbot-app/finbot/internal/rest"
	"github.com/finbot-app/finbot/pkg/category"
	"github.com/finbot-app/finbot/pkg/period"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type BudgetDTO struct {
	Id               uuid.UUID       `json:"id"`
	Category         string          `json:"category"`
	Month            int             `json:"month"`
	Year             int             `json:"year"`
	Limit            decimal.Decimal `json:"limit"`
	Spent            decimal.Decimal `json:"spent"`
	Remaining        decimal.Decimal `json:"remaining"`
	PercentUsed      decimal.Decimal `json:"percentUsed"`
	AlertThreshold   int             `json:"alertThreshold"`
	NotificationSent bool            `json:"notificationSent"`
}

type SetBudgetDTO struct {
	Category       string          `json:"category"`
	Limit          decimal.Decimal `json:"limit"`
	Month          int             `json:"month"`
	Year           int             `json:"year"`
	AlertThreshold *int            `json:"alertThreshold,omitempty"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// SetBudget godoc
// @Summary Set or update a budget
// @Description Create the budget of a category for a month, or replace its limit and threshold. Spent is recomputed from transactions.
// @Tags Budget
// @Accept json
// @Produce json
// @Param budget body SetBudgetDTO true "Budget"
// @Success 200 {object} BudgetDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/budgets [post]
// @Security XUserId
func (h *Handler) SetBudget(w http.ResponseWriter, r *http.Request) {
	log.Debug("Setting budget")

	var dto SetBudgetDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.BadRequest(w, "Invalid request body format", err.Error())
		return
	}

	budget, err := h.service.SetBudget(r.Context(), Settings{
		Category:       category.Category(dto.Category),
		Month:          dto.Month,
		Year:           dto.Year,
		Limit:          dto.Limit,
		AlertThreshold: dto.AlertThreshold,
	})
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ToDTO(budget))
}

// GetCurrent godoc
// @Summary Get budgets of the current month
// @Tags Budget
// @Produce json
// @Success 200 {array} BudgetDTO
// @Router /api/budgets/current [get]
// @Security XUserId
func (h *Handler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.service.GetCurrent(r.Context())
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTOs(budgets))
}

// GetByMonth godoc
// @Summary Get budgets of a month
// @Tags Budget
// @Produce json
// @Param year path int true "Year"
// @Param month path int true "Month (1-12)"
// @Success 200 {array} BudgetDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid month or year"
// @Router /api/budgets/{year}/{month} [get]
// @Security XUserId
func (h *Handler) GetByMonth(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	year, err := strconv.Atoi(vars["year"])
	if err != nil {
		rest.BadRequest(w, "Invalid year", err.Error())
		return
	}
	month, err := strconv.Atoi(vars["month"])
	if err != nil || month < 1 || month > 12 {
		rest.BadRequest(w, "Invalid month", "month must be between 1 and 12")
		return
	}

	budgets, err := h.service.GetByMonth(r.Context(), period.Month{Month: month, Year: year})
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTOs(budgets))
}

// Delete godoc
// @Summary Delete a budget
// @Description Transactions are kept; only the budget record is removed.
// @Tags Budget
// @Param id path string true "Budget ID"
// @Success 204 "No Content"
// @Failure 404 {object} rest.ErrorResponse "Budget not found"
// @Router /api/budgets/{id} [delete]
// @Security XUserId
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		rest.BadRequest(w, "Invalid budget id", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		rest.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func ToDTO(b Budget) BudgetDTO {
	return BudgetDTO{
		Id:               b.Id,
		Category:         string(b.Category),
		Month:            b.Month,
		Year:             b.Year,
		Limit:            b.Limit.Round(2),
		Spent:            b.Spent.Round(2),
		Remaining:        b.Remaining().Round(2),
		PercentUsed:      b.PercentUsed().Round(2),
		AlertThreshold:   b.AlertThreshold,
		NotificationSent: b.NotificationSent,
	}
}

func toDTOs(budgets []Budget) []BudgetDTO {
	dtos := make([]BudgetDTO, 0, len(budgets))
	for _, b := range budgets {
		dtos = append(dtos, ToDTO(b))
	}
	return dtos
}
