package transaction

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/finbot-app/finbot/internal/rest"
	"github.com/finbot-app/finbot/pkg/category"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type TransactionDTO struct {
	Id          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type CreateTransactionDTO struct {
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date,omitempty"`
}

// UpdateTransactionDTO carries a partial edit; absent fields stay unchanged.
type UpdateTransactionDTO struct {
	Kind        *string          `json:"kind,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Description *string          `json:"description,omitempty"`
	Date        *string          `json:"date,omitempty"`
}

type PageDTO struct {
	Items    []TransactionDTO `json:"items"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	Total    int              `json:"total"`
	Pages    int              `json:"pages"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Create godoc
// @Summary Record a transaction
// @Description Store an income or expense. Expenses are added to the budget of their category and month, if one exists.
// @Tags Transaction
// @Accept json
// @Produce json
// @Param transaction body CreateTransactionDTO true "Transaction"
// @Success 201 {object} TransactionDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Router /api/transactions [post]
// @Security XUserId
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating transaction")

	var dto CreateTransactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.BadRequest(w, "Invalid request body format", err.Error())
		return
	}
	t := Transaction{
		Kind:        Kind(dto.Kind),
		Amount:      dto.Amount,
		Category:    category.Category(dto.Category),
		Description: dto.Description,
	}
	if dto.Date != "" {
		date, err := rest.ParseDate("date", dto.Date)
		if err != nil {
			rest.WriteError(w, err)
			return
		}
		t.Date = date
	}

	created, err := h.service.Create(r.Context(), t)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, ToDTO(created))
}

// Get godoc
// @Summary Get a transaction
// @Tags Transaction
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} TransactionDTO
// @Failure 404 {object} rest.ErrorResponse "Transaction not found"
// @Router /api/transactions/{id} [get]
// @Security XUserId
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ToDTO(t))
}

// List godoc
// @Summary List transactions
// @Description Newest first, one page at a time. from and to are inclusive dates.
// @Tags Transaction
// @Produce json
// @Param kind query string false "income or expense"
// @Param category query string false "Category"
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Param page query int false "Page, starting at 1"
// @Param pageSize query int false "Page size"
// @Success 200 {object} PageDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid filter"
// @Router /api/transactions [get]
// @Security XUserId
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	items := make([]TransactionDTO, 0, len(page.Items))
	for _, t := range page.Items {
		items = append(items, ToDTO(t))
	}
	rest.WriteJSON(w, http.StatusOK, PageDTO{
		Items:    items,
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    page.Total,
		Pages:    page.Pages(),
	})
}

// Update godoc
// @Summary Update a transaction
// @Description Change any of kind, amount, category, description and date. Affected budgets are reconciled.
// @Tags Transaction
// @Accept json
// @Produce json
// @Param id path string true "Transaction ID"
// @Param transaction body UpdateTransactionDTO true "Fields to change"
// @Success 200 {object} TransactionDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 404 {object} rest.ErrorResponse "Transaction not found"
// @Router /api/transactions/{id} [put]
// @Security XUserId
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	var dto UpdateTransactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		rest.BadRequest(w, "Invalid request body format", err.Error())
		return
	}

	update := Update{Amount: dto.Amount, Description: dto.Description}
	if dto.Kind != nil {
		kind := Kind(*dto.Kind)
		update.Kind = &kind
	}
	if dto.Category != nil {
		c := category.Category(*dto.Category)
		update.Category = &c
	}
	if dto.Date != nil {
		date, err := rest.ParseDate("date", *dto.Date)
		if err != nil {
			rest.WriteError(w, err)
			return
		}
		update.Date = &date
	}

	updated, err := h.service.Update(r.Context(), id, update)
	if err != nil {
		rest.WriteError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, ToDTO(updated))
}

// Delete godoc
// @Summary Delete a transaction
// @Description An expense is taken back out of the budget of its period.
// @Tags Transaction
// @Param id path string true "Transaction ID"
// @Success 204 "No Content"
// @Failure 404 {object} rest.ErrorResponse "Transaction not found"
// @Router /api/transactions/{id} [delete]
// @Security XUserId
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		rest.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathId(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		rest.BadRequest(w, "Invalid transaction id", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func parseFilter(r *http.Request) (Filter, error) {
	var filter Filter
	query := r.URL.Query()
	if raw := query.Get("kind"); raw != "" {
		kind, err := ParseKind(raw)
		if err != nil {
			return Filter{}, err
		}
		filter.Kind = &kind
	}
	if raw := query.Get("category"); raw != "" {
		c, err := category.Parse(raw)
		if err != nil {
			return Filter{}, err
		}
		filter.Category = &c
	}
	if raw := query.Get("from"); raw != "" {
		from, err := rest.ParseDate("from", raw)
		if err != nil {
			return Filter{}, err
		}
		filter.From = &from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := rest.ParseDate("to", raw)
		if err != nil {
			return Filter{}, err
		}
		filter.To = &to
	}
	var err error
	if filter.Page, err = rest.QueryInt(r, "page", 1); err != nil {
		return Filter{}, err
	}
	if filter.PageSize, err = rest.QueryInt(r, "pageSize", 0); err != nil {
		return Filter{}, err
	}
	return filter, nil
}

func ToDTO(t Transaction) TransactionDTO {
	return TransactionDTO{
		Id:          t.Id,
		Kind:        string(t.Kind),
		Amount:      t.Amount.Round(2),
		Category:    string(t.Category),
		Description: t.Description,
		Date:        t.Date.Format(rest.DateLayout),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
