package budget

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finbot-app/finbot/internal/rest"
	"github.com/finbot-app/finbot/pkg/category"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerTest(t *testing.T) (*mux.Router, testEnv) {
	env := setup(t)
	handler := NewHandler(env.service)
	r := mux.NewRouter()
	r.HandleFunc("/api/budgets", handler.SetBudget).Methods("POST")
	r.HandleFunc("/api/budgets/current", handler.GetCurrent).Methods("GET")
	r.HandleFunc("/api/budgets/{year:[0-9]+}/{month:[0-9]+}", handler.GetByMonth).Methods("GET")
	r.HandleFunc("/api/budgets/{id}", handler.Delete).Methods("DELETE")
	return r, env
}

func serve(r *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_SetBudget(t *testing.T) {
	r, env := setupHandlerTest(t)
	env.expenses[foodMarch().Key()] = decimal.NewFromInt(200)

	w := serve(r, http.MethodPost, "/api/budgets", map[string]any{
		"category": "Food",
		"limit":    500,
		"month":    3,
		"year":     2024,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var dto BudgetDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
	assert.Equal(t, "Food", dto.Category)
	assert.Equal(t, "200", dto.Spent.String())
	assert.Equal(t, "300", dto.Remaining.String())
	assert.Equal(t, "40", dto.PercentUsed.String())
	assert.Equal(t, 80, dto.AlertThreshold)
}

func TestHandler_SetBudget_Invalid(t *testing.T) {
	r, _ := setupHandlerTest(t)

	w := serve(r, http.MethodPost, "/api/budgets", map[string]any{
		"category": "Salary",
		"limit":    "100",
		"month":    3,
		"year":     2024,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response rest.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Invalid category", response.Error)
}

func TestHandler_GetByMonth(t *testing.T) {
	r, env := setupHandlerTest(t)
	_, err := env.service.SetBudget(ctx, Settings{Category: category.Travel, Month: 7, Year: 2024, Limit: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	w := serve(r, http.MethodGet, "/api/budgets/2024/7", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var dtos []BudgetDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dtos))
	require.Len(t, dtos, 1)
	assert.Equal(t, "Travel", dtos[0].Category)

	w = serve(r, http.MethodGet, "/api/budgets/2024/13", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetByMonth_YearOutOfRange(t *testing.T) {
	r, _ := setupHandlerTest(t)

	for _, path := range []string{"/api/budgets/40000/1", "/api/budgets/0/1"} {
		w := serve(r, http.MethodGet, path, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		var response rest.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Invalid year", response.Error)
	}
}

func TestHandler_SetBudget_YearOutOfRange(t *testing.T) {
	r, env := setupHandlerTest(t)

	w := serve(r, http.MethodPost, "/api/budgets", map[string]any{
		"category": "Food",
		"limit":    "100",
		"month":    3,
		"year":     40000,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response rest.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Invalid year", response.Error)
	assert.Zero(t, env.tx.Commits()+env.tx.Rollbacks())
}

func TestHandler_GetCurrent_EmptyList(t *testing.T) {
	r, _ := setupHandlerTest(t)

	w := serve(r, http.MethodGet, "/api/budgets/current", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestHandler_Delete(t *testing.T) {
	r, env := setupHandlerTest(t)
	b, err := env.service.SetBudget(ctx, foodMarch())
	require.NoError(t, err)

	w := serve(r, http.MethodDelete, "/api/budgets/"+b.Id.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(r, http.MethodDelete, "/api/budgets/"+b.Id.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(r, http.MethodDelete, "/api/budgets/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
