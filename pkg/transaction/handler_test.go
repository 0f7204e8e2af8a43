package transaction

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finbot-app/finbot/internal/rest"
	"github.com/finbot-app/finbot/pkg/category"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerTest(t *testing.T) (*mux.Router, testEnv) {
	env := setup(t)
	handler := NewHandler(env.service)
	r := mux.NewRouter()
	r.HandleFunc("/api/transactions", handler.Create).Methods("POST")
	r.HandleFunc("/api/transactions", handler.List).Methods("GET")
	r.HandleFunc("/api/transactions/{id}", handler.Get).Methods("GET")
	r.HandleFunc("/api/transactions/{id}", handler.Update).Methods("PUT")
	r.HandleFunc("/api/transactions/{id}", handler.Delete).Methods("DELETE")
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

func TestHandler_Create(t *testing.T) {
	r, env := setupHandlerTest(t)
	env.setBudget(t, category.Food, 3, 2024, "500")

	w := serve(r, http.MethodPost, "/api/transactions", map[string]any{
		"kind":        "expense",
		"amount":      120.5,
		"category":    "Food",
		"description": "dinner",
		"date":        "2024-03-10",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var dto TransactionDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
	assert.Equal(t, "expense", dto.Kind)
	assert.Equal(t, "120.5", dto.Amount.String())
	assert.Equal(t, "2024-03-10", dto.Date)
	assert.Equal(t, "120.5", env.spent(t, category.Food, 3, 2024).String())
}

func TestHandler_Create_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]any
		error string
	}{
		{"negative amount", map[string]any{"kind": "expense", "amount": -5, "category": "Food"}, "Invalid amount"},
		{"three decimals", map[string]any{"kind": "expense", "amount": "1.005", "category": "Food"}, "Invalid amount"},
		{"unknown kind", map[string]any{"kind": "refund", "amount": 5, "category": "Food"}, "Invalid kind"},
		{"unknown category", map[string]any{"kind": "expense", "amount": 5, "category": "Pets"}, "Invalid category"},
		{"bad date", map[string]any{"kind": "expense", "amount": 5, "category": "Food", "date": "10/03/2024"}, "Invalid date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, env := setupHandlerTest(t)

			w := serve(r, http.MethodPost, "/api/transactions", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var response rest.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.error, response.Error)
			page, err := env.service.List(ctx, Filter{})
			require.NoError(t, err)
			assert.Zero(t, page.Total)
		})
	}
}

func TestHandler_GetUpdateDelete(t *testing.T) {
	r, env := setupHandlerTest(t)
	env.setBudget(t, category.Food, 3, 2024, "500")
	created, err := env.service.Create(ctx, expense(category.Food, "80", date(2024, 3, 15)))
	require.NoError(t, err)
	path := "/api/transactions/" + created.Id.String()

	w := serve(r, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodPut, path, map[string]any{"category": "Entertainment"})
	require.Equal(t, http.StatusOK, w.Code)
	var dto TransactionDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dto))
	assert.Equal(t, "Entertainment", dto.Category)
	assert.Equal(t, "80", dto.Amount.String())
	assert.True(t, env.spent(t, category.Food, 3, 2024).IsZero())

	w = serve(r, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(r, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = serve(r, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_InvalidId(t *testing.T) {
	r, _ := setupHandlerTest(t)

	w := serve(r, http.MethodGet, "/api/transactions/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_List(t *testing.T) {
	r, env := setupHandlerTest(t)
	for day := 1; day <= 5; day++ {
		_, err := env.service.Create(ctx, expense(category.Transportation, "3.20", date(2024, 3, day)))
		require.NoError(t, err)
	}
	_, err := env.service.Create(ctx, expense(category.Food, "9", date(2024, 3, 3)))
	require.NoError(t, err)

	w := serve(r, http.MethodGet, "/api/transactions?category=Transportation&from=2024-03-02&pageSize=2&page=2", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var page PageDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "2024-03-03", page.Items[0].Date)
	assert.Equal(t, "2024-03-02", page.Items[1].Date)
	assert.Equal(t, "3.2", page.Items[0].Amount.String())

	w = serve(r, http.MethodGet, "/api/transactions?kind=transfer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = serve(r, http.MethodGet, "/api/transactions?page=two", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
