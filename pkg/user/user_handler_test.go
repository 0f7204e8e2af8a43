package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/finbot-app/finbot/internal/rest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_CreateAndReadCurrentUser(t *testing.T) {
	service, _ := setupService(t)
	handler := NewHandler(service)

	body, _ := json.Marshal(map[string]any{
		"username":      "frank",
		"displayName":   "Frank",
		"monthlyIncome": 3000,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/user", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.CreateUser(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var created UserDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "USD", created.Currency)
	assert.True(t, decimal.NewFromInt(3000).Equal(created.MonthlyIncome))

	stored, err := service.GetUserByUid(context.Background(), created.Uid)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/user/current", nil)
	req = req.WithContext(WithUser(req.Context(), stored))
	w = httptest.NewRecorder()
	handler.CurrentUser(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var current UserDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&current))
	assert.Equal(t, "frank", current.Username)
}

func TestHandler_CreateUser_Invalid(t *testing.T) {
	service, _ := setupService(t)
	handler := NewHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/api/user", bytes.NewReader([]byte(`{"displayName":"No Name"}`)))
	w := httptest.NewRecorder()
	handler.CreateUser(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response rest.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Invalid username", response.Error)
}

func TestHandler_CurrentUser_NotFound(t *testing.T) {
	service, _ := setupService(t)
	handler := NewHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/user/current", nil)
	req = req.WithContext(WithUser(req.Context(), User{Id: 99}))
	w := httptest.NewRecorder()
	handler.CurrentUser(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
