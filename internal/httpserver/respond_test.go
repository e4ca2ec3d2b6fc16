package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chefmarket/backend/internal/service"
	"github.com/chefmarket/backend/internal/transport"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{service.CodeEmptyCart, http.StatusBadRequest},
		{service.CodeCartExpired, http.StatusBadRequest},
		{service.CodeItemNotFound, http.StatusNotFound},
		{service.CodeOrderNotFound, http.StatusNotFound},
		{service.CodeItemsUnavailable, http.StatusConflict},
		{service.CodeInsufficientAvailability, http.StatusConflict},
		{service.CodeInvalidStatusTransition, http.StatusConflict},
		{service.CodePaymentIncomplete, http.StatusPaymentRequired},
		{service.CodePaymentGatewayTimeout, http.StatusGatewayTimeout},
		{service.CodePaymentGatewayError, http.StatusBadGateway},
		{service.CodeInternal, http.StatusInternalServerError},
		{"SomethingNew", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.code), tt.code)
	}
}

func TestRespondErr_HidesInternalErrorText(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, respondErr(c, errors.New("pq: connection refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body transport.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, service.CodeInternal, body.Error.Code)
	assert.NotContains(t, body.Error.Message, "connection refused")
}

func TestRespondErr_DomainErrorEnvelope(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := service.Errf(service.CodeEmptyCart, "cart is empty")
	require.NoError(t, respondErr(c, err))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body transport.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, service.CodeEmptyCart, body.Error.Code)
	assert.Equal(t, "cart is empty", body.Error.Message)
}
