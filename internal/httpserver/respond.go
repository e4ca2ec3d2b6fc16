package httpserver

import (
	"errors"
	"net/http"

	"github.com/chefmarket/backend/internal/logging"
	"github.com/chefmarket/backend/internal/service"
	"github.com/chefmarket/backend/internal/transport"
	"github.com/labstack/echo/v4"
)

func respondOK(c echo.Context, status int, data any) error {
	return c.JSON(status, transport.Result{Success: true, Data: data})
}

// respondErr maps a service error onto the envelope. Non-domain errors are
// logged and surfaced as a generic internal error; their text never
// reaches the client.
func respondErr(c echo.Context, err error) error {
	var de *service.DomainError
	if !errors.As(err, &de) {
		logging.FromContext(c.Request().Context()).Error("internal error", "error", err)
		return c.JSON(http.StatusInternalServerError, transport.Result{
			Success: false,
			Error:   &transport.ErrorBody{Code: service.CodeInternal, Message: "internal server error"},
		})
	}
	return c.JSON(statusFor(de.Code), transport.Result{
		Success: false,
		Error:   &transport.ErrorBody{Code: de.Code, Message: de.Message, Details: de.Details},
	})
}

func statusFor(code string) int {
	switch code {
	case service.CodeEmptyCart, service.CodeCartExpired, service.CodeIncompleteDeliveryAddress,
		service.CodeMealPriceMismatch, service.CodeChefMismatch, service.CodeValidation,
		service.CodeAmountMismatch, service.CodeInvalidRefundAmount:
		return http.StatusBadRequest
	case service.CodeItemNotFound, service.CodeOrderNotFound:
		return http.StatusNotFound
	case service.CodeItemsUnavailable, service.CodeInsufficientAvailability,
		service.CodeInvalidStatusTransition, service.CodeOrderNotCancellable,
		service.CodeOrderNotEligible, service.CodeInvalidPaymentStatus,
		service.CodePaymentAlreadySuccessful:
		return http.StatusConflict
	case service.CodePaymentIncomplete:
		return http.StatusPaymentRequired
	case service.CodePaymentGatewayTimeout:
		return http.StatusGatewayTimeout
	case service.CodePaymentGatewayError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
